// Package register builds registration proof requests.
//
// Registration consults no prior state: the relation only proves consistent
// hashing of the chosen username and password, and the ledger establishes the
// credential commitment from the declared public values.
package register

import (
	"fmt"
	"math/big"

	"zkvault/internal/vault"
)

// Result is a ready-to-submit registration: the declared public values plus
// the proof envelope binding them.
type Result struct {
	UsernameHash   string
	CredentialHash string
	Nonce          string
	ResultHash     string
	Envelope       *vault.ProofEnvelope
}

// Build encodes the credentials, delegates to the prover and shapes the
// declared public values for Ledger.Register. Encoding failures surface
// before any proving work starts; backend failures are never retried here.
func Build(prover vault.Prover, username, password string, nonce *big.Int) (*Result, error) {
	if nonce == nil {
		return nil, fmt.Errorf("nonce must be supplied")
	}
	// Fail on oversized inputs before paying for a proof.
	if _, err := vault.UsernameHash(username); err != nil {
		return nil, err
	}
	if _, err := vault.CredentialHash(username, password); err != nil {
		return nil, err
	}

	env, err := prover.Prove(vault.RelationAuth, &vault.PrivateInputs{
		Username: username,
		Password: password,
		Nonce:    nonce,
	})
	if err != nil {
		return nil, err
	}
	if len(env.PublicSignals) != vault.NumPublicSignals {
		return nil, fmt.Errorf("%w: prover returned %d public signals, want %d",
			vault.ErrProvingFailure, len(env.PublicSignals), vault.NumPublicSignals)
	}
	return &Result{
		UsernameHash:   env.PublicSignals[vault.SignalUsernameHash],
		CredentialHash: env.PublicSignals[vault.SignalCredentialHash],
		Nonce:          env.PublicSignals[vault.SignalNonce],
		ResultHash:     env.PublicSignals[vault.SignalResultHash],
		Envelope:       env,
	}, nil
}
