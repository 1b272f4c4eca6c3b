// Package spend builds authenticated-spend proof requests for pay and
// withdraw.
//
// The amount and the counterparty are not part of the proved relation; they
// are plain parameters carried alongside the envelope and checked by the
// ledger's own preconditions.
package spend

import (
	"fmt"
	"math/big"

	"zkvault/internal/vault"
)

// Result is a ready-to-submit spend: the proved public values plus the
// unproved transfer parameters.
type Result struct {
	UsernameHash string
	Nonce        string
	ResultHash   string
	Envelope     *vault.ProofEnvelope

	// Carried alongside the proof, not bound by it.
	To     string
	Amount *big.Int
}

// Build encodes the credentials, delegates to the prover and attaches the
// transfer parameters. For withdrawals, to is the external destination
// rather than another identity hash.
func Build(prover vault.Prover, username, password string, nonce *big.Int, to string, amount *big.Int) (*Result, error) {
	if nonce == nil {
		return nil, fmt.Errorf("nonce must be supplied")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, vault.ErrZeroAmount
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
		UsernameHash: env.PublicSignals[vault.SignalUsernameHash],
		Nonce:        env.PublicSignals[vault.SignalNonce],
		ResultHash:   env.PublicSignals[vault.SignalResultHash],
		Envelope:     env,
		To:           to,
		Amount:       new(big.Int).Set(amount),
	}, nil
}
