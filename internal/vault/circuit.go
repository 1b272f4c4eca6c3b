// circuit.go - The canonical authentication relation.
//
// One relation serves both registration and authenticated spend: it proves
// knowledge of (username, password) consistent with all four public
// commitments. The public variable order below is the wire contract for
// PublicSignals and must never be reordered without bumping RelationAuth.

package vault

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// CircuitAuth proves knowledge of a username and password such that
//
//	H(username)                 == UsernameHash
//	H(username, password)       == CredentialHash
//	H(credentialHash, nonce)    == ResultHash
//
// Nonce is public but unconstrained beyond its use in ResultHash; freshness is
// enforced by the ledger's used-tag set, not by the relation.
type CircuitAuth struct {
	// ====== PUBLIC VARIABLES ======
	UsernameHash   frontend.Variable `gnark:",public"` // Identity commitment
	CredentialHash frontend.Variable `gnark:",public"` // Credential commitment
	Nonce          frontend.Variable `gnark:",public"` // Single-use freshness value
	ResultHash     frontend.Variable `gnark:",public"` // Authentication tag

	// ====== PRIVATE VARIABLES ======
	Username frontend.Variable
	Password frontend.Variable
}

// Define implements the constraints of the authentication relation.
func (c *CircuitAuth) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// 1) H(username) == UsernameHash
	hasher.Write(c.Username)
	api.AssertIsEqual(c.UsernameHash, hasher.Sum())

	// 2) H(username, password) == CredentialHash
	hasher.Reset()
	hasher.Write(c.Username)
	hasher.Write(c.Password)
	cred := hasher.Sum()
	api.AssertIsEqual(c.CredentialHash, cred)

	// 3) H(credentialHash, nonce) == ResultHash
	hasher.Reset()
	hasher.Write(cred)
	hasher.Write(c.Nonce)
	api.AssertIsEqual(c.ResultHash, hasher.Sum())

	return nil
}

// Public signal indices within ProofEnvelope.PublicSignals, in the order the
// public variables are declared on CircuitAuth.
const (
	SignalUsernameHash = iota
	SignalCredentialHash
	SignalNonce
	SignalResultHash

	NumPublicSignals
)
