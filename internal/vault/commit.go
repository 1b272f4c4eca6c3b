// commit.go - Commitment builder: identity and credential commitments plus the
// per-use authentication tag.
//
// All three functions are pure MiMC compositions over BN254 fr. They must stay
// in lock-step with the in-circuit constraints in circuit.go: the native MiMC
// of the curve and gnark's std/hash/mimc compute the same permutation.

package vault

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// hashElems hashes canonical 32-byte encodings of the given elements.
func hashElems(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// UsernameHash computes the identity commitment H(encode(username)).
// It is the ledger's primary key for the account and is stable for a
// given username.
func UsernameHash(username string) (fr.Element, error) {
	u, err := EncodeString(username)
	if err != nil {
		return fr.Element{}, err
	}
	return hashElems(u), nil
}

// CredentialHash computes the credential commitment
// H(encode(username), encode(password)). Stored once at registration and
// immutable thereafter; there is no password-change transition.
func CredentialHash(username, password string) (fr.Element, error) {
	u, err := EncodeString(username)
	if err != nil {
		return fr.Element{}, err
	}
	p, err := EncodeString(password)
	if err != nil {
		return fr.Element{}, err
	}
	return hashElems(u, p), nil
}

// AuthTag computes the freshness tag H(credentialHash, nonce). The ledger
// rejects any tag it has seen before, so the tag is the replay anchor
// regardless of how the nonce was generated.
func AuthTag(credentialHash, nonce fr.Element) fr.Element {
	return hashElems(credentialHash, nonce)
}

// TimestampNonce returns a wall-clock millisecond nonce. Acceptable for
// sequential callers; two concurrent proofs in the same millisecond collide
// and the second one dies in the used-tag check.
func TimestampNonce() *big.Int {
	return big.NewInt(time.Now().UnixMilli())
}

// RandomNonce returns a uniformly random field element as a nonce. Use this
// for concurrent callers.
func RandomNonce() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		return nil, err
	}
	return n, nil
}

// nonceElement reduces a caller-supplied nonce into the field.
func nonceElement(nonce *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Mod(nonce, fr.Modulus()))
	return e
}
