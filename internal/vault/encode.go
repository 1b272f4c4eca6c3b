// encode.go - Deterministic mapping from byte strings to BN254 field elements.
//
// Usernames and passwords enter the proving system through this encoding; it
// must agree bit-for-bit with the big-endian accumulation the relation's
// clients use, or commitments computed off-circuit will never match.

package vault

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// MaxEncodeLen is the largest input the encoder accepts. 31 bytes is the
// largest length whose big-endian value is always below the BN254 scalar
// modulus, so encoding stays injective over the full accepted range.
const MaxEncodeLen = 31

// Encode maps data to a field element by big-endian base-256 accumulation.
// Inputs longer than MaxEncodeLen fail with ErrEncodingOverflow; the encoder
// never pre-hashes or truncates silently.
func Encode(data []byte) (fr.Element, error) {
	var e fr.Element
	if len(data) > MaxEncodeLen {
		return e, ErrEncodingOverflow
	}
	e.SetBigInt(new(big.Int).SetBytes(data))
	return e, nil
}

// EncodeString is Encode over the raw bytes of s.
func EncodeString(s string) (fr.Element, error) {
	return Encode([]byte(s))
}

// Decode inverts Encode for values produced by it. Leading zero bytes of the
// original input are not recoverable, matching big-endian integer semantics.
func Decode(e fr.Element) []byte {
	return e.BigInt(new(big.Int)).Bytes()
}
