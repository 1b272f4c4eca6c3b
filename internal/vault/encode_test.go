package vault

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterminism(t *testing.T) {
	a, err := EncodeString("alice")
	require.NoError(t, err)
	b, err := EncodeString("alice")
	require.NoError(t, err)
	assert.True(t, a.Equal(&b), "encoding the same input twice must yield the same element")
}

func TestEncodeOverflow(t *testing.T) {
	_, err := Encode(make([]byte, MaxEncodeLen+1))
	assert.ErrorIs(t, err, ErrEncodingOverflow)

	// Exactly at capacity is fine.
	_, err = Encode(bytes.Repeat([]byte{0xff}, MaxEncodeLen))
	assert.NoError(t, err)
}

func TestEncodeEmpty(t *testing.T) {
	e, err := Encode(nil)
	require.NoError(t, err)
	assert.True(t, e.IsZero())
}

func TestEncodeKnownValue(t *testing.T) {
	// Big-endian base-256 accumulation: "ab" = 0x61*256 + 0x62.
	e, err := EncodeString("ab")
	require.NoError(t, err)
	assert.Equal(t, "24930", e.String())
}

func TestEncodeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	byteSlices := gen.SliceOf(gen.UInt8Range(0, 255))

	properties.Property("round-trips modulo leading zeros", prop.ForAll(
		func(data []byte) bool {
			e, err := Encode(data)
			if len(data) > MaxEncodeLen {
				return err == ErrEncodingOverflow
			}
			if err != nil {
				return false
			}
			return bytes.Equal(Decode(e), bytes.TrimLeft(data, "\x00"))
		},
		byteSlices,
	))

	properties.Property("distinct inputs encode to distinct elements", prop.ForAll(
		func(a, b []byte) bool {
			if len(a) > MaxEncodeLen || len(b) > MaxEncodeLen {
				return true
			}
			ea, err := Encode(a)
			if err != nil {
				return false
			}
			eb, err := Encode(b)
			if err != nil {
				return false
			}
			// Leading zero bytes collapse by big-endian integer semantics;
			// inputs are distinct iff their trimmed forms are.
			distinct := !bytes.Equal(bytes.TrimLeft(a, "\x00"), bytes.TrimLeft(b, "\x00"))
			return distinct == !ea.Equal(&eb)
		},
		byteSlices, byteSlices,
	))

	properties.TestingRun(t)
}
