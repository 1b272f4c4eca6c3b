package register

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkvault/internal/vault"
)

// stubProver records calls and returns a canned envelope or error.
type stubProver struct {
	env    *vault.ProofEnvelope
	err    error
	called int
}

func (s *stubProver) Prove(relation vault.RelationID, priv *vault.PrivateInputs) (*vault.ProofEnvelope, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return s.env, nil
}

func stubEnvelope(signals ...string) *vault.ProofEnvelope {
	return &vault.ProofEnvelope{
		Proof: vault.ProofPoints{
			PiA: [2]string{"1", "2"},
			PiB: [2][2]string{{"3", "4"}, {"5", "6"}},
			PiC: [2]string{"7", "8"},
		},
		PublicSignals: signals,
	}
}

func TestBuildMapsSignals(t *testing.T) {
	s := &stubProver{env: stubEnvelope("10", "20", "30", "40")}

	res, err := Build(s, "alice", "password123", big.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, "10", res.UsernameHash)
	assert.Equal(t, "20", res.CredentialHash)
	assert.Equal(t, "30", res.Nonce)
	assert.Equal(t, "40", res.ResultHash)
	assert.Same(t, s.env, res.Envelope)
	assert.Equal(t, 1, s.called)
}

func TestBuildRequiresNonce(t *testing.T) {
	s := &stubProver{env: stubEnvelope("1", "2", "3", "4")}
	_, err := Build(s, "alice", "pw", nil)
	assert.Error(t, err)
	assert.Zero(t, s.called)
}

func TestBuildRejectsOversizedInputsBeforeProving(t *testing.T) {
	s := &stubProver{env: stubEnvelope("1", "2", "3", "4")}
	long := strings.Repeat("x", vault.MaxEncodeLen+1)

	_, err := Build(s, long, "pw", big.NewInt(1))
	assert.ErrorIs(t, err, vault.ErrEncodingOverflow)
	_, err = Build(s, "alice", long, big.NewInt(1))
	assert.ErrorIs(t, err, vault.ErrEncodingOverflow)
	assert.Zero(t, s.called, "no proving work on unencodable inputs")
}

func TestBuildPropagatesProverError(t *testing.T) {
	boom := errors.New("prover down")
	s := &stubProver{err: boom}
	_, err := Build(s, "alice", "pw", big.NewInt(1))
	assert.ErrorIs(t, err, boom)
}

func TestBuildRejectsWrongSignalCount(t *testing.T) {
	s := &stubProver{env: stubEnvelope("1", "2")}
	_, err := Build(s, "alice", "pw", big.NewInt(1))
	assert.ErrorIs(t, err, vault.ErrProvingFailure)
}
