package vault

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedBackend compiles the relation and runs trusted setup once per test
// binary; Groth16 setup is too slow to repeat per test.
var (
	sharedBackend     *Backend
	sharedBackendOnce bool
)

func groth16Backend(t *testing.T) *Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Groth16 end-to-end in short mode")
	}
	if !sharedBackendOnce {
		b, err := NewBackend()
		require.NoError(t, err)
		sharedBackend = b
		sharedBackendOnce = true
	}
	return sharedBackend
}

func prove(t *testing.T, b *Backend, username, password string, nonce int64) *ProofEnvelope {
	t.Helper()
	env, err := b.Prove(RelationAuth, &PrivateInputs{
		Username: username,
		Password: password,
		Nonce:    big.NewInt(nonce),
	})
	require.NoError(t, err)
	return env
}

func TestGroth16EndToEnd(t *testing.T) {
	b := groth16Backend(t)
	l := NewLedger(b)

	regAlice := prove(t, b, "alice", "password123", 1)
	require.NoError(t, l.Register(
		regAlice.PublicSignals[SignalUsernameHash],
		regAlice.PublicSignals[SignalCredentialHash],
		regAlice.PublicSignals[SignalNonce],
		regAlice.PublicSignals[SignalResultHash],
		regAlice,
	))
	aliceHash := regAlice.PublicSignals[SignalUsernameHash]

	regBob := prove(t, b, "bob", "letmein", 2)
	require.NoError(t, l.Register(
		regBob.PublicSignals[SignalUsernameHash],
		regBob.PublicSignals[SignalCredentialHash],
		regBob.PublicSignals[SignalNonce],
		regBob.PublicSignals[SignalResultHash],
		regBob,
	))
	bobHash := regBob.PublicSignals[SignalUsernameHash]

	require.NoError(t, l.Deposit(aliceHash, big.NewInt(100_000_000)))

	pay := prove(t, b, "alice", "password123", 3)
	require.NoError(t, l.Pay(aliceHash, bobHash, big.NewInt(50_000_000), pay.PublicSignals[SignalNonce], pay))

	aliceBal, err := l.BalanceOf(aliceHash)
	require.NoError(t, err)
	bobBal, err := l.BalanceOf(bobHash)
	require.NoError(t, err)
	assert.Equal(t, "50000000", aliceBal.String())
	assert.Equal(t, "50000000", bobBal.String())

	// Replay of the real proof.
	err = l.Pay(aliceHash, bobHash, big.NewInt(1), pay.PublicSignals[SignalNonce], pay)
	assert.ErrorIs(t, err, ErrNonceReplayed)

	// A proof over the wrong password verifies as a proof but binds the wrong
	// credential commitment.
	wrong := prove(t, b, "alice", "password124", 4)
	err = l.Pay(aliceHash, bobHash, big.NewInt(1), wrong.PublicSignals[SignalNonce], wrong)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// Withdraw and settle.
	wd := prove(t, b, "alice", "password123", 5)
	id, err := l.Withdraw(aliceHash, "0xdest", big.NewInt(25_000_000), wd.PublicSignals[SignalNonce], wd)
	require.NoError(t, err)
	require.NoError(t, l.SettleWithdrawal(id, true))
	aliceBal, _ = l.BalanceOf(aliceHash)
	assert.Equal(t, "25000000", aliceBal.String())
}

func TestGroth16EnvelopeSurvivesTransport(t *testing.T) {
	b := groth16Backend(t)

	env := prove(t, b, "carol", "s3cret", 6)
	require.NoError(t, b.Verify(RelationAuth, env))

	// Serialize, deserialize and verify again, as a relay would.
	data, err := env.Marshal()
	require.NoError(t, err)
	decoded, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.NoError(t, b.Verify(RelationAuth, decoded))

	// Tampering with a public signal must break verification.
	decoded.PublicSignals[SignalResultHash] = "12345"
	assert.Error(t, b.Verify(RelationAuth, decoded))
}

func TestGroth16RejectsMixedProof(t *testing.T) {
	b := groth16Backend(t)

	envA := prove(t, b, "alice", "password123", 7)
	envB := prove(t, b, "bob", "letmein", 8)

	// A valid proof attached to another proof's signals must not verify.
	mixed := &ProofEnvelope{Proof: envA.Proof, PublicSignals: envB.PublicSignals}
	assert.Error(t, b.Verify(RelationAuth, mixed))
}

func TestBackendKeyPersistence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Groth16 key setup in short mode")
	}
	dir := t.TempDir()
	pkPath := filepath.Join(dir, "proving.key")
	vkPath := filepath.Join(dir, "verifying.key")

	first, err := NewBackendWithKeys(pkPath, vkPath)
	require.NoError(t, err)
	env := prove(t, first, "dave", "pw", 9)

	// A second backend loads the saved keys and accepts the first's proofs.
	second, err := NewBackendWithKeys(pkPath, vkPath)
	require.NoError(t, err)
	require.NoError(t, second.Verify(RelationAuth, env))
}

func TestProveRejectsBadInputs(t *testing.T) {
	b := groth16Backend(t)

	_, err := b.Prove("other-relation", &PrivateInputs{Username: "a", Password: "b", Nonce: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrProvingFailure)

	long := make([]byte, MaxEncodeLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = b.Prove(RelationAuth, &PrivateInputs{Username: string(long), Password: "b", Nonce: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrEncodingOverflow)
}
