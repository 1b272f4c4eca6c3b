package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

// fixtureBackend stands in for the Groth16 backend in ledger tests. It
// derives the same public signals as the real prover and stamps the envelope
// with a marker the fixture verifier recomputes, so tampered signals are
// rejected without any pairing arithmetic.
type fixtureBackend struct {
	reject   bool  // force verification failure
	proveErr error // force proving failure
}

func fixtureMarker(signals []string) (string, error) {
	var salt fr.Element
	salt.SetUint64(7919)
	els := []fr.Element{salt}
	for _, s := range signals {
		el, err := parseSignal(s)
		if err != nil {
			return "", err
		}
		els = append(els, el)
	}
	m := hashElems(els...)
	return m.String(), nil
}

func (f *fixtureBackend) Prove(relation RelationID, priv *PrivateInputs) (*ProofEnvelope, error) {
	if f.proveErr != nil {
		return nil, f.proveErr
	}
	if relation != RelationAuth {
		return nil, fmt.Errorf("fixture: unknown relation %q", relation)
	}
	u, err := EncodeString(priv.Username)
	if err != nil {
		return nil, err
	}
	p, err := EncodeString(priv.Password)
	if err != nil {
		return nil, err
	}
	uh := hashElems(u)
	ch := hashElems(u, p)
	n := nonceElement(priv.Nonce)
	rh := AuthTag(ch, n)
	signals := []string{uh.String(), ch.String(), n.String(), rh.String()}
	marker, err := fixtureMarker(signals)
	if err != nil {
		return nil, err
	}
	return &ProofEnvelope{
		Proof: ProofPoints{
			PiA: [2]string{marker, "1"},
			PiB: [2][2]string{{"1", "2"}, {"3", "4"}},
			PiC: [2]string{"5", "6"},
		},
		PublicSignals: signals,
	}, nil
}

func (f *fixtureBackend) Verify(relation RelationID, env *ProofEnvelope) error {
	if relation != RelationAuth {
		return fmt.Errorf("fixture: unknown relation %q", relation)
	}
	if f.reject {
		return errors.New("fixture: forced rejection")
	}
	if len(env.PublicSignals) != NumPublicSignals {
		return errors.New("fixture: wrong signal count")
	}
	marker, err := fixtureMarker(env.PublicSignals)
	if err != nil {
		return err
	}
	if env.Proof.PiA[0] != marker {
		return errors.New("fixture: proof does not match signals")
	}
	return nil
}

// proveFixture builds an envelope for the given credentials and nonce.
func proveFixture(t *testing.T, f *fixtureBackend, username, password string, nonce int64) *ProofEnvelope {
	t.Helper()
	env, err := f.Prove(RelationAuth, &PrivateInputs{
		Username: username,
		Password: password,
		Nonce:    big.NewInt(nonce),
	})
	require.NoError(t, err)
	return env
}

// mustRegister registers username on the ledger and returns its identity hash.
func mustRegister(t *testing.T, l *Ledger, f *fixtureBackend, username, password string, nonce int64) string {
	t.Helper()
	env := proveFixture(t, f, username, password, nonce)
	err := l.Register(
		env.PublicSignals[SignalUsernameHash],
		env.PublicSignals[SignalCredentialHash],
		env.PublicSignals[SignalNonce],
		env.PublicSignals[SignalResultHash],
		env,
	)
	require.NoError(t, err)
	return env.PublicSignals[SignalUsernameHash]
}
