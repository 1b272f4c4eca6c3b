// backend.go - Proving/verifying backend behind narrow interfaces.
//
// The ledger and the transaction builders only ever see Prover and Verifier;
// the concrete Groth16 backend below is injected at wiring time, so the whole
// authorization path is testable against a fixture backend.

package vault

import (
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// RelationID names a fixed circuit/key pair. Public signal ordering is part
// of the identified contract.
type RelationID string

// RelationAuth is the deployed authentication relation (see circuit.go).
const RelationAuth RelationID = "auth-v1"

// PrivateInputs is the secret witness for the authentication relation, plus
// the caller-chosen nonce.
type PrivateInputs struct {
	Username string
	Password string
	Nonce    *big.Int
}

// Prover produces a proof envelope for a relation from private inputs.
// Proving is long-running; callers must obtain the envelope before entering
// any ledger transition.
type Prover interface {
	Prove(relation RelationID, priv *PrivateInputs) (*ProofEnvelope, error)
}

// Verifier checks a proof envelope against a relation's verifying key and the
// envelope's own declared public signals.
type Verifier interface {
	Verify(relation RelationID, env *ProofEnvelope) error
}

// Backend is the concrete Groth16 backend over BN254.
type Backend struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// NewBackend compiles the authentication relation and runs a fresh trusted
// setup in memory. Intended for tests and single-process deployments; use
// NewBackendWithKeys to share keys across processes.
func NewBackend() (*Backend, error) {
	ccs, err := compileAuthCircuit()
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup failed: %w", err)
	}
	return &Backend{ccs: ccs, pk: pk, vk: vk}, nil
}

// NewBackendWithKeys compiles the relation and loads the proving/verifying
// keys from disk, generating and saving them on first run.
func NewBackendWithKeys(pkPath, vkPath string) (*Backend, error) {
	ccs, err := compileAuthCircuit()
	if err != nil {
		return nil, err
	}
	pk, vk, err := SetupOrLoadKeys(ccs, pkPath, vkPath)
	if err != nil {
		return nil, err
	}
	return &Backend{ccs: ccs, pk: pk, vk: vk}, nil
}

func compileAuthCircuit() (constraint.ConstraintSystem, error) {
	var circuit CircuitAuth
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	return ccs, nil
}

// Prove derives the public commitments from the private inputs, builds the
// full witness and produces a proof envelope with the four public signals in
// contract order.
func (b *Backend) Prove(relation RelationID, priv *PrivateInputs) (*ProofEnvelope, error) {
	if relation != RelationAuth {
		return nil, fmt.Errorf("%w: unknown relation %q", ErrProvingFailure, relation)
	}
	u, err := EncodeString(priv.Username)
	if err != nil {
		return nil, err
	}
	p, err := EncodeString(priv.Password)
	if err != nil {
		return nil, err
	}
	usernameHash := hashElems(u)
	credentialHash := hashElems(u, p)
	nonce := nonceElement(priv.Nonce)
	resultHash := AuthTag(credentialHash, nonce)

	assignment := &CircuitAuth{
		UsernameHash:   usernameHash.String(),
		CredentialHash: credentialHash.String(),
		Nonce:          nonce.String(),
		ResultHash:     resultHash.String(),
		Username:       u.String(),
		Password:       p.String(),
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness creation: %v", ErrProvingFailure, err)
	}
	proof, err := groth16.Prove(b.ccs, b.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvingFailure, err)
	}
	signals := []string{
		usernameHash.String(),
		credentialHash.String(),
		nonce.String(),
		resultHash.String(),
	}
	return EnvelopeFromProof(proof, signals)
}

// Verify rebuilds the public-only witness from the envelope's declared
// signals and checks the proof against the verifying key.
func (b *Backend) Verify(relation RelationID, env *ProofEnvelope) error {
	if relation != RelationAuth {
		return fmt.Errorf("unknown relation %q", relation)
	}
	if len(env.PublicSignals) != NumPublicSignals {
		return fmt.Errorf("expected %d public signals, got %d", NumPublicSignals, len(env.PublicSignals))
	}
	for _, s := range env.PublicSignals {
		if _, err := parseSignal(s); err != nil {
			return err
		}
	}
	assignment := &CircuitAuth{
		UsernameHash:   env.PublicSignals[SignalUsernameHash],
		CredentialHash: env.PublicSignals[SignalCredentialHash],
		Nonce:          env.PublicSignals[SignalNonce],
		ResultHash:     env.PublicSignals[SignalResultHash],
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	proof, err := env.GnarkProof()
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, b.vk, w); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// SaveProvingKey saves a Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey saves a Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

// LoadProvingKey loads a Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey loads a Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys generates or loads Groth16 keys for the relation.
// If both keys exist on disk, loads them; otherwise, generates and saves new keys.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}
