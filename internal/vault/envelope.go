// envelope.go - Serialized proof artifact exchanged between prover, ledger and
// settlement layer.
//
// The layout mirrors the snarkjs/EVM convention: three Groth16 curve points as
// decimal coordinate strings plus an ordered public signal list. Coordinate
// order inside PiB differs between provers and on-chain verifiers; SwapPiB is
// the one place that reordering happens.

package vault

import (
	"encoding/json"
	"fmt"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
)

// ProofPoints holds a Groth16 proof as decimal coordinate strings.
// PiB rows are the G2 coordinates in prover order: [X.A0, X.A1], [Y.A0, Y.A1].
type ProofPoints struct {
	PiA [2]string    `json:"pi_a"`
	PiB [2][2]string `json:"pi_b"`
	PiC [2]string    `json:"pi_c"`
}

// ProofEnvelope is the persisted proof artifact: proof points plus the ordered
// public signals. Signal order is the versioned contract pinned by the
// Signal* constants in circuit.go.
type ProofEnvelope struct {
	Proof         ProofPoints `json:"proof"`
	PublicSignals []string    `json:"publicSignals"`
}

// Signal returns the public signal at index i.
func (e *ProofEnvelope) Signal(i int) (string, error) {
	if i < 0 || i >= len(e.PublicSignals) {
		return "", fmt.Errorf("public signal index %d out of range (have %d)", i, len(e.PublicSignals))
	}
	return e.PublicSignals[i], nil
}

// signalElement parses the public signal at index i as a field element.
func (e *ProofEnvelope) signalElement(i int) (fr.Element, error) {
	s, err := e.Signal(i)
	if err != nil {
		return fr.Element{}, err
	}
	return parseSignal(s)
}

// parseSignal parses a decimal field element string.
func parseSignal(s string) (fr.Element, error) {
	var el fr.Element
	if _, err := el.SetString(s); err != nil {
		return fr.Element{}, fmt.Errorf("malformed field element %q: %w", s, err)
	}
	return el, nil
}

// Marshal serializes the envelope as JSON.
func (e *ProofEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses a JSON proof envelope.
func UnmarshalEnvelope(data []byte) (*ProofEnvelope, error) {
	var e ProofEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("invalid proof envelope: %w", err)
	}
	return &e, nil
}

// EnvelopeFromProof extracts the BN254 proof points from a gnark proof and
// binds them to the given public signals.
func EnvelopeFromProof(proof groth16.Proof, publicSignals []string) (*ProofEnvelope, error) {
	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof type %T, want BN254 Groth16", proof)
	}
	return &ProofEnvelope{
		Proof: ProofPoints{
			PiA: [2]string{p.Ar.X.String(), p.Ar.Y.String()},
			PiB: [2][2]string{
				{p.Bs.X.A0.String(), p.Bs.X.A1.String()},
				{p.Bs.Y.A0.String(), p.Bs.Y.A1.String()},
			},
			PiC: [2]string{p.Krs.X.String(), p.Krs.Y.String()},
		},
		PublicSignals: publicSignals,
	}, nil
}

// GnarkProof rebuilds the gnark proof object from the envelope's points.
func (e *ProofEnvelope) GnarkProof() (groth16.Proof, error) {
	var p groth16_bn254.Proof
	coords := []struct {
		dst *curve.G1Affine
		x   string
		y   string
	}{
		{&p.Ar, e.Proof.PiA[0], e.Proof.PiA[1]},
		{&p.Krs, e.Proof.PiC[0], e.Proof.PiC[1]},
	}
	for _, c := range coords {
		if _, err := c.dst.X.SetString(c.x); err != nil {
			return nil, fmt.Errorf("malformed proof point: %w", err)
		}
		if _, err := c.dst.Y.SetString(c.y); err != nil {
			return nil, fmt.Errorf("malformed proof point: %w", err)
		}
	}
	if _, err := p.Bs.X.A0.SetString(e.Proof.PiB[0][0]); err != nil {
		return nil, fmt.Errorf("malformed proof point: %w", err)
	}
	if _, err := p.Bs.X.A1.SetString(e.Proof.PiB[0][1]); err != nil {
		return nil, fmt.Errorf("malformed proof point: %w", err)
	}
	if _, err := p.Bs.Y.A0.SetString(e.Proof.PiB[1][0]); err != nil {
		return nil, fmt.Errorf("malformed proof point: %w", err)
	}
	if _, err := p.Bs.Y.A1.SetString(e.Proof.PiB[1][1]); err != nil {
		return nil, fmt.Errorf("malformed proof point: %w", err)
	}
	return &p, nil
}

// SwapPiB reorders each G2 coordinate pair into the settlement verifier's
// convention ([A1, A0] instead of [A0, A1]). Applying it twice is the
// identity; callers must apply it exactly once at the settlement boundary.
func SwapPiB(piB [2][2]string) [2][2]string {
	return [2][2]string{
		{piB[0][1], piB[0][0]},
		{piB[1][1], piB[1][0]},
	}
}

// SettlementPoints returns the proof points in the settlement verifier's
// coordinate convention.
func (e *ProofEnvelope) SettlementPoints() ProofPoints {
	return ProofPoints{
		PiA: e.Proof.PiA,
		PiB: SwapPiB(e.Proof.PiB),
		PiC: e.Proof.PiC,
	}
}
