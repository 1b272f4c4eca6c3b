// authorize.go - Proof-gated authorization against a stored identity record.
//
// Check order is pinned: identity, credential, tag, replay, then the pairing
// check last, so a replayed envelope is rejected before any expensive work.
// Authorization never mutates state by itself; the caller inserts the returned
// tag in the same critical section as the balance mutation, so a proof can
// never authorize two transitions.

package vault

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// checkEnvelope validates envelope shape and returns the parsed signals.
func checkEnvelope(env *ProofEnvelope) ([NumPublicSignals]fr.Element, error) {
	var signals [NumPublicSignals]fr.Element
	if len(env.PublicSignals) != NumPublicSignals {
		return signals, fmt.Errorf("%w: expected %d public signals, got %d",
			ErrProofRejected, NumPublicSignals, len(env.PublicSignals))
	}
	for i := range signals {
		el, err := env.signalElement(i)
		if err != nil {
			return signals, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		signals[i] = el
	}
	return signals, nil
}

// authorizeSpend runs the authorization algorithm for pay/withdraw against an
// existing record. On success it returns the consumed-to-be authentication
// tag; the caller must insert it into the used-tag set atomically with the
// balance mutation. l.mu must be held.
func (l *Ledger) authorizeSpend(rec *Record, env *ProofEnvelope, nonce string) (string, error) {
	signals, err := checkEnvelope(env)
	if err != nil {
		return "", err
	}

	// 1) Declared identity must match the record.
	if signals[SignalUsernameHash].String() != rec.UsernameHash {
		return "", ErrIdentityMismatch
	}

	// 2) The relation binds the credential commitment publicly; it must match
	// the one stored at registration.
	if signals[SignalCredentialHash].String() != rec.CredentialHash {
		return "", ErrInvalidCredential
	}

	// 3) Recompute the tag from the stored credential and the claimed nonce.
	nonceEl, err := parseSignal(nonce)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStaleOrForgedTag, err)
	}
	if !nonceEl.Equal(&signals[SignalNonce]) {
		return "", ErrStaleOrForgedTag
	}
	credEl, err := parseSignal(rec.CredentialHash)
	if err != nil {
		return "", fmt.Errorf("corrupt credential record: %w", err)
	}
	tag := AuthTag(credEl, nonceEl)
	if !tag.Equal(&signals[SignalResultHash]) {
		return "", ErrStaleOrForgedTag
	}
	tagStr := tag.String()

	// 4) Replay check before the pairing check.
	if l.tagUsed(rec.UsernameHash, tagStr) {
		return "", ErrNonceReplayed
	}

	// 5) The external verifier has the last word on the proof itself.
	if err := l.verifier.Verify(RelationAuth, env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	return tagStr, nil
}

// authorizeRegister runs the registration variant: there is no stored record
// yet, so the declared commitments are established rather than compared, but
// the tag, replay and proof checks are identical. l.mu must be held.
func (l *Ledger) authorizeRegister(usernameHash, credentialHash, nonce, resultHash string, env *ProofEnvelope) (string, error) {
	signals, err := checkEnvelope(env)
	if err != nil {
		return "", err
	}

	uh, err := parseSignal(usernameHash)
	if err != nil || !uh.Equal(&signals[SignalUsernameHash]) {
		return "", ErrIdentityMismatch
	}
	ch, err := parseSignal(credentialHash)
	if err != nil || !ch.Equal(&signals[SignalCredentialHash]) {
		return "", ErrInvalidCredential
	}

	nonceEl, err := parseSignal(nonce)
	if err != nil || !nonceEl.Equal(&signals[SignalNonce]) {
		return "", ErrStaleOrForgedTag
	}
	rh, err := parseSignal(resultHash)
	if err != nil || !rh.Equal(&signals[SignalResultHash]) {
		return "", ErrStaleOrForgedTag
	}
	tag := AuthTag(ch, nonceEl)
	if !tag.Equal(&rh) {
		return "", ErrStaleOrForgedTag
	}
	tagStr := tag.String()

	if l.tagUsed(uh.String(), tagStr) {
		return "", ErrNonceReplayed
	}

	if err := l.verifier.Verify(RelationAuth, env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	return tagStr, nil
}
