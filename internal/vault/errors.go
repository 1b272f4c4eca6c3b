// errors.go - Error taxonomy for the proof-gated ledger.
//
// Authorization failures are returned verbatim to the caller so clients can
// tell a replay from a bad credential; ledger events and logs never carry the
// variant, to avoid turning the public ledger into a password oracle.

package vault

import "errors"

var (
	// ErrEncodingOverflow indicates an input too large to encode as a single
	// field element. Caller error, never retried as-is.
	ErrEncodingOverflow = errors.New("input exceeds field capacity")

	// ErrProvingFailure indicates the proving backend could not produce a
	// proof. Local failure; retry only with corrected inputs.
	ErrProvingFailure = errors.New("proving backend failed")

	// Authorization failures. A caller must regenerate a fresh proof with a
	// new nonce; resubmitting the same envelope can never succeed.
	ErrIdentityMismatch  = errors.New("declared identity does not match record")
	ErrInvalidCredential = errors.New("credential commitment mismatch")
	ErrStaleOrForgedTag  = errors.New("authentication tag mismatch")
	ErrNonceReplayed     = errors.New("authentication tag already consumed")
	ErrProofRejected     = errors.New("proof rejected by verifier")

	// State precondition failures. Terminal for the call, no partial mutation.
	ErrAlreadyRegistered   = errors.New("username already registered")
	ErrUnregisteredAccount = errors.New("account not registered")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	// ErrUnknownWithdrawal indicates a receipt id with no recorded withdrawal.
	ErrUnknownWithdrawal = errors.New("unknown withdrawal receipt")
)

// IsAuthError reports whether err is one of the authorization failure
// variants. The daemon collapses these into a single generic rejection on the
// wire while keeping the precise variant for the local caller.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrStaleOrForgedTag) ||
		errors.Is(err, ErrNonceReplayed) ||
		errors.Is(err, ErrProofRejected)
}
