package interfaces

import "errors"

// Error taxonomy for the platform. Every failure returned by the core wraps
// exactly one of these sentinels so callers can classify it with errors.Is.
var (
	// ErrValidation marks malformed input: a proof with a missing required
	// field, an unknown enum discriminant, an unparsable address.
	ErrValidation = errors.New("validation error")

	// ErrAuthorization marks a proof that is well formed but not acceptable:
	// signature mismatch, expired credential, insufficient role, revoked
	// credential, delegator-chain mismatch.
	ErrAuthorization = errors.New("authorization error")

	// ErrNotFound marks an unknown shipment or document id.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict marks an operation attempted in the wrong phase or
	// against an already approved/evaluated entity.
	ErrStateConflict = errors.New("state conflict")

	// ErrAccessDenied marks a caller that is authenticated but not permitted
	// to act: not an interested party, or an uploader attempting to evaluate
	// their own document.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnavailable marks a failed or timed-out call to the identity
	// resolver, revocation oracle or escrow ledger. Verification failures are
	// fail-closed: an unreachable collaborator rejects, never defaults to
	// "not revoked" or "resolved".
	ErrUnavailable = errors.New("verification unavailable")
)
