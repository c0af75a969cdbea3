package ledger

import "errors"

// The closed error set every ledger operation draws from. None of these
// are retryable without changed input; all are detected before any write.
var (
	// ErrNotAuthorized: the authorizer (or the renting member) lacks a
	// required capability.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrGearUnavailable: the gear's status does not allow the requested
	// operation.
	ErrGearUnavailable = errors.New("gear unavailable")

	// ErrMissingCertification: the renting member lacks a certification
	// the gear requires.
	ErrMissingCertification = errors.New("missing certification")

	// ErrTagCollision: the requested tag id is already in use by a
	// member or a piece of gear.
	ErrTagCollision = errors.New("tag id already in use")

	// ErrNotFound: a referenced member or gear tag id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStructuralMismatch: an attribute bag does not match its gear
	// type's field set, or stored data has drifted from the schema.
	ErrStructuralMismatch = errors.New("structural mismatch")
)
