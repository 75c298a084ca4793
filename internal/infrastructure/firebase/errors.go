package firebase

import "errors"

// Domain-specific errors for remote sync operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingURL is returned by Connect when no usable database URL is configured.
	ErrMissingURL = errors.New("firebase: database URL missing or malformed")

	// ErrInvalidPath is returned when a path does not start with "/".
	ErrInvalidPath = errors.New("firebase: invalid path")

	// ErrAbsent is returned by Read when nothing is stored at the path.
	// Absence is a modeled outcome (it drives schema bootstrap), not a fault.
	ErrAbsent = errors.New("firebase: path absent")

	// ErrRequestFailed is returned for network errors, timeouts, and
	// non-success responses. Callers treat it as best-effort failure:
	// log and continue, the in-memory mirror stays authoritative.
	ErrRequestFailed = errors.New("firebase: request failed")
)
