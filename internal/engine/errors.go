package engine

import "errors"

// Domain-specific errors for engine operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned by handlers when a message cannot be
	// decoded or lacks a required field. The message is discarded; the
	// delivery loop continues.
	ErrMalformedPayload = errors.New("engine: malformed payload")

	// ErrNotOccupant is returned by SubmitLightCommand when the submitted
	// tag does not match the current occupant. This is a rejection, not a
	// system fault.
	ErrNotOccupant = errors.New("engine: tag is not the current occupant")

	// ErrInvalidMode is returned by SubmitLightCommand for a mode outside
	// off/low/med/high.
	ErrInvalidMode = errors.New("engine: invalid light mode")

	// ErrEmptyTag is returned by SubmitLightCommand when no tag is given.
	ErrEmptyTag = errors.New("engine: empty identity tag")
)
