package generation

import "errors"

var (
	// ErrNotFound indicates the generation job does not exist.
	ErrNotFound = errors.New("generation job not found")
	// ErrInvalidState indicates the document cannot be used for generation
	// or the job is not in the state an operation requires.
	ErrInvalidState = errors.New("invalid state")
	// ErrGenerationFailed wraps provider failures.
	ErrGenerationFailed = errors.New("memo generation failed")
	// ErrPoolClosed is returned when dispatching to a closed Pool.
	ErrPoolClosed = errors.New("generation pool closed")
)
