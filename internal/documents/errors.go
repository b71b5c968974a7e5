package documents

import "errors"

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExtracted is returned when extraction is re-run on an extracted document.
	ErrAlreadyExtracted = errors.New("document already extracted")
)
