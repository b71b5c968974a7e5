package library

import "errors"

var (
	// ErrNotFound indicates the library item does not exist.
	ErrNotFound = errors.New("library item not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")
)
