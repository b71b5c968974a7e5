package memos

import (
	"errors"
	"fmt"

	"creditmemo-backend/internal/documents"
)

var (
	// ErrNotFound indicates the memo does not exist.
	ErrNotFound = errors.New("memo not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocumentNotFound is returned when a memo references a missing document.
	// It also matches documents.ErrNotFound.
	ErrDocumentNotFound = fmt.Errorf("memo document: %w", documents.ErrNotFound)
)
