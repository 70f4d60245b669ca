package domain

import "errors"

var (
	// ErrNotFound indicates a lookup succeeded but the record does not
	// exist. Distinct from a failed lookup.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates a caller-supplied argument was unusable.
	ErrInvalidInput = errors.New("invalid input")
)
