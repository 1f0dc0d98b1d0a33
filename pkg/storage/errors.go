package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when an upload does not exist.
	ErrNotFound = errors.New("upload not found")

	// ErrInvalidName is returned when an upload name does not reduce to a
	// plain file name.
	ErrInvalidName = errors.New("invalid upload name")
)
