package storage

import "errors"

// Sentinel errors translated to the public error taxonomy at the Command
// Bus boundary (spec.md §7).
var (
	ErrStorageUnavailable = errors.New("storage: database path unwritable or migration conflict")
	ErrStorageError       = errors.New("storage: operation failed")
	ErrNotFound           = errors.New("storage: record not found")
	ErrInvalidInput       = errors.New("storage: invalid input")
)
