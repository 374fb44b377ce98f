package storage

import "errors"

// Storage errors for run sinks.
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID, or an (entity, window) pair
	// within a run, is written twice. Runs are immutable once stored.
	ErrDuplicateKey = errors.New("duplicate key: stored runs are immutable")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
