package studio

import "errors"

var (
	// ErrDuplicateJob indicates a job id that already exists in the store.
	// The generator assigns ids, so this signals an id-reuse bug upstream.
	ErrDuplicateJob = errors.New("duplicate job id")

	// ErrJobNotFound indicates a job id unknown to the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal indicates a status transition attempted on a job that
	// already reached a terminal state. Terminal states are immutable; a
	// caller seeing this error lost a race that another writer won.
	ErrJobTerminal = errors.New("job already terminal")
)
