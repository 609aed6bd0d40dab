package model

import "errors"

// Sentinel errors shared across the engine. Wrap with fmt.Errorf("%w")
// to add context; callers test with errors.Is.
var (
	// ErrValidation marks a malformed record. The record is rejected
	// whole, never partially stored or auto-corrected.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration marks an invalid scoring configuration. Fatal at
	// startup: the engine refuses to score until corrected.
	ErrConfiguration = errors.New("configuration error")

	// ErrStale marks a superseded snapshot write. Safe to drop silently.
	ErrStale = errors.New("stale evaluation")
)
