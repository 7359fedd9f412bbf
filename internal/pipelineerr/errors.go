// Package pipelineerr provides shared error sentinels for the chapter
// extraction pipeline. Every error that crosses a component boundary is
// classified into one of these sentinels so callers can branch with
// errors.Is instead of string matching.
//
// Components wrap a sentinel with context using fmt.Errorf("%w: %s", sentinel, msg).
package pipelineerr

import "errors"

// Sentinel errors for the pipeline's error-classification taxonomy.
var (
	// ErrInput marks a caller-supplied value that is invalid: an
	// out-of-range config field, an add-chapter timestamp outside the
	// allowed window, an unsupported audio MIME type. Reported to the
	// caller without changing pipeline step.
	ErrInput = errors.New("input error")

	// ErrTransient marks a failure in an external collaborator (library
	// server unreachable, ASR model download interrupted, media tool
	// non-zero exit) that the supervisor surfaces as an error event and
	// recovers from by restarting at the nearest settled step.
	ErrTransient = errors.New("transient external error")

	// ErrInvariant marks a broken internal invariant (duplicate
	// non-deleted timestamps, unknown chapter id, applying an operation
	// on missing history). Always a bug, never user-recoverable.
	ErrInvariant = errors.New("invariant violation")

	// ErrCancelled marks a step aborted by cancellation or a
	// restart-at-step call. Not an error condition by itself; callers
	// that see it should discard partial results without logging it as
	// a failure.
	ErrCancelled = errors.New("cancelled")
)
