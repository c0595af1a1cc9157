// Package errs holds the sentinel error kinds shared across the dispatch
// kernel, the IO pipeline, and the scheduler.
package errs

import "errors"

var (
	// ErrRefused is returned when an operation is attempted while its
	// receiver is not in a state that accepts it.
	ErrRefused = errors.New("muesd: refused")

	// ErrAlreadyRunning is returned by Start when called on an
	// already-started component.
	ErrAlreadyRunning = errors.New("muesd: already running")

	// ErrFatal marks corruption of an internal invariant (e.g. a sentinel
	// filter removed). The affected subsystem terminates.
	ErrFatal = errors.New("muesd: fatal invariant violation")
)
