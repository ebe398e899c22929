package domain

import "errors"

// Dispatch and registry errors. None of these are process-fatal: eviction and
// stream teardown are the normal recovery path for a broken connection.
var (
	// ErrNotConnected means the target frontend has no live outbound stream.
	ErrNotConnected = errors.New("frontend not connected")

	// ErrBackpressure means the per-connection outbound queue is full.
	// Transient: the caller may retry once the stream pump drains.
	ErrBackpressure = errors.New("outbound queue full")

	// ErrUnknownFrontend means an operation that requires a pre-existing
	// registry entry was given an id that has none.
	ErrUnknownFrontend = errors.New("unknown frontend")

	// ErrCancelled means the stream was torn down mid-operation.
	ErrCancelled = errors.New("stream cancelled")
)
