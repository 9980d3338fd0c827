package store

import "errors"

var (
	// ErrUnavailable indicates the backing database could not be reached or
	// a pooled connection could not be acquired within the configured
	// timeout. Callers are expected to degrade to heuristic-only retrieval.
	ErrUnavailable = errors.New("experience store unavailable")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the store's configured vector dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound indicates the requested entry id does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidTelemetryField indicates a telemetry increment for a field
	// outside hits/successes/failures.
	ErrInvalidTelemetryField = errors.New("invalid telemetry field")
)
