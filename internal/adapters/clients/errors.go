// Package clients provides HTTP client adapters for downstream services.
package clients

import "errors"

// Client errors are infrastructure failures. The acl package translates them
// into domain errors.
var (
	// ErrCircuitOpen is returned without touching the network while the
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once every attempt
	// has failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
