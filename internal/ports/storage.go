// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrUnavailable, etc.)
//   - Keep interfaces small and focused
package ports

import "context"

// Persistence keys shared by the application services.
const (
	// KeyQuotes holds the JSON-serialized quote list.
	KeyQuotes = "dynamic_quotes"

	// KeySelectedCategory holds the last chosen filter as a plain string.
	KeySelectedCategory = "selected_category"

	// KeyLastSyncTime holds the RFC 3339 time of the last sync that changed
	// the quote list.
	KeyLastSyncTime = "last_sync_time"
)

// KeyValueStore is durable string storage keyed by name.
// Implementations must make a successful Set visible to every later Get,
// including after a process restart for durable backends.
//
// Example usage in application layer:
//
//	raw, found, err := kv.Get(ctx, ports.KeyQuotes)
//	if err != nil || !found {
//	    return domain.SeedQuotes()
//	}
type KeyValueStore interface {
	// Get returns the value stored under key. found is false when the key
	// has never been written; that is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Update reads key, passes it to fn and stores the value fn returns,
	// as one atomic step. No other Set or Update of the same storage, from
	// this process or another one, lands between the read and the write.
	// Nothing is written when fn returns an error or write is false.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// UpdateFunc computes the next value of a key from its current one.
// found is false when the key has never been written.
type UpdateFunc func(current string, found bool) (next string, write bool, err error)
