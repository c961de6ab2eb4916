// Package memory implements ports.KeyValueStore in process memory.
// It backs tests and the `storage.driver: memory` configuration.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var (
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// Store is a mutex-guarded map.
type Store struct {
	mu       sync.RWMutex
	data     map[string]string
	writeErr error
	writes   int
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// NewWithData creates a store pre-populated with data.
func NewWithData(data map[string]string) *Store {
	s := New()
	maps.Copy(s.data, data)

	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]

	return value, ok, nil
}

// Set stores value under key. It returns the error configured with
// FailWrites, if any, without storing anything.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	s.data[key] = value
	s.writes++

	return nil
}

// Update applies fn to the value under key while holding the write lock.
// A write fails with the FailWrites error, if any.
func (s *Store) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.data[key]

	next, write, err := fn(current, found)
	if err != nil || !write {
		return err
	}

	if s.writeErr != nil {
		return s.writeErr
	}

	s.data[key] = next
	s.writes++

	return nil
}

// FailWrites makes every later Set and Update write return err. A nil err restores writes.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeErr = err
}

// Writes returns the number of successful Set calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.writes
}

// Snapshot returns a copy of the stored data.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data)
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "storage"
}

// Check implements ports.HealthChecker. The store is always reachable.
func (s *Store) Check(_ context.Context) error {
	return nil
}
