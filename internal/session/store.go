// Package session keeps the logged in user's token and id.
//
// The values live in a key/value Store. The Manager (manager.go) is the only code that reads or writes them:
// ui handlers and cli commands call Login, Register, Current and Logout instead of touching the store.
package session

import (
	"context"
	"sync"
)

// Store defines the interface for session storage backends.
// Implementations must be safe for concurrent use; the last write wins.
type Store interface {
	// Get returns the value stored under key and whether it was found.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store. Values are lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// ScopedStore prefixes every key so several logical sessions can share one backend.
// The ui server uses one scope per browser.
type ScopedStore struct {
	store  Store
	prefix string
}

// Scoped returns a view of store where every key is prefixed with "<scope>:".
func Scoped(store Store, scope string) *ScopedStore {
	return &ScopedStore{store: store, prefix: scope + ":"}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}
