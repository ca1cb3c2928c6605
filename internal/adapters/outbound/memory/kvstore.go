// kvstore.go provides an in-memory implementation of KVStore.
//
// It backs the "once" CLI mode and the service tests. All operations are
// thread-safe. Data is lost on process restart.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.KVStore = (*KVStore)(nil)

// KVStore is an in-memory implementation of the KVStore port.
type KVStore struct {
	mu   sync.RWMutex
	data map[string]string

	// Test hooks. When set, they run before the operation and a non-nil
	// error aborts it.
	getHook func(key string) error
	setHook    func(key, value string) error
	deleteHook func(key string) error

	gets int
	sets int
}

// NewKVStore creates an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]string)}
}

// NewKVStoreFrom creates a store seeded with a copy of data.
func NewKVStoreFrom(data map[string]string) *KVStore {
	s := NewKVStore()
	maps.Copy(s.data, data)
	return s
}

// Get returns the value for key.
func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	s.gets++
	hook := s.getHook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(key); err != nil {
			return "", false, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.sets++
	hook := s.setHook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(key, value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteHook != nil {
		if err := s.deleteHook(key); err != nil {
			return err
		}
	}
	delete(s.data, key)
	return nil
}

// SetGetHook registers a function run before every Get (for testing).
func (s *KVStore) SetGetHook(fn func(key string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getHook = fn
}

// SetSetHook registers a function run before every Set (for testing).
func (s *KVStore) SetSetHook(fn func(key, value string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHook = fn
}

// SetDeleteHook registers a function run before every Delete (for testing).
func (s *KVStore) SetDeleteHook(fn func(key string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteHook = fn
}

// Snapshot returns a copy of the stored data.
func (s *KVStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// Counts returns the number of Get and Set calls made so far.
func (s *KVStore) Counts() (gets, sets int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gets, s.sets
}
