package kv

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It backs tests and single-instance
// deployments that run without redis or postgres, and doubles as the
// fail-soft fallback tier: it is never unavailable.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string][]byte
	counters map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Copy so callers cannot mutate the stored blob.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = stored
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, ErrKeyEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += delta
	return s.counters[key], nil
}

// GetCounter implements Store.
func (s *MemoryStore) GetCounter(_ context.Context, key string) (int64, error) {
	if key == "" {
		return 0, ErrKeyEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key], nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored records (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
