package kvstore

import (
	"context"
	"errors"
	"sync"
)

// MemStore is a thread-safe in-memory Store, for tests and short-lived processes.
// Everything is lost when the process exits.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

func (m *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
