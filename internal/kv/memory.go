package kv

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	m.mu.RLock()
	value, ok := m.values[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	// callers may mutate the slice they get back
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()

	return nil
}
