package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps settings in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]Setting
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]Setting)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	setting, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return setting.Value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, key)
	return nil
}

func (m *MemoryStore) Health(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
