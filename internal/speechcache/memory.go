package speechcache

import (
	"context"
	"sync"
)

// Memory implements Store with an in-process map. Used when no Redis address
// is configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, audio []byte) error {
	stored := make([]byte, len(audio))
	copy(stored, audio)
	m.mu.Lock()
	m.entries[key] = stored
	m.mu.Unlock()
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// Len reports the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
