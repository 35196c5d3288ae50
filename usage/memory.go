package usage

import (
	"context"
	"sync"
)

// Memory is an in-memory implementation of Store.
// Suitable for single-instance deployments and development; counters are lost
// on restart, so production deployments should use the Redis store.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]map[string]int64
}

// NewMemory creates a new in-memory usage store.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[int64]map[string]int64),
	}
}

// Add increments the named field for the user by delta.
func (m *Memory) Add(_ context.Context, userID int64, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.users[userID]
	if !ok {
		fields = make(map[string]int64)
		m.users[userID] = fields
	}

	fields[field] += delta
	return fields[field], nil
}

// Get retrieves the current value of the named field for the user.
func (m *Memory) Get(_ context.Context, userID int64, field string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.users[userID][field], nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
