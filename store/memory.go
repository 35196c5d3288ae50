package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count      int64
	expiration time.Time
}

// Memory is an in-memory implementation of Store using a map with mutex protection.
//
// WARNING: This implementation is NOT suitable for distributed deployments.
// In Kubernetes or any multi-instance environment, each instance maintains its own
// separate in-memory state, meaning quota counters are NOT shared across instances.
// This can allow clients to exceed the intended ceiling by distributing requests
// across multiple instances.
//
// Use Memory only for:
//   - Local development and testing
//   - Single-instance deployments where horizontal scaling is not needed
//
// For production distributed systems, use the Redis store instead.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
}

// NewMemory creates a new in-memory store with automatic cleanup of expired entries.
// A background goroutine runs every minute to remove expired entries and prevent
// unbounded memory growth.
//
// Important: You must call Close() when done to stop the cleanup goroutine.
// Failing to call Close() will result in a goroutine leak.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}

	go m.cleanup()
	return m
}

// IncrementBy adds cost to the counter for the given key. An absent or expired
// entry starts a fresh window at cost; an existing entry accumulates and has its
// expiry pushed out to a full window from now.
func (m *Memory) IncrementBy(_ context.Context, key string, cost int64, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, exists := m.entries[key]

	if !exists || now.After(entry.expiration) {
		m.entries[key] = &memoryEntry{
			count:      cost,
			expiration: now.Add(window),
		}
		return cost, window, nil
	}

	entry.count += cost
	entry.expiration = now.Add(window)
	return entry.count, window, nil
}

// Peek retrieves the current count and remaining TTL without incrementing.
// Returns (0, 0, nil) for absent or expired keys.
func (m *Memory) Peek(_ context.Context, key string) (int64, time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || time.Now().After(entry.expiration) {
		return 0, 0, nil
	}

	return entry.count, max(0, time.Until(entry.expiration)), nil
}

// Reset removes the counter for the given key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() error {
	close(m.stopCh)
	return nil
}

func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			var expiredKeys []string

			m.mu.RLock()
			for key, entry := range m.entries {
				if now.After(entry.expiration) {
					expiredKeys = append(expiredKeys, key)
				}
			}
			m.mu.RUnlock()

			if len(expiredKeys) > 0 {
				m.mu.Lock()
				for _, key := range expiredKeys {
					delete(m.entries, key)
				}
				m.mu.Unlock()
			}
		case <-m.stopCh:
			return
		}
	}
}
