package store

import (
	"context"
	"time"
)

// Store defines the interface for windowed usage counter backends.
// Implementations must be safe for concurrent use.
//
// Counters are approximate by design: implementations provide whatever
// atomicity their backend offers natively and no additional locking.
// Concurrent increments within the same window may briefly under-count.
type Store interface {
	// IncrementBy adds cost to the counter for the given key and returns the
	// new count and the TTL until the window resets. The counter's expiry is
	// reset to the full window duration on every write, so the window slides
	// forward from the most recent recorded usage.
	IncrementBy(ctx context.Context, key string, cost int64, window time.Duration) (count int64, ttl time.Duration, err error)

	// Peek retrieves the current count and remaining TTL for the given key
	// without mutating anything. Returns (0, 0, nil) if the key doesn't exist
	// or has expired.
	Peek(ctx context.Context, key string) (count int64, ttl time.Duration, err error)

	// Reset removes the counter for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
