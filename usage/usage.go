// Package usage provides permanent per-user cumulative counters.
//
// Unlike the windowed counters in the store package these never expire; they
// back the informational aggregates (lifetime total, calendar-month total)
// the reporter merges into snapshots for authenticated callers. They are
// never consulted for enforcement.
package usage

import "context"

// Store defines the interface for per-user permanent counter backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Add increments the named field for the user by delta and returns the
	// new value.
	Add(ctx context.Context, userID int64, field string, delta int64) (int64, error)

	// Get retrieves the current value of the named field for the user.
	// Returns 0 if the field has never been written.
	Get(ctx context.Context, userID int64, field string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
