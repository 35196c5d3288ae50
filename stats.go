package quotakit

import (
	"context"
	"time"

	"github.com/nhalm/quotakit/identity"
)

// Snapshot is a point-in-time usage summary for one (feature, identity) pair.
// It is computed, never persisted.
type Snapshot struct {
	Feature   string        `json:"feature"`
	Class     string        `json:"class"`
	Used      int64         `json:"used"`
	Limit     int64         `json:"limit"`
	Remaining int64         `json:"remaining"`
	Window    time.Duration `json:"-"`
	ResetAt   time.Time     `json:"reset_at"`

	// WindowSeconds mirrors Window for JSON consumers.
	WindowSeconds int64 `json:"window_seconds"`

	// Lifetime and MonthToDate are informational aggregates, populated only
	// for authenticated callers when the enforcer has a usage store.
	Lifetime    int64 `json:"lifetime,omitempty"`
	MonthToDate int64 `json:"month_to_date,omitempty"`
}

// Stats produces the current usage snapshot for a feature and identity.
// Pure read; never mutates state. A missing counter or a store error reads
// as zero usage rather than failing.
//
// ResetAt is derived from the counter's remaining TTL; when no counter
// exists yet it reports a full window from now, which is when a window
// started by the next request would reset.
func (e *Enforcer) Stats(ctx context.Context, feature string, id identity.Identity, opts ...RequestOption) Snapshot {
	pol, key := e.resolve(ctx, feature, id, opts)

	count, ttl, err := e.counters.Peek(ctx, key.String())
	if err != nil {
		logError(ctx, err)
		count, ttl = 0, 0
	}
	if ttl <= 0 {
		ttl = pol.Window
	}

	snap := Snapshot{
		Feature:       feature,
		Class:         string(pol.Class),
		Used:          count,
		Limit:         pol.Limit,
		Remaining:     max(0, pol.Limit-count),
		Window:        pol.Window,
		WindowSeconds: int64(pol.Window.Seconds()),
		ResetAt:       time.Now().Add(ttl),
	}

	if e.usage != nil && id.IsAuthenticated() {
		if total, err := e.usage.Get(ctx, id.UserID, lifetimeField(feature)); err == nil {
			snap.Lifetime = total
		} else {
			logError(ctx, err)
		}
		if month, err := e.usage.Get(ctx, id.UserID, monthField(feature, time.Now())); err == nil {
			snap.MonthToDate = month
		} else {
			logError(ctx, err)
		}
	}

	return snap
}
