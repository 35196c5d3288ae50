package quotakit_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhalm/quotakit/identity"
)

func TestStats_ResetAt(t *testing.T) {
	e, _ := newEnforcer(t, guestConfig(5, time.Hour))
	ctx := context.Background()
	id := identity.ForAddr("203.0.113.9", testSecret)

	// No counter yet: reset is a full window out.
	before := time.Now()
	snap := e.Stats(ctx, "content_repurposer", id)
	if snap.ResetAt.Before(before.Add(59 * time.Minute)) {
		t.Errorf("ResetAt = %v, want ~1h from now", snap.ResetAt)
	}

	if err := e.Record(ctx, "content_repurposer", id, 1); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	snap = e.Stats(ctx, "content_repurposer", id)
	until := time.Until(snap.ResetAt)
	if until <= 0 || until > time.Hour {
		t.Errorf("ResetAt %v out of window bounds", snap.ResetAt)
	}
	if snap.WindowSeconds != 3600 {
		t.Errorf("WindowSeconds = %d, want 3600", snap.WindowSeconds)
	}
}

func TestStats_RemainingInvariant(t *testing.T) {
	e, _ := newEnforcer(t, guestConfig(5, time.Hour))
	ctx := context.Background()
	id := identity.ForAddr("203.0.113.9", testSecret)

	for i := int64(0); i < 8; i++ {
		snap := e.Stats(ctx, "content_repurposer", id)

		if snap.Used <= snap.Limit {
			if snap.Remaining+snap.Used != snap.Limit {
				t.Errorf("remaining(%d) + used(%d) != limit(%d)", snap.Remaining, snap.Used, snap.Limit)
			}
		} else if snap.Remaining != 0 {
			t.Errorf("Remaining = %d past ceiling, want 0", snap.Remaining)
		}

		if err := e.Record(ctx, "content_repurposer", id, 1); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
}
