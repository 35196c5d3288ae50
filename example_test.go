package quotakit_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhalm/quotakit"
	"github.com/nhalm/quotakit/identity"
	"github.com/nhalm/quotakit/policy"
	"github.com/nhalm/quotakit/store"
)

func ExampleNew() {
	counters := store.NewMemory()
	defer counters.Close()

	policies, _ := policy.NewResolver(policy.DefaultConfig())
	enforcer := quotakit.New(counters, policies)

	ctx := context.Background()
	id := identity.ForUser(42)

	if err := enforcer.Check(ctx, policy.FeatureAIGeneration, id); err != nil {
		var rle *quotakit.RateLimitError
		if errors.As(err, &rle) {
			fmt.Println("try again in", rle.RetryAfterSeconds(), "seconds")
		}
		return
	}

	// ... run the feature ...
	enforcer.Record(ctx, policy.FeatureAIGeneration, id, 1)
}

func ExampleEnforcer_Stats() {
	counters := store.NewMemory()
	defer counters.Close()

	policies, _ := policy.NewResolver(policy.DefaultConfig())
	enforcer := quotakit.New(counters, policies)

	snap := enforcer.Stats(context.Background(), policy.FeatureHashtagSearch, identity.ForUser(42))
	fmt.Printf("%d of %d used, %d remaining\n", snap.Used, snap.Limit, snap.Remaining)
	// Output: 0 of 100 used, 100 remaining
}
