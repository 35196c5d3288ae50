// Package quotakit provides per-feature usage quota enforcement over a
// TTL counter store.
//
// An Enforcer answers "is this request allowed?" and "record this request's
// cost" for any (feature, identity) pair, with ceilings and windows resolved
// from a policy table. Identities are resolved explicitly by the identity
// package and passed as arguments; nothing here reads ambient global state.
//
// Basic usage:
//
//	counters := store.NewMemory()
//	defer counters.Close()
//
//	policies, _ := policy.NewResolver(policy.DefaultConfig())
//	enforcer := quotakit.New(counters, policies)
//
//	id := resolver.Resolve(req)
//	if err := enforcer.Check(ctx, "content_repurposer", id); err != nil {
//		var rle *quotakit.RateLimitError
//		errors.As(err, &rle) // 429, Retry-After: rle.RetryAfterSeconds()
//		return
//	}
//	// ... run the feature ...
//	enforcer.Record(ctx, "content_repurposer", id, 1)
//
// Enforcement is approximate and fails open: a store miss or store error
// reads as zero usage, identity resolution never fails, and denial is a
// computed predicate rather than stored state, so a ceiling change takes
// effect on the very next check. Check and Record are separate calls with
// no transactional grouping; concurrent callers can overshoot the ceiling
// by at most the number of in-flight requests. This is an abuse-mitigation
// core, not billing-grade metering.
package quotakit

import (
	"context"
	"time"

	"github.com/nhalm/canonlog"
	"github.com/nhalm/quotakit/identity"
	"github.com/nhalm/quotakit/policy"
	"github.com/nhalm/quotakit/store"
	"github.com/nhalm/quotakit/usage"
)

// BypassFunc reports whether enforcement should be skipped entirely for this
// caller. The platform supplies it to cover administrative capability holders
// and development/debug mode; compose both conditions in one predicate.
// Never hard-code true.
type BypassFunc func(ctx context.Context, feature string, id identity.Identity) bool

// Enforcer orchestrates identity, policy, and the counter store to enforce
// per-feature usage quotas. It is the single injectable service object that
// feature handlers hold a reference to and call explicitly.
type Enforcer struct {
	counters store.Store
	policies *policy.Resolver
	usage    usage.Store
	bypass   BypassFunc
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithUsageStore enables lifetime and calendar-month aggregates for
// authenticated callers. These are informational only and never consulted
// for enforcement.
func WithUsageStore(st usage.Store) Option {
	return func(e *Enforcer) {
		e.usage = st
	}
}

// WithBypassFunc sets the enforcement bypass predicate.
func WithBypassFunc(fn BypassFunc) Option {
	return func(e *Enforcer) {
		e.bypass = fn
	}
}

// New creates an Enforcer over the given counter store and policy resolver.
func New(counters store.Store, policies *policy.Resolver, opts ...Option) *Enforcer {
	e := &Enforcer{
		counters: counters,
		policies: policies,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type requestConfig struct {
	override *policy.Override
}

// RequestOption configures a single Check, Record, or Stats call.
type RequestOption func(*requestConfig)

// WithOverride applies per-call limit and window overrides, taking precedence
// over the configured policy table.
func WithOverride(o policy.Override) RequestOption {
	return func(c *requestConfig) {
		c.override = &o
	}
}

// Check reports whether a request for the feature is allowed. Returns nil
// when allowed and a *RateLimitError when the ceiling is reached. Performs
// no mutation and is safe to call repeatedly.
//
// A store error reads as zero usage: quota checks fail open rather than
// turning an unavailable store into an outage.
func (e *Enforcer) Check(ctx context.Context, feature string, id identity.Identity, opts ...RequestOption) error {
	if e.Bypassed(ctx, feature, id) {
		return nil
	}

	pol, key := e.resolve(ctx, feature, id, opts)

	count, ttl, err := e.counters.Peek(ctx, key.String())
	if err != nil {
		logError(ctx, err)
		count, ttl = 0, 0
	}

	if count >= pol.Limit {
		retry := ttl
		if retry <= 0 {
			retry = pol.Window
		}
		return &RateLimitError{
			Feature:    feature,
			Limit:      pol.Limit,
			Window:     pol.Window,
			RetryAfter: retry,
		}
	}

	return nil
}

// Record adds cost to the feature's counter for this identity, resetting the
// window TTL to the full window length. For authenticated callers with a
// usage store configured, it also updates the lifetime and current-month
// aggregates.
//
// The returned error is informational; enforcement never depends on a
// successful Record, per the fail-open design.
func (e *Enforcer) Record(ctx context.Context, feature string, id identity.Identity, cost int64, opts ...RequestOption) error {
	pol, key := e.resolve(ctx, feature, id, opts)

	if _, _, err := e.counters.IncrementBy(ctx, key.String(), cost, pol.Window); err != nil {
		logError(ctx, err)
		return err
	}

	if e.usage != nil && id.IsAuthenticated() {
		now := time.Now()
		if _, err := e.usage.Add(ctx, id.UserID, lifetimeField(feature), cost); err != nil {
			logError(ctx, err)
			return err
		}
		if _, err := e.usage.Add(ctx, id.UserID, monthField(feature, now), cost); err != nil {
			logError(ctx, err)
			return err
		}
	}

	return nil
}

// Reset deletes the feature's counter for this identity outright. Intended
// for administrative tooling, not the normal request flow, where counters
// only ever reset by expiring.
func (e *Enforcer) Reset(ctx context.Context, feature string, id identity.Identity) error {
	class := e.policies.ClassOf(ctx, id)
	return e.counters.Reset(ctx, NewKey(feature, class, id).String())
}

// Bypassed reports whether enforcement is skipped for this caller.
func (e *Enforcer) Bypassed(ctx context.Context, feature string, id identity.Identity) bool {
	return e.bypass != nil && e.bypass(ctx, feature, id)
}

func (e *Enforcer) resolve(ctx context.Context, feature string, id identity.Identity, opts []RequestOption) (policy.Policy, Key) {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	class := e.policies.ClassOf(ctx, id)
	pol := e.policies.ResolveWith(feature, class, cfg.override)
	return pol, NewKey(feature, class, id)
}

func lifetimeField(feature string) string {
	return "lifetime:" + feature
}

func monthField(feature string, t time.Time) string {
	return "month:" + feature + ":" + t.Format("2006-01")
}

// logError attaches the error to the request's canonical log line when the
// caller's middleware owns one; outside a canonlog context it is dropped.
func logError(ctx context.Context, err error) {
	if _, ok := canonlog.TryGetLogger(ctx); ok {
		canonlog.ErrorAdd(ctx, err)
	}
}
