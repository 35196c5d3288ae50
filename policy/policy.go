// Package policy resolves the ceiling and window that apply to a request.
//
// Resolution order for a (feature, class) pair, highest precedence first:
//
//  1. Per-call override supplied by the caller
//  2. The feature's configured ceiling for the class
//  3. The installation-wide class default
//  4. Package fallback constants
//
// An unrecognized feature is not an error; it resolves through steps 3-4.
// This keeps quota enforcement from ever becoming a source of hard outages:
// a missing or malformed configuration value degrades to a documented default.
//
// Premium classification is not implemented here. The platform injects a
// PremiumFunc predicate and the resolver treats it as an opaque boolean.
package policy

import (
	"context"
	"time"

	"github.com/nhalm/quotakit/identity"
)

// Class is the identity class a ceiling applies to.
type Class string

const (
	ClassAnonymous Class = "anonymous"
	ClassFree      Class = "free"
	ClassPremium   Class = "premium"
)

// Fallback ceilings and window, used when neither the feature configuration
// nor the installation defaults provide a value.
const (
	FallbackAnonymousLimit int64 = 10
	FallbackFreeLimit      int64 = 50
	FallbackPremiumLimit   int64 = 500

	FallbackWindow = time.Hour
)

// Policy is the resolved ceiling and window for one (feature, class) pair.
type Policy struct {
	Feature string
	Class   Class
	Limit   int64
	Window  time.Duration
}

// Override carries per-call policy overrides. Zero fields are ignored.
type Override struct {
	Limit  int64
	Window time.Duration
}

// PremiumFunc reports whether the given user holds a premium entitlement.
// Injected by the platform; the resolver never implements this itself.
type PremiumFunc func(ctx context.Context, userID int64) bool

// Resolver resolves limit policies from configuration.
type Resolver struct {
	cfg     Config
	premium PremiumFunc
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPremiumFunc sets the premium classification predicate.
// Without it every authenticated caller is classified as free.
func WithPremiumFunc(fn PremiumFunc) ResolverOption {
	return func(r *Resolver) {
		r.premium = fn
	}
}

// NewResolver creates a policy resolver from the given configuration.
// Returns an error if the configuration fails validation.
func NewResolver(cfg Config, opts ...ResolverOption) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ClassOf classifies an identity: anonymous callers are ClassAnonymous,
// authenticated callers are ClassPremium when the premium predicate says so,
// otherwise ClassFree.
func (r *Resolver) ClassOf(ctx context.Context, id identity.Identity) Class {
	if !id.IsAuthenticated() {
		return ClassAnonymous
	}
	if r.premium != nil && r.premium(ctx, id.UserID) {
		return ClassPremium
	}
	return ClassFree
}

// Resolve returns the policy for a feature and class with no per-call override.
func (r *Resolver) Resolve(feature string, class Class) Policy {
	return r.ResolveWith(feature, class, nil)
}

// ResolveWith returns the policy for a feature and class, applying the
// override when non-nil. Always resolvable; never returns an error.
func (r *Resolver) ResolveWith(feature string, class Class, override *Override) Policy {
	p := Policy{
		Feature: feature,
		Class:   class,
		Limit:   r.classDefault(class),
		Window:  FallbackWindow,
	}

	if r.cfg.Window > 0 {
		p.Window = r.cfg.Window
	}

	if fc, ok := r.cfg.Features[feature]; ok {
		if limit := fc.limitFor(class); limit > 0 {
			p.Limit = limit
		}
		if fc.Window > 0 {
			p.Window = fc.Window
		}
	}

	if override != nil {
		if override.Limit > 0 {
			p.Limit = override.Limit
		}
		if override.Window > 0 {
			p.Window = override.Window
		}
	}

	return p
}

func (r *Resolver) classDefault(class Class) int64 {
	switch class {
	case ClassPremium:
		if r.cfg.Premium > 0 {
			return r.cfg.Premium
		}
		return FallbackPremiumLimit
	case ClassFree:
		if r.cfg.Free > 0 {
			return r.cfg.Free
		}
		return FallbackFreeLimit
	default:
		if r.cfg.Anonymous > 0 {
			return r.cfg.Anonymous
		}
		return FallbackAnonymousLimit
	}
}
