// Package middleware wires quota enforcement into Chi and standard
// http.Handler chains.
//
// The middleware resolves the caller's identity, checks the feature's quota,
// sets standard rate limit headers (RateLimit-Limit, RateLimit-Remaining,
// RateLimit-Reset), and returns 429 (Too Many Requests) with a structured
// JSON error when the ceiling is reached. Usage is recorded after the
// handler runs, and only when it did not fail, so rejected requests don't
// consume quota.
//
// Basic usage:
//
//	counters := store.NewMemory()
//	defer counters.Close()
//
//	policies, _ := policy.NewResolver(policy.DefaultConfig())
//	enforcer := quotakit.New(counters, policies)
//	resolver := identity.NewResolver(secret)
//
//	r.With(middleware.Enforce(enforcer, resolver, "content_repurposer")).
//		Post("/repurpose", repurposeHandler)
//
// For distributed deployments (Kubernetes), use the Redis store. The
// in-memory store is only suitable for single-instance deployments and
// development.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/canonlog"
	"github.com/nhalm/quotakit"
	"github.com/nhalm/quotakit/identity"
	"github.com/nhalm/quotakit/policy"
)

// HeaderMode controls when rate limit headers are included in responses.
type HeaderMode int

const (
	// HeadersAlways includes rate limit headers on all responses (default).
	// Headers: RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset
	// On 429: Also includes Retry-After
	HeadersAlways HeaderMode = iota

	// HeadersOnLimitExceeded includes rate limit headers only on 429 responses.
	HeadersOnLimitExceeded

	// HeadersNever never includes rate limit headers in any response.
	// Use this when you want quota enforcement without exposing limits to clients.
	HeadersNever
)

type config struct {
	cost       int64
	headerMode HeaderMode
	override   *policy.Override
}

// Option configures the Enforce middleware.
type Option func(*config)

// WithCost sets the usage cost recorded per request (default: 1).
func WithCost(cost int64) Option {
	return func(c *config) {
		c.cost = cost
	}
}

// WithHeaderMode configures when rate limit headers are included in responses.
// These headers follow the IETF draft-ietf-httpapi-ratelimit-headers specification.
func WithHeaderMode(mode HeaderMode) Option {
	return func(c *config) {
		c.headerMode = mode
	}
}

// WithOverride applies per-route limit and window overrides, taking
// precedence over the enforcer's configured policy table.
func WithOverride(o policy.Override) Option {
	return func(c *config) {
		c.override = &o
	}
}

// errorBody is the JSON envelope written on 429 responses.
type errorBody struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	RetryAfter int    `json:"retry_after"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// Enforce returns middleware that enforces the feature's quota for every
// request. Identity resolution, policy lookup, and counting are all
// delegated to the enforcer; this layer only maps the outcome onto HTTP.
func Enforce(e *quotakit.Enforcer, ids *identity.Resolver, feature string, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{cost: 1, headerMode: HeadersAlways}
	for _, opt := range opts {
		opt(cfg)
	}

	var reqOpts []quotakit.RequestOption
	if cfg.override != nil {
		reqOpts = append(reqOpts, quotakit.WithOverride(*cfg.override))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := ids.Resolve(r)

			err := e.Check(ctx, feature, id, reqOpts...)
			snap := e.Stats(ctx, feature, id, reqOpts...)

			logFields(r, feature, snap, err != nil)

			if err != nil {
				rle, ok := err.(*quotakit.RateLimitError)
				if !ok {
					// Check only ever returns *RateLimitError; anything else
					// fails open.
					next.ServeHTTP(w, r)
					return
				}
				writeDenied(w, snap, rle, cfg.headerMode)
				return
			}

			if cfg.headerMode == HeadersAlways {
				remaining := max(0, snap.Remaining-cfg.cost)
				setLimitHeaders(w.Header(), snap.Limit, remaining, snap.ResetAt)
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if sw.status < http.StatusBadRequest {
				if recErr := e.Record(ctx, feature, id, cfg.cost, reqOpts...); recErr != nil {
					if _, hasLogger := canonlog.TryGetLogger(ctx); hasLogger {
						canonlog.ErrorAdd(ctx, recErr)
					}
				}
			}
		})
	}
}

func writeDenied(w http.ResponseWriter, snap quotakit.Snapshot, rle *quotakit.RateLimitError, mode HeaderMode) {
	if mode != HeadersNever {
		setLimitHeaders(w.Header(), rle.Limit, 0, snap.ResetAt)
		w.Header().Set("Retry-After", strconv.Itoa(rle.RetryAfterSeconds()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Type:       "rate_limit_error",
		Code:       "limit_exceeded",
		Message:    rle.Error(),
		Limit:      rle.Limit,
		Remaining:  0,
		RetryAfter: rle.RetryAfterSeconds(),
	}})
}

func setLimitHeaders(h http.Header, limit, remaining int64, resetAt time.Time) {
	h.Set("RateLimit-Limit", strconv.FormatInt(limit, 10))
	h.Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	h.Set("RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// logFields annotates the canonical log line when the surrounding handler
// middleware owns one.
func logFields(r *http.Request, feature string, snap quotakit.Snapshot, denied bool) {
	ctx := r.Context()
	if _, ok := canonlog.TryGetLogger(ctx); !ok {
		return
	}

	route := r.URL.Path
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}

	canonlog.InfoAddMany(ctx, map[string]any{
		"quota_feature": feature,
		"quota_class":   snap.Class,
		"quota_used":    snap.Used,
		"quota_limit":   snap.Limit,
		"quota_denied":  denied,
		"quota_route":   route,
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.wroteHeader {
		return
	}
	sw.status = code
	sw.wroteHeader = true
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
