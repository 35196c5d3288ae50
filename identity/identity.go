// Package identity resolves the caller of a request to a stable quota partition.
//
// Authenticated callers partition by their numeric user ID. Anonymous callers
// partition by a salted hash of their originating network address, so raw
// addresses never appear in store keys and cannot be enumerated from them.
//
// Resolution never fails: when no plausible address can be determined the
// resolver falls back to a loopback sentinel, collapsing indeterminate callers
// into one shared bucket. That under-partitions rather than erroring, which is
// the accepted degradation for an abuse-mitigation feature.
//
// Basic usage:
//
//	resolver := identity.NewResolver([]byte(secret),
//		identity.WithUserFunc(func(r *http.Request) (int64, bool) {
//			return sessionUserID(r)
//		}),
//	)
//	id := resolver.Resolve(req)
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
)

// Kind distinguishes authenticated callers from anonymous ones.
type Kind int

const (
	// Anonymous callers are identified by network address.
	Anonymous Kind = iota

	// Authenticated callers are identified by a stable numeric user ID.
	Authenticated
)

// fallbackAddr is the sentinel used when no plausible client address can be
// determined. All such callers share one partition.
const fallbackAddr = "127.0.0.1"

// Identity describes one resolved caller.
// Partition is stable for the same underlying actor across requests.
type Identity struct {
	Kind      Kind
	UserID    int64  // set for Authenticated
	Addr      string // set for Anonymous; never stored in keys directly
	Partition string // the derived partition ID used in counter keys
}

// IsAuthenticated reports whether the identity has a stable user ID.
func (id Identity) IsAuthenticated() bool {
	return id.Kind == Authenticated
}

// ForUser builds an authenticated identity from a user ID.
func ForUser(userID int64) Identity {
	return Identity{
		Kind:      Authenticated,
		UserID:    userID,
		Partition: strconv.FormatInt(userID, 10),
	}
}

// ForAddr builds an anonymous identity from a network address.
// The partition is a salted hash of the address; secret should be a stable
// per-installation value so partitions survive restarts.
func ForAddr(addr string, secret []byte) Identity {
	return Identity{
		Kind:      Anonymous,
		Addr:      addr,
		Partition: hashAddr(addr, secret),
	}
}

func hashAddr(addr string, secret []byte) string {
	h := sha256.New()
	h.Write(secret)
	h.Write([]byte(addr))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// UserFunc extracts an authenticated user ID from a request.
// Returning false means the caller is anonymous.
type UserFunc func(*http.Request) (int64, bool)

// Resolver resolves requests to identities.
type Resolver struct {
	secret []byte
	userFn UserFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithUserFunc sets the extractor for authenticated user IDs.
// Without it every caller resolves as anonymous.
func WithUserFunc(fn UserFunc) Option {
	return func(r *Resolver) {
		r.userFn = fn
	}
}

// NewResolver creates a resolver that salts anonymous partitions with secret.
func NewResolver(secret []byte, opts ...Option) *Resolver {
	r := &Resolver{secret: secret}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the identity of the request's caller.
// Authenticated sessions win; otherwise the client address is extracted from
// proxy headers (X-Forwarded-For first hop, then X-Real-IP) falling back to
// the direct connection address, and finally to the loopback sentinel.
func (r *Resolver) Resolve(req *http.Request) Identity {
	if r.userFn != nil {
		if userID, ok := r.userFn(req); ok {
			return ForUser(userID)
		}
	}
	return ForAddr(clientAddr(req), r.secret)
}

// clientAddr extracts the best-effort originating address for the request.
// Forwarded headers are only trusted when they carry a plausible public
// address; the direct connection address is accepted as long as it parses.
func clientAddr(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if isPublicAddr(first) {
			return first
		}
	}

	if rip := strings.TrimSpace(req.Header.Get("X-Real-IP")); rip != "" {
		if isPublicAddr(rip) {
			return rip
		}
	}

	host := req.RemoteAddr
	if h, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		host = h
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}

	return fallbackAddr
}

// isPublicAddr reports whether s parses as an address a proxy could plausibly
// have seen on the public internet.
func isPublicAddr(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return !addr.IsLoopback() && !addr.IsPrivate() && !addr.IsUnspecified() && !addr.IsLinkLocalUnicast() && !addr.IsLinkLocalMulticast()
}
