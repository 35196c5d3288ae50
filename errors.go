package quotakit

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

// RateLimitError is the one error this package raises deliberately: the
// caller has exhausted their ceiling for the current window. It carries
// enough detail to render a wait message and schedule client-side backoff.
//
// HTTP handlers should map it to 429 Too Many Requests; the middleware
// package does this automatically.
type RateLimitError struct {
	Feature    string
	Limit      int64
	Window     time.Duration
	RetryAfter time.Duration
}

// Error returns a human-readable denial message stating the ceiling and window.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: you can make %d requests per %s", e.Feature, e.Limit, windowLabel(e.Window))
}

// HTTPStatus returns the status code handlers should respond with.
func (e *RateLimitError) HTTPStatus() int {
	return http.StatusTooManyRequests
}

// RetryAfterSeconds returns the retry delay rounded up to whole seconds,
// never less than 1, suitable for a Retry-After header.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// windowLabel renders a window duration for human-facing messages.
func windowLabel(d time.Duration) string {
	switch d {
	case time.Minute:
		return "minute"
	case time.Hour:
		return "hour"
	case 24 * time.Hour:
		return "day"
	}
	return d.String()
}
