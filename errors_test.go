package quotakit_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nhalm/quotakit"
)

func TestRateLimitError_Message(t *testing.T) {
	tests := []struct {
		name   string
		err    *quotakit.RateLimitError
		substr string
	}{
		{
			name:   "hourly window",
			err:    &quotakit.RateLimitError{Feature: "ai_generation", Limit: 10, Window: time.Hour},
			substr: "10 requests per hour",
		},
		{
			name:   "daily window",
			err:    &quotakit.RateLimitError{Feature: "registration", Limit: 3, Window: 24 * time.Hour},
			substr: "3 requests per day",
		},
		{
			name:   "minute window",
			err:    &quotakit.RateLimitError{Feature: "api_request", Limit: 60, Window: time.Minute},
			substr: "60 requests per minute",
		},
		{
			name:   "odd window falls back to duration string",
			err:    &quotakit.RateLimitError{Feature: "x", Limit: 5, Window: 90 * time.Second},
			substr: "5 requests per 1m30s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			if !strings.Contains(msg, tt.substr) {
				t.Errorf("Error() = %q, want substring %q", msg, tt.substr)
			}
			if !strings.Contains(msg, tt.err.Feature) {
				t.Errorf("Error() = %q, want feature name %q", msg, tt.err.Feature)
			}
		})
	}
}

func TestRateLimitError_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		retry time.Duration
		want  int
	}{
		{name: "rounds up", retry: 1500 * time.Millisecond, want: 2},
		{name: "whole seconds", retry: 30 * time.Second, want: 30},
		{name: "never less than one", retry: 10 * time.Millisecond, want: 1},
		{name: "zero clamps to one", retry: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &quotakit.RateLimitError{RetryAfter: tt.retry}
			if got := err.RetryAfterSeconds(); got != tt.want {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateLimitError_HTTPStatus(t *testing.T) {
	err := &quotakit.RateLimitError{}
	if got := err.HTTPStatus(); got != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus() = %d, want %d", got, http.StatusTooManyRequests)
	}
}
