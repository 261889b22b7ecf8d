// Package ratelimit throttles applicant writes with a sliding window keyed by
// user, falling back to client IP for anonymous requests.
package ratelimit

import (
	"context"
	"time"
)

// Policy allows Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one check. RetryAfter is only set when the
// request was rejected.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store records requests for a key and decides whether one more fits.
type Store interface {
	Allow(ctx context.Context, key string, policy Policy) (*Result, error)
}
