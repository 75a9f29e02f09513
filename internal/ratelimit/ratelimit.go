// Package ratelimit limits how often a key may act within a window.
//
// CounterLimiter counts in the shared cache, so limits hold across
// instances when the cache is Redis. TokenLimiter keeps token buckets in
// process memory.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRule is returned for a rule without a positive limit and window.
var ErrInvalidRule = errors.New("rate limit rule needs a positive limit and window")

// Rule is a number of requests allowed per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// Limiter decides whether a request identified by tenant and key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. An error signals a
	// limiter malfunction; callers fail open.
	Allow(ctx context.Context, tenantID, key string) (bool, error)

	// RetryAfter is how long a rejected caller should wait before trying again.
	RetryAfter() time.Duration

	// Close releases resources.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string, string) (bool, error) { return true, nil }

// RetryAfter is zero.
func (NoopLimiter) RetryAfter() time.Duration { return 0 }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
