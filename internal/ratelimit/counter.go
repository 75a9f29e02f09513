package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/nexis/internal/domain"
)

// CounterLimiter is a fixed window limiter over domain.Cache counters.
// When the cache fails it falls back to an in-memory token bucket.
type CounterLimiter struct {
	cache    domain.Cache
	prefix   string
	rule     Rule
	fallback *TokenLimiter
}

// NewCounterLimiter creates a limiter that stores counters under
// "ratelimit:<prefix>:<key>".
func NewCounterLimiter(cache domain.Cache, prefix string, rule Rule) (*CounterLimiter, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}
	fallback, err := NewTokenLimiter(rule)
	if err != nil {
		return nil, err
	}
	return &CounterLimiter{
		cache:    cache,
		prefix:   prefix,
		rule:     rule,
		fallback: fallback,
	}, nil
}

// Allow increments the counter for key and checks it against the limit.
func (l *CounterLimiter) Allow(ctx context.Context, tenantID, key string) (bool, error) {
	count, err := l.cache.IncrementCounter(ctx, tenantID, "ratelimit:"+l.prefix+":"+key, l.rule.Window)
	if err != nil {
		slog.Warn("rate limit counter failed, using fallback",
			"tenant_id", tenantID,
			"key", key,
			"error", err,
		)
		return l.fallback.Allow(ctx, tenantID, key)
	}
	return count <= int64(l.rule.Limit), nil
}

// RetryAfter returns the window length.
func (l *CounterLimiter) RetryAfter() time.Duration {
	return l.rule.Window
}

// Close releases the fallback limiter. The cache is owned by the caller.
func (l *CounterLimiter) Close() error {
	return l.fallback.Close()
}
