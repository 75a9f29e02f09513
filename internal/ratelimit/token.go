package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxIdleKeys    = 10000
	staleThreshold = 10 * time.Minute
)

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// TokenLimiter keeps one x/time/rate token bucket per tenant and key.
// Buckets refill at Limit/Window and hold at most Limit tokens.
type TokenLimiter struct {
	rule  Rule
	every rate.Limit

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewTokenLimiter creates an in-memory limiter.
func NewTokenLimiter(rule Rule) (*TokenLimiter, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}
	return &TokenLimiter{
		rule:    rule,
		every:   rate.Every(rule.Window / time.Duration(rule.Limit)),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}, nil
}

// Allow takes one token from the bucket for key.
func (l *TokenLimiter) Allow(_ context.Context, tenantID, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	id := tenantID + ":" + key

	b, ok := l.buckets[id]
	if !ok {
		if len(l.buckets) >= maxIdleKeys {
			l.evictStale(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.every, l.rule.Limit)}
		l.buckets[id] = b
	}
	b.lastAccess = now

	return b.limiter.AllowN(now, 1), nil
}

func (l *TokenLimiter) evictStale(now time.Time) {
	cutoff := now.Add(-staleThreshold)
	for id, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}

// RetryAfter is the time to earn one token back.
func (l *TokenLimiter) RetryAfter() time.Duration {
	return l.rule.Window / time.Duration(l.rule.Limit)
}

// Len returns the number of tracked keys.
func (l *TokenLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close drops every bucket.
func (l *TokenLimiter) Close() error {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
	return nil
}
