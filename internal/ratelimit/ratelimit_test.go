package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/nexis/internal/cache"
	"github.com/opensource-finance/nexis/internal/domain"
)

type brokenCache struct {
	domain.Cache
}

func (brokenCache) IncrementCounter(context.Context, string, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

type erroringLimiter struct{ NoopLimiter }

func (erroringLimiter) Allow(context.Context, string, string) (bool, error) {
	return false, errors.New("boom")
}

func TestRuleValidation(t *testing.T) {
	_, err := NewTokenLimiter(Rule{Limit: 0, Window: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewCounterLimiter(cache.NewLRUCache(10), "x", Rule{Limit: 5})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestCounterLimiter(t *testing.T) {
	ctx := context.Background()
	l, err := NewCounterLimiter(cache.NewLRUCache(100), "assess", Rule{Limit: 3, Window: time.Minute})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "tenant-a", "subject-1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := l.Allow(ctx, "tenant-a", "subject-1")
	require.NoError(t, err)
	assert.False(t, ok, "fourth request in the window is limited")

	ok, _ = l.Allow(ctx, "tenant-a", "subject-2")
	assert.True(t, ok, "keys are independent")

	ok, _ = l.Allow(ctx, "tenant-b", "subject-1")
	assert.True(t, ok, "tenants are independent")

	assert.Equal(t, time.Minute, l.RetryAfter())
}

func TestCounterLimiterFallsBack(t *testing.T) {
	ctx := context.Background()
	l, err := NewCounterLimiter(brokenCache{}, "assess", Rule{Limit: 2, Window: time.Hour})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "tenant-a", "subject-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "tenant-a", "subject-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenLimiter(t *testing.T) {
	ctx := context.Background()
	l, err := NewTokenLimiter(Rule{Limit: 2, Window: time.Minute})
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow(ctx, "t", "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "t", "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "t", "k")
	assert.False(t, ok, "burst exhausted")

	assert.Equal(t, 30*time.Second, l.RetryAfter())

	now = now.Add(30 * time.Second)
	ok, _ = l.Allow(ctx, "t", "k")
	assert.True(t, ok, "one token refilled")

	assert.Equal(t, 1, l.Len())
	require.NoError(t, l.Close())
	assert.Equal(t, 0, l.Len())
}

func TestTokenLimiterEvictsStaleKeys(t *testing.T) {
	l, err := NewTokenLimiter(Rule{Limit: 1, Window: time.Second})
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.buckets["old:key"] = &bucket{lastAccess: now.Add(-time.Hour)}
	l.buckets["fresh:key"] = &bucket{lastAccess: now}

	l.evictStale(now)

	assert.NotContains(t, l.buckets, "old:key")
	assert.Contains(t, l.buckets, "fresh:key")
}

func TestMiddleware(t *testing.T) {
	l, err := NewTokenLimiter(Rule{Limit: 1, Window: 10 * time.Second})
	require.NoError(t, err)

	keyFunc := func(r *http.Request) (string, string) {
		return r.Header.Get("X-Tenant-ID"), r.Header.Get("X-Lender-ID")
	}
	handler := Middleware(l, keyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(lender string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/lender/decisions", nil)
		req.Header.Set("X-Tenant-ID", "tenant-a")
		if lender != "" {
			req.Header.Set("X-Lender-ID", lender)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("lender-1").Code)

	limited := do("lender-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "10", limited.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	assert.Contains(t, body["error"], "rate limit")

	assert.Equal(t, http.StatusNoContent, do("").Code, "empty key skips limiting")
	assert.Equal(t, http.StatusNoContent, do("").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	handler := Middleware(erroringLimiter{}, func(*http.Request) (string, string) {
		return "t", "k"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	ok, err := l.Allow(context.Background(), "t", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, l.Close())
}
