package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// KeyFunc extracts the tenant and rate limit key from a request.
// An empty key skips rate limiting for the request.
type KeyFunc func(r *http.Request) (tenantID, key string)

// Middleware rejects requests over the limit with 429 Too Many Requests.
// Limiter errors let the request through.
func Middleware(limiter Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			tenantID, key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), tenantID, key)
			if err != nil {
				slog.Warn("rate limiter error, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				WriteLimited(w, limiter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteLimited writes the 429 response with a Retry-After header.
func WriteLimited(w http.ResponseWriter, limiter Limiter) {
	seconds := int(math.Ceil(limiter.RetryAfter().Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded, try again later",
	})
}
