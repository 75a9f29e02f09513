// Package auth issues and checks the HS256 bearer tokens lenders present
// on lender routes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const audience = "nexis-lender"

var (
	// ErrNoSecret is returned when a manager is built without a signing secret.
	ErrNoSecret = errors.New("auth: signing secret is required")

	// ErrInvalidToken wraps every token validation failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims identifies a lender acting for one tenant.
type Claims struct {
	jwt.RegisteredClaims
	LenderID string `json:"lender_id"`
	TenantID string `json:"tenant_id"`
}

// Manager signs and validates lender tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager. A non-positive ttl defaults to 30 minutes.
func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if issuer == "" {
		issuer = "nexis"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// IssueToken signs a token for a lender of a tenant.
func (m *Manager) IssueToken(tenantID, lenderID string) (string, time.Time, error) {
	if tenantID == "" || lenderID == "" {
		return "", time.Time{}, fmt.Errorf("auth: tenant and lender ids are required")
	}

	now := m.now().UTC()
	exp := now.Add(m.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   lenderID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		LenderID: lenderID,
		TenantID: tenantID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses a token and returns its claims.
func (m *Manager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithAudience(audience),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrInvalidToken)
	}
	if claims.LenderID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing lender or tenant", ErrInvalidToken)
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by Middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Middleware requires a valid bearer token whose tenant matches the
// tenant tenantOf reads from the request. A nil manager disables the check.
func Middleware(m *Manager, tenantOf func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeUnauthorized(w, "bearer token required")
				return
			}

			claims, err := m.ValidateToken(tokenStr)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			if tenant := tenantOf(r); tenant != "" && tenant != claims.TenantID {
				writeUnauthorized(w, "token does not belong to this tenant")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="nexis"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
