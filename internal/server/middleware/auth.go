package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	TenantID    string `json:"tid"`
	PrincipalID string `json:"pid"`
}

// APIKeyValidator resolves a raw API key to its principal. The auth
// service implements it.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, rawKey string) (*domain.Principal, *domain.APIKey, error)
}

// Auth authenticates with a Bearer JWT or an X-API-Key header and puts
// the tenant and principal ids on the request context.
func Auth(jwtSecret string, keys APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try Bearer token first.
			if tok := extractBearer(r); tok != "" {
				ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Try API key.
			if key := r.Header.Get("X-API-Key"); key != "" {
				ctx, ok := authenticateAPIKey(r.Context(), key, keys)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ctx, false
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return ctx, false
	}

	principalID, err := uuid.Parse(claims.PrincipalID)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyTenantID, tenantID)
	ctx = context.WithValue(ctx, ContextKeyPrincipalID, principalID)
	return ctx, true
}

func authenticateAPIKey(ctx context.Context, rawKey string, keys APIKeyValidator) (context.Context, bool) {
	principal, _, err := keys.ValidateAPIKey(ctx, rawKey)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyTenantID, principal.TenantID)
	ctx = context.WithValue(ctx, ContextKeyPrincipalID, principal.ID)
	return ctx, true
}
