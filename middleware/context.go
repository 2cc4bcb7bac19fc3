package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/leads-guard/auth"
	"github.com/upb/leads-guard/internal/policy"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for validated token claims
	ClaimsKey contextKey = "claims"

	// IdentityKey is the context key for the resolved caller identity
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *auth.ParsedClaims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*auth.ParsedClaims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds token claims to the context
func WithClaims(ctx context.Context, claims *auth.ParsedClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// IdentityFromContext retrieves the caller identity. ok is false when the
// request never passed ResolveIdentity.
func IdentityFromContext(ctx context.Context) (policy.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(policy.Identity)
	return identity, ok
}

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, identity policy.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
