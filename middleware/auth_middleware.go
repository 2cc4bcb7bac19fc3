package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/leads-guard/auth"
	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	// ValidateToken validates a token and returns its claims
	ValidateToken(ctx context.Context, token string) (*auth.ParsedClaims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	users     repositories.UserRepository
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, users repositories.UserRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// authTokenCookieName is the cookie carrying the token for browser clients.
// The Authorization header takes precedence.
const authTokenCookieName = "auth_token"

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.Int64("user_id", claims.UserID))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// ResolveIdentity loads the authenticated user and stores its identity in
// the context. The role comes from the users table, never from the token.
// Must run after RequireAuth.
func (m *AuthMiddleware) ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		user, err := m.users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				m.logger.Warn("token subject is not an active user",
					zap.String("request_id", requestID),
					zap.Int64("user_id", claims.UserID))
				_ = utils.WriteUnauthorized(w, "Unknown or inactive user")
				return
			}
			m.logger.Error("failed to load user",
				zap.String("request_id", requestID),
				zap.Int64("user_id", claims.UserID),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Failed to resolve identity")
			return
		}

		identity := user.Identity()
		m.logger.Debug("identity resolved",
			zap.String("request_id", requestID),
			zap.Int64("user_id", identity.UserID),
			zap.String("role", identity.Role))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// RequireRole is a middleware that admits only the listed roles. Must run
// after ResolveIdentity.
func (m *AuthMiddleware) RequireRole(roles ...policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity, ok := IdentityFromContext(ctx)
			if !ok {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			role, err := policy.ParseRole(identity.Role)
			if err != nil || !hasRole(roles, role) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.Int64("user_id", identity.UserID),
					zap.String("role", identity.Role))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(allowed []policy.Role, role policy.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// extractToken extracts the token from the Authorization header ("Bearer TOKEN")
// or the auth_token cookie.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
