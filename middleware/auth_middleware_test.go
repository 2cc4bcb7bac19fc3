package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/leads-guard/auth"
	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*auth.ParsedClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.ParsedClaims), args.Error(1)
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token in Authorization header allows request", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, new(MockUserRepository), logger)

		claims := &auth.ParsedClaims{UserID: 3}
		validator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := GetClaimsFromContext(r.Context())
			assert.NotNil(t, got)
			assert.Equal(t, int64(3), got.UserID)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("valid token in cookie allows request", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, new(MockUserRepository), logger)
		validator.On("ValidateToken", mock.Anything, "cookie-token").Return(&auth.ParsedClaims{UserID: 4}, nil)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()

		mw.RequireAuth(http.HandlerFunc(okHandler)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("header takes precedence over cookie", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, new(MockUserRepository), logger)
		validator.On("ValidateToken", mock.Anything, "header-token").Return(&auth.ParsedClaims{UserID: 1}, nil)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()

		mw.RequireAuth(http.HandlerFunc(okHandler)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertNotCalled(t, "ValidateToken", mock.Anything, "cookie-token")
	})

	tests := []struct {
		name   string
		header string
		err    error
	}{
		{name: "missing token returns 401"},
		{name: "invalid authorization header format returns 401", header: "InvalidFormat"},
		{name: "invalid token returns 401", header: "Bearer invalid-token", err: auth.ErrInvalidToken},
		{name: "expired token returns 401", header: "Bearer expired-token", err: auth.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := new(MockTokenValidator)
			mw := NewAuthMiddleware(validator, new(MockUserRepository), logger)
			if tt.err != nil {
				validator.On("ValidateToken", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			if tt.err == nil {
				validator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	logger := zap.NewNop()

	withClaims := func(userID int64) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		return req.WithContext(WithClaims(req.Context(), &auth.ParsedClaims{UserID: userID}))
	}

	t.Run("role is read from the user row", func(t *testing.T) {
		users := new(MockUserRepository)
		mw := NewAuthMiddleware(new(MockTokenValidator), users, logger)
		users.On("GetByID", mock.Anything, int64(3)).
			Return(&models.User{ID: 3, Username: "sam", Role: "sales_rep", IsActive: true}, nil)

		var got policy.Identity
		handler := mw.ResolveIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withClaims(3))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, policy.Identity{UserID: 3, Username: "sam", Role: "sales_rep"}, got)
	})

	t.Run("unknown user returns 401", func(t *testing.T) {
		users := new(MockUserRepository)
		mw := NewAuthMiddleware(new(MockTokenValidator), users, logger)
		users.On("GetByID", mock.Anything, int64(99)).
			Return(nil, fmt.Errorf("user 99: %w", repositories.ErrNotFound))

		w := httptest.NewRecorder()
		mw.ResolveIdentity(http.HandlerFunc(okHandler)).ServeHTTP(w, withClaims(99))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("database error returns 500", func(t *testing.T) {
		users := new(MockUserRepository)
		mw := NewAuthMiddleware(new(MockTokenValidator), users, logger)
		users.On("GetByID", mock.Anything, int64(3)).Return(nil, errors.New("connection refused"))

		w := httptest.NewRecorder()
		mw.ResolveIdentity(http.HandlerFunc(okHandler)).ServeHTTP(w, withClaims(3))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("missing claims returns 401", func(t *testing.T) {
		users := new(MockUserRepository)
		mw := NewAuthMiddleware(new(MockTokenValidator), users, logger)

		w := httptest.NewRecorder()
		mw.ResolveIdentity(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(new(MockTokenValidator), new(MockUserRepository), zap.NewNop())
	guard := mw.RequireRole(policy.RoleManager, policy.RoleAdmin)

	tests := []struct {
		role string
		want int
	}{
		{role: "admin", want: http.StatusOK},
		{role: "manager", want: http.StatusOK},
		{role: "sales_rep", want: http.StatusForbidden},
		{role: "viewer", want: http.StatusForbidden},
		{role: "intern", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(WithIdentity(req.Context(), policy.Identity{UserID: 1, Role: tt.role}))
			w := httptest.NewRecorder()

			guard(http.HandlerFunc(okHandler)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("no identity returns 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		guard(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "Bearer  abc ", want: "abc"},
		{header: "Basic abc", want: ""},
		{header: "Bearer", want: ""},
		{header: "", want: ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearerToken(req), tt.header)
	}
}
