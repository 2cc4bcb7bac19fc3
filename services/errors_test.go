package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "user not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeInputRejected,
				Message: "instruction-override: attempts to replace prior instructions",
			},
			wantMsg: "input_rejected: instruction-override: attempts to replace prior instructions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrUserNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrUserNotFound,
			want:   false,
		},
		{
			name:   "refusal matches its sentinel",
			err:    fmt.Errorf("query: %w", NewDomainError(ErrorTypeColumnNotPermitted, `column "value"`, nil)),
			target: ErrColumnNotPermitted,
			want:   true,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeInputRejected, "input rejected", nil)

	err.WithDetail("category", "role-elevation").WithDetail("signature", "act_as")

	assert.Equal(t, "role-elevation", err.Details["category"])
	assert.Equal(t, "act_as", err.Details["signature"])
	assert.Empty(t, ErrInputRejected.Details)
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found error", ErrAuditLogNotFound, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrUserNotFound), true},
		{"validation error", ErrInvalidInput, false},
		{"regular error", errors.New("regular"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFoundError(tt.err))
		})
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", ErrInvalidInput, true},
		{"wrapped validation", fmt.Errorf("wrapped: %w", ErrInvalidPlan), true},
		{"not found error", ErrUserNotFound, false},
		{"regular error", errors.New("regular"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestIsUnauthorizedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized error", ErrUnauthorized, true},
		{"expired token", ErrTokenExpired, true},
		{"validation error", ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnauthorizedError(tt.err))
		})
	}
}

func TestIsForbiddenError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"forbidden error", ErrForbidden, true},
		{"insufficient permissions", ErrInsufficientPermissions, true},
		{"unauthorized error", ErrUnauthorized, false},
		{"refusals are their own types", ErrUnknownRole, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForbiddenError(tt.err))
		})
	}
}

func TestIsAccessRefusal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"input rejected", ErrInputRejected, true},
		{"unknown role", ErrUnknownRole, true},
		{"table not allowlisted", ErrTableNotAllowlisted, true},
		{"column not permitted", fmt.Errorf("wrapped: %w", ErrColumnNotPermitted), true},
		{"no accessible columns maps to 422", ErrNoAccessibleColumns, false},
		{"audit failures never surface", ErrAuditWriteFailed, false},
		{"forbidden", ErrForbidden, false},
		{"regular error", errors.New("regular"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAccessRefusal(tt.err))
		})
	}
}

func TestIsNoAccessibleColumnsError(t *testing.T) {
	assert.True(t, IsNoAccessibleColumnsError(ErrNoAccessibleColumns))
	assert.True(t, IsNoAccessibleColumnsError(fmt.Errorf("x: %w", ErrNoAccessibleColumns)))
	assert.False(t, IsNoAccessibleColumnsError(ErrColumnNotPermitted))
}

func TestIsInternalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"internal error", ErrInternal, true},
		{"database error", ErrDatabaseError, true},
		{"transaction error", ErrTransactionFailed, true},
		{"validation error", ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInternalError(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrUserNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidInput, ErrorTypeValidation},
		{"input rejected", ErrInputRejected, ErrorTypeInputRejected},
		{"unknown role", ErrUnknownRole, ErrorTypeUnknownRole},
		{"no accessible columns", ErrNoAccessibleColumns, ErrorTypeNoAccessibleColumns},
		{"table not allowlisted", ErrTableNotAllowlisted, ErrorTypeTableNotAllowlisted},
		{"column not permitted", ErrColumnNotPermitted, ErrorTypeColumnNotPermitted},
		{"audit write failed", ErrAuditWriteFailed, ErrorTypeAuditWriteFailed},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "message").WithDetail("reason", "required")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "message", details["field"])
	assert.Equal(t, "required", details["reason"])

	regularErr := errors.New("regular error")
	assert.Nil(t, GetErrorDetails(regularErr))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeTableNotAllowlisted, "table \"users\" is not queryable", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeTableNotAllowlisted, domainErr.Type)
	assert.Equal(t, "table \"users\" is not queryable", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
