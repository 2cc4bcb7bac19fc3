package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal"

	// Access refusals. Each one ends the request without touching lead data.
	ErrorTypeInputRejected       ErrorType = "input_rejected"
	ErrorTypeUnknownRole         ErrorType = "unknown_role"
	ErrorTypeNoAccessibleColumns ErrorType = "no_accessible_columns"
	ErrorTypeTableNotAllowlisted ErrorType = "table_not_allowlisted"
	ErrorTypeColumnNotPermitted  ErrorType = "column_not_permitted"

	// Never returned to a caller; logged and counted by the auditor.
	ErrorTypeAuditWriteFailed ErrorType = "audit_write_failed"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. These are comparison targets for errors.Is; never
// call WithDetail on them, build a fresh error with NewDomainError instead.

var (
	// Not Found Errors
	ErrUserNotFound     = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrAuditLogNotFound = NewDomainError(ErrorTypeNotFound, "audit log not found", nil)
	ErrTableNotFound    = NewDomainError(ErrorTypeNotFound, "table not found", nil)

	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidPlan  = NewDomainError(ErrorTypeValidation, "invalid query plan", nil)
	ErrEmptyMessage = NewDomainError(ErrorTypeValidation, "message cannot be empty", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Permission Errors
	ErrForbidden               = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)

	// Access refusals
	ErrInputRejected       = NewDomainError(ErrorTypeInputRejected, "input rejected", nil)
	ErrUnknownRole         = NewDomainError(ErrorTypeUnknownRole, "unknown role", nil)
	ErrNoAccessibleColumns = NewDomainError(ErrorTypeNoAccessibleColumns, "no accessible columns", nil)
	ErrTableNotAllowlisted = NewDomainError(ErrorTypeTableNotAllowlisted, "table not allowlisted", nil)
	ErrColumnNotPermitted  = NewDomainError(ErrorTypeColumnNotPermitted, "column not permitted", nil)

	ErrAuditWriteFailed = NewDomainError(ErrorTypeAuditWriteFailed, "audit write failed", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// Error type checking helper functions

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsNoAccessibleColumnsError checks if the role can see nothing of the table
func IsNoAccessibleColumnsError(err error) bool {
	return isType(err, ErrorTypeNoAccessibleColumns)
}

// IsAccessRefusal reports whether err is one of the terminal access refusals
// that map to 403: rejected input, unknown role, a table outside the
// allow-list or a predicate over a hidden column.
func IsAccessRefusal(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeInputRejected, ErrorTypeUnknownRole, ErrorTypeTableNotAllowlisted, ErrorTypeColumnNotPermitted:
		return true
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
