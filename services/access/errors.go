package access

import (
	"context"
	"errors"

	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/internal/query"
	"github.com/upb/leads-guard/internal/rewrite"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/services"
)

// toDomainError maps errors from the policy, rewrite, query and repository
// layers onto the service error taxonomy.
func toDomainError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, policy.ErrUnknownRole):
		return services.NewDomainError(services.ErrorTypeUnknownRole, "role has no permission profile", err)
	case errors.Is(err, policy.ErrTableNotAllowlisted):
		return services.NewDomainError(services.ErrorTypeTableNotAllowlisted, "table is not queryable", err)
	case errors.Is(err, rewrite.ErrNoAccessibleColumns):
		return services.NewDomainError(services.ErrorTypeNoAccessibleColumns, "no requested column is visible to this role", err)
	case errors.Is(err, rewrite.ErrColumnNotPermitted):
		return services.NewDomainError(services.ErrorTypeColumnNotPermitted, "query references a column this role cannot read", err)
	case errors.Is(err, query.ErrInvalidPlan), errors.Is(err, query.ErrInvalidIdentifier), errors.Is(err, query.ErrInvalidExpr):
		return services.NewDomainError(services.ErrorTypeValidation, "invalid query plan", err)
	case errors.Is(err, repositories.ErrNotFound):
		return services.NewDomainError(services.ErrorTypeNotFound, "table not found", err)
	case errors.Is(err, context.DeadlineExceeded):
		return services.WrapInternal("query timed out", err)
	default:
		return services.WrapInternal("query failed", err)
	}
}

// refused reports whether err ended the request before any lead data was read.
func refused(err error) bool {
	return services.IsAccessRefusal(err) ||
		services.IsNoAccessibleColumnsError(err) ||
		services.IsForbiddenError(err) ||
		services.IsValidationError(err)
}
