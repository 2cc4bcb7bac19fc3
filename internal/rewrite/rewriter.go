// Package rewrite turns a caller's query plan into one restricted to the
// columns and rows the caller's role may read.
//
// Column flow: requested columns are resolved against the live schema, then
// intersected with the role's allowed set, then the denied set is removed.
// Deny is applied last so it cannot be bypassed by asking for every column.
//
// Row flow: roles scoped to owned-or-assigned rows get an ownership predicate
// built from the identity alone. It is conjoined with the caller predicate as
// two grouped operands of a structured AND node, never by string composition.
//
// The rewriter does no I/O and keeps no state. It is safe for concurrent use.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/internal/query"
)

var (
	ErrNoAccessibleColumns = errors.New("no accessible columns")
	ErrColumnNotPermitted  = errors.New("column not permitted")
)

// Rewriter sanitizes plans against a policy catalog.
type Rewriter struct {
	catalog *policy.Catalog
}

// New creates a rewriter over catalog.
func New(catalog *policy.Catalog) *Rewriter {
	return &Rewriter{catalog: catalog}
}

// Result is a sanitized plan plus a record of what the rewrite changed.
type Result struct {
	Plan             query.Plan
	Role             policy.Role
	RemovedColumns   []string
	UnknownColumns   []string
	DuplicateColumns []string
	PredicateAdded   bool
	OwnershipFilter  query.Expr
}

// Description renders what the rewrite removed and added.
func (r *Result) Description() string {
	var parts []string
	if len(r.RemovedColumns) > 0 {
		parts = append(parts, "removed columns: "+strings.Join(r.RemovedColumns, ", "))
	}
	if len(r.UnknownColumns) > 0 {
		parts = append(parts, "dropped unknown columns: "+strings.Join(r.UnknownColumns, ", "))
	}
	if len(r.DuplicateColumns) > 0 {
		parts = append(parts, "dropped duplicate columns: "+strings.Join(r.DuplicateColumns, ", "))
	}
	if r.PredicateAdded {
		parts = append(parts, "added row filter: "+query.Describe(r.OwnershipFilter))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

// Rewrite sanitizes plan for identity. schemaColumns is the ordered column
// list of the plan's table as it exists in the data store.
func (rw *Rewriter) Rewrite(identity policy.Identity, plan query.Plan, schemaColumns []string) (*Result, error) {
	profile, err := rw.catalog.ProfileFor(identity.Role)
	if err != nil {
		return nil, err
	}
	table, err := rw.catalog.Table(plan.Table)
	if err != nil {
		return nil, err
	}
	return RewriteWithProfile(profile, table, identity, plan, schemaColumns)
}

// RewriteWithProfile sanitizes plan against an explicit profile and table.
func RewriteWithProfile(profile policy.Profile, table policy.Table, identity policy.Identity, plan query.Plan, schemaColumns []string) (*Result, error) {
	if plan.Table != table.Name {
		return nil, fmt.Errorf("%w: %q", policy.ErrTableNotAllowlisted, plan.Table)
	}

	inSchema := make(map[string]struct{}, len(schemaColumns))
	for _, c := range schemaColumns {
		inSchema[c] = struct{}{}
	}

	res := &Result{Role: profile.Role}

	columns := sanitizeColumns(profile, plan, schemaColumns, inSchema, res)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: role %s on table %s", ErrNoAccessibleColumns, profile.Role, table.Name)
	}

	// Filtering or sorting on a hidden column would leak its contents.
	referenced := append(query.ReferencedColumns(plan.Where), plan.OrderColumns()...)
	for _, c := range referenced {
		if _, ok := inSchema[c]; !ok || !profile.CanSee(c) {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotPermitted, c)
		}
	}

	where := plan.Where
	if profile.Scope == policy.OwnedOrAssigned {
		own := OwnershipPredicate(table.Ownership, identity.UserID)
		res.OwnershipFilter = own
		switch {
		case where == nil:
			where = own
			res.PredicateAdded = true
		case hasConjunct(where, own):
			// already scoped to this identity
		default:
			where = &query.And{Left: group(where), Right: own}
			res.PredicateAdded = true
		}
	}

	res.Plan = query.Plan{
		Table:   plan.Table,
		Columns: columns,
		Where:   where,
		OrderBy: append([]query.Order(nil), plan.OrderBy...),
		Limit:   plan.Limit,
	}
	return res, nil
}

func sanitizeColumns(profile policy.Profile, plan query.Plan, schemaColumns []string, inSchema map[string]struct{}, res *Result) []string {
	requested := plan.Columns
	if plan.AllColumns || len(plan.Columns) == 0 {
		requested = schemaColumns
	}

	seen := make(map[string]struct{}, len(requested))
	columns := make([]string, 0, len(requested))
	for _, c := range requested {
		if _, dup := seen[c]; dup {
			res.DuplicateColumns = append(res.DuplicateColumns, c)
			continue
		}
		seen[c] = struct{}{}

		if _, ok := inSchema[c]; !ok {
			res.UnknownColumns = append(res.UnknownColumns, c)
			continue
		}
		if !profile.CanSee(c) {
			res.RemovedColumns = append(res.RemovedColumns, c)
			continue
		}
		columns = append(columns, c)
	}
	return columns
}

// OwnershipPredicate builds (owner = uid OR key IN (SELECT assignment key
// FROM assignments WHERE user = uid)) from the identity only.
func OwnershipPredicate(o policy.Ownership, userID int64) query.Expr {
	return query.Paren(&query.Or{
		Left: query.Eq(o.OwnerColumn, userID),
		Right: &query.InSubquery{
			Expr: query.Col(o.KeyColumn),
			Subquery: query.Subquery{
				Column: o.AssignmentKeyColumn,
				Table:  o.AssignmentTable,
				Where:  query.Eq(o.AssignmentUserColumn, userID),
			},
		},
	})
}

func hasConjunct(where, pred query.Expr) bool {
	target := query.Unwrap(pred)
	for _, c := range query.Conjuncts(where) {
		if query.Equal(query.Unwrap(c), target) {
			return true
		}
	}
	return false
}

func group(e query.Expr) query.Expr {
	if _, ok := e.(*query.Group); ok {
		return e
	}
	return query.Paren(e)
}
