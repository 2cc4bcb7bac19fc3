package policy

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnknownRole         = errors.New("unknown role")
	ErrTableNotAllowlisted = errors.New("table not allowlisted")
)

// Role is one of the fixed set of roles known to the catalog.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSalesRep Role = "sales_rep"
	RoleViewer   Role = "viewer"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleSalesRep, RoleViewer}
}

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSalesRep, RoleViewer:
		return true
	}
	return false
}

// RowScope determines whether an ownership predicate is injected.
type RowScope int

const (
	Unrestricted RowScope = iota
	OwnedOrAssigned
)

func (s RowScope) String() string {
	switch s {
	case Unrestricted:
		return "unrestricted"
	case OwnedOrAssigned:
		return "owned_or_assigned"
	default:
		return "unknown"
	}
}

// ColumnSet is an immutable set of column names, or the sentinel "all".
type ColumnSet struct {
	all  bool
	cols map[string]struct{}
}

// AllColumns returns the sentinel set that contains every column.
func AllColumns() ColumnSet {
	return ColumnSet{all: true}
}

// Columns returns a set of the named columns.
func Columns(names ...string) ColumnSet {
	cols := make(map[string]struct{}, len(names))
	for _, n := range names {
		cols[n] = struct{}{}
	}
	return ColumnSet{cols: cols}
}

// IsAll reports whether the set is the "all" sentinel.
func (s ColumnSet) IsAll() bool {
	return s.all
}

// Contains reports whether name is in the set.
func (s ColumnSet) Contains(name string) bool {
	if s.all {
		return true
	}
	_, ok := s.cols[name]
	return ok
}

// Len returns the number of named columns. It is zero for the sentinel.
func (s ColumnSet) Len() int {
	return len(s.cols)
}

// Names returns the named columns in sorted order, or nil for the sentinel.
func (s ColumnSet) Names() []string {
	if s.all {
		return nil
	}
	names := make([]string, 0, len(s.cols))
	for n := range s.cols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profile is the permission profile of a role.
type Profile struct {
	Role    Role
	Allowed ColumnSet
	Denied  ColumnSet
	Scope   RowScope
}

// CanSee reports whether the profile exposes column. Denied always wins.
func (p Profile) CanSee(column string) bool {
	if p.Denied.Contains(column) {
		return false
	}
	return p.Allowed.Contains(column)
}

// Ownership names the relations used to build an ownership predicate.
type Ownership struct {
	OwnerColumn          string
	KeyColumn            string
	AssignmentTable      string
	AssignmentKeyColumn  string
	AssignmentUserColumn string
}

// Table is an allow-listed queryable table.
type Table struct {
	Name      string
	Ownership Ownership
}

// Identity is the caller a request is evaluated for. It is resolved once
// per request and never changes afterwards.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
