// Package policy is the single source of truth for what a role may read.
//
// The catalog maps each role to a permission profile:
//   - the columns the role may see, or every column for admin-equivalents
//   - the columns that are always stripped, even when every column is allowed
//   - the row scope that decides whether an ownership predicate is injected
//
// Policy is a fixed, versioned table. It is not inferred from the database
// schema, so a newly added column stays hidden until a role is granted it.
package policy
