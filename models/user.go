package models

import (
	"time"

	"github.com/upb/leads-guard/internal/policy"
)

// User represents a CRM user. Role is the name from the roles table and is
// the only source of authorization; tokens never carry it.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// Identity returns the caller identity handed to the access pipeline.
func (u *User) Identity() policy.Identity {
	return policy.Identity{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	r, err := policy.ParseRole(u.Role)
	return err == nil && r == policy.RoleAdmin
}

// CanViewAllLeads reports whether the user's role reads leads unscoped
func (u *User) CanViewAllLeads() bool {
	r, err := policy.ParseRole(u.Role)
	return err == nil && (r == policy.RoleAdmin || r == policy.RoleManager)
}
