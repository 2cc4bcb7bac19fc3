package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/leads-guard/internal/query"
	"github.com/upb/leads-guard/models"
)

// ErrNotFound is wrapped by repositories when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction. A nil opts uses the driver defaults.
	Begin(ctx context.Context, opts *sql.TxOptions) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error.
	// The ctx passed to fn carries the transaction.
	InTransaction(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository resolves callers to their stored role
type UserRepository interface {
	// GetByID retrieves an active user by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByUsername retrieves an active user by username
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// SchemaRepository reads table structure from information_schema
type SchemaRepository interface {
	// ColumnsOf returns the column names of a public table in ordinal order
	ColumnsOf(ctx context.Context, table string) ([]string, error)

	// DescribeTable returns name, type and nullability of every column
	DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error)
}

// LeadRepository executes sanitized read plans. It never accepts SQL text.
type LeadRepository interface {
	// Select serializes plan and runs it in a read-only transaction
	Select(ctx context.Context, plan query.Plan) (*models.ResultSet, error)
}

// AuditRepository is the append-only audit store. There is no update or delete.
type AuditRepository interface {
	// Insert inserts a new audit record
	Insert(ctx context.Context, record *models.AuditRecord) error

	// GetByID retrieves an audit record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error)

	// List retrieves audit records matching filter, newest first
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users        UserRepository
	Leads        LeadRepository
	Schema       SchemaRepository
	AuditRecords AuditRepository
}
