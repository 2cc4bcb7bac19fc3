package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

// ErrReadOnlyRequired is returned when a read-only unit of work would join
// an outer transaction that can write.
var ErrReadOnlyRequired = errors.New("read-only transaction required")

// transactionContextKey is the context key for storing transactions
type transactionContextKey struct{}

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{
		db:     db,
		logger: logger,
	}
}

// Begin starts a new transaction
func (tm *TransactionManager) Begin(ctx context.Context, opts *sql.TxOptions) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	readOnly := opts != nil && opts.ReadOnly
	tm.logger.Debug("transaction started", zap.Bool("read_only", readOnly))

	t := &Transaction{
		tx:       sqlTx,
		readOnly: readOnly,
		logger:   tm.logger,
	}
	t.ctx = context.WithValue(ctx, transactionContextKey{}, t)
	return t, nil
}

// InTransaction executes a function within a transaction
// Automatically commits if function succeeds, rolls back on error.
// When ctx already carries a transaction, fn joins it and the outer
// caller decides commit or rollback. A read-only request never joins a
// writable transaction.
func (tm *TransactionManager) InTransaction(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if outer, ok := GetTransactionFromContext(ctx); ok {
		if opts != nil && opts.ReadOnly && !IsReadOnly(outer) {
			return ErrReadOnlyRequired
		}
		return fn(ctx, outer)
	}

	tx, err := tm.Begin(ctx, opts)
	if err != nil {
		return err
	}

	// Execute the function with the transaction-carrying context
	if err := fn(tx.Context(), tx); err != nil {
		// Rollback on error
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	// Commit on success
	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// Transaction implements the Transaction interface
type Transaction struct {
	tx       *sql.Tx
	ctx      context.Context
	readOnly bool
	logger   *zap.Logger
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		// Ignore error if transaction is already closed
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// Context returns the transaction context
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// IsReadOnly reports whether tx was opened read-only. Transactions from
// other managers are treated as writable.
func IsReadOnly(tx repositories.Transaction) bool {
	pgTx, ok := tx.(*Transaction)
	return ok && pgTx.readOnly
}

// GetTransactionFromContext retrieves a transaction from the context if available
func GetTransactionFromContext(ctx context.Context) (repositories.Transaction, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(repositories.Transaction)
	return tx, ok
}

// Executor is an interface that can execute queries (both *sql.DB and *sql.Tx)
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the appropriate executor based on the context
// If a transaction is present in the context, it returns the transaction
// Otherwise, it returns the database connection
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := GetTransactionFromContext(ctx); ok {
		if pgTx, ok := tx.(*Transaction); ok {
			return pgTx.tx
		}
	}
	return db.DB
}
