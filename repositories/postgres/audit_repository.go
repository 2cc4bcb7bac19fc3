package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

const (
	defaultAuditListLimit = 50
	maxAuditListLimit     = 500
)

const auditColumns = `id, user_id, username, role, action, table_name, columns, predicate,
		       changes, outcome, reason, record_ids, query_text, request_id, timestamp`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit record
func (r *AuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	columns := record.Columns
	if columns == nil {
		columns = []string{}
	}
	recordIDs := record.RecordIDs
	if recordIDs == nil {
		recordIDs = []int64{}
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Username,
		record.Role,
		record.Action,
		record.TableName,
		pq.Array(columns),
		record.Predicate,
		record.Changes,
		record.Outcome,
		record.Reason,
		pq.Array(recordIDs),
		record.QueryText,
		record.RequestID,
		record.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	r.logger.Debug("audit record inserted",
		zap.String("id", record.ID.String()),
		zap.String("action", string(record.Action)),
		zap.String("outcome", string(record.Outcome)))
	return nil
}

// GetByID retrieves an audit record by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	record := &models.AuditRecord{}

	err := executor.QueryRowContext(ctx, query, id).Scan(auditScanTargets(record)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit record %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}

	return record, nil
}

// List retrieves audit records matching filter, newest first
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, cond+" = $"+strconv.Itoa(len(args)))
	}
	if filter.UserID != 0 {
		add("user_id", filter.UserID)
	}
	if filter.Outcome != "" {
		add("outcome", filter.Outcome)
	}
	if filter.Action != "" {
		add("action", filter.Action)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	if limit > maxAuditListLimit {
		limit = maxAuditListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM " + models.AuditTable)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record := &models.AuditRecord{}
		if err := rows.Scan(auditScanTargets(record)...); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func auditScanTargets(record *models.AuditRecord) []interface{} {
	return []interface{}{
		&record.ID,
		&record.UserID,
		&record.Username,
		&record.Role,
		&record.Action,
		&record.TableName,
		pq.Array(&record.Columns),
		&record.Predicate,
		&record.Changes,
		&record.Outcome,
		&record.Reason,
		pq.Array(&record.RecordIDs),
		&record.QueryText,
		&record.RequestID,
		&record.Timestamp,
	}
}
