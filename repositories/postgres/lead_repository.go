package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/leads-guard/internal/query"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

// LeadRepository implements the repositories.LeadRepository interface.
// It is the only component that runs statements against lead data.
type LeadRepository struct {
	db        *DB
	txManager repositories.TransactionManager
	logger    *zap.Logger
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *DB, txManager repositories.TransactionManager, logger *zap.Logger) repositories.LeadRepository {
	return &LeadRepository{
		db:        db,
		txManager: txManager,
		logger:    logger,
	}
}

// Select serializes plan and runs it in a read-only transaction
func (r *LeadRepository) Select(ctx context.Context, plan query.Plan) (*models.ResultSet, error) {
	stmt, args, err := query.Build(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}

	var result *models.ResultSet
	err = r.txManager.InTransaction(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, _ repositories.Transaction) error {
		rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("failed to execute select: %w", err)
		}
		defer rows.Close()

		result, err = scanResultSet(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("select executed",
		zap.String("table", plan.Table),
		zap.Int("rows", result.Len()))
	return result, nil
}

func scanResultSet(rows *sql.Rows) (*models.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &models.ResultSet{Columns: cols, Rows: []map[string]interface{}{}}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			// numeric and bytea arrive as raw bytes
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rs, nil
}
