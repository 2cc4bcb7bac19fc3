package postgres

import (
	"context"
	"fmt"

	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

// SchemaRepository implements the repositories.SchemaRepository interface
type SchemaRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSchemaRepository creates a new schema repository
func NewSchemaRepository(db *DB, logger *zap.Logger) repositories.SchemaRepository {
	return &SchemaRepository{
		db:     db,
		logger: logger,
	}
}

// ColumnsOf returns the column names of a public table in ordinal order
func (r *SchemaRepository) ColumnsOf(ctx context.Context, table string) ([]string, error) {
	cols, err := r.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// DescribeTable returns name, type and nullability of every column
func (r *SchemaRepository) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var cols []models.ColumnInfo
	for rows.Next() {
		var c models.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, repositories.ErrNotFound)
	}

	r.logger.Debug("table described", zap.String("table", table), zap.Int("columns", len(cols)))
	return cols, nil
}
