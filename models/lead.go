package models

// ResultSet holds rows returned by a sanitized read, keyed by column name.
// Columns keeps the select-list order since maps do not.
type ResultSet struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// Len returns the number of rows
func (r *ResultSet) Len() int {
	return len(r.Rows)
}

// RecordIDs collects the integer id column of every row, when selected.
func (r *ResultSet) RecordIDs() []int64 {
	ids := make([]int64, 0, len(r.Rows))
	for _, row := range r.Rows {
		switch v := row["id"].(type) {
		case int64:
			ids = append(ids, v)
		case int32:
			ids = append(ids, int64(v))
		case int:
			ids = append(ids, int64(v))
		}
	}
	return ids
}

// ColumnInfo describes one column of a table as reported by information_schema.
type ColumnInfo struct {
	Name     string `json:"name" db:"column_name"`
	DataType string `json:"type" db:"data_type"`
	Nullable bool   `json:"nullable" db:"is_nullable"`
}

// TableSchema is the visible structure of a table.
type TableSchema struct {
	Table   string       `json:"table_name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnSample pairs a column's type with up to a few non-null sample values.
type ColumnSample struct {
	Name     string        `json:"name"`
	DataType string        `json:"type"`
	Samples  []interface{} `json:"samples"`
}
