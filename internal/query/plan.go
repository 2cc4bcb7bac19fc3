package query

// Order is one ORDER BY term.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Plan is a single-table read. It is never executed unless it has been
// produced by the rewriter for the requesting identity.
type Plan struct {
	Table      string
	Columns    []string
	AllColumns bool
	Where      Expr
	OrderBy    []Order
	Limit      int
}

// OrderColumns returns the columns referenced by the ordering.
func (p Plan) OrderColumns() []string {
	cols := make([]string, 0, len(p.OrderBy))
	for _, o := range p.OrderBy {
		cols = append(cols, o.Column)
	}
	return cols
}
