// Package query defines the structured read plan the agent produces and the
// only serializer that turns a plan into SQL.
package query

// Expr is a boolean or value expression in a predicate tree.
type Expr interface {
	exprNode()
}

// Column references a column of the plan's table.
type Column struct {
	Name string
}

// Param is a bound value. It is always sent as a placeholder argument.
type Param struct {
	Value any
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq    CompareOp = "="
	OpNe    CompareOp = "<>"
	OpLt    CompareOp = "<"
	OpLte   CompareOp = "<="
	OpGt    CompareOp = ">"
	OpGte   CompareOp = ">="
	OpLike  CompareOp = "LIKE"
	OpILike CompareOp = "ILIKE"
)

// IsValid reports whether op is a supported comparison.
func (op CompareOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpLike, OpILike:
		return true
	}
	return false
}

// Compare is Left Op Right.
type Compare struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

// And is the conjunction of two expressions.
type And struct {
	Left  Expr
	Right Expr
}

// Or is the disjunction of two expressions.
type Or struct {
	Left  Expr
	Right Expr
}

// Not negates an expression.
type Not struct {
	Expr Expr
}

// Group is an explicitly parenthesized sub-expression.
type Group struct {
	Expr Expr
}

// IsNull is Expr IS [NOT] NULL.
type IsNull struct {
	Expr    Expr
	Negated bool
}

// InList is Expr [NOT] IN (Values...).
type InList struct {
	Expr    Expr
	Values  []Expr
	Negated bool
}

// InSubquery is Expr IN (SELECT Column FROM Table WHERE Where).
type InSubquery struct {
	Expr     Expr
	Subquery Subquery
}

// Subquery is a single-column select used by InSubquery.
type Subquery struct {
	Column string
	Table  string
	Where  Expr
}

func (*Column) exprNode()     {}
func (*Param) exprNode()      {}
func (*Compare) exprNode()    {}
func (*And) exprNode()        {}
func (*Or) exprNode()         {}
func (*Not) exprNode()        {}
func (*Group) exprNode()      {}
func (*IsNull) exprNode()     {}
func (*InList) exprNode()     {}
func (*InSubquery) exprNode() {}

// Col returns a column reference.
func Col(name string) *Column {
	return &Column{Name: name}
}

// Val returns a bound value.
func Val(v any) *Param {
	return &Param{Value: v}
}

// Eq returns column = value.
func Eq(column string, value any) *Compare {
	return &Compare{Left: Col(column), Op: OpEq, Right: Val(value)}
}

// Cmp returns column op value.
func Cmp(column string, op CompareOp, value any) *Compare {
	return &Compare{Left: Col(column), Op: op, Right: Val(value)}
}

// Paren wraps e in a Group.
func Paren(e Expr) *Group {
	return &Group{Expr: e}
}
