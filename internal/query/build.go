package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrInvalidExpr       = errors.New("invalid expression")
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLen is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLen = 63

// ValidateIdentifier checks that name is a safe SQL identifier.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidIdentifier)
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidIdentifier, name, maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: %q must match [a-zA-Z_][a-zA-Z0-9_]*", ErrInvalidIdentifier, name)
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Build serializes a plan to PostgreSQL. Values are returned as $n arguments
// and identifiers are validated and quoted.
func Build(p Plan) (string, []any, error) {
	f := &formatter{}

	if err := ValidateIdentifier(p.Table); err != nil {
		return "", nil, err
	}
	if !p.AllColumns && len(p.Columns) == 0 {
		return "", nil, fmt.Errorf("%w: no columns selected", ErrInvalidPlan)
	}
	if p.Limit < 0 {
		return "", nil, fmt.Errorf("%w: negative limit", ErrInvalidPlan)
	}

	f.write("SELECT ")
	if len(p.Columns) == 0 {
		f.write("*")
	}
	for i, c := range p.Columns {
		if i > 0 {
			f.write(", ")
		}
		f.ident(c)
	}

	f.write(" FROM ")
	f.ident(p.Table)

	if p.Where != nil {
		f.write(" WHERE ")
		f.expr(p.Where)
	}

	if len(p.OrderBy) > 0 {
		f.write(" ORDER BY ")
		for i, o := range p.OrderBy {
			if i > 0 {
				f.write(", ")
			}
			f.ident(o.Column)
			if o.Desc {
				f.write(" DESC")
			} else {
				f.write(" ASC")
			}
		}
	}

	if p.Limit > 0 {
		f.write(" LIMIT " + strconv.Itoa(p.Limit))
	}

	if f.err != nil {
		return "", nil, f.err
	}
	return f.buf.String(), f.args, nil
}

// Describe renders e for humans with values inlined. It is never executed.
func Describe(e Expr) string {
	if e == nil {
		return ""
	}
	f := &formatter{inline: true}
	f.expr(e)
	return f.buf.String()
}

type formatter struct {
	buf    strings.Builder
	args   []any
	inline bool
	err    error
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *formatter) ident(name string) {
	if f.inline {
		f.write(name)
		return
	}
	if err := ValidateIdentifier(name); err != nil {
		f.fail(err)
		return
	}
	f.write(QuoteIdentifier(name))
}

func (f *formatter) expr(e Expr) {
	switch x := e.(type) {
	case *Column:
		f.ident(x.Name)
	case *Param:
		f.param(x.Value)
	case *Compare:
		if !x.Op.IsValid() {
			f.fail(fmt.Errorf("%w: unsupported operator %q", ErrInvalidExpr, x.Op))
			return
		}
		f.operand(x.Left)
		f.write(" " + string(x.Op) + " ")
		f.operand(x.Right)
	case *And:
		f.conjunct(x.Left)
		f.write(" AND ")
		f.conjunct(x.Right)
	case *Or:
		f.disjunct(x.Left)
		f.write(" OR ")
		f.disjunct(x.Right)
	case *Not:
		f.write("NOT ")
		f.wrapped(x.Expr)
	case *Group:
		f.write("(")
		f.expr(x.Expr)
		f.write(")")
	case *IsNull:
		f.operand(x.Expr)
		if x.Negated {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}
	case *InList:
		if len(x.Values) == 0 {
			f.fail(fmt.Errorf("%w: empty IN list", ErrInvalidExpr))
			return
		}
		f.operand(x.Expr)
		if x.Negated {
			f.write(" NOT")
		}
		f.write(" IN (")
		for i, v := range x.Values {
			if i > 0 {
				f.write(", ")
			}
			f.operand(v)
		}
		f.write(")")
	case *InSubquery:
		f.operand(x.Expr)
		f.write(" IN (SELECT ")
		f.ident(x.Subquery.Column)
		f.write(" FROM ")
		f.ident(x.Subquery.Table)
		if x.Subquery.Where != nil {
			f.write(" WHERE ")
			f.expr(x.Subquery.Where)
		}
		f.write(")")
	case nil:
		f.fail(fmt.Errorf("%w: missing operand", ErrInvalidExpr))
	default:
		f.fail(fmt.Errorf("%w: unsupported node %T", ErrInvalidExpr, e))
	}
}

// conjunct writes an AND operand. An unparenthesized OR under AND would
// change precedence, so it is always wrapped.
func (f *formatter) conjunct(e Expr) {
	if _, ok := e.(*Or); ok {
		f.write("(")
		f.expr(e)
		f.write(")")
		return
	}
	f.expr(e)
}

// disjunct writes an OR operand. Nested ORs need no parentheses.
func (f *formatter) disjunct(e Expr) {
	if _, ok := e.(*And); ok {
		f.write("(")
		f.expr(e)
		f.write(")")
		return
	}
	f.expr(e)
}

// operand writes a comparison operand, wrapping boolean connectives.
func (f *formatter) operand(e Expr) {
	switch e.(type) {
	case *And, *Or, *Not:
		f.write("(")
		f.expr(e)
		f.write(")")
	default:
		f.expr(e)
	}
}

func (f *formatter) wrapped(e Expr) {
	switch e.(type) {
	case *Column, *Param, *Group:
		f.expr(e)
	default:
		f.write("(")
		f.expr(e)
		f.write(")")
	}
}

func (f *formatter) param(v any) {
	if !f.inline {
		f.args = append(f.args, v)
		f.write("$" + strconv.Itoa(len(f.args)))
		return
	}
	f.write(literal(v))
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + x.UTC().Format(time.RFC3339) + "'"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
