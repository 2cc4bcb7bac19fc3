package query

import "reflect"

// Walk calls fn for e and every sub-expression of e, depth first. Subquery
// predicates are not visited: they range over a different table.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *Compare:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *And:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Or:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Not:
		Walk(x.Expr, fn)
	case *Group:
		Walk(x.Expr, fn)
	case *IsNull:
		Walk(x.Expr, fn)
	case *InList:
		Walk(x.Expr, fn)
		for _, v := range x.Values {
			Walk(v, fn)
		}
	case *InSubquery:
		Walk(x.Expr, fn)
	}
}

// ReferencedColumns returns the distinct column names e references on the
// plan's table, in first-seen order.
func ReferencedColumns(e Expr) []string {
	var cols []string
	seen := make(map[string]struct{})
	Walk(e, func(n Expr) {
		c, ok := n.(*Column)
		if !ok {
			return
		}
		if _, dup := seen[c.Name]; dup {
			return
		}
		seen[c.Name] = struct{}{}
		cols = append(cols, c.Name)
	})
	return cols
}

// Conjuncts flattens the top-level AND chain of e, looking through groups.
func Conjuncts(e Expr) []Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *And:
		return append(Conjuncts(x.Left), Conjuncts(x.Right)...)
	case *Group:
		if _, ok := x.Expr.(*And); ok {
			return Conjuncts(x.Expr)
		}
	}
	return []Expr{e}
}

// Unwrap strips any number of enclosing groups.
func Unwrap(e Expr) Expr {
	for {
		g, ok := e.(*Group)
		if !ok {
			return e
		}
		e = g.Expr
	}
}

// Equal reports whether two expression trees are structurally identical.
func Equal(a, b Expr) bool {
	return reflect.DeepEqual(a, b)
}
