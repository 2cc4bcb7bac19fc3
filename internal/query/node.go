package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxNodeDepth  = 32
	maxListValues = 1000
)

// Node is the JSON form of a caller predicate. It has no subquery operator,
// so a caller can never express a membership test against another table.
//
//	{"op": "and", "args": [
//	    {"op": "eq", "column": "status", "value": "new"},
//	    {"op": "in", "column": "source", "values": ["web", "referral"]}
//	]}
type Node struct {
	Op     string `json:"op"`
	Column string `json:"column,omitempty"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Args   []Node `json:"args,omitempty"`
}

// UnmarshalJSON keeps numbers exact and rejects fields the node does not
// define, whichever decoder the node is embedded in.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	return nil
}

var compareOps = map[string]CompareOp{
	"eq":    OpEq,
	"ne":    OpNe,
	"lt":    OpLt,
	"lte":   OpLte,
	"gt":    OpGt,
	"gte":   OpGte,
	"like":  OpLike,
	"ilike": OpILike,
}

// ParseNode decodes a JSON predicate and converts it to an expression.
func ParseNode(data []byte) (Expr, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpr, err)
	}
	return n.Expr()
}

// Expr converts the node tree into an expression tree.
func (n Node) Expr() (Expr, error) {
	return n.toExpr(0)
}

func (n Node) toExpr(depth int) (Expr, error) {
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("%w: predicate nested deeper than %d", ErrInvalidExpr, maxNodeDepth)
	}

	op := strings.ToLower(strings.TrimSpace(n.Op))
	switch op {
	case "and", "or":
		if len(n.Args) < 2 {
			return nil, fmt.Errorf("%w: %s needs at least two arguments", ErrInvalidExpr, op)
		}
		acc, err := n.Args[0].toExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		for _, a := range n.Args[1:] {
			next, err := a.toExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			if op == "and" {
				acc = &And{Left: acc, Right: next}
			} else {
				acc = &Or{Left: acc, Right: next}
			}
		}
		return Paren(acc), nil

	case "not":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("%w: not needs exactly one argument", ErrInvalidExpr)
		}
		inner, err := n.Args[0].toExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil

	case "is_null", "is_not_null":
		if err := n.requireColumn(op); err != nil {
			return nil, err
		}
		return &IsNull{Expr: Col(n.Column), Negated: op == "is_not_null"}, nil

	case "in", "not_in":
		if err := n.requireColumn(op); err != nil {
			return nil, err
		}
		if len(n.Values) == 0 || len(n.Values) > maxListValues {
			return nil, fmt.Errorf("%w: %s needs between 1 and %d values", ErrInvalidExpr, op, maxListValues)
		}
		values := make([]Expr, 0, len(n.Values))
		for _, v := range n.Values {
			sv, ok := scalar(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s values must be scalars", ErrInvalidExpr, op)
			}
			values = append(values, Val(sv))
		}
		return &InList{Expr: Col(n.Column), Values: values, Negated: op == "not_in"}, nil
	}

	if cmp, ok := compareOps[op]; ok {
		if err := n.requireColumn(op); err != nil {
			return nil, err
		}
		v, ok := scalar(n.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a scalar value", ErrInvalidExpr, op)
		}
		return Cmp(n.Column, cmp, v), nil
	}

	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidExpr, n.Op)
}

func (n Node) requireColumn(op string) error {
	if n.Column == "" {
		return fmt.Errorf("%w: %s needs a column", ErrInvalidExpr, op)
	}
	return ValidateIdentifier(n.Column)
}

// scalar reports whether v can be bound as a parameter. Integral JSON
// numbers become int64 so ids above 2^53 survive unchanged.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool, float64, int, int64:
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}
