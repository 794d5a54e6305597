// Package predicate contains the typed condition tree evaluated by the
// automation rule engine. Specs are parsed and validated once at rule-load
// time; evaluation is total and never returns an error.
package predicate

import (
	"fmt"
	"time"
)

// Op is a comparison operator in a leaf predicate.
type Op string

// Supported comparison operators.
const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Node is a validated predicate tree node. Evaluation is total: an unknown
// field or a type mismatch evaluates to false, never an error.
type Node interface {
	Eval(fields map[string]any) bool
}

// allNode matches when every child matches. An empty allNode matches.
type allNode struct {
	children []Node
}

func (n allNode) Eval(fields map[string]any) bool {
	for _, c := range n.children {
		if !c.Eval(fields) {
			return false
		}
	}
	return true
}

// anyNode matches when at least one child matches.
type anyNode struct {
	children []Node
}

func (n anyNode) Eval(fields map[string]any) bool {
	for _, c := range n.children {
		if c.Eval(fields) {
			return true
		}
	}
	return false
}

// notNode inverts its child.
type notNode struct {
	child Node
}

func (n notNode) Eval(fields map[string]any) bool {
	return !n.child.Eval(fields)
}

// cmpNode is a leaf comparison against a single field.
type cmpNode struct {
	field string
	op    Op
	value any
}

func (n cmpNode) Eval(fields map[string]any) bool {
	actual, ok := fields[n.field]
	if !ok {
		return false
	}
	switch n.op {
	case OpEq:
		return valuesEqual(actual, n.value)
	case OpNe:
		return !valuesEqual(actual, n.value)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(actual)
		b, bok := toFloat(n.value)
		if !aok || !bok {
			return false
		}
		switch n.op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

// inNode is a leaf set-membership test against a single field.
type inNode struct {
	field  string
	values []any
}

func (n inNode) Eval(fields map[string]any) bool {
	actual, ok := fields[n.field]
	if !ok {
		return false
	}
	for _, v := range n.values {
		if valuesEqual(actual, v) {
			return true
		}
	}
	return false
}

// valuesEqual compares two values, treating all numeric types as comparable
// with each other. Non-comparable mixes are unequal, not an error.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	// Stringer-ish domain values (stage, party) arrive as strings via the
	// snapshot map, so anything else is a mismatch.
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case time.Duration:
		return float64(n), true
	}
	return 0, false
}

// Spec is the configuration-facing shape of a predicate, as it appears in the
// YAML rule pack. Exactly one of All/Any/Not/Field must be set.
type Spec struct {
	All    []Spec `yaml:"all,omitempty" json:"all,omitempty"`
	Any    []Spec `yaml:"any,omitempty" json:"any,omitempty"`
	Not    *Spec  `yaml:"not,omitempty" json:"not,omitempty"`
	Field  string `yaml:"field,omitempty" json:"field,omitempty"`
	Op     string `yaml:"op,omitempty" json:"op,omitempty"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
	Values []any  `yaml:"values,omitempty" json:"values,omitempty"`
}

// Parse validates a spec and builds the evaluable tree. Malformed specs are
// rejected here so they never reach the evaluation path.
func Parse(s Spec) (Node, error) {
	set := 0
	if len(s.All) > 0 {
		set++
	}
	if len(s.Any) > 0 {
		set++
	}
	if s.Not != nil {
		set++
	}
	if s.Field != "" {
		set++
	}
	if set == 0 {
		return nil, fmt.Errorf("empty predicate: one of all/any/not/field required")
	}
	if set > 1 {
		return nil, fmt.Errorf("ambiguous predicate: only one of all/any/not/field may be set")
	}

	switch {
	case len(s.All) > 0:
		children, err := parseChildren(s.All)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		return allNode{children: children}, nil
	case len(s.Any) > 0:
		children, err := parseChildren(s.Any)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		return anyNode{children: children}, nil
	case s.Not != nil:
		child, err := Parse(*s.Not)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return notNode{child: child}, nil
	}

	op := Op(s.Op)
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		if s.Value == nil {
			return nil, fmt.Errorf("field %s: op %s requires a value", s.Field, op)
		}
		if len(s.Values) > 0 {
			return nil, fmt.Errorf("field %s: op %s takes value, not values", s.Field, op)
		}
		return cmpNode{field: s.Field, op: op, value: s.Value}, nil
	case OpIn:
		if len(s.Values) == 0 {
			return nil, fmt.Errorf("field %s: op in requires a non-empty values list", s.Field)
		}
		return inNode{field: s.Field, values: s.Values}, nil
	case "":
		return nil, fmt.Errorf("field %s: missing op", s.Field)
	default:
		return nil, fmt.Errorf("field %s: unknown op %q", s.Field, s.Op)
	}
}

func parseChildren(specs []Spec) ([]Node, error) {
	children := make([]Node, 0, len(specs))
	for i, c := range specs {
		node, err := Parse(c)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, node)
	}
	return children, nil
}
