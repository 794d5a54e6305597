package predicate

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, s Spec) Node {
	t.Helper()
	node, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return node
}

func TestParse_RejectsMalformedSpecs(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{"empty", Spec{}, "empty predicate"},
		{"ambiguous", Spec{Field: "stage", Op: "eq", Value: "NEW", Not: &Spec{Field: "x", Op: "eq", Value: 1}}, "ambiguous predicate"},
		{"missing op", Spec{Field: "stage", Value: "NEW"}, "missing op"},
		{"unknown op", Spec{Field: "stage", Op: "like", Value: "NEW"}, "unknown op"},
		{"eq without value", Spec{Field: "stage", Op: "eq"}, "requires a value"},
		{"eq with values list", Spec{Field: "stage", Op: "eq", Value: "NEW", Values: []any{"NEW"}}, "takes value, not values"},
		{"in without values", Spec{Field: "stage", Op: "in"}, "requires a non-empty values list"},
		{"bad nested child", Spec{All: []Spec{{Field: "stage", Op: "eq", Value: "NEW"}, {}}}, "child 1"},
		{"bad not child", Spec{Not: &Spec{}}, "not:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.spec)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEval_Comparisons(t *testing.T) {
	fields := map[string]any{
		"stage":       "DOCS_PENDING",
		"age_days":    3.5,
		"priority":    2,
		"flag_urgent": true,
	}

	tests := []struct {
		name string
		spec Spec
		want bool
	}{
		{"eq string match", Spec{Field: "stage", Op: "eq", Value: "DOCS_PENDING"}, true},
		{"eq string mismatch", Spec{Field: "stage", Op: "eq", Value: "NEW"}, false},
		{"ne", Spec{Field: "stage", Op: "ne", Value: "NEW"}, true},
		{"eq bool", Spec{Field: "flag_urgent", Op: "eq", Value: true}, true},
		{"eq mixed numeric types", Spec{Field: "priority", Op: "eq", Value: 2.0}, true},
		{"gt true", Spec{Field: "age_days", Op: "gt", Value: 3}, true},
		{"gt false at boundary", Spec{Field: "age_days", Op: "gt", Value: 3.5}, false},
		{"gte at boundary", Spec{Field: "age_days", Op: "gte", Value: 3.5}, true},
		{"lt", Spec{Field: "age_days", Op: "lt", Value: 4}, true},
		{"lte at boundary", Spec{Field: "age_days", Op: "lte", Value: 3.5}, true},
		{"in match", Spec{Field: "stage", Op: "in", Values: []any{"NEW", "DOCS_PENDING"}}, true},
		{"in miss", Spec{Field: "stage", Op: "in", Values: []any{"NEW", "CONTACTED"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.spec).Eval(fields); got != tt.want {
				t.Errorf("Eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_UnknownFieldAndTypeMismatchAreFalse(t *testing.T) {
	fields := map[string]any{"stage": "NEW"}

	// Missing field: false, not an error.
	if mustParse(t, Spec{Field: "nonexistent", Op: "eq", Value: 1}).Eval(fields) {
		t.Error("unknown field should evaluate to false")
	}
	// ne against a missing field is also false: evaluation is conservative.
	if mustParse(t, Spec{Field: "nonexistent", Op: "ne", Value: 1}).Eval(fields) {
		t.Error("ne on unknown field should evaluate to false")
	}
	// Ordering against a non-numeric field: false.
	if mustParse(t, Spec{Field: "stage", Op: "gt", Value: 1}).Eval(fields) {
		t.Error("numeric comparison against a string should evaluate to false")
	}
	// Type-mismatched equality: false.
	if mustParse(t, Spec{Field: "stage", Op: "eq", Value: 7}).Eval(fields) {
		t.Error("string vs number equality should evaluate to false")
	}
}

func TestEval_Combinators(t *testing.T) {
	fields := map[string]any{"stage": "DOCS_PENDING", "age_days": 5.0}

	all := mustParse(t, Spec{All: []Spec{
		{Field: "stage", Op: "eq", Value: "DOCS_PENDING"},
		{Field: "age_days", Op: "gte", Value: 3},
	}})
	if !all.Eval(fields) {
		t.Error("all with two true children should match")
	}

	allMiss := mustParse(t, Spec{All: []Spec{
		{Field: "stage", Op: "eq", Value: "DOCS_PENDING"},
		{Field: "age_days", Op: "lt", Value: 3},
	}})
	if allMiss.Eval(fields) {
		t.Error("all with a false child should not match")
	}

	anyNode := mustParse(t, Spec{Any: []Spec{
		{Field: "stage", Op: "eq", Value: "NEW"},
		{Field: "age_days", Op: "gte", Value: 3},
	}})
	if !anyNode.Eval(fields) {
		t.Error("any with one true child should match")
	}

	not := mustParse(t, Spec{Not: &Spec{Field: "stage", Op: "eq", Value: "NEW"}})
	if !not.Eval(fields) {
		t.Error("not over a false child should match")
	}

	nested := mustParse(t, Spec{All: []Spec{
		{Field: "stage", Op: "in", Values: []any{"DOCS_PENDING", "DOCS_COMPLETE"}},
		{Not: &Spec{Field: "age_days", Op: "lt", Value: 1}},
	}})
	if !nested.Eval(fields) {
		t.Error("nested combinator tree should match")
	}
}
