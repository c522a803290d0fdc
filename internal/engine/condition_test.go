package engine

import (
	"regexp"
	"testing"

	"github.com/transformkit/remap/internal/spec"
	"github.com/transformkit/remap/internal/types"
)

func leaf(field string, op spec.CondOp, value any) *spec.Condition {
	return &spec.Condition{Field: field, Op: op, Value: value}
}

func TestEvalCondition_Leaves(t *testing.T) {
	row := types.Row{"age": "35", "sex": "1", "note": ""}

	tests := []struct {
		name string
		cond *spec.Condition
		want bool
	}{
		{name: "string equality", cond: leaf("sex", spec.OpEq, "1"), want: true},
		{name: "string inequality", cond: leaf("sex", spec.OpNe, "2"), want: true},
		{name: "numeric equality over string value", cond: leaf("age", spec.OpEq, 35), want: true},
		{name: "numeric less-than", cond: leaf("age", spec.OpLt, 18), want: false},
		{name: "numeric at-least", cond: leaf("age", spec.OpGe, 18), want: true},
		{name: "bool truthiness", cond: leaf("sex", spec.OpEq, true), want: true},
		{name: "empty string is not nonexistent", cond: leaf("note", spec.OpEq, ""), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalCondition(tt.cond, row); got != tt.want {
				t.Errorf("EvalCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalCondition_MissingField(t *testing.T) {
	row := types.Row{"present": "1"}

	tests := []struct {
		name string
		cond *spec.Condition
		want bool
	}{
		{name: "equality against value fails", cond: leaf("absent", spec.OpEq, "1"), want: false},
		{name: "inequality against value holds", cond: leaf("absent", spec.OpNe, "1"), want: true},
		{name: "equality against null holds", cond: leaf("absent", spec.OpEq, nil), want: true},
		{name: "ordering fails", cond: leaf("absent", spec.OpGt, 1), want: false},
		{
			name: "can_skip short-circuits to false",
			cond: &spec.Condition{Field: "absent", Op: spec.OpNe, Value: "1", CanSkip: true},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalCondition(tt.cond, row); got != tt.want {
				t.Errorf("EvalCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalCondition_Composite(t *testing.T) {
	row := types.Row{"a": "1", "b": "2"}

	anyCond := &spec.Condition{Any: []*spec.Condition{
		leaf("a", spec.OpEq, "9"),
		leaf("b", spec.OpEq, "2"),
	}}
	if !EvalCondition(anyCond, row) {
		t.Errorf("any = false, want true")
	}

	allCond := &spec.Condition{All: []*spec.Condition{
		leaf("a", spec.OpEq, "1"),
		leaf("b", spec.OpEq, "9"),
	}}
	if EvalCondition(allCond, row) {
		t.Errorf("all = true, want false")
	}

	notCond := &spec.Condition{Not: leaf("a", spec.OpEq, "9")}
	if !EvalCondition(notCond, row) {
		t.Errorf("not = false, want true")
	}
}

func TestEvalCondition_Match(t *testing.T) {
	row := types.Row{"site": "OXFORD-1", "empty": ""}

	cond := &spec.Condition{
		Field:   "site",
		Op:      spec.OpMatch,
		Pattern: regexp.MustCompile(`(?i)^(?:oxford)`),
	}
	if !EvalCondition(cond, row) {
		t.Errorf("match = false, want true (case-insensitive prefix)")
	}

	cond.Field = "missing"
	if EvalCondition(cond, row) {
		t.Errorf("match on missing field = true, want false")
	}
}
