package spec

import (
	"errors"
	"testing"

	"github.com/transformkit/remap/internal/types"
)

func TestParseRule_Constant(t *testing.T) {
	rule, err := parseRule("fixed")
	if err != nil {
		t.Fatalf("parseRule() error = %v, want nil", err)
	}
	if !rule.IsConstant || rule.Constant != "fixed" {
		t.Errorf("rule = %+v, want constant fixed", rule)
	}
}

func TestParseRule_FieldVariants(t *testing.T) {
	raw := map[string]any{
		"field":           "temp",
		"sensitive":       true,
		"caseInsensitive": true,
		"can_skip":        true,
		"values":          map[string]any{"1": "yes"},
		"apply":           map[string]any{"function": "getFloat"},
	}
	rule, err := parseRule(raw)
	if err != nil {
		t.Fatalf("parseRule() error = %v, want nil", err)
	}
	if rule.Field != "temp" || !rule.Sensitive || !rule.CaseInsensitive || !rule.CanSkip {
		t.Errorf("rule = %+v, attributes not carried over", rule)
	}
	if rule.Apply == nil || rule.Apply.Function != "getFloat" {
		t.Errorf("Apply = %+v, want getFloat", rule.Apply)
	}
}

func TestParseRule_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantErr error
	}{
		{
			name:    "unexpanded ref",
			raw:     map[string]any{"ref": "x"},
			wantErr: types.ErrInvalidRule,
		},
		{
			name:    "no variant",
			raw:     map[string]any{"whatever": 1},
			wantErr: types.ErrInvalidRule,
		},
		{
			name:    "unknown function",
			raw:     map[string]any{"field": "x", "apply": map[string]any{"function": "nope"}},
			wantErr: types.ErrUnknownFunction,
		},
		{
			name: "unit and date on one rule",
			raw: map[string]any{
				"field":       "x",
				"source_unit": map[string]any{"field": "u"},
				"unit":        "kg",
				"source_date": "%Y-%m-%d",
			},
			wantErr: types.ErrInvalidRule,
		},
		{
			name:    "unknown combinedType",
			raw:     map[string]any{"combinedType": "sum", "fields": []any{}},
			wantErr: types.ErrUnknownCombinedType,
		},
		{
			name:    "combined without fields",
			raw:     map[string]any{"combinedType": "any"},
			wantErr: types.ErrInvalidRule,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRule(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parseRule() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRule_Combined(t *testing.T) {
	raw := map[string]any{
		"combinedType": "set",
		"excludeWhen":  "none",
		"fields": []any{
			map[string]any{"field": "a"},
			map[string]any{"fieldPattern": ".*_x"},
		},
	}
	rule, err := parseRule(raw)
	if err != nil {
		t.Fatalf("parseRule() error = %v, want nil", err)
	}
	if !rule.IsCombined() {
		t.Fatalf("IsCombined() = false, want true")
	}
	if len(rule.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(rule.Fields))
	}
	if rule.Fields[1].FieldPattern != ".*_x" {
		t.Errorf("FieldPattern = %v, want .*_x", rule.Fields[1].FieldPattern)
	}
	if rule.ExcludeWhen == nil || rule.ExcludeWhen.Mode != ExcludeNulls {
		t.Errorf("ExcludeWhen = %+v, want ExcludeNulls", rule.ExcludeWhen)
	}
}

func TestParseExcludeWhen(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		wantMode ExcludeMode
		wantErr  bool
	}{
		{name: "none", raw: "none", wantMode: ExcludeNulls},
		{name: "false-like", raw: "false-like", wantMode: ExcludeFalseLike},
		{name: "list", raw: []any{"no", 0}, wantMode: ExcludeValues},
		{name: "bad string", raw: "never", wantErr: true},
		{name: "bad type", raw: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ew, err := parseExcludeWhen(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseExcludeWhen() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ew.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", ew.Mode, tt.wantMode)
			}
		})
	}
}

func TestParseCondition_Operators(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		wantOp CondOp
	}{
		{name: "implicit equality", raw: map[string]any{"sex": "1"}, wantOp: OpEq},
		{name: "explicit equality", raw: map[string]any{"sex": map[string]any{"==": "1"}}, wantOp: OpEq},
		{name: "single equals", raw: map[string]any{"sex": map[string]any{"=": "1"}}, wantOp: OpEq},
		{name: "not equal", raw: map[string]any{"sex": map[string]any{"!=": ""}}, wantOp: OpNe},
		{name: "less than", raw: map[string]any{"age": map[string]any{"<": 18}}, wantOp: OpLt},
		{name: "at least", raw: map[string]any{"age": map[string]any{">=": 18}}, wantOp: OpGe},
		{name: "regex", raw: map[string]any{"name": map[string]any{"=~": "^ab"}}, wantOp: OpMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := parseCondition(tt.raw, false)
			if err != nil {
				t.Fatalf("parseCondition() error = %v, want nil", err)
			}
			if cond.Op != tt.wantOp {
				t.Errorf("Op = %v, want %v", cond.Op, tt.wantOp)
			}
		})
	}
}

func TestParseCondition_Composite(t *testing.T) {
	raw := map[string]any{
		"any": []any{
			map[string]any{"a": 1},
			map[string]any{"not": map[string]any{"b": 2}},
		},
	}
	cond, err := parseCondition(raw, false)
	if err != nil {
		t.Fatalf("parseCondition() error = %v, want nil", err)
	}
	if len(cond.Any) != 2 {
		t.Fatalf("len(Any) = %d, want 2", len(cond.Any))
	}
	if cond.Any[1].Not == nil {
		t.Errorf("nested not lost")
	}
}

func TestParseCondition_CanSkipInheritance(t *testing.T) {
	raw := map[string]any{
		"can_skip": true,
		"all": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2},
		},
	}
	cond, err := parseCondition(raw, false)
	if err != nil {
		t.Fatalf("parseCondition() error = %v, want nil", err)
	}
	for i, sub := range cond.All {
		if !sub.CanSkip {
			t.Errorf("All[%d].CanSkip = false, want true (inherited)", i)
		}
	}
}

func TestParseCondition_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{name: "not a table", raw: "x"},
		{name: "two keys", raw: map[string]any{"a": 1, "b": 2}},
		{name: "bad operator", raw: map[string]any{"a": map[string]any{"~=": 1}}},
		{name: "regex non-string", raw: map[string]any{"a": map[string]any{"=~": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCondition(tt.raw, false)
			if !errors.Is(err, types.ErrInvalidCondition) {
				t.Errorf("parseCondition() error = %v, want ErrInvalidCondition", err)
			}
		})
	}
}
