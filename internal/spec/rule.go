package spec

import (
	"fmt"

	units "github.com/bcicen/go-units"

	"github.com/transformkit/remap/internal/transforms"
	"github.com/transformkit/remap/internal/types"
)

/*
 * Field rule compilation.
 *
 * Rules arrive as raw TOML/JSON fragments (any scalar, list, or table) and
 * are compiled once, before row processing, into the typed Rule tree the
 * engine evaluates. Compilation is where specification errors surface:
 * unknown apply functions, malformed excludeWhen values, and nodes that fit
 * no rule variant are all rejected here rather than mid-run.
 *
 * Rule variants:
 *   - Constant: any non-table fragment, returned verbatim per row
 *   - Field: source field lookup with optional mapping/conversion/apply
 *   - Combined: reduction over sub-rules (sub-rules may be fieldPattern
 *     nodes, expanded against the source header later)
 *
 * References (ref) never reach compilation: the expander substitutes them
 * first, so an unexpanded ref here is a bug upstream and is rejected.
 */

// Rule describes how to derive one target field's value from a source row.
type Rule struct {
	// Constant rules return the literal independent of row content.
	IsConstant bool
	Constant   any

	// Field rule attributes.
	Field            string
	Sensitive        bool
	CaseInsensitive  bool
	IgnoreMissingKey bool
	CanSkip          bool
	Values           map[string]any
	SourceUnit       *Rule  // resolved against the row, usually a constant
	Unit             string // conversion target; set together with SourceUnit
	SourceDate       *Rule  // source date format, usually a constant
	DateFormat       string // target date format; empty means default
	Apply            *Apply
	If               *Condition

	// Combined rule attributes.
	CombinedType string
	Fields       []*Rule
	ExcludeWhen  *ExcludeWhen

	// FieldPattern marks a sub-rule of a combined block that expands to one
	// rule per matching source column once the header is known.
	FieldPattern string
}

// Apply names a registered transformation function and its parameters.
// Parameters prefixed with $ are field references resolved against the row.
type Apply struct {
	Function string
	Params   []any
}

// ExcludeMode selects the filtering policy of a list/set combined rule.
type ExcludeMode int

const (
	// ExcludeNulls drops null values ("none").
	ExcludeNulls ExcludeMode = iota
	// ExcludeFalseLike drops null, false, zero and empty values.
	ExcludeFalseLike
	// ExcludeValues drops exact matches of an explicit value list.
	ExcludeValues
)

// ExcludeWhen is a compiled excludeWhen clause.
type ExcludeWhen struct {
	Mode   ExcludeMode
	Values []any
}

// IsCombined reports whether the rule reduces multiple sub-rules.
func (r *Rule) IsCombined() bool { return r.CombinedType != "" }

// parseRule compiles a raw rule fragment.
func parseRule(v any) (*Rule, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return &Rule{IsConstant: true, Constant: v}, nil
	}
	if _, ok := m["ref"]; ok {
		return nil, fmt.Errorf("%w: unexpanded ref", types.ErrInvalidRule)
	}
	if _, ok := m["combinedType"]; ok {
		return parseCombinedRule(m)
	}
	_, hasField := m["field"]
	_, hasPattern := m["fieldPattern"]
	if hasField || hasPattern {
		return parseFieldRule(m)
	}
	return nil, fmt.Errorf("%w: no field, fieldPattern or combinedType in %v", types.ErrInvalidRule, m)
}

func parseFieldRule(m map[string]any) (*Rule, error) {
	r := &Rule{
		Field:            asString(m["field"]),
		FieldPattern:     asString(m["fieldPattern"]),
		Sensitive:        asBool(m["sensitive"]),
		CaseInsensitive:  asBool(m["caseInsensitive"]),
		IgnoreMissingKey: asBool(m["ignoreMissingKey"]),
		CanSkip:          asBool(m["can_skip"]),
		Unit:             asString(m["unit"]),
		DateFormat:       asString(m["date"]),
	}

	if raw, ok := m["values"]; ok {
		vm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: values must be a table, got %T", types.ErrInvalidRule, raw)
		}
		r.Values = vm
	}

	if raw, ok := m["source_unit"]; ok {
		sub, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("source_unit: %w", err)
		}
		r.SourceUnit = sub
	}
	if raw, ok := m["source_date"]; ok {
		sub, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("source_date: %w", err)
		}
		r.SourceDate = sub
	}
	// Unit and date conversion are mutually exclusive on one rule.
	if r.SourceUnit != nil && r.SourceDate != nil {
		return nil, fmt.Errorf("%w: rule for %q mixes unit and date conversion", types.ErrInvalidRule, r.Field)
	}
	// The conversion target is static, so an unknown unit fails here rather
	// than mid-run.
	if r.Unit != "" {
		if _, err := units.Find(r.Unit); err != nil {
			return nil, fmt.Errorf("%w: unknown target unit %q", types.ErrUnitConversion, r.Unit)
		}
	}

	if raw, ok := m["apply"]; ok {
		am, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: apply must be a table, got %T", types.ErrInvalidRule, raw)
		}
		fn := asString(am["function"])
		if fn == "" {
			return nil, fmt.Errorf("%w: apply missing function name", types.ErrInvalidRule)
		}
		if _, ok := transforms.Lookup(fn); !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownFunction, fn)
		}
		params, _ := am["params"].([]any)
		r.Apply = &Apply{Function: fn, Params: params}
	}

	if raw, ok := m["if"]; ok {
		cond, err := parseCondition(raw, false)
		if err != nil {
			return nil, fmt.Errorf("rule for %q: %w", r.Field, err)
		}
		r.If = cond
	}

	return r, nil
}

func parseCombinedRule(m map[string]any) (*Rule, error) {
	r := &Rule{CombinedType: asString(m["combinedType"])}
	switch r.CombinedType {
	case "any", "all", "min", "max", "firstNonNull", "list", "set":
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownCombinedType, r.CombinedType)
	}

	rawFields, ok := m["fields"].([]any)
	if !ok {
		if ms, ok := m["fields"].([]map[string]any); ok {
			rawFields = make([]any, len(ms))
			for i, e := range ms {
				rawFields[i] = e
			}
		} else {
			return nil, fmt.Errorf("%w: combined rule missing fields list", types.ErrInvalidRule)
		}
	}
	for _, raw := range rawFields {
		sub, err := parseRule(raw)
		if err != nil {
			return nil, err
		}
		r.Fields = append(r.Fields, sub)
	}

	if raw, ok := m["excludeWhen"]; ok {
		ew, err := parseExcludeWhen(raw)
		if err != nil {
			return nil, err
		}
		r.ExcludeWhen = ew
	}
	return r, nil
}

func parseExcludeWhen(raw any) (*ExcludeWhen, error) {
	switch v := raw.(type) {
	case string:
		switch v {
		case "none":
			return &ExcludeWhen{Mode: ExcludeNulls}, nil
		case "false-like":
			return &ExcludeWhen{Mode: ExcludeFalseLike}, nil
		}
	case []any:
		return &ExcludeWhen{Mode: ExcludeValues, Values: v}, nil
	}
	return nil, fmt.Errorf("%w: got %v", types.ErrInvalidExcludeWhen, raw)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
