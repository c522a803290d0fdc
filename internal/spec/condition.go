package spec

import (
	"fmt"
	"regexp"

	"github.com/transformkit/remap/internal/types"
)

// CondOp is a comparison operator inside a condition leaf.
type CondOp string

const (
	OpEq    CondOp = "=="
	OpNe    CondOp = "!="
	OpLt    CondOp = "<"
	OpGt    CondOp = ">"
	OpLe    CondOp = "<="
	OpGe    CondOp = ">="
	OpMatch CondOp = "=~"
)

// Condition is a compiled boolean predicate tree evaluated against a source
// row. Exactly one of Any, All, Not or Field is set.
type Condition struct {
	Any []*Condition
	All []*Condition
	Not *Condition

	Field string
	Op    CondOp
	Value any

	// Pattern is the compiled regex for OpMatch leaves, anchored at the
	// start of the value and case-insensitive.
	Pattern *regexp.Regexp

	// CanSkip makes the leaf evaluate to false when the field is absent,
	// instead of the null-comparison semantics.
	CanSkip bool
}

// parseCondition compiles a raw condition fragment. canSkip is inherited
// from an enclosing node carrying can_skip and propagates to every leaf.
func parseCondition(raw any, canSkip bool) (*Condition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a table, got %T", types.ErrInvalidCondition, raw)
	}

	if asBool(m["can_skip"]) {
		canSkip = true
	}

	var key string
	n := 0
	for k := range m {
		if k == "can_skip" {
			continue
		}
		key = k
		n++
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: expected one key, got %v", types.ErrInvalidCondition, m)
	}

	switch key {
	case "not":
		sub, err := parseCondition(m[key], canSkip)
		if err != nil {
			return nil, err
		}
		return &Condition{Not: sub}, nil
	case "any", "all":
		items, ok := m[key].([]any)
		if !ok {
			if ms, ok := m[key].([]map[string]any); ok {
				items = make([]any, len(ms))
				for i, e := range ms {
					items[i] = e
				}
			} else {
				return nil, fmt.Errorf("%w: %s expects a list", types.ErrInvalidCondition, key)
			}
		}
		subs := make([]*Condition, 0, len(items))
		for _, item := range items {
			sub, err := parseCondition(item, canSkip)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if key == "any" {
			return &Condition{Any: subs}, nil
		}
		return &Condition{All: subs}, nil
	}

	leaf := &Condition{Field: key, Op: OpEq, CanSkip: canSkip}
	if cmp, ok := m[key].(map[string]any); ok {
		if len(cmp) != 1 {
			return nil, fmt.Errorf("%w: comparison for %q expects one operator", types.ErrInvalidCondition, key)
		}
		for op, v := range cmp {
			switch op {
			case "=", "==":
				leaf.Op = OpEq
			case "!=":
				leaf.Op = OpNe
			case "<":
				leaf.Op = OpLt
			case ">":
				leaf.Op = OpGt
			case "<=":
				leaf.Op = OpLe
			case ">=":
				leaf.Op = OpGe
			case "=~":
				leaf.Op = OpMatch
			default:
				return nil, fmt.Errorf("%w: unrecognized operator %q", types.ErrInvalidCondition, op)
			}
			leaf.Value = v
		}
	} else {
		leaf.Value = m[key]
	}

	if leaf.Op == OpMatch {
		pat, ok := leaf.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: =~ expects a string pattern", types.ErrInvalidCondition)
		}
		re, err := regexp.Compile(`(?i)^(?:` + pat + `)`)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", types.ErrInvalidCondition, pat, err)
		}
		leaf.Pattern = re
	}
	return leaf, nil
}
