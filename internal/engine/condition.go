package engine

import (
	"github.com/transformkit/remap/internal/spec"
	"github.com/transformkit/remap/internal/types"
)

/*
 * Condition evaluation.
 *
 * A missing source field is treated as null rather than an error: conditions
 * gate optional behavior, and datasets routinely omit columns other sites
 * provide. Null compares equal only to null, unequal to everything else, and
 * loses every ordering or pattern comparison. Leaves marked can_skip go
 * further and evaluate to false outright when the field is absent.
 */

// EvalCondition evaluates a compiled condition against a source row.
func EvalCondition(c *spec.Condition, row types.Row) bool {
	switch {
	case c.Not != nil:
		return !EvalCondition(c.Not, row)
	case c.Any != nil:
		for _, sub := range c.Any {
			if EvalCondition(sub, row) {
				return true
			}
		}
		return false
	case c.All != nil:
		for _, sub := range c.All {
			if !EvalCondition(sub, row) {
				return false
			}
		}
		return true
	}

	raw, present := row[c.Field]
	if !present {
		if c.CanSkip {
			return false
		}
		raw = nil
	}
	return compare(raw, c)
}

func compare(raw any, c *spec.Condition) bool {
	if c.Op == spec.OpMatch {
		if isNull(raw) {
			return false
		}
		return c.Pattern.MatchString(stringify(raw))
	}

	// Null on either side short-circuits: equality holds only for null
	// against null, inequality for null against anything else.
	if c.Value == nil {
		switch c.Op {
		case spec.OpEq:
			return raw == nil
		case spec.OpNe:
			return raw != nil
		}
		return false
	}
	if raw == nil {
		switch c.Op {
		case spec.OpEq:
			return false
		case spec.OpNe:
			return true
		}
		return false
	}

	// Comparisons adopt the type of the rule-side value: numbers compare
	// numerically, booleans by truthiness, everything else as strings.
	if want, ok := toFloat(c.Value); ok && !isString(c.Value) {
		got, ok := toFloat(raw)
		if !ok {
			return c.Op == spec.OpNe
		}
		return ordered(got, want, c.Op)
	}
	if want, ok := c.Value.(bool); ok {
		switch c.Op {
		case spec.OpEq:
			return Truthy(raw) == want
		case spec.OpNe:
			return Truthy(raw) != want
		}
		return false
	}
	return ordered(stringify(raw), stringify(c.Value), c.Op)
}

func ordered[T float64 | string](got, want T, op spec.CondOp) bool {
	switch op {
	case spec.OpEq:
		return got == want
	case spec.OpNe:
		return got != want
	case spec.OpLt:
		return got < want
	case spec.OpGt:
		return got > want
	case spec.OpLe:
		return got <= want
	case spec.OpGe:
		return got >= want
	}
	return false
}
