package engine

import (
	"fmt"

	"github.com/transformkit/remap/internal/spec"
	"github.com/transformkit/remap/internal/types"
)

/*
 * Combined-field aggregation.
 *
 * Sub-rule values resolve in declared order and list-valued results flatten
 * into the stream before reduction, so an apply function returning a list
 * contributes its elements, not the list itself. The excludeWhen filter runs
 * before reduction for the list and set types; any/all/min/max/firstNonNull
 * carry their own null handling.
 */

// Aggregate reduces a combined rule's sub-rule values to a single value.
func Aggregate(r *spec.Rule, row types.Row, ctx *Context) (any, error) {
	values := make([]any, 0, len(r.Fields))
	for _, sub := range r.Fields {
		if sub.FieldPattern != "" {
			return nil, fmt.Errorf("%w: fieldPattern %q not bound to a header", types.ErrInvalidRule, sub.FieldPattern)
		}
		v, err := Resolve(sub, row, ctx)
		if err != nil {
			return nil, err
		}
		if list, ok := v.([]any); ok {
			values = append(values, list...)
		} else {
			values = append(values, v)
		}
	}

	switch r.CombinedType {
	case "any":
		for _, v := range values {
			if Truthy(v) {
				return true, nil
			}
		}
		return false, nil
	case "all":
		for _, v := range values {
			if !Truthy(v) {
				return false, nil
			}
		}
		return true, nil
	case "firstNonNull":
		for _, v := range values {
			if !isNull(v) {
				return v, nil
			}
		}
		return nil, nil
	case "min", "max":
		return extremum(values, r.CombinedType == "max"), nil
	case "list":
		return exclude(values, r.ExcludeWhen), nil
	case "set":
		return dedupe(exclude(values, r.ExcludeWhen)), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownCombinedType, r.CombinedType)
}

// extremum computes min or max over the non-null values: numerically when
// every value parses as a number, lexicographically otherwise.
func extremum(values []any, max bool) any {
	var present []any
	for _, v := range values {
		if !isNull(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil
	}

	numeric := true
	floats := make([]float64, len(present))
	for i, v := range present {
		f, ok := toFloat(v)
		if !ok {
			numeric = false
			break
		}
		floats[i] = f
	}

	best := 0
	for i := 1; i < len(present); i++ {
		var greater bool
		if numeric {
			greater = floats[i] > floats[best]
		} else {
			greater = stringify(present[i]) > stringify(present[best])
		}
		if greater == max {
			best = i
		}
	}
	return present[best]
}

func exclude(values []any, ew *spec.ExcludeWhen) []any {
	if ew == nil {
		return values
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		if !excluded(v, ew) {
			out = append(out, v)
		}
	}
	return out
}

func excluded(v any, ew *spec.ExcludeWhen) bool {
	switch ew.Mode {
	case spec.ExcludeNulls:
		return isNull(v)
	case spec.ExcludeFalseLike:
		return !Truthy(v)
	case spec.ExcludeValues:
		for _, x := range ew.Values {
			if stringify(v) == stringify(x) && isString(v) == isString(x) {
				return true
			}
		}
	}
	return false
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(values []any) []any {
	seen := map[string]bool{}
	out := make([]any, 0, len(values))
	for _, v := range values {
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
