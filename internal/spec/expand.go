package spec

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tiendc/go-deepcopy"

	"github.com/transformkit/remap/internal/types"
)

/*
 * Rule-tree expansion.
 *
 * Two passes run before rule compilation:
 *
 *   1. ExpandRefs substitutes every {ref = name} node with a deep copy of
 *      the named definition. Deep copies matter: a definition used twice
 *      must not alias, since loop expansion mutates substituted subtrees.
 *      Local keys on the referencing node override the definition's keys.
 *      Cycles are detected with a per-path active set and rejected.
 *
 *   2. ExpandFor expands blocks carrying a `for` key into one clone per
 *      element of the Cartesian product of the declared loop variables,
 *      substituting {var} placeholders in keys, string values and condition
 *      keys. Numeric ranges are inclusive of both endpoints.
 *
 * Both passes are idempotent: an already-expanded tree has no ref or for
 * nodes left, so a second run returns it unchanged.
 *
 * fieldPattern sub-rules are NOT expanded here: they need the source header,
 * which is only known once the dataset is opened. The engine binds them per
 * run.
 */

// templateToken matches a {var} placeholder in field names and literals.
var templateToken = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandRefs substitutes every ref node in fragment with a deep copy of the
// corresponding definition. Definitions may themselves contain refs.
func ExpandRefs(fragment any, defs map[string]any) (any, error) {
	return expandRefs(fragment, defs, map[string]bool{})
}

func expandRefs(fragment any, defs map[string]any, active map[string]bool) (any, error) {
	switch node := fragment.(type) {
	case map[string]any:
		if rawRef, ok := node["ref"]; ok {
			name := asString(rawRef)
			if active[name] {
				return nil, fmt.Errorf("%w: %q", types.ErrCircularRef, name)
			}
			def, ok := defs[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", types.ErrUndefinedRef, name)
			}
			defMap, ok := def.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: definition %q is not a table", types.ErrInvalidSpec, name)
			}
			var dup map[string]any
			if err := deepcopy.Copy(&dup, defMap); err != nil {
				return nil, fmt.Errorf("copy definition %q: %w", name, err)
			}
			// Local keys override the definition's keys.
			for k, v := range node {
				if k != "ref" {
					dup[k] = v
				}
			}
			active[name] = true
			expanded, err := expandRefs(dup, defs, active)
			delete(active, name)
			if err != nil {
				return nil, err
			}
			return expanded, nil
		}
		out := make(map[string]any, len(node))
		for k, v := range node {
			expanded, err := expandRefs(v, defs, active)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, v := range node {
			expanded, err := expandRefs(v, defs, active)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(node))
		for i, v := range node {
			expanded, err := expandRefs(v, defs, active)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return fragment, nil
	}
}

// ExpandFor expands templated blocks in a oneToMany rule list. Blocks
// without a for key pass through unchanged, preserving declared order.
func ExpandFor(blocks []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(blocks))
	for _, block := range blocks {
		rawFor, ok := block["for"]
		if !ok {
			out = append(out, block)
			continue
		}
		forExpr, ok := rawFor.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: for expression %v is not a table of variables", types.ErrMalformedFor, rawFor)
		}

		vars := make(map[string][]string, len(forExpr))
		for name, rawVals := range forExpr {
			vals, err := loopValues(name, rawVals)
			if err != nil {
				return nil, err
			}
			vars[name] = vals
		}

		// Sorted variable order keeps the Cartesian product deterministic.
		names := sortedKeys(vars)
		body := make(map[string]any, len(block)-1)
		for k, v := range block {
			if k != "for" {
				body[k] = v
			}
		}
		bindings := []map[string]string{{}}
		for _, name := range names {
			next := make([]map[string]string, 0, len(bindings)*len(vars[name]))
			for _, b := range bindings {
				for _, val := range vars[name] {
					nb := make(map[string]string, len(b)+1)
					for k, v := range b {
						nb[k] = v
					}
					nb[name] = val
					next = append(next, nb)
				}
			}
			bindings = next
		}
		for _, binding := range bindings {
			clone, err := substitute(body, binding)
			if err != nil {
				return nil, err
			}
			out = append(out, clone.(map[string]any))
		}
	}
	return out, nil
}

// loopValues normalizes one loop variable declaration into formatted values:
// either an inclusive numeric range or an explicit value list.
func loopValues(name string, raw any) ([]string, error) {
	if m, ok := raw.(map[string]any); ok {
		bounds, ok := m["range"].([]any)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("%w: %q", types.ErrMalformedFor, name)
		}
		start, ok1 := asInt(bounds[0])
		end, ok2 := asInt(bounds[1])
		if !ok1 || !ok2 || end <= start {
			return nil, fmt.Errorf("%w: %q has bad range %v", types.ErrMalformedFor, name, bounds)
		}
		// Inclusive of both endpoints.
		vals := make([]string, 0, end-start+1)
		for i := start; i <= end; i++ {
			vals = append(vals, strconv.FormatInt(i, 10))
		}
		return vals, nil
	}
	if list, ok := raw.([]any); ok {
		vals := make([]string, len(list))
		for i, v := range list {
			vals[i] = formatLoopValue(v)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrMalformedFor, name)
}

// substitute clones node with every {var} placeholder replaced from binding.
// A placeholder naming an unbound variable is a specification error.
func substitute(node any, binding map[string]string) (any, error) {
	switch v := node.(type) {
	case string:
		return substituteString(v, binding)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rk, err := substituteString(k, binding)
			if err != nil {
				return nil, err
			}
			rv, err := substitute(val, binding)
			if err != nil {
				return nil, err
			}
			out[rk] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rv, err := substitute(item, binding)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return node, nil
	}
}

func substituteString(s string, binding map[string]string) (string, error) {
	var missing string
	replaced := templateToken.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1 : len(tok)-1]
		val, ok := binding[name]
		if !ok {
			missing = name
			return tok
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("%w: {%s} in %q", types.ErrUnboundLoopVar, missing, s)
	}
	return replaced, nil
}

func formatLoopValue(v any) string {
	if n, ok := asInt(v); ok {
		return strconv.FormatInt(n, 10)
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// MatchingFields returns the source columns matching pattern, in header
// order. Patterns match at the start of the column name.
func MatchingFields(fields []string, pattern string) ([]string, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: bad fieldPattern %q: %v", types.ErrInvalidRule, pattern, err)
	}
	var out []string
	for _, f := range fields {
		if re.MatchString(f) {
			out = append(out, f)
		}
	}
	return out, nil
}
