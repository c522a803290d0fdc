package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	units "github.com/bcicen/go-units"

	"github.com/transformkit/remap/internal/spec"
	"github.com/transformkit/remap/internal/transforms"
	"github.com/transformkit/remap/internal/types"
)

/*
 * Single-field value resolution.
 *
 * The order of operations is fixed: the if-condition gates resolution, the
 * source field is fetched, the values mapping translates it, then unit or
 * date conversion runs, then the apply transformation, then sensitive
 * hashing. Numeric widening happens last so every stage upstream sees the
 * source's string form.
 *
 * An empty source value resolves to null unless an apply function is
 * declared: transformations like isNotNull are defined over empty input and
 * must see it.
 */

// Resolve derives one target field's value from row under rule r.
func Resolve(r *spec.Rule, row types.Row, ctx *Context) (any, error) {
	if r.IsConstant {
		return r.Constant, nil
	}
	if r.IsCombined() {
		return Aggregate(r, row, ctx)
	}
	if r.FieldPattern != "" {
		return nil, fmt.Errorf("%w: fieldPattern %q not bound to a header", types.ErrInvalidRule, r.FieldPattern)
	}
	if r.If != nil && !EvalCondition(r.If, row) {
		return nil, nil
	}

	value, present := row[r.Field]
	if !present {
		if r.CanSkip {
			return nil, nil
		}
		if ctx.SkipFieldPattern != nil && ctx.SkipFieldPattern.MatchString(r.Field) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %q", types.ErrFieldMissing, r.Field)
	}

	if r.Values != nil {
		value = mapValue(r, value, ctx)
	}

	if r.SourceUnit != nil {
		converted, err := convertUnit(r, value, row, ctx)
		if err != nil {
			return nil, err
		}
		value = converted
	}
	if r.SourceDate != nil {
		converted, err := convertDate(r, value, row, ctx)
		if err != nil {
			return nil, err
		}
		value = converted
	}

	if r.Apply != nil {
		params, err := resolveParams(r.Apply.Params, row)
		if err != nil {
			return nil, err
		}
		fn, ok := transforms.Lookup(r.Apply.Function)
		if !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownFunction, r.Apply.Function)
		}
		out, err := fn(value, params...)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", r.Apply.Function, err)
		}
		value = out
	} else if value == "" {
		value = nil
	}

	if r.Sensitive && !isNull(value) {
		sum := sha256.Sum256([]byte(stringify(value)))
		return hex.EncodeToString(sum[:]), nil
	}
	return widen(value), nil
}

// mapValue translates a source value through the rule's values table. An
// unmapped value resolves to null unless ignoreMissingKey or returnUnmatched
// passes it through raw; a mapping to the empty string also resolves to
// null. caseInsensitive lookups fold case and strip surrounding spaces.
func mapValue(r *spec.Rule, value any, ctx *Context) any {
	key := stringify(value)
	if key == "" {
		return nil
	}
	mapped, ok := r.Values[key]
	if !ok && r.CaseInsensitive {
		trimmed := strings.Trim(key, " ")
		for k, v := range r.Values {
			if strings.EqualFold(k, trimmed) {
				mapped, ok = v, true
				break
			}
		}
	}
	if !ok {
		if r.IgnoreMissingKey || ctx.ReturnUnmatched {
			return value
		}
		return nil
	}
	if mapped == "" {
		return nil
	}
	return mapped
}

func convertUnit(r *spec.Rule, value any, row types.Row, ctx *Context) (any, error) {
	if isNull(value) {
		return nil, nil
	}
	srcRaw, err := Resolve(r.SourceUnit, row, ctx)
	if err != nil {
		return nil, err
	}
	if isNull(srcRaw) {
		return nil, nil
	}
	src := stringify(srcRaw)
	if strings.EqualFold(src, r.Unit) {
		return value, nil
	}

	from, err := units.Find(src)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown unit %q", types.ErrUnitConversion, src)
	}
	to, err := units.Find(r.Unit)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown unit %q", types.ErrUnitConversion, r.Unit)
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: non-numeric value %v", types.ErrUnitConversion, value)
	}
	out, err := units.ConvertFloat(f, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %q to %q", types.ErrUnitConversion, src, r.Unit)
	}
	return out.Float(), nil
}

func convertDate(r *spec.Rule, value any, row types.Row, ctx *Context) (any, error) {
	if isNull(value) {
		return nil, nil
	}
	srcRaw, err := Resolve(r.SourceDate, row, ctx)
	if err != nil {
		return nil, err
	}
	if isNull(srcRaw) {
		return value, nil
	}
	target := r.DateFormat
	if target == "" {
		target = ctx.DefaultDateFormat
	}
	return transforms.ReformatDate(stringify(value), stringify(srcRaw), target)
}

// resolveParams substitutes $-prefixed parameters with the named source
// field's value. Lists are resolved element-wise, so a parameter can name
// several candidate fields.
func resolveParams(params []any, row types.Row) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case string:
			if strings.HasPrefix(v, "$") {
				out[i] = row[v[1:]]
			} else {
				out[i] = v
			}
		case []any:
			sub, err := resolveParams(v, row)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		default:
			out[i] = p
		}
	}
	return out, nil
}

// widen converts a string that parses cleanly as a number into that number.
// Integers stay integral; a string that is not the canonical rendering of
// its integer, like a zero-padded identifier, keeps its string form.
func widen(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if strconv.FormatInt(i, 10) == s {
			return i
		}
		return value
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return value
}
