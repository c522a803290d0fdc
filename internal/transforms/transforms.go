// Package transforms is the registry of named transformation functions
// available to apply rules.
//
// The registry is a closed set built at init time: rule compilation rejects
// unknown names, so by the time a Func runs the name has already been
// checked. Functions are pure over their inputs and return an error instead
// of a value when the input cannot be transformed; the caller decides
// whether that degrades to null or passes the raw value through.
package transforms

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Func is a transformation applied to a resolved field value. params are the
// rule's apply.params after $-indirection has been resolved.
type Func func(value any, params ...any) (any, error)

var registry = map[string]Func{
	"isNotNull":               isNotNull,
	"textIfNotNull":           textIfNotNull,
	"wordSubstituteSet":       wordSubstituteSet,
	"getFloat":                getFloat,
	"percentage":              percentage,
	"yearsElapsed":            yearsElapsed,
	"durationDays":            durationDays,
	"startDate":               startDate,
	"endDate":                 endDate,
	"makeDate":                makeDate,
	"makeDateTime":            makeDateTime,
	"makeDateTimeFromSeconds": makeDateTimeFromSeconds,
	"splitDate":               splitDate,
	"startYear":               startYear,
	"startMonth":              startMonth,
	"correctOldDate":          correctOldDate,
}

// Lookup returns the named transformation function.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered function names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isNotNull reports whether value is neither null nor an empty string.
func isNotNull(value any, _ ...any) (any, error) {
	return !isEmpty(value), nil
}

// textIfNotNull returns the first parameter when value is present.
func textIfNotNull(value any, params ...any) (any, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("textIfNotNull: missing return value parameter")
	}
	if isEmpty(value) {
		return nil, nil
	}
	return params[0], nil
}

// wordSubstituteSet matches word-boundary regexes against a free-text value
// and collects their substitutes. Params are (pattern, substitute) pairs.
// Returns a sorted, de-duplicated list; an error when a non-empty value
// matched nothing.
func wordSubstituteSet(value any, params ...any) (any, error) {
	text := stringify(value)
	seen := map[string]bool{}
	var out []string
	for _, p := range params {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("wordSubstituteSet: params item is not a pair: %v", p)
		}
		pattern, ok1 := pair[0].(string)
		subst, ok2 := pair[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("wordSubstituteSet: params item is not a pair of strings: %v", p)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + pattern + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("wordSubstituteSet: bad pattern %q: %w", pattern, err)
		}
		if re.MatchString(text) && !seen[subst] {
			seen[subst] = true
			out = append(out, subst)
		}
	}
	if len(out) == 0 {
		if !isEmpty(value) {
			return nil, fmt.Errorf("wordSubstituteSet: no matches found for %q", text)
		}
		return nil, nil
	}
	sort.Strings(out)
	result := make([]any, len(out))
	for i, s := range out {
		result[i] = s
	}
	return result, nil
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// getFloat parses a numeric string, tolerating quoting, embedded spaces,
// alternative decimal separators and thousands separators.
func getFloat(value any, params ...any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	if f, ok := toFloat(value); ok && !isString(value) {
		return f, nil
	}
	text := stringify(value)
	if strings.ContainsAny(text, `" `) {
		text = strings.ReplaceAll(strings.Trim(text, `"`), " ", "")
	}

	setDecimal := paramString(params, 0, "")
	separator := paramString(params, 1, "")
	// Thousands separators go first: a "." separator must not eat the
	// decimal point substituted afterwards.
	if separator != "" && separator != setDecimal {
		text = strings.ReplaceAll(text, separator, "")
	}
	if setDecimal != "" {
		// Split on the last occurrence so the same character can serve as
		// both decimal and thousands separator.
		if i := strings.LastIndex(text, setDecimal); i >= 0 {
			text = strings.ReplaceAll(text[:i], setDecimal, "") + "." + text[i+len(setDecimal):]
		}
	}

	if matches := numberPattern.FindAllString(text, -1); len(matches) == 1 {
		text = matches[0]
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if text == "" {
			return nil, nil
		}
		return text, nil
	}
	return f, nil
}

// percentage widens a decimal fraction to a percentage. Values above 1 are
// assumed to already be percentages.
func percentage(value any, _ ...any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return value, nil
	}
	if f > 1 {
		return f, nil
	}
	return f * 100, nil
}

func isEmpty(v any) bool {
	return v == nil || v == ""
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func paramString(params []any, i int, fallback string) string {
	if i >= len(params) || params[i] == nil {
		return fallback
	}
	if s, ok := params[i].(string); ok && s != "" {
		return s
	}
	return fallback
}

func paramFloat(params []any, i int) (float64, bool) {
	if i >= len(params) {
		return 0, false
	}
	return toFloat(params[i])
}
