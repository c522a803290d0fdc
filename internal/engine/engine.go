// Package engine evaluates a compiled specification against source rows.
//
// The engine is split along the specification's component seams: condition
// evaluation (condition.go), single-field value resolution (resolve.go),
// combined-field aggregation (combine.go), and the table-building Parser
// (parser.go) that feeds rows through all of them and accumulates output
// tables.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/transformkit/remap/internal/spec"
)

// Context carries the document-level settings value resolution needs. It is
// shared by every rule of a run and never mutated after construction.
type Context struct {
	DefaultDateFormat string
	SkipFieldPattern  *regexp.Regexp
	ReturnUnmatched   bool
}

// NewContext derives the evaluation context from a compiled document.
func NewContext(doc *spec.Document) *Context {
	return &Context{
		DefaultDateFormat: doc.DefaultDateFormat,
		SkipFieldPattern:  doc.SkipFieldPattern,
		ReturnUnmatched:   doc.ReturnUnmatched,
	}
}

// isNull reports whether v is absent data: nil or the empty string. CSV
// readers produce "" for blank cells, so both spellings mean the same thing.
func isNull(v any) bool {
	return v == nil || v == ""
}

// Truthy folds a value to a boolean: non-empty strings, non-zero numbers,
// true booleans and non-empty lists count as true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}
