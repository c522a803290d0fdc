// Package validate adapts JSON Schema documents for per-row validation.
//
// Output tables may reference a draft-07 schema. Rows are validated after
// transformation; the outcome lands in the reserved validity columns rather
// than failing the run, so a schema mismatch is data to inspect, not a crash.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/transformkit/remap/internal/types"
)

// Validator validates output rows against one compiled schema.
type Validator struct {
	Ref    string
	schema *jsonschema.Schema

	// dateFields are the schema properties declared with format: date.
	dateFields []string
}

// Compile loads and compiles the schema at ref, which is a path relative to
// dir or an http(s) URL. Fields listed in optional are removed from the
// schema's required list before compiling.
func Compile(ref, dir string, optional []string) (*Validator, error) {
	raw, err := fetchSchema(ref, dir)
	if err != nil {
		return nil, err
	}
	if len(optional) > 0 {
		raw = makeFieldsOptional(raw, optional)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", ref, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	// format is annotation-only by default; rows rely on date formats being
	// enforced.
	compiler.AssertFormat = true
	if err := compiler.AddResource(ref, strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("schema %q: %w", ref, err)
	}
	schema, err := compiler.Compile(ref)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", ref, err)
	}
	return &Validator{Ref: ref, schema: schema, dateFields: dateFields(raw)}, nil
}

// Validate reports whether row conforms to the schema, with the most
// specific failure message when it does not.
func (v *Validator) Validate(row types.OutputRow) (bool, string) {
	// Round-trip through JSON so int64/typed values take the shapes the
	// schema library compares against.
	data, err := json.Marshal(row)
	if err != nil {
		return false, err.Error()
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, err.Error()
	}
	if err := v.schema.Validate(doc); err != nil {
		return false, leafCause(err)
	}
	return true, ""
}

// DateFields returns the schema properties declared with format: date.
func (v *Validator) DateFields() []string {
	return v.dateFields
}

// leafCause digs to the deepest validation error, which names the actual
// failing property instead of the enclosing allOf/oneOf branch.
func leafCause(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

func fetchSchema(ref, dir string) (map[string]any, error) {
	var data []byte
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := http.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %q: %w", ref, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch schema %q: %s", ref, resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %q: %w", ref, err)
		}
	} else {
		var err error
		data, err = os.ReadFile(filepath.Join(dir, ref))
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", ref, err)
	}
	return raw, nil
}

// makeFieldsOptional returns a copy of the schema with the named fields
// removed from its required list, including the required lists of oneOf and
// anyOf branches.
func makeFieldsOptional(schema map[string]any, optional []string) map[string]any {
	drop := map[string]bool{}
	for _, f := range optional {
		drop[f] = true
	}

	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	if required, ok := schema["required"].([]any); ok {
		out["required"] = withoutFields(required, drop)
	}
	for _, combinator := range []string{"oneOf", "anyOf"} {
		branches, ok := schema[combinator].([]any)
		if !ok {
			continue
		}
		rewritten := make([]any, len(branches))
		for i, raw := range branches {
			if branch, ok := raw.(map[string]any); ok {
				rewritten[i] = makeFieldsOptional(branch, optional)
			} else {
				rewritten[i] = raw
			}
		}
		// Relaxing can collapse branches into duplicates, which oneOf's
		// exactly-one rule would then reject.
		out[combinator] = dedupeBranches(rewritten)
	}
	return out
}

func dedupeBranches(branches []any) []any {
	seen := map[string]bool{}
	kept := make([]any, 0, len(branches))
	for _, b := range branches {
		data, err := json.Marshal(b)
		if err != nil {
			kept = append(kept, b)
			continue
		}
		if seen[string(data)] {
			continue
		}
		seen[string(data)] = true
		kept = append(kept, b)
	}
	return kept
}

func withoutFields(required []any, drop map[string]bool) []any {
	kept := make([]any, 0, len(required))
	for _, f := range required {
		if s, ok := f.(string); ok && drop[s] {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func dateFields(schema map[string]any) []string {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if prop["format"] == "date" {
			out = append(out, name)
		}
	}
	return out
}
