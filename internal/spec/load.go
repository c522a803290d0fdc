package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/transformkit/remap/internal/types"
)

/*
 * Specification loading.
 *
 * Load reads a TOML or JSON document, merges definition files, expands the
 * reference graph and loop templates, and compiles every rule block. All
 * specification errors surface from here, before any row is processed.
 *
 * Definition merge order: the header's local defs, then each include-def
 * file (a name collision with an existing definition is an error), then any
 * caller-supplied override files (last wins). The asymmetry is deliberate:
 * include-def is authored alongside the spec and a collision there hides a
 * definition silently, while override files exist precisely to replace
 * definitions from the command line.
 */

// Load reads and compiles a specification document from path. Definition
// files in overrideDefs are merged last, overriding on name collision.
func Load(path string, overrideDefs ...string) (*Document, error) {
	raw, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw, filepath.Dir(path), overrideDefs...)
}

// Parse compiles an already-decoded specification. dir anchors relative
// include-def and schema paths.
func Parse(raw map[string]any, dir string, overrideDefs ...string) (*Document, error) {
	header, ok := raw["remap"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing 'remap' header block", types.ErrInvalidSpec)
	}
	for _, required := range []string{"name", "description", "tables"} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("%w: header requires key %q", types.ErrInvalidSpec, required)
		}
	}

	defs, err := mergeDefs(header, dir, overrideDefs)
	if err != nil {
		return nil, err
	}

	expanded, err := ExpandRefs(raw, defs)
	if err != nil {
		return nil, err
	}
	raw = expanded.(map[string]any)
	header = raw["remap"].(map[string]any)

	doc := &Document{
		Name:              asString(header["name"]),
		Description:       asString(header["description"]),
		DefaultDateFormat: types.DefaultDateFormat,
		ReturnUnmatched:   asBool(header["returnUnmatched"]),
		Dir:               dir,
		Tables:            map[string]*Table{},
	}
	if f := asString(header["defaultDateFormat"]); f != "" {
		doc.DefaultDateFormat = f
	}
	if pat := asString(header["skipFieldPattern"]); pat != "" {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: bad skipFieldPattern %q: %v", types.ErrInvalidSpec, pat, err)
		}
		doc.SkipFieldPattern = re
	}

	tablesMeta, ok := header["tables"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: header 'tables' must be a table", types.ErrInvalidSpec)
	}
	for _, name := range sortedKeys(tablesMeta) {
		meta, ok := tablesMeta[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: metadata for table %q must be a table", types.ErrInvalidSpec, name)
		}
		block, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing required %q element", types.ErrInvalidSpec, name)
		}
		table, err := compileTable(name, meta, block)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		doc.Tables[name] = table
		doc.TableNames = append(doc.TableNames, name)
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func mergeDefs(header map[string]any, dir string, overrideDefs []string) (map[string]any, error) {
	defs := map[string]any{}
	if local, ok := header["defs"].(map[string]any); ok {
		for k, v := range local {
			defs[k] = v
		}
	}

	var includes []string
	switch raw := header["include-def"].(type) {
	case []any:
		for _, v := range raw {
			includes = append(includes, asString(v))
		}
	case []string:
		includes = raw
	}
	for _, file := range includes {
		doc, err := decodeFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("include-def %q: %w", file, err)
		}
		for k, v := range doc {
			if _, exists := defs[k]; exists {
				return nil, fmt.Errorf("%w: %q redefined by include-def %q", types.ErrDefCollision, k, file)
			}
			defs[k] = v
		}
	}

	// Command-line override files replace existing definitions, last wins.
	for _, file := range overrideDefs {
		doc, err := decodeFile(file)
		if err != nil {
			return nil, fmt.Errorf("definition file %q: %w", file, err)
		}
		for k, v := range doc {
			defs[k] = v
		}
	}
	return defs, nil
}

func compileTable(name string, meta map[string]any, block any) (*Table, error) {
	table := &Table{
		Name:        name,
		Kind:        Kind(asString(meta["kind"])),
		GroupBy:     asString(meta["groupBy"]),
		Aggregation: asString(meta["aggregation"]),
		SchemaRef:   asString(meta["schema"]),
	}
	if raw, ok := meta["optional-fields"].([]any); ok {
		for _, v := range raw {
			table.OptionalFields = append(table.OptionalFields, asString(v))
		}
	}

	if table.Kind == KindOneToMany {
		blocks, err := toBlockList(block)
		if err != nil {
			return nil, err
		}
		blocks, err = ExpandFor(blocks)
		if err != nil {
			return nil, err
		}
		common, _ := meta["common"].(map[string]any)
		for _, b := range blocks {
			tmpl, err := compileTemplate(b, common)
			if err != nil {
				return nil, err
			}
			table.Templates = append(table.Templates, tmpl)
		}
		return table, nil
	}

	rules, ok := block.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: rule block must be a table, got %T", types.ErrInvalidSpec, block)
	}
	table.Rules = make(map[string]*Rule, len(rules))
	for field, raw := range rules {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		table.Rules[field] = rule
	}
	table.RuleNames = sortedKeys(table.Rules)
	return table, nil
}

func compileTemplate(block map[string]any, common map[string]any) (*RowTemplate, error) {
	merged := make(map[string]any, len(block)+len(common))
	for k, v := range block {
		merged[k] = v
	}
	// The common block applies to every sub-row and wins over the template.
	for k, v := range common {
		merged[k] = v
	}

	tmpl := &RowTemplate{Fields: map[string]*Rule{}}
	for field, raw := range merged {
		if field == "if" {
			cond, err := parseCondition(raw, false)
			if err != nil {
				return nil, err
			}
			tmpl.If = cond
			continue
		}
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		tmpl.Fields[field] = rule
	}
	return tmpl, nil
}

// toBlockList accepts the decoder-dependent shapes of an array of tables.
func toBlockList(block any) ([]map[string]any, error) {
	switch v := block.(type) {
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: row template must be a table, got %T", types.ErrInvalidSpec, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: oneToMany block must be an array of tables, got %T", types.ErrInvalidSpec, block)
	}
}

func decodeFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported specification format %q", types.ErrInvalidSpec, filepath.Ext(path))
	}
	return out, nil
}
