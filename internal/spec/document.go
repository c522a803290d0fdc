// Package spec loads and compiles parser specification documents.
//
// A specification is a TOML or JSON document with a `remap` header block
// (name, description, table metadata, definitions) and one rule block per
// declared table. Loading is a single pass before any row processing:
// definitions are merged, references and loops expanded, and every rule
// compiled into a typed tree. The compiled Document is read-only afterwards;
// the engine evaluates it against source rows without further mutation.
package spec

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/transformkit/remap/internal/types"
)

// Kind is the emission behavior of an output table.
type Kind string

const (
	KindOneToOne  Kind = "oneToOne"
	KindOneToMany Kind = "oneToMany"
	KindGroupBy   Kind = "groupBy"
	KindConstant  Kind = "constant"
)

// Document is a fully expanded and compiled specification.
type Document struct {
	Name              string
	Description       string
	DefaultDateFormat string
	SkipFieldPattern  *regexp.Regexp
	ReturnUnmatched   bool

	// Dir is the directory of the specification file, used to resolve
	// relative schema and include-def paths. Empty for in-memory documents.
	Dir string

	Tables map[string]*Table

	// TableNames is sorted for deterministic iteration order.
	TableNames []string
}

// Table is one output table: its metadata plus compiled field rules.
type Table struct {
	Name           string
	Kind           Kind
	GroupBy        string
	Aggregation    string
	SchemaRef      string
	OptionalFields []string

	// Rules maps target field name to its rule. Used by every kind except
	// oneToMany.
	Rules map[string]*Rule

	// RuleNames is sorted, and drives output column order for tables
	// without a schema.
	RuleNames []string

	// Templates are the row templates of a oneToMany table, in declared
	// order. Emission order of sub-rows follows this order.
	Templates []*RowTemplate
}

// RowTemplate is one potential output row of a oneToMany table.
type RowTemplate struct {
	// If gates emission of this template's row. Nil when the author wrote
	// no condition; the engine synthesizes the default emission condition
	// from the template's role fields in that case.
	If *Condition

	Fields map[string]*Rule
}

// Table returns the named table or ErrUnknownTable.
func (d *Document) Table(name string) (*Table, error) {
	t, ok := d.Tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownTable, name)
	}
	return t, nil
}

// validate applies the structural checks that must hold before any row is
// processed: every table needs a kind, and groupBy tables need the
// lastNotNull aggregation and a rule for their group key.
func (d *Document) validate() error {
	for _, name := range d.TableNames {
		t := d.Tables[name]
		switch t.Kind {
		case KindOneToOne, KindOneToMany, KindGroupBy, KindConstant:
		case "":
			return fmt.Errorf("%w: table %q missing required 'kind'", types.ErrInvalidSpec, name)
		default:
			return fmt.Errorf("%w: table %q has unknown kind %q", types.ErrInvalidSpec, name, t.Kind)
		}
		if t.GroupBy != "" {
			if t.Aggregation != "lastNotNull" {
				return fmt.Errorf("%w: table %q: groupBy needs aggregation=lastNotNull", types.ErrInvalidSpec, name)
			}
			if _, ok := t.Rules[t.GroupBy]; !ok {
				return fmt.Errorf("%w: table %q: no rule for groupBy field %q", types.ErrInvalidSpec, name, t.GroupBy)
			}
		}
		if t.Kind == KindOneToMany && len(t.Templates) == 0 {
			return fmt.Errorf("%w: table %q has no row templates", types.ErrInvalidSpec, name)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
