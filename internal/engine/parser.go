package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/transformkit/remap/internal/spec"
	"github.com/transformkit/remap/internal/transforms"
	"github.com/transformkit/remap/internal/types"
	"github.com/transformkit/remap/internal/validate"
)

/*
 * Table builder.
 *
 * A Parser owns the mutable state of one run: per-table accumulated rows and
 * groupBy merge indexes. The compiled Document stays read-only; header
 * binding materializes fieldPattern sub-rules into per-run copies instead of
 * mutating the spec, so one Document can serve many runs.
 *
 * Resolution errors are not fatal per row: a failed conversion logs a
 * warning and the field resolves to null. Only a missing source field on a
 * rule without can_skip aborts the run, since it means the dataset does not
 * match the specification at all.
 */

// Parser accumulates output tables from source rows under one document.
type Parser struct {
	doc *spec.Document
	ctx *Context
	log zerolog.Logger

	validators map[string]*validate.Validator
	tables     map[string]*tableState

	rowsProcessed int
}

type tableState struct {
	table     *spec.Table
	rules     map[string]*spec.Rule
	ruleNames []string
	templates []*boundTemplate

	// dateFields are target fields the table schema types as dates; bare
	// field rules writing them get the default date format applied.
	dateFields map[string]bool

	rows       []types.OutputRow
	groupIndex map[string]int
}

type boundTemplate struct {
	// cond gates emission; nil emits unconditionally.
	cond   *spec.Condition
	fields map[string]*spec.Rule
	names  []string
}

// NewParser compiles the run state for doc. Table schemas are loaded and
// compiled here; a schema that cannot be fetched disables validation for its
// table with a warning instead of failing the run.
func NewParser(doc *spec.Document, log zerolog.Logger) (*Parser, error) {
	p := &Parser{
		doc:        doc,
		ctx:        NewContext(doc),
		log:        log,
		validators: map[string]*validate.Validator{},
		tables:     map[string]*tableState{},
	}
	for _, name := range doc.TableNames {
		t := doc.Tables[name]
		if t.SchemaRef != "" {
			v, err := validate.Compile(t.SchemaRef, doc.Dir, t.OptionalFields)
			if err != nil {
				log.Warn().Str("table", name).Err(err).Msg("schema unavailable, validation disabled")
			} else {
				p.validators[name] = v
			}
		}
	}
	if err := p.BindHeader(nil); err != nil {
		return nil, err
	}
	return p, nil
}

// BindHeader materializes fieldPattern sub-rules against the source header
// and resets all accumulated state. Call it once per source file, before the
// first row.
func (p *Parser) BindHeader(fields []string) error {
	p.rowsProcessed = 0
	for _, name := range p.doc.TableNames {
		t := p.doc.Tables[name]
		st := &tableState{table: t, groupIndex: map[string]int{}, dateFields: map[string]bool{}}
		if v, ok := p.validators[name]; ok {
			for _, f := range v.DateFields() {
				st.dateFields[f] = true
			}
		}

		if t.Kind == spec.KindOneToMany {
			for _, tmpl := range t.Templates {
				bound := &boundTemplate{fields: map[string]*spec.Rule{}}
				for fname, rule := range tmpl.Fields {
					br, err := bindRule(rule, fields)
					if err != nil {
						return fmt.Errorf("table %q, field %q: %w", name, fname, err)
					}
					bound.fields[fname] = br
					bound.names = append(bound.names, fname)
				}
				sort.Strings(bound.names)
				bound.cond = tmpl.If
				if bound.cond == nil {
					bound.cond = defaultCondition(bound)
				}
				st.templates = append(st.templates, bound)
			}
		} else {
			st.rules = make(map[string]*spec.Rule, len(t.Rules))
			for fname, rule := range t.Rules {
				br, err := bindRule(rule, fields)
				if err != nil {
					return fmt.Errorf("table %q, field %q: %w", name, fname, err)
				}
				st.rules[fname] = br
			}
			st.ruleNames = t.RuleNames
		}
		p.tables[name] = st
	}
	return nil
}

// bindRule expands fieldPattern sub-rules of a combined rule into one
// sub-rule per matching source column, in header order. Rules without
// patterns are shared with the document unchanged.
func bindRule(r *spec.Rule, fields []string) (*spec.Rule, error) {
	if !r.IsCombined() {
		return r, nil
	}
	hasPattern := false
	for _, sub := range r.Fields {
		if sub.FieldPattern != "" {
			hasPattern = true
			break
		}
	}
	if !hasPattern {
		return r, nil
	}

	bound := *r
	bound.Fields = make([]*spec.Rule, 0, len(r.Fields))
	for _, sub := range r.Fields {
		if sub.FieldPattern == "" {
			bound.Fields = append(bound.Fields, sub)
			continue
		}
		matching, err := spec.MatchingFields(fields, sub.FieldPattern)
		if err != nil {
			return nil, err
		}
		for _, col := range matching {
			clone := *sub
			clone.FieldPattern = ""
			clone.Field = col
			bound.Fields = append(bound.Fields, &clone)
		}
	}
	return &bound, nil
}

// defaultCondition synthesizes the emission condition of a row template that
// declares none, from its primary role field's source column.
func defaultCondition(tmpl *boundTemplate) *spec.Condition {
	for _, role := range []string{"is_present", "value", "text"} {
		r, ok := tmpl.fields[role]
		if !ok {
			continue
		}
		if c := sourceCondition(r); c != nil {
			return c
		}
	}
	for _, name := range tmpl.names {
		if c := sourceCondition(tmpl.fields[name]); c != nil {
			return c
		}
	}
	return nil
}

// sourceCondition builds the emission gate for one rule. A rule with a
// values table emits only when the source column holds one of the mapped
// keys; without one, any non-empty value emits.
func sourceCondition(r *spec.Rule) *spec.Condition {
	src := r
	if src.Field == "" {
		for _, sub := range r.Fields {
			if sub.Field != "" {
				src = sub
				break
			}
		}
	}
	if src.Field == "" {
		return nil
	}
	if len(src.Values) > 0 {
		keys := make([]string, 0, len(src.Values))
		for k := range src.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		alts := make([]*spec.Condition, 0, len(keys))
		for _, k := range keys {
			alts = append(alts, &spec.Condition{Field: src.Field, Op: spec.OpEq, Value: k, CanSkip: true})
		}
		return &spec.Condition{Any: alts}
	}
	return &spec.Condition{Field: src.Field, Op: spec.OpNe, Value: "", CanSkip: true}
}

// ParseRow feeds one source row through every table.
func (p *Parser) ParseRow(row types.Row) error {
	p.rowsProcessed++
	for _, name := range p.doc.TableNames {
		if err := p.updateTable(p.tables[name], row); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
	}
	return nil
}

// ParseAll drains next until io.EOF. With parallel set, each table gets its
// own worker and rows fan out to all of them; per-table state is only ever
// touched by its worker.
func (p *Parser) ParseAll(ctx context.Context, next func() (types.Row, error), parallel bool) error {
	if !parallel {
		for {
			row, err := next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := p.ParseRow(row); err != nil {
				return err
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	feeds := make([]chan types.Row, 0, len(p.doc.TableNames))
	for _, name := range p.doc.TableNames {
		ch := make(chan types.Row, 64)
		feeds = append(feeds, ch)
		st := p.tables[name]
		tname := name
		g.Go(func() error {
			for row := range ch {
				if err := p.updateTable(st, row); err != nil {
					return fmt.Errorf("table %q: %w", tname, err)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer func() {
			for _, ch := range feeds {
				close(ch)
			}
		}()
		for {
			row, err := next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			p.rowsProcessed++
			for _, ch := range feeds {
				select {
				case ch <- row:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})
	return g.Wait()
}

func (p *Parser) updateTable(st *tableState, row types.Row) error {
	switch st.table.Kind {
	case spec.KindConstant:
		return nil
	case spec.KindOneToMany:
		for _, tmpl := range st.templates {
			if tmpl.cond != nil && !EvalCondition(tmpl.cond, row) {
				continue
			}
			out, err := p.buildRow(tmpl.fields, tmpl.names, st.dateFields, row)
			if err != nil {
				return err
			}
			if len(out) > 0 {
				st.rows = append(st.rows, out)
			}
		}
		return nil
	case spec.KindGroupBy:
		out, err := p.buildRow(st.rules, st.ruleNames, st.dateFields, row)
		if err != nil {
			return err
		}
		p.mergeGroup(st, out)
		return nil
	default:
		out, err := p.buildRow(st.rules, st.ruleNames, st.dateFields, row)
		if err != nil {
			return err
		}
		st.rows = append(st.rows, out)
		return nil
	}
}

// buildRow resolves every rule against row. Null results are dropped from
// the output row; resolution failures other than a missing source field
// degrade to null with a warning.
func (p *Parser) buildRow(rules map[string]*spec.Rule, names []string, dates map[string]bool, row types.Row) (types.OutputRow, error) {
	out := types.OutputRow{}
	for _, name := range names {
		v, err := Resolve(rules[name], row, p.ctx)
		if err != nil {
			if errors.Is(err, types.ErrFieldMissing) {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			p.log.Warn().Str("field", name).Err(err).Msg("value unresolvable, dropping")
			continue
		}
		if isNull(v) {
			continue
		}
		if dates[name] {
			v = p.normalizeDate(name, rules[name], v)
		}
		out[name] = v
	}
	return out, nil
}

// normalizeDate reformats a schema-typed date field from the document's
// default date format to ISO when the rule itself declared no date handling.
// A value that does not parse passes through untouched; schema validation
// reports it.
func (p *Parser) normalizeDate(name string, rule *spec.Rule, v any) any {
	if rule == nil || rule.SourceDate != nil || rule.DateFormat != "" {
		return v
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	iso, err := transforms.ReformatDate(s, p.ctx.DefaultDateFormat, types.DefaultDateFormat)
	if err != nil {
		p.log.Warn().Str("field", name).Err(err).Msg("date field does not match default date format")
		return v
	}
	return iso
}

// mergeGroup folds a new partial row into its group. Plain fields keep the
// last non-null value; combined fields merge according to their type, so a
// list accumulates across the group's rows and firstNonNull keeps the
// earliest value.
func (p *Parser) mergeGroup(st *tableState, out types.OutputRow) {
	key := stringify(out[st.table.GroupBy])
	idx, seen := st.groupIndex[key]
	if !seen {
		st.groupIndex[key] = len(st.rows)
		st.rows = append(st.rows, out)
		return
	}

	existing := st.rows[idx]
	for _, name := range st.ruleNames {
		nv, has := out[name]
		if !has {
			continue
		}
		rule := st.rules[name]
		if rule == nil || !rule.IsCombined() {
			existing[name] = nv
			continue
		}
		old, had := existing[name]
		switch rule.CombinedType {
		case "list":
			existing[name] = appendList(old, nv)
		case "set":
			existing[name] = dedupe(appendList(old, nv))
		case "firstNonNull":
			if !had {
				existing[name] = nv
			}
		case "any":
			existing[name] = Truthy(old) || Truthy(nv)
		case "all":
			if had {
				existing[name] = Truthy(old) && Truthy(nv)
			} else {
				existing[name] = nv
			}
		case "min":
			existing[name] = extremum([]any{old, nv}, false)
		case "max":
			existing[name] = extremum([]any{old, nv}, true)
		}
	}
}

func appendList(old, nv any) []any {
	out := asList(old)
	return append(out, asList(nv)...)
}

func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// ReadTable returns the accumulated rows of one table, validated against its
// schema when one is attached. A constant table yields its single row only
// after at least one source row was processed.
func (p *Parser) ReadTable(name string) ([]types.OutputRow, error) {
	st, ok := p.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownTable, name)
	}

	rows := st.rows
	if st.table.Kind == spec.KindConstant {
		if p.rowsProcessed == 0 {
			return nil, nil
		}
		out, err := p.buildRow(st.rules, st.ruleNames, st.dateFields, types.Row{})
		if err != nil {
			return nil, err
		}
		rows = []types.OutputRow{out}
	}

	v, ok := p.validators[name]
	if !ok {
		return rows, nil
	}
	for _, row := range rows {
		valid, msg := v.Validate(row)
		row[types.ValidColumn] = valid
		// msg is empty on success; both reserved columns exist on every row.
		row[types.ErrorColumn] = msg
	}
	return rows, nil
}

// FieldNames returns the output column order of a table: the validity
// columns when a schema is attached, then every target field name sorted.
func (p *Parser) FieldNames(name string) ([]string, error) {
	st, ok := p.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownTable, name)
	}
	set := map[string]bool{}
	for _, n := range st.ruleNames {
		set[n] = true
	}
	for _, tmpl := range st.templates {
		for _, n := range tmpl.names {
			set[n] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)

	if _, ok := p.validators[name]; ok {
		names = append([]string{types.ValidColumn, types.ErrorColumn}, names...)
	}
	return names, nil
}

// TableNames returns the declared output tables in deterministic order.
func (p *Parser) TableNames() []string {
	return p.doc.TableNames
}

// RowsProcessed reports how many source rows were fed through the parser.
func (p *Parser) RowsProcessed() int {
	return p.rowsProcessed
}
