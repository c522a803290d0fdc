// Package report summarizes the outcome of one transformation run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/transformkit/remap/internal/types"
)

// Report is the per-run record of what was read and how much of it
// validated. RunID ties output tables, the saved report and the runs
// metadata table together.
type Report struct {
	RunID      string        `json:"run_id"`
	SpecName   string        `json:"spec_name"`
	SourceFile string        `json:"source_file"`
	Encoding   string        `json:"encoding,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Tables     []TableResult `json:"tables"`
}

// TableResult is one output table's row and validation counts. Errors counts
// rows per distinct validation failure message.
type TableResult struct {
	Name   string         `json:"name"`
	Total  int            `json:"total"`
	Valid  int            `json:"valid"`
	Errors map[string]int `json:"errors,omitempty"`
}

// New starts a report for one source file.
func New(specName, sourceFile string) *Report {
	return &Report{
		RunID:      uuid.NewString(),
		SpecName:   specName,
		SourceFile: sourceFile,
		CreatedAt:  time.Now().UTC(),
	}
}

// AddTable records a table's outcome, counting validated rows. Tables
// without a schema count every row as valid.
func (r *Report) AddTable(name string, rows []types.OutputRow) {
	result := TableResult{Name: name, Total: len(rows)}
	for _, row := range rows {
		if valid, ok := row[types.ValidColumn].(bool); !ok || valid {
			result.Valid++
			continue
		}
		if msg, ok := row[types.ErrorColumn].(string); ok && msg != "" {
			if result.Errors == nil {
				result.Errors = map[string]int{}
			}
			result.Errors[msg]++
		}
	}
	r.Tables = append(r.Tables, result)
}

// Summary renders a human-readable digest of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", r.SpecName, r.SourceFile)
	for _, t := range r.Tables {
		pct := 100.0
		if t.Total > 0 {
			pct = 100 * float64(t.Valid) / float64(t.Total)
		}
		fmt.Fprintf(&b, "  %s: %d/%d valid (%.1f%%)\n", t.Name, t.Valid, t.Total, pct)
		msgs := make([]string, 0, len(t.Errors))
		for msg := range t.Errors {
			msgs = append(msgs, msg)
		}
		sort.Strings(msgs)
		for _, msg := range msgs {
			fmt.Fprintf(&b, "    %dx %s\n", t.Errors[msg], msg)
		}
	}
	return b.String()
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Save writes the report to a file.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.WriteJSON(f)
}
