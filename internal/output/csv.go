// Package output writes transformed tables to their destinations.
//
// Two sinks are supported: one CSV file per table, and a relational
// database where each table lands as TEXT columns alongside a runs metadata
// table. Both render list values as JSON arrays so they survive the trip
// through flat storage.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/transformkit/remap/internal/types"
)

// WriteCSV writes rows to w using the given column order. Fields absent
// from a row render as empty cells.
func WriteCSV(w io.Writer, fields []string, rows []types.OutputRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(fields))
		for i, name := range fields {
			record[i] = Render(row[name])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes one table to path, creating parent directories.
func WriteCSVFile(path string, fields []string, rows []types.OutputRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCSV(f, fields, rows)
}

// TablePath derives the per-table output filename: {base}-{table}.csv in dir.
func TablePath(dir, base, table string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.csv", base, table))
}

// Render flattens one output value to its cell form. Lists become JSON
// arrays; null becomes the empty cell.
func Render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
