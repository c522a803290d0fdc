// Package types provides domain models shared across remap components.
//
// Zero-dependency design: the engine, readers and writers all exchange rows
// through these aliases, so the package stays free of third-party imports
// and cannot participate in dependency cycles between internal packages.
package types

// Row is a single record of the source dataset, keyed by column name.
// Values read from CSV are strings; the engine widens them to numbers where
// they parse cleanly.
type Row map[string]any

// OutputRow is a transformed record destined for one output table.
// Fields that resolved to null are absent from the map.
type OutputRow map[string]any

// Reserved output columns recording per-row schema-validation outcome.
// Only present on tables that declare a schema.
const (
	ValidColumn = "remap_valid"
	ErrorColumn = "remap_error"
)

// DefaultDateFormat is the target date format applied when a date rule does
// not declare one, in strftime notation.
const DefaultDateFormat = "%Y-%m-%d"
