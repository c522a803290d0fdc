// Package source reads tabular source datasets row by row.
//
// Readers normalize every input shape to the same contract: a header of
// column names followed by string-valued rows keyed by those names, with
// io.EOF at the end. The engine never knows which format a row came from.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/transformkit/remap/internal/types"
)

// Reader streams rows from one source dataset.
type Reader interface {
	// Fields returns the header column names in file order.
	Fields() []string

	// Read returns the next row, or io.EOF when the dataset is exhausted.
	Read() (types.Row, error)

	Close() error
}

// Open picks a reader by file extension. encoding only applies to CSV;
// spreadsheet formats carry their own.
func Open(path, encoding string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OpenCSV(path, encoding)
	case ".xlsx":
		return OpenXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}
}
