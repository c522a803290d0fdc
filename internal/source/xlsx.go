package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/transformkit/remap/internal/types"
)

// XLSXReader streams rows from the first sheet of a workbook. The whole
// sheet is materialized on open; spreadsheet sources are hand-curated files,
// not streams.
type XLSXReader struct {
	fields []string
	rows   [][]string
	next   int
}

// OpenXLSX opens the first sheet of the workbook at path.
func OpenXLSX(path string) (*XLSXReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheets[0])
	}
	return &XLSXReader{fields: rows[0], rows: rows[1:]}, nil
}

func (x *XLSXReader) Fields() []string {
	return x.fields
}

func (x *XLSXReader) Read() (types.Row, error) {
	if x.next >= len(x.rows) {
		return nil, io.EOF
	}
	record := x.rows[x.next]
	x.next++
	row := make(types.Row, len(x.fields))
	for i, name := range x.fields {
		if i < len(record) {
			row[name] = record[i]
		} else {
			row[name] = ""
		}
	}
	return row, nil
}

func (x *XLSXReader) Close() error {
	return nil
}
