package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/transformkit/remap/internal/types"
)

// utf8BOM is the byte-order mark Excel prepends to UTF-8 CSV exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader streams rows from a CSV file. The first record is the header;
// every row is keyed by it. Short records leave trailing columns absent.
type CSVReader struct {
	f      *os.File
	r      *csv.Reader
	fields []string
}

// OpenCSV opens path as CSV. encoding "utf-8" and "utf-8-sig" are accepted;
// a leading byte-order mark is stripped either way.
func OpenCSV(path, encoding string) (*CSVReader, error) {
	switch encoding {
	case "", "utf-8", "utf-8-sig":
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewReader(f)
	if peek, err := buf.Peek(len(utf8BOM)); err == nil && string(peek) == string(utf8BOM) {
		buf.Discard(len(utf8BOM))
	}

	r := csv.NewReader(buf)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return &CSVReader{f: f, r: r, fields: header}, nil
}

func (c *CSVReader) Fields() []string {
	return c.fields
}

func (c *CSVReader) Read() (types.Row, error) {
	record, err := c.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	row := make(types.Row, len(c.fields))
	for i, name := range c.fields {
		if i < len(record) {
			row[name] = record[i]
		}
	}
	return row, nil
}

func (c *CSVReader) Close() error {
	return c.f.Close()
}
