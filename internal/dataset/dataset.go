// Package dataset decodes uploaded CSV buffers into ordered row records.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseError reports malformed CSV input. Line is 1-based; 0 means unknown.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse csv: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrDuplicateColumn is wrapped by ParseError when two header cells share a name.
var ErrDuplicateColumn = errors.New("duplicate column name")

// Row is an ordered mapping from column name to raw cell value.
// All rows of a Dataset share the header slice.
type Row struct {
	header []string
	values []string
	index  map[string]int
}

// Get returns the cell value for col, or "" when the column does not exist.
func (r Row) Get(col string) string {
	i, ok := r.index[col]
	if !ok {
		return ""
	}
	return r.values[i]
}

// Keys returns the column names in header order.
func (r Row) Keys() []string {
	out := make([]string, len(r.header))
	copy(out, r.header)
	return out
}

// Values returns the cell values in header order.
func (r Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// MarshalJSON encodes the row as a JSON object keeping header order.
func (r Row) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.header {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Dataset is an ordered, immutable sequence of rows sharing one header.
type Dataset struct {
	Header []string
	Rows   []Row
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Column returns every value of col in row order.
func (d *Dataset) Column(col string) []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		out = append(out, r.Get(col))
	}
	return out
}

// Parse decodes buf as comma-separated text with a header row.
// An empty or header-only buffer yields a Dataset with zero rows. Blank lines
// are skipped, so an empty single-column value must be written as "".
func Parse(buf []byte) (*Dataset, error) {
	buf = bytes.TrimPrefix(buf, []byte("\ufeff"))
	r := csv.NewReader(bytes.NewReader(buf))
	// Field count is pinned to the header width.
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Dataset{}, nil
		}
		return nil, toParseError(err)
	}
	header = append([]string(nil), header...)
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; dup {
			return nil, &ParseError{Line: 1, Err: fmt.Errorf("%w: %q", ErrDuplicateColumn, strings.TrimSpace(h))}
		}
		index[h] = i
	}

	ds := &Dataset{Header: header}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, toParseError(err)
		}
		ds.Rows = append(ds.Rows, Row{header: header, values: append([]string(nil), rec...), index: index})
	}
	return ds, nil
}

func toParseError(err error) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &ParseError{Line: ce.Line, Err: ce.Err}
	}
	return &ParseError{Err: err}
}
