package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a delimited-text table read fully into memory.
type Table struct {
	Source string
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadTable parses a CSV stream whose first record is the header. Ragged rows
// are accepted; absent trailing cells read as blank.
func ReadTable(r io.Reader, source string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return newTable(source, nil, nil), nil
		}
		return nil, fmt.Errorf("read %s header: %w", source, err)
	}
	header = trimHeader(header)

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		rows = append(rows, record)
	}

	return newTable(source, header, rows), nil
}

func newTable(source string, header []string, rows [][]string) *Table {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	return &Table{Source: source, Header: header, Rows: rows, index: index}
}

// NewTable builds a table from in-memory values.
func NewTable(source string, header []string, rows [][]string) *Table {
	return newTable(source, trimHeader(header), rows)
}

// Has reports whether the named column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Value returns the trimmed cell of row for column, or "" when absent.
func (t *Table) Value(row []string, column string) string {
	idx, ok := t.index[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		// Spreadsheet exports often prefix the first column with a BOM.
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}
