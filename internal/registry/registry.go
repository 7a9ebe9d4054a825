package registry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"operating-hours/internal/dataset"
	"operating-hours/internal/meter"
)

// Column names of the registry table.
const (
	ColumnNMI      = "Nmi"
	ColumnState    = "State"
	ColumnInterval = "Interval"
)

var requiredColumns = []string{ColumnNMI, ColumnState, ColumnInterval}

// Entry is one registry row as written. Values are validated by Record.
type Entry struct {
	NMI      string
	State    string
	Interval string
}

// Record validates the entry and returns the meter metadata.
func (e Entry) Record() (meter.Record, error) {
	return meter.NewRecord(e.NMI, e.State, e.Interval)
}

// Load reads registry entries sorted by NMI. Only the header is validated.
func Load(r io.Reader, source string) ([]Entry, error) {
	table, err := dataset.ReadTable(r, source)
	if err != nil {
		return nil, err
	}
	if missing := meter.MissingColumns(table.Header, requiredColumns); len(missing) > 0 {
		return nil, &meter.SchemaError{Source: source, Missing: missing}
	}

	entries := make([]Entry, 0, len(table.Rows))
	for _, row := range table.Rows {
		entries = append(entries, Entry{
			NMI:      table.Value(row, ColumnNMI),
			State:    table.Value(row, ColumnState),
			Interval: table.Value(row, ColumnInterval),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].NMI < entries[j].NMI
	})
	return entries, nil
}

// LoadFile opens path and loads it.
func LoadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer file.Close()

	return Load(file, filepath.Base(path))
}

// SplitRepeats keeps the first entry of every NMI and returns later entries
// with an already seen NMI separately, both in input order.
func SplitRepeats(entries []Entry) (unique, repeats []Entry) {
	seen := make(map[string]struct{}, len(entries))
	unique = make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.NMI]; ok {
			repeats = append(repeats, e)
			continue
		}
		seen[e.NMI] = struct{}{}
		unique = append(unique, e)
	}
	return unique, repeats
}
