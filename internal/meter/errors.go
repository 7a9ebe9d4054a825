package meter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoData indicates nothing usable remained after cleaning.
	ErrNoData = errors.New("meter: no data left after cleaning")
	// ErrNoReadings indicates no consumption source exists for a meter.
	ErrNoReadings = errors.New("meter: no consumption data")
)

// SchemaError reports required columns absent from a table.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s is missing columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// FormatError reports a timestamp column that matches none of the accepted layouts.
type FormatError struct {
	Column  string
	Formats []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s is not in any accepted format (%s)", e.Column, strings.Join(e.Formats, " | "))
}

// InvalidMetadataError reports a registry value outside the allowed set.
type InvalidMetadataError struct {
	NMI   string
	Field string
	Value string
}

func (e *InvalidMetadataError) Error() string {
	if e.NMI == "" {
		return fmt.Sprintf("invalid %s: %q", strings.ToLower(e.Field), e.Value)
	}
	return fmt.Sprintf("invalid %s for %s: %q", strings.ToLower(e.Field), e.NMI, e.Value)
}

// MissingColumns returns the required names not present in header, in required order.
func MissingColumns(header, required []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
