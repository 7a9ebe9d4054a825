package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"operating-hours/internal/meter"
)

// WallClockLayout is the timestamp layout used in cleaned artifacts.
const WallClockLayout = "2006-01-02 15:04:05"

var canonicalHeader = []string{"source_time", "local_time", "quantity", "unit"}

// ConsumptionDir resolves per-meter consumption files named <nmi>.csv.
type ConsumptionDir struct {
	Root string
}

// Load reads the consumption table for nmi. A missing file yields meter.ErrNoReadings.
func (d ConsumptionDir) Load(nmi string) (*Table, error) {
	path := filepath.Join(d.Root, nmi+".csv")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, meter.ErrNoReadings
		}
		return nil, fmt.Errorf("open consumption file: %w", err)
	}
	defer file.Close()

	return ReadTable(file, filepath.Base(path))
}

// ArtifactName is the cleaned-artifact file name for a meter.
func ArtifactName(rec meter.Record) string {
	return rec.NMI + "_" + string(rec.Region) + ".csv"
}

// ParseArtifactName recovers the NMI and region from a cleaned-artifact file name.
func ParseArtifactName(name string) (string, meter.Region, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".csv")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", false
	}
	return base[:idx], meter.Region(base[idx+1:]), true
}

// WriteCanonical writes a cleaned artifact into dir and returns its path.
func WriteCanonical(dir string, rec meter.Record, readings []meter.CanonicalReading) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ArtifactName(rec))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(canonicalHeader); err != nil {
		return "", err
	}
	for _, r := range readings {
		record := []string{
			r.SourceTime.Format(WallClockLayout),
			r.LocalTime.Format(WallClockLayout),
			strconv.FormatFloat(r.Quantity, 'f', -1, 64),
			string(r.Unit),
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}

// ReadCanonical loads a cleaned artifact. Wall clocks are placed in the given
// source and local zones; rows are returned sorted by source time.
func ReadCanonical(path string, source, local *time.Location) ([]meter.CanonicalReading, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	table, err := ReadTable(file, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if missing := meter.MissingColumns(table.Header, canonicalHeader); len(missing) > 0 {
		return nil, &meter.SchemaError{Source: table.Source, Missing: missing}
	}

	readings := make([]meter.CanonicalReading, 0, len(table.Rows))
	for i, row := range table.Rows {
		src, err := time.ParseInLocation(WallClockLayout, table.Value(row, "source_time"), source)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: source_time: %w", table.Source, i+2, err)
		}
		loc, err := time.ParseInLocation(WallClockLayout, table.Value(row, "local_time"), local)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: local_time: %w", table.Source, i+2, err)
		}
		qty, err := strconv.ParseFloat(table.Value(row, "quantity"), 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: quantity: %w", table.Source, i+2, err)
		}
		unit, ok := meter.ParseUnit(table.Value(row, "unit"))
		if !ok {
			return nil, fmt.Errorf("%s line %d: unit %q", table.Source, i+2, table.Value(row, "unit"))
		}
		readings = append(readings, meter.CanonicalReading{SourceTime: src, LocalTime: loc, Quantity: qty, Unit: unit})
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].SourceTime.Before(readings[j].SourceTime)
	})
	return readings, nil
}

// ListArtifacts returns the cleaned-artifact paths in dir sorted by name.
func ListArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
