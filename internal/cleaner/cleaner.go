package cleaner

import (
	"math"
	"sort"
	"strconv"
	"time"

	"operating-hours/internal/dataset"
	"operating-hours/internal/meter"
)

// Column names of a consumption table.
const (
	ColumnTimestamp = "AESTTime"
	ColumnQuantity  = "Quantity"
	ColumnUnit      = "Unit"
)

// TimestampFormats are tried in order; the first one that parses every row wins.
var TimestampFormats = []string{
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

var requiredColumns = []string{ColumnTimestamp, ColumnQuantity, ColumnUnit}

// Draft is a cleaned series: sorted, unique timestamps, complete days only.
type Draft struct {
	Interval time.Duration
	Readings []meter.DraftReading
}

// Empty reports whether cleaning left nothing.
func (d Draft) Empty() bool {
	return len(d.Readings) == 0
}

// Report counts what each cleaning step discarded.
type Report struct {
	Rows          int
	MissingValues int
	Duplicates    int
	Ambiguous     int
	BadUnits      int
	OffGrid       int
	RemovedDays   int
	KeptDays      int
	Kept          int
	Format        string
}

type row struct {
	ts   string
	qty  float64
	unit string
}

// Clean turns a raw consumption table into a Draft for a meter sampled every interval.
func Clean(table *dataset.Table, interval time.Duration) (Draft, Report, error) {
	report := Report{Rows: len(table.Rows)}
	draft := Draft{Interval: interval}

	if interval <= 0 {
		return draft, report, &meter.InvalidMetadataError{Field: "Interval", Value: interval.String()}
	}

	if missing := meter.MissingColumns(table.Header, requiredColumns); len(missing) > 0 {
		return draft, report, &meter.SchemaError{Source: table.Source, Missing: missing}
	}

	rows := dropMissing(table, &report)
	rows = dropDuplicates(rows, &report)
	rows = keepKnownUnits(rows, &report)

	if len(rows) == 0 {
		return draft, report, nil
	}

	parsed, format, err := parseTimestamps(rows)
	if err != nil {
		return draft, report, err
	}
	report.Format = format

	draft.Readings = completeDays(parsed, interval, &report)
	report.Kept = len(draft.Readings)
	return draft, report, nil
}

func dropMissing(table *dataset.Table, report *Report) []row {
	rows := make([]row, 0, len(table.Rows))
	for _, raw := range table.Rows {
		r := meter.RawReading{
			TimestampText: table.Value(raw, ColumnTimestamp),
			QuantityText:  table.Value(raw, ColumnQuantity),
			UnitText:      table.Value(raw, ColumnUnit),
		}
		if r.TimestampText == "" || r.QuantityText == "" || r.UnitText == "" {
			report.MissingValues++
			continue
		}
		qty, err := strconv.ParseFloat(r.QuantityText, 64)
		if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
			report.MissingValues++
			continue
		}
		rows = append(rows, row{ts: r.TimestampText, qty: qty, unit: r.UnitText})
	}
	return rows
}

// dropDuplicates collapses identical rows, then removes every row whose
// timestamp still appears more than once.
func dropDuplicates(rows []row, report *Report) []row {
	seen := make(map[row]struct{}, len(rows))
	unique := rows[:0:0]
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			report.Duplicates++
			continue
		}
		seen[r] = struct{}{}
		unique = append(unique, r)
	}

	counts := make(map[string]int, len(unique))
	for _, r := range unique {
		counts[r.ts]++
	}

	kept := make([]row, 0, len(unique))
	for _, r := range unique {
		if counts[r.ts] > 1 {
			report.Ambiguous++
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func keepKnownUnits(rows []row, report *Report) []row {
	kept := rows[:0:0]
	for _, r := range rows {
		if _, ok := meter.ParseUnit(r.unit); !ok {
			report.BadUnits++
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func parseTimestamps(rows []row) ([]meter.DraftReading, string, error) {
	for _, layout := range TimestampFormats {
		if parsed, ok := parseAll(rows, layout); ok {
			return parsed, layout, nil
		}
	}
	return nil, "", &meter.FormatError{Column: ColumnTimestamp, Formats: TimestampFormats}
}

func parseAll(rows []row, layout string) ([]meter.DraftReading, bool) {
	out := make([]meter.DraftReading, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(layout, r.ts)
		if err != nil {
			return nil, false
		}
		unit, _ := meter.ParseUnit(r.unit)
		out = append(out, meter.DraftReading{SourceTime: ts, Quantity: r.qty, Unit: unit})
	}
	return out, true
}

// completeDays keeps only on-grid readings of calendar days that carry every
// slot between the first and last observed date.
func completeDays(readings []meter.DraftReading, interval time.Duration, report *Report) []meter.DraftReading {
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].SourceTime.Before(readings[j].SourceTime)
	})

	first := dayOf(readings[0].SourceTime)
	last := dayOf(readings[len(readings)-1].SourceTime)
	slots := int((24 * time.Hour) / interval)

	perDay := make(map[time.Time][]meter.DraftReading)
	for _, r := range readings {
		day := dayOf(r.SourceTime)
		if r.SourceTime.Sub(day)%interval != 0 {
			report.OffGrid++
			continue
		}
		perDay[day] = append(perDay[day], r)
	}

	kept := make([]meter.DraftReading, 0, len(readings))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if len(perDay[day]) != slots {
			report.RemovedDays++
			continue
		}
		report.KeptDays++
		kept = append(kept, perDay[day]...)
	}
	return kept
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
