package cleaner

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operating-hours/internal/dataset"
	"operating-hours/internal/meter"
)

var header = []string{ColumnTimestamp, ColumnQuantity, ColumnUnit}

func dayRows(day time.Time, interval time.Duration, layout string) [][]string {
	var rows [][]string
	for ts := day; ts.Before(day.Add(24 * time.Hour)); ts = ts.Add(interval) {
		rows = append(rows, []string{ts.Format(layout), "1.25", "KWH"})
	}
	return rows
}

func TestCleanSchemaError(t *testing.T) {
	table := dataset.NewTable("N1.csv", []string{"AESTTime", "Quantity"}, nil)

	_, _, err := Clean(table, 30*time.Minute)

	var schema *meter.SchemaError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, []string{"Unit"}, schema.Missing)
}

func TestCleanCompletenessInvariant(t *testing.T) {
	for _, interval := range []time.Duration{15 * time.Minute, 30 * time.Minute} {
		t.Run(interval.String(), func(t *testing.T) {
			d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
			var rows [][]string
			rows = append(rows, dayRows(d1, interval, TimestampFormats[0])...)
			partial := dayRows(d1.AddDate(0, 0, 1), interval, TimestampFormats[0])
			rows = append(rows, partial[:len(partial)-1]...)
			rows = append(rows, dayRows(d1.AddDate(0, 0, 3), interval, TimestampFormats[0])...)

			draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), interval)
			require.NoError(t, err)

			perDay := map[string]int{}
			for _, r := range draft.Readings {
				perDay[r.SourceTime.Format("2006-01-02")]++
			}
			slots := int(24 * time.Hour / interval)
			assert.Equal(t, map[string]int{"2024-06-01": slots, "2024-06-04": slots}, perDay)
			// 06-02 is partial and 06-03 has no readings at all.
			assert.Equal(t, 2, report.RemovedDays)
			assert.Equal(t, 2, report.KeptDays)
		})
	}
}

func TestCleanSharedTimestampRemovesBothRows(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := dayRows(d1, 30*time.Minute, TimestampFormats[0])
	rows = append(rows, []string{"2024-06-01 10:00:00", "9.0", "KWH"})

	draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Ambiguous)
	// Losing the 10:00 slot makes the only day incomplete.
	assert.True(t, draft.Empty())
	assert.Equal(t, 1, report.RemovedDays)
}

func TestCleanExactDuplicatesCollapse(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := dayRows(d1, 30*time.Minute, TimestampFormats[0])
	rows = append(rows, []string{"2024-06-01 10:00:00", "1.25", "KWH"})

	draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 0, report.Ambiguous)
	assert.Len(t, draft.Readings, 48)
}

func TestCleanDropsMissingAndUnknownUnits(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := dayRows(d1, 30*time.Minute, TimestampFormats[0])
	rows[3][2] = "mwh"
	rows = append(rows,
		[]string{"2024-06-02 00:00:00", "", "KWH"},
		[]string{"2024-06-02 00:30:00", "abc", "KWH"},
		[]string{"2024-06-02 01:00:00", "2", "GWH"},
	)

	draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, report.MissingValues)
	assert.Equal(t, 1, report.BadUnits)
	require.Len(t, draft.Readings, 48)
	assert.Equal(t, meter.UnitMWh, draft.Readings[3].Unit)
}

func TestCleanTreatsInfiniteQuantityAsMissing(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, v := range []string{"Inf", "+Infinity", "-inf"} {
		t.Run(v, func(t *testing.T) {
			rows := dayRows(d1, 30*time.Minute, TimestampFormats[0])
			rows[10][1] = v

			draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
			require.NoError(t, err)

			assert.Equal(t, 1, report.MissingValues)
			assert.Equal(t, 1, report.RemovedDays)
			assert.True(t, draft.Empty())
		})
	}
}

func TestCleanRejectsNonPositiveInterval(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	table := dataset.NewTable("N1.csv", header, dayRows(d1, 30*time.Minute, TimestampFormats[0]))

	for _, interval := range []time.Duration{0, -30 * time.Minute} {
		_, _, err := Clean(table, interval)
		var invalid *meter.InvalidMetadataError
		require.True(t, errors.As(err, &invalid), "interval %s", interval)
		assert.Equal(t, "Interval", invalid.Field)
	}
}

func TestCleanSecondaryFormat(t *testing.T) {
	d1 := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	rows := dayRows(d1, 30*time.Minute, "02/01/2006 15:04:05")

	draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TimestampFormats[1], report.Format)
	require.Len(t, draft.Readings, 48)
	assert.Equal(t, time.June, draft.Readings[0].SourceTime.Month())
	assert.Equal(t, 13, draft.Readings[0].SourceTime.Day())
}

func TestCleanFormatError(t *testing.T) {
	rows := [][]string{
		{"2024-06-01 00:00:00", "1", "KWH"},
		{"June 1st 00:30", "1", "KWH"},
	}

	_, _, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)

	var format *meter.FormatError
	require.True(t, errors.As(err, &format))
	assert.Equal(t, ColumnTimestamp, format.Column)
}

func TestCleanEverythingRemovedIsEmptyNotError(t *testing.T) {
	rows := [][]string{{"2024-06-01 00:00:00", "1", "GWH"}}

	draft, _, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, draft.Empty())
}

func TestCleanOffGridReadingsDropped(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := dayRows(d1, 30*time.Minute, TimestampFormats[0])
	rows = append(rows, []string{"2024-06-01 10:07:00", "3", "KWH"})

	draft, report, err := Clean(dataset.NewTable("N1.csv", header, rows), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, report.OffGrid)
	assert.Len(t, draft.Readings, 48)
	for i := 1; i < len(draft.Readings); i++ {
		require.True(t, draft.Readings[i-1].SourceTime.Before(draft.Readings[i].SourceTime), fmt.Sprintf("index %d", i))
	}
}
