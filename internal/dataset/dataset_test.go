package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operating-hours/internal/meter"
)

func TestReadTableRaggedRows(t *testing.T) {
	input := "\ufeffAESTTime, Quantity,Unit\n2024-06-01 00:00:00,1.5,KWH\n2024-06-01 00:30:00,2\n"
	table, err := ReadTable(strings.NewReader(input), "N1.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"AESTTime", "Quantity", "Unit"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1.5", table.Value(table.Rows[0], "Quantity"))
	assert.Equal(t, "", table.Value(table.Rows[1], "Unit"))
	assert.False(t, table.Has("Nmi"))
}

func TestReadTableEmpty(t *testing.T) {
	table, err := ReadTable(strings.NewReader(""), "empty.csv")
	require.NoError(t, err)
	assert.Empty(t, table.Header)
	assert.Empty(t, table.Rows)
}

func TestConsumptionDirMissingFile(t *testing.T) {
	_, err := ConsumptionDir{Root: t.TempDir()}.Load("NOPE")
	assert.True(t, errors.Is(err, meter.ErrNoReadings))
}

func TestCanonicalArtifactRoundTrip(t *testing.T) {
	brisbane, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	rec := meter.Record{NMI: "NMI01", Region: meter.RegionNSW, Interval: 30 * time.Minute}
	src := time.Date(2024, 1, 10, 9, 0, 0, 0, brisbane)
	readings := []meter.CanonicalReading{
		{SourceTime: src.Add(30 * time.Minute), LocalTime: src.Add(30 * time.Minute).In(sydney), Quantity: 2.25, Unit: meter.UnitKWh},
		{SourceTime: src, LocalTime: src.In(sydney), Quantity: 1, Unit: meter.UnitKWh},
	}

	dir := filepath.Join(t.TempDir(), "processed")
	path, err := WriteCanonical(dir, rec, readings)
	require.NoError(t, err)
	assert.Equal(t, "NMI01_NSW.csv", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "2024-01-10 09:00:00,2024-01-10 10:00:00,1,KWH")

	back, err := ReadCanonical(path, brisbane, sydney)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.True(t, back[0].SourceTime.Equal(src))
	assert.Equal(t, 10, back[0].LocalTime.Hour())
	assert.Equal(t, 2.25, back[1].Quantity)

	paths, err := ListArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestParseArtifactName(t *testing.T) {
	nmi, region, ok := ParseArtifactName("/tmp/processed/ABC_123_VIC.csv")
	require.True(t, ok)
	assert.Equal(t, "ABC_123", nmi)
	assert.Equal(t, meter.RegionVIC, region)

	_, _, ok = ParseArtifactName("nounderscore.csv")
	assert.False(t, ok)
}
