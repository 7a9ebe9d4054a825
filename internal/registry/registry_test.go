package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operating-hours/internal/meter"
)

func TestLoadSortsAndKeepsInvalidValues(t *testing.T) {
	input := "Nmi,State,Interval\nQ200,TAS,30\nA100,NSW,30\nB150,qld,15.0\n"

	entries, err := Load(strings.NewReader(input), "nmi_info.csv")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "A100", entries[0].NMI)
	assert.Equal(t, "B150", entries[1].NMI)
	assert.Equal(t, "Q200", entries[2].NMI)

	_, err = entries[2].Record()
	var invalid *meter.InvalidMetadataError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "TAS", invalid.Value)

	rec, err := entries[1].Record()
	require.NoError(t, err)
	assert.Equal(t, meter.RegionQLD, rec.Region)
}

func TestLoadMissingColumns(t *testing.T) {
	_, err := Load(strings.NewReader("Nmi,Region\nA,NSW\n"), "nmi_info.csv")

	var schema *meter.SchemaError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, []string{"State", "Interval"}, schema.Missing)
}

func TestLoadFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "nmi_info.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nmi,State,Interval\nX,WA,30\n"), 0o644))
	entries, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{NMI: "X", State: "WA", Interval: "30"}}, entries)
}

func TestSplitRepeats(t *testing.T) {
	input := "Nmi,State,Interval\nA100,NSW,30\nB150,QLD,15\nA100,VIC,15\nA100,NSW,30\n"

	entries, err := Load(strings.NewReader(input), "nmi_info.csv")
	require.NoError(t, err)

	unique, repeats := SplitRepeats(entries)
	assert.Equal(t, []Entry{{NMI: "A100", State: "NSW", Interval: "30"}, {NMI: "B150", State: "QLD", Interval: "15"}}, unique)
	assert.Equal(t, []Entry{{NMI: "A100", State: "VIC", Interval: "15"}, {NMI: "A100", State: "NSW", Interval: "30"}}, repeats)
}
