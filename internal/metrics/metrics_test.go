package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineCounters(t *testing.T) {
	p := New()
	p.ObserveMeter(OutcomeEstimated, 10*time.Millisecond)
	p.ObserveMeter(OutcomeEstimated, 20*time.Millisecond)
	p.ObserveMeter(OutcomeSkipped, time.Millisecond)
	p.AddReadings("raw", 480)
	p.AddReadings("raw", 0)
	p.AddRemovedDays(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.meters.WithLabelValues(OutcomeEstimated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.meters.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 480.0, testutil.ToFloat64(p.readings.WithLabelValues("raw")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.removedDays))
}

func TestNilPipelineIsNoop(t *testing.T) {
	var p *Pipeline
	p.ObserveMeter(OutcomeFailed, time.Second)
	p.AddReadings("raw", 1)
	p.AddRemovedDays(1)
	p.MarkRun(time.Now())
}

func TestWriteTextfile(t *testing.T) {
	p := New()
	p.AddRemovedDays(3)
	p.MarkRun(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "ophours.prom")
	require.NoError(t, p.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.Contains(body, "ophours_removed_days_total 3"), body)
	assert.Contains(t, body, "# TYPE ophours_last_run_timestamp_seconds gauge")
}
