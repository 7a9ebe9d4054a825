package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "ophours_"

// Outcome labels for processed meters.
const (
	OutcomeProcessed = "processed"
	OutcomeEstimated = "estimated"
	OutcomeNoPattern = "no_pattern"
	OutcomeNoData    = "no_data"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Pipeline holds the counters of one batch run on a private registry.
type Pipeline struct {
	registry *prometheus.Registry

	meters        *prometheus.CounterVec
	readings      *prometheus.CounterVec
	removedDays   prometheus.Counter
	meterDuration *prometheus.HistogramVec
	lastRun       prometheus.Gauge
}

// New registers the pipeline metrics.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		meters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "meters_total",
				Help: "Meters processed by outcome",
			},
			[]string{"outcome"},
		),
		readings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Readings seen per pipeline stage",
			},
			[]string{"stage"},
		),
		removedDays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "removed_days_total",
			Help: "Calendar days dropped for missing intervals",
		}),
		meterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "meter_duration_seconds",
				Help:    "Time spent on one meter pipeline",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished",
		}),
	}
	p.registry.MustRegister(p.meters, p.readings, p.removedDays, p.meterDuration, p.lastRun)
	return p
}

// ObserveMeter records the outcome of one meter.
func (p *Pipeline) ObserveMeter(outcome string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.meters.WithLabelValues(outcome).Inc()
	p.meterDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AddReadings counts readings at a stage ("raw", "clean").
func (p *Pipeline) AddReadings(stage string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.readings.WithLabelValues(stage).Add(float64(n))
}

// AddRemovedDays counts incomplete days dropped by cleaning.
func (p *Pipeline) AddRemovedDays(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.removedDays.Add(float64(n))
}

// MarkRun stamps the end of a run.
func (p *Pipeline) MarkRun(at time.Time) {
	if p == nil {
		return
	}
	p.lastRun.Set(float64(at.Unix()))
}

// Gatherer exposes the registry.
func (p *Pipeline) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
func (p *Pipeline) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
