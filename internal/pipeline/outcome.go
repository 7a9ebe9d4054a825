package pipeline

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"operating-hours/internal/cleaner"
	"operating-hours/internal/meter"
	"operating-hours/internal/metrics"
	"operating-hours/internal/registry"
	"operating-hours/internal/storage"
)

// Status is the terminal state of one meter in a run.
type Status string

const (
	StatusProcessed Status = metrics.OutcomeProcessed
	StatusEstimated Status = metrics.OutcomeEstimated
	StatusNoPattern Status = metrics.OutcomeNoPattern
	StatusNoData    Status = metrics.OutcomeNoData
	StatusSkipped   Status = metrics.OutcomeSkipped
	StatusFailed    Status = metrics.OutcomeFailed
)

// Outcome is what happened to one meter.
type Outcome struct {
	Entry    registry.Entry
	Record   meter.Record
	Status   Status
	Result   meter.Result
	Report   cleaner.Report
	Artifact string
	Err      error
	Elapsed  time.Duration
}

// Reason explains a skipped, failed or empty outcome.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary collects the outcomes of one run, ordered by NMI.
type Summary struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Count returns how many outcomes ended in status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func sortOutcomes(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Entry.NMI < outcomes[j].Entry.NMI
	})
}

// classify maps a stage error onto a status.
func classify(err error) Status {
	var invalid *meter.InvalidMetadataError
	switch {
	case errors.As(err, &invalid):
		return StatusSkipped
	case errors.Is(err, meter.ErrNoReadings), errors.Is(err, meter.ErrNoData):
		return StatusNoData
	default:
		return StatusFailed
	}
}

func toMeterResult(runID uuid.UUID, o Outcome) storage.MeterResult {
	rec := storage.MeterResult{
		RunID:          runID,
		NMI:            o.Entry.NMI,
		State:          o.Entry.State,
		Support:        o.Result.Support,
		QualifyingDays: o.Result.QualifyingDays,
		DaysEvaluated:  o.Result.DaysEvaluated,
		Status:         string(o.Status),
	}
	if w := o.Result.Window; w != nil {
		start, end := w.Start, w.End
		rec.WindowStart = &start
		rec.WindowEnd = &end
	}
	if reason := o.Reason(); reason != "" {
		rec.Reason = &reason
	}
	return rec
}
