package storage

import (
	"time"

	"github.com/google/uuid"
)

// MeterResult is a persisted per-meter outcome of one batch run.
type MeterResult struct {
	ID             int64
	RunID          uuid.UUID
	NMI            string
	State          string
	WindowStart    *string
	WindowEnd      *string
	Support        int
	QualifyingDays int
	DaysEvaluated  int
	Status         string
	Reason         *string
	CreatedAt      time.Time
}

// Window renders the stored window, or "" when none was found.
func (r MeterResult) Window() string {
	if r.WindowStart == nil || r.WindowEnd == nil {
		return ""
	}
	return *r.WindowStart + " to " + *r.WindowEnd
}
