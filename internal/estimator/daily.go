package estimator

import (
	"math"
	"time"

	"operating-hours/internal/meter"
)

// Params tune the surge detector.
type Params struct {
	// Threshold is the normalised level a reading must exceed to open the
	// window and fall below to close it.
	Threshold float64
	// VariabilityRatio is the minimum max/mean for a day to be considered.
	VariabilityRatio float64
	// MinDuration is the shortest window reported.
	MinDuration time.Duration
}

// DefaultParams returns the standard detector settings.
func DefaultParams() Params {
	return Params{
		Threshold:        0.35,
		VariabilityRatio: 1.5,
		MinDuration:      5 * time.Hour,
	}
}

// EstimateDay looks for a single sustained surge in one day of chronologically
// ordered readings. It returns nil for flat days, surges that never close, and
// windows shorter than p.MinDuration.
func EstimateDay(day []meter.CanonicalReading, p Params) *meter.Window {
	if len(day) == 0 {
		return nil
	}

	lo, hi, sum := day[0].Quantity, day[0].Quantity, 0.0
	for _, r := range day {
		lo = math.Min(lo, r.Quantity)
		hi = math.Max(hi, r.Quantity)
		sum += r.Quantity
	}
	mean := sum / float64(len(day))
	ratio := hi / mean
	if math.IsNaN(ratio) || ratio < p.VariabilityRatio {
		return nil
	}

	span := hi - lo
	norm := func(q float64) float64 { return (q - lo) / span }

	start := -1
	for i, r := range day {
		if norm(r.Quantity) > p.Threshold {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	end := -1
	for i := start; i < len(day); i++ {
		if norm(day[i].Quantity) < p.Threshold {
			end = i
			break
		}
	}
	if end < 0 {
		return nil
	}

	opened, closed := day[start].LocalTime, day[end].LocalTime
	if wallClock(closed).Sub(wallClock(opened)) < p.MinDuration {
		return nil
	}

	return &meter.Window{
		Start: opened.Format(meter.TimeOfDayLayout),
		End:   closed.Format(meter.TimeOfDayLayout),
	}
}

// wallClock drops the zone so durations are measured on the local clock face.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
