package estimator

import (
	"fmt"
	"time"

	"operating-hours/internal/meter"
)

// DateLayout is the layout of DateRange bounds in configuration.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// DefaultDateRange spans any plausible historical data.
func DefaultDateRange() DateRange {
	return DateRange{
		From: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// ParseDateRange parses two YYYY-MM-DD bounds.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse range start: %w", err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse range end: %w", err)
	}
	if t.Before(f) {
		return DateRange{}, fmt.Errorf("range end %s is before start %s", to, from)
	}
	return DateRange{From: f, To: t}, nil
}

// Contains reports whether the civil date of day lies within the range.
func (r DateRange) Contains(day time.Time) bool {
	d := civilDate(day)
	return !d.Before(civilDate(r.From)) && !d.After(civilDate(r.To))
}

// Daily runs EstimateDay for every source calendar day of a sorted series that
// falls within r, in chronological order.
func Daily(series []meter.CanonicalReading, r DateRange, p Params) []meter.DailyEstimate {
	var estimates []meter.DailyEstimate
	for _, day := range groupByDay(series) {
		if !r.Contains(day.date) {
			continue
		}
		estimates = append(estimates, meter.DailyEstimate{
			Day:    day.date,
			Window: EstimateDay(day.readings, p),
		})
	}
	return estimates
}

// Aggregate reduces the daily estimates of one meter to its most frequent window.
func Aggregate(nmi string, series []meter.CanonicalReading, r DateRange, p Params) meter.Result {
	return Summarize(nmi, Daily(series, r, p))
}

// Summarize reduces already computed daily estimates.
func Summarize(nmi string, daily []meter.DailyEstimate) meter.Result {
	result := meter.Result{NMI: nmi, DaysEvaluated: len(daily)}

	windows := make([]meter.Window, 0, len(daily))
	for _, d := range daily {
		if d.Window != nil {
			windows = append(windows, *d.Window)
		}
	}
	result.QualifyingDays = len(windows)

	if w, count, ok := Mode(windows); ok {
		result.Window = &w
		result.Support = count
	}
	return result
}

// Mode returns the most frequent window. Ties go to the window encountered first.
func Mode(windows []meter.Window) (meter.Window, int, bool) {
	counts := make(map[meter.Window]int, len(windows))
	order := make([]meter.Window, 0, len(windows))
	for _, w := range windows {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	var best meter.Window
	bestCount := 0
	for _, w := range order {
		if counts[w] > bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best, bestCount, bestCount > 0
}

type dayGroup struct {
	date     time.Time
	readings []meter.CanonicalReading
}

func groupByDay(series []meter.CanonicalReading) []dayGroup {
	var groups []dayGroup
	index := make(map[time.Time]int)
	for _, r := range series {
		key := civilDate(r.SourceTime)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, dayGroup{date: key})
		}
		groups[i].readings = append(groups[i].readings, r)
	}
	return groups
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
