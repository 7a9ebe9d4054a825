package estimator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operating-hours/internal/meter"
)

// stepDay builds a 30-minute day at base load with a surge in [open, close).
func stepDay(day time.Time, open, close time.Duration, base, surge float64) []meter.CanonicalReading {
	var out []meter.CanonicalReading
	for offset := time.Duration(0); offset < 24*time.Hour; offset += 30 * time.Minute {
		ts := day.Add(offset)
		q := base
		if offset >= open && offset < close {
			q = surge
		}
		out = append(out, meter.CanonicalReading{SourceTime: ts, LocalTime: ts, Quantity: q, Unit: meter.UnitKWh})
	}
	return out
}

func flatDay(day time.Time, q float64) []meter.CanonicalReading {
	return stepDay(day, 0, 0, q, q)
}

var june3 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func TestEstimateDayFlatIsNil(t *testing.T) {
	for _, q := range []float64{0, 0.5, 10, 1000} {
		assert.Nil(t, EstimateDay(flatDay(june3, q), DefaultParams()), "flat %v", q)
	}
}

func TestEstimateDayLowVariabilityIsNil(t *testing.T) {
	// max/mean = 12 / ((31*10+17*12)/48) ≈ 1.12
	day := stepDay(june3, 8*time.Hour, 16*time.Hour+30*time.Minute, 10, 12)
	assert.Nil(t, EstimateDay(day, DefaultParams()))
}

func TestEstimateDayStepWidths(t *testing.T) {
	for _, width := range []time.Duration{5 * time.Hour, 8*time.Hour + 30*time.Minute, 11 * time.Hour} {
		t.Run(width.String(), func(t *testing.T) {
			open := 7 * time.Hour
			day := stepDay(june3, open, open+width, 1, 10)

			w := EstimateDay(day, DefaultParams())
			require.NotNil(t, w)

			start, err := time.Parse(meter.TimeOfDayLayout, w.Start)
			require.NoError(t, err)
			end, err := time.Parse(meter.TimeOfDayLayout, w.End)
			require.NoError(t, err)
			assert.Equal(t, "07:00:00", w.Start)
			assert.Equal(t, width, end.Sub(start))
		})
	}
}

func TestEstimateDayShortWindowIsNil(t *testing.T) {
	day := stepDay(june3, 9*time.Hour, 13*time.Hour+30*time.Minute, 1, 20)
	assert.Nil(t, EstimateDay(day, DefaultParams()))
}

func TestEstimateDayNeverCloses(t *testing.T) {
	day := stepDay(june3, 18*time.Hour, 24*time.Hour, 1, 20)
	assert.Nil(t, EstimateDay(day, DefaultParams()))
}

func TestEstimateDayThresholdIsStrict(t *testing.T) {
	// A reading sitting exactly on the threshold neither opens nor closes.
	day := stepDay(june3, 8*time.Hour, 17*time.Hour, 0, 100)
	day[15].Quantity = 35 // 07:30
	day[34].Quantity = 35 // 17:00
	day[35].Quantity = 35 // 17:30

	w := EstimateDay(day, DefaultParams())
	require.NotNil(t, w)
	assert.Equal(t, meter.Window{Start: "08:00:00", End: "18:00:00"}, *w)
}

func TestEstimateDayUsesLocalClock(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	day := stepDay(june3, 8*time.Hour, 17*time.Hour, 1, 10)
	for i := range day {
		day[i].LocalTime = day[i].SourceTime.In(sydney)
	}

	w := EstimateDay(day, DefaultParams())
	require.NotNil(t, w)
	// 08:00 UTC is 18:00 in Sydney winter; the window runs past local midnight.
	assert.Equal(t, "18:00:00", w.Start)
	assert.Equal(t, "03:00:00", w.End)
}

func TestMode(t *testing.T) {
	a := meter.Window{Start: "09:00:00", End: "17:00:00"}
	b := meter.Window{Start: "09:00:00", End: "17:30:00"}

	w, n, ok := Mode([]meter.Window{b, a, b, a, a})
	require.True(t, ok)
	assert.Equal(t, a, w)
	assert.Equal(t, 3, n)

	w, n, ok = Mode([]meter.Window{b, a, a, b})
	require.True(t, ok)
	assert.Equal(t, b, w, "ties resolve to first encountered")
	assert.Equal(t, 2, n)

	_, _, ok = Mode(nil)
	assert.False(t, ok)
}

func TestSummarizeModeSelection(t *testing.T) {
	a := meter.Window{Start: "09:00:00", End: "17:00:00"}
	b := meter.Window{Start: "09:00:00", End: "17:30:00"}
	var daily []meter.DailyEstimate
	for i, w := range []meter.Window{a, b, a, b, a} {
		w := w
		daily = append(daily, meter.DailyEstimate{Day: june3.AddDate(0, 0, i), Window: &w})
	}
	daily = append(daily, meter.DailyEstimate{Day: june3.AddDate(0, 0, 5)})

	res := Summarize("N1", daily)

	require.NotNil(t, res.Window)
	assert.Equal(t, "09:00:00 to 17:00:00", res.Window.String())
	assert.Equal(t, 3, res.Support)
	assert.Equal(t, 5, res.QualifyingDays)
	assert.Equal(t, 6, res.DaysEvaluated)
}

func TestAggregateNoQualifyingDays(t *testing.T) {
	var series []meter.CanonicalReading
	for i := 0; i < 3; i++ {
		series = append(series, flatDay(june3.AddDate(0, 0, i), 4)...)
	}

	res := Aggregate("N1", series, DefaultDateRange(), DefaultParams())
	assert.False(t, res.HasPattern())
	assert.Equal(t, 0, res.QualifyingDays)
	assert.Equal(t, 3, res.DaysEvaluated)
}

func TestAggregateRespectsDateRange(t *testing.T) {
	var series []meter.CanonicalReading
	for i := 0; i < 6; i++ {
		open := 8 * time.Hour
		if i >= 3 {
			open = 9 * time.Hour
		}
		series = append(series, stepDay(june3.AddDate(0, 0, i), open, open+8*time.Hour, 1, 10)...)
	}

	r, err := ParseDateRange("2024-06-06", "2024-06-08")
	require.NoError(t, err)
	res := Aggregate("N1", series, r, DefaultParams())

	require.NotNil(t, res.Window)
	assert.Equal(t, "09:00:00 to 17:00:00", res.Window.String())
	assert.Equal(t, 3, res.Support)
	assert.Equal(t, 3, res.DaysEvaluated)
}

func TestParseDateRange(t *testing.T) {
	_, err := ParseDateRange("2024-02-01", "2024-01-01")
	assert.Error(t, err)

	_, err = ParseDateRange("01/01/2024", "2024-01-01")
	assert.Error(t, err)

	r, err := ParseDateRange("2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, r.Contains(time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func ExampleMode() {
	w, n, _ := Mode([]meter.Window{
		{Start: "08:00:00", End: "16:30:00"},
		{Start: "08:00:00", End: "16:30:00"},
		{Start: "07:30:00", End: "16:30:00"},
	})
	fmt.Println(w, n)
	// Output: 08:00:00 to 16:30:00 2
}
