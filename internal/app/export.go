package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"operating-hours/internal/dataset"
	"operating-hours/internal/meter"
)

const defaultMaxPoints = 2000

// Export renders a cleaned artifact as CSV and/or PNG.
func (a *App) Export(_ context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.File == "" {
		return errors.New("--file must name a cleaned artifact")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = defaultMaxPoints
	}

	nmi, region, ok := dataset.ParseArtifactName(opts.File)
	if !ok {
		return fmt.Errorf("%s is not named <nmi>_<STATE>.csv", opts.File)
	}

	norm, err := a.normalizer()
	if err != nil {
		return err
	}
	local, err := norm.Zone(region)
	if err != nil {
		return err
	}

	series, err := dataset.ReadCanonical(opts.File, norm.Source(), local)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		a.Logger.Info().Str("nmi", nmi).Msg("no readings found for export")
		return nil
	}

	downsampled := downsampleReadings(series, opts.MaxPoints)
	a.Logger.Info().Str("nmi", nmi).Int("total", len(series)).Int("exported", len(downsampled)).Msg("exporting readings")

	if opts.CSVPath != "" {
		if err := writeReadingsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeReadingsPNG(opts.PNGPath, nmi, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleReadings(readings []meter.CanonicalReading, max int) []meter.CanonicalReading {
	if max <= 0 || len(readings) <= max {
		return readings
	}
	if max == 1 {
		return readings[:1]
	}

	result := make([]meter.CanonicalReading, 0, max)
	step := float64(len(readings)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(readings) {
			idx = len(readings) - 1
		}
		result = append(result, readings[idx])
	}
	return result
}

func writeReadingsCSV(path string, readings []meter.CanonicalReading) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"source_time", "local_time", "quantity_kwh"}); err != nil {
		return err
	}

	for _, r := range readings {
		record := []string{
			r.SourceTime.Format(dataset.WallClockLayout),
			r.LocalTime.Format(dataset.WallClockLayout),
			strconv.FormatFloat(r.Quantity, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeReadingsPNG(path, nmi string, readings []meter.CanonicalReading) error {
	if len(readings) < 2 {
		return errors.New("need at least two readings to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(readings))
	y := make([]float64, len(readings))
	for i, r := range readings {
		x[i] = r.LocalTime
		y[i] = r.Quantity
	}

	graph := chart.Chart{
		Title:  nmi,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Local time",
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Consumption (kWh)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Quantity",
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}
