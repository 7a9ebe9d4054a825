package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"operating-hours/internal/cleaner"
	"operating-hours/internal/dataset"
	"operating-hours/internal/estimator"
	"operating-hours/internal/meter"
	"operating-hours/internal/metrics"
	"operating-hours/internal/registry"
	"operating-hours/internal/storage"
	"operating-hours/internal/timezone"
	"operating-hours/internal/units"
)

// ErrLocked is returned when another run holds the advisory lock.
var ErrLocked = errors.New("pipeline: another run holds the advisory lock")

// ReadingSource yields the raw consumption table of a meter.
type ReadingSource interface {
	Load(nmi string) (*dataset.Table, error)
}

// Options tune a run.
type Options struct {
	Range        estimator.DateRange
	Params       estimator.Params
	Workers      int
	ProcessedDir string
	// Estimate runs the estimator after cleaning; false stops at the artifact.
	Estimate bool
	LockKey  int64
	// Prepare runs once the advisory lock is held, before any meter is dispatched.
	Prepare func() error
}

// Service orchestrates cleaning, estimation, and persistence per meter.
type Service struct {
	opts       Options
	source     ReadingSource
	normalizer *timezone.Normalizer
	readings   storage.ReadingStore
	results    storage.ResultStore
	locker     storage.AdvisoryLocker
	metrics    *metrics.Pipeline
	logger     zerolog.Logger
}

// New constructs the pipeline service. Stores may be nil to disable persistence.
func New(opts Options, source ReadingSource, normalizer *timezone.Normalizer, readings storage.ReadingStore, results storage.ResultStore, m *metrics.Pipeline, logger zerolog.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	var locker storage.AdvisoryLocker
	if l, ok := results.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		opts:       opts,
		source:     source,
		normalizer: normalizer,
		readings:   readings,
		results:    results,
		locker:     locker,
		metrics:    m,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run processes every registry entry and returns outcomes sorted by NMI.
// A cancelled context stops dispatching; the partial summary is returned with ctx.Err().
// A repeated NMI is skipped; only its first registry entry is processed.
func (s *Service) Run(ctx context.Context, runID uuid.UUID, entries []registry.Entry) (Summary, error) {
	unique, repeats := registry.SplitRepeats(entries)
	return s.fanOut(ctx, runID, len(unique), func(ctx context.Context, i int) Outcome {
		return s.Process(ctx, unique[i])
	}, repeats)
}

// RunArtifacts estimates every cleaned artifact in paths.
func (s *Service) RunArtifacts(ctx context.Context, runID uuid.UUID, paths []string) (Summary, error) {
	return s.fanOut(ctx, runID, len(paths), func(ctx context.Context, i int) Outcome {
		return s.EstimateArtifact(ctx, paths[i])
	}, nil)
}

func (s *Service) fanOut(ctx context.Context, runID uuid.UUID, n int, process func(context.Context, int) Outcome, repeats []registry.Entry) (Summary, error) {
	summary := Summary{RunID: runID, StartedAt: time.Now().UTC()}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return summary, err
	}
	if !proceed {
		return summary, ErrLocked
	}
	if unlock != nil {
		defer unlock()
	}

	if s.opts.Prepare != nil {
		if err := s.opts.Prepare(); err != nil {
			return summary, fmt.Errorf("prepare run: %w", err)
		}
	}

	logger := s.logger.With().Str("run_id", runID.String()).Logger()
	logger.Info().Int("meters", n).Int("workers", s.opts.Workers).Msg("run started")

	outcomes := make([]Outcome, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			out := process(gctx, i)
			s.persistResult(gctx, runID, out, logger)
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Status != "" {
			summary.Outcomes = append(summary.Outcomes, o)
		}
	}
	for _, e := range repeats {
		summary.Outcomes = append(summary.Outcomes, s.repeated(e, logger))
	}
	sortOutcomes(summary.Outcomes)
	summary.FinishedAt = time.Now().UTC()
	s.metrics.MarkRun(summary.FinishedAt)

	logger.Info().
		Int("estimated", summary.Count(StatusEstimated)).
		Int("no_pattern", summary.Count(StatusNoPattern)).
		Int("skipped", summary.Count(StatusSkipped)).
		Int("failed", summary.Count(StatusFailed)).
		Dur("elapsed", summary.Duration()).
		Msg("run finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Process runs one registry entry through cleaning, normalisation, and optionally estimation.
func (s *Service) Process(ctx context.Context, entry registry.Entry) Outcome {
	started := time.Now()
	out := Outcome{Entry: entry}
	logger := s.logger.With().Str("nmi", entry.NMI).Str("state", entry.State).Logger()

	defer func() {
		out.Elapsed = time.Since(started)
		s.metrics.ObserveMeter(string(out.Status), out.Elapsed)
		logOutcome(logger, out)
	}()

	rec, err := entry.Record()
	if err != nil {
		return s.fail(out, err)
	}
	out.Record = rec

	table, err := s.source.Load(rec.NMI)
	if err != nil {
		return s.fail(out, err)
	}

	draft, report, err := cleaner.Clean(table, rec.Interval)
	out.Report = report
	s.metrics.AddReadings("raw", report.Rows)
	if err != nil {
		return s.fail(out, err)
	}
	if report.RemovedDays > 0 {
		s.metrics.AddRemovedDays(report.RemovedDays)
		logger.Info().Int("days", report.RemovedDays).Msg("removed incomplete days")
	}
	if draft.Empty() {
		return s.fail(out, meter.ErrNoData)
	}
	s.metrics.AddReadings("clean", report.Kept)

	series, err := s.normalizer.Attach(draft, rec.Region)
	if err != nil {
		return s.fail(out, err)
	}
	series = units.ToKWh(series)

	if s.opts.ProcessedDir != "" {
		path, err := dataset.WriteCanonical(s.opts.ProcessedDir, rec, series)
		if err != nil {
			return s.fail(out, fmt.Errorf("write artifact: %w", err))
		}
		out.Artifact = path
	}

	if s.readings != nil {
		if err := s.readings.UpsertReadings(ctx, rec.NMI, series); err != nil {
			logger.Error().Err(err).Msg("failed to upsert readings")
		}
	}

	if !s.opts.Estimate {
		out.Status = StatusProcessed
		return out
	}
	return s.estimate(out, series)
}

// EstimateArtifact estimates a meter from a cleaned artifact named <nmi>_<STATE>.csv.
func (s *Service) EstimateArtifact(_ context.Context, path string) Outcome {
	started := time.Now()
	out := Outcome{Artifact: path}

	nmi, region, ok := dataset.ParseArtifactName(path)
	out.Entry = registry.Entry{NMI: nmi, State: string(region)}
	logger := s.logger.With().Str("nmi", nmi).Str("state", string(region)).Logger()

	defer func() {
		out.Elapsed = time.Since(started)
		s.metrics.ObserveMeter(string(out.Status), out.Elapsed)
		logOutcome(logger, out)
	}()

	if !ok {
		out.Entry.NMI = filepath.Base(path)
		return s.fail(out, &meter.InvalidMetadataError{Field: "artifact", Value: filepath.Base(path)})
	}
	out.Record = meter.Record{NMI: nmi, Region: region}

	local, err := s.normalizer.Zone(region)
	if err != nil {
		return s.fail(out, err)
	}
	series, err := dataset.ReadCanonical(path, s.normalizer.Source(), local)
	if err != nil {
		return s.fail(out, err)
	}
	if len(series) == 0 {
		return s.fail(out, meter.ErrNoData)
	}
	s.metrics.AddReadings("clean", len(series))

	return s.estimate(out, units.ToKWh(series))
}

func (s *Service) estimate(out Outcome, series []meter.CanonicalReading) Outcome {
	result := estimator.Aggregate(out.Record.NMI, series, s.opts.Range, s.opts.Params)
	result.Region = out.Record.Region
	out.Result = result
	if result.HasPattern() {
		out.Status = StatusEstimated
	} else {
		out.Status = StatusNoPattern
	}
	return out
}

// repeated reports a registry entry whose NMI was already dispatched. It is not
// persisted since the first entry owns the (run, nmi) result row.
func (s *Service) repeated(entry registry.Entry, logger zerolog.Logger) Outcome {
	out := s.fail(Outcome{Entry: entry}, &meter.InvalidMetadataError{NMI: entry.NMI, Field: "Nmi", Value: "repeated in registry"})
	s.metrics.ObserveMeter(string(out.Status), 0)
	logOutcome(logger.With().Str("nmi", entry.NMI).Str("state", entry.State).Logger(), out)
	return out
}

func (s *Service) fail(out Outcome, err error) Outcome {
	out.Err = err
	out.Status = classify(err)
	return out
}

func (s *Service) persistResult(ctx context.Context, runID uuid.UUID, out Outcome, logger zerolog.Logger) {
	if s.results == nil || out.Status == "" {
		return
	}
	if _, err := s.results.InsertResult(ctx, toMeterResult(runID, out)); err != nil {
		logger.Error().Err(err).Str("nmi", out.Entry.NMI).Msg("failed to persist meter result")
	}
}

func logOutcome(logger zerolog.Logger, out Outcome) {
	switch out.Status {
	case StatusSkipped:
		logger.Warn().Str("reason", out.Reason()).Msg("meter skipped")
	case StatusFailed:
		logger.Error().Err(out.Err).Msg("meter failed")
	case StatusNoData:
		logger.Info().Str("reason", out.Reason()).Msg("meter has no data")
	default:
		ev := logger.Info().
			Str("status", string(out.Status)).
			Int("kept", out.Report.Kept).
			Dur("elapsed", out.Elapsed)
		if out.Result.Window != nil {
			ev = ev.Str("window", out.Result.Window.String()).Int("support", out.Result.Support)
		}
		ev.Msg("meter processed")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
