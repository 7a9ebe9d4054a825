package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"operating-hours/internal/config"
	"operating-hours/internal/dataset"
	"operating-hours/internal/estimator"
	"operating-hours/internal/meter"
	"operating-hours/internal/metrics"
	"operating-hours/internal/notify"
	"operating-hours/internal/pipeline"
	"operating-hours/internal/registry"
	"operating-hours/internal/report"
	"operating-hours/internal/storage"
	"operating-hours/internal/timezone"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Out     io.Writer
	Metrics *metrics.Pipeline
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Out:     os.Stdout,
		Metrics: metrics.New(),
	}
}

// RunOptions override configuration for one batch.
type RunOptions struct {
	Workers int
	From    string
	To      string
	// NoPersist skips the database even when one is configured.
	NoPersist bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	RunID string
}

// ExportOptions hold parameters for exporting a cleaned series.
type ExportOptions struct {
	File      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Notify.Telegram.Enabled {
		cfg := a.Config.Notify.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Notify.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) normalizer() (*timezone.Normalizer, error) {
	source, err := time.LoadLocation(a.Config.Timezone.Source)
	if err != nil {
		return nil, fmt.Errorf("load source zone: %w", err)
	}

	names := timezone.DefaultZoneNames()
	if len(a.Config.Timezone.Regions) > 0 {
		names = make(map[meter.Region]string, len(a.Config.Timezone.Regions))
		for region, zone := range a.Config.Timezone.Regions {
			names[meter.Region(strings.ToUpper(region))] = zone
		}
	}
	zones, err := timezone.LoadZones(names)
	if err != nil {
		return nil, err
	}
	return timezone.NewNormalizer(source, zones)
}

func (a *App) dateRange(from, to string) (estimator.DateRange, error) {
	r := estimator.DateRange{From: a.Config.Estimator.From, To: a.Config.Estimator.To}
	if r.From.IsZero() && r.To.IsZero() {
		r = estimator.DefaultDateRange()
	}
	if from == "" && to == "" {
		return r, nil
	}
	if from == "" {
		from = r.From.Format(estimator.DateLayout)
	}
	if to == "" {
		to = r.To.Format(estimator.DateLayout)
	}
	return estimator.ParseDateRange(from, to)
}

func (a *App) params() estimator.Params {
	return estimator.Params{
		Threshold:        a.Config.Estimator.Threshold,
		VariabilityRatio: a.Config.Estimator.VariabilityRatio,
		MinDuration:      a.Config.Estimator.MinDuration,
	}
}

// service builds a pipeline service. A nil store disables persistence; prepare
// runs only after the advisory lock is taken.
func (a *App) service(opts RunOptions, estimate bool, processedDir string, store *storage.Store, prepare func() error) (*pipeline.Service, error) {
	norm, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	r, err := a.dateRange(opts.From, opts.To)
	if err != nil {
		return nil, err
	}

	var readingStore storage.ReadingStore
	var resultStore storage.ResultStore
	if store != nil {
		readingStore = store
		resultStore = store
	}

	return pipeline.New(pipeline.Options{
		Range:        r,
		Params:       a.params(),
		Workers:      a.Config.ResolveWorkers(opts.Workers),
		ProcessedDir: processedDir,
		Estimate:     estimate,
		LockKey:      a.Config.Database.AdvisoryLockKey,
		Prepare:      prepare,
	}, dataset.ConsumptionDir{Root: a.Config.Paths.DataDir}, norm, readingStore, resultStore, a.Metrics, a.Logger), nil
}

func (a *App) prepareProcessedDir() error {
	dir := a.Config.Paths.ProcessedDir
	if dir == "" {
		return nil
	}
	if a.Config.Paths.CleanProcessed {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean processed dir: %w", err)
		}
	}
	return os.MkdirAll(dir, 0o755)
}

// Process cleans every registered meter into the processed directory without estimating.
func (a *App) Process(ctx context.Context, opts RunOptions) (pipeline.Summary, error) {
	return a.batch(ctx, opts, false)
}

// Run executes the full pipeline: clean, estimate, persist, report, and notify.
func (a *App) Run(ctx context.Context, opts RunOptions) (pipeline.Summary, error) {
	return a.batch(ctx, opts, true)
}

func (a *App) batch(ctx context.Context, opts RunOptions, estimate bool) (pipeline.Summary, error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	entries, err := registry.LoadFile(a.Config.Paths.Registry)
	if err != nil {
		return pipeline.Summary{}, err
	}
	store, closeStore, err := a.store(ctx, opts)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.service(opts, estimate, a.Config.Paths.ProcessedDir, store, a.prepareProcessedDir)
	if err != nil {
		return pipeline.Summary{}, err
	}

	summary, err := svc.Run(ctx, uuid.New(), entries)
	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	a.finish(ctx, summary, estimate)
	return summary, err
}

// Estimate runs the estimator over every cleaned artifact in the processed directory.
func (a *App) Estimate(ctx context.Context, opts RunOptions) (pipeline.Summary, error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	paths, err := dataset.ListArtifacts(a.Config.Paths.ProcessedDir)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("list processed artifacts: %w", err)
	}
	if len(paths) == 0 {
		return pipeline.Summary{}, fmt.Errorf("no cleaned artifacts in %s: %w", a.Config.Paths.ProcessedDir, meter.ErrNoData)
	}

	store, closeStore, err := a.store(ctx, opts)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.service(opts, true, "", store, nil)
	if err != nil {
		return pipeline.Summary{}, err
	}

	summary, err := svc.RunArtifacts(ctx, uuid.New(), paths)
	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	a.finish(ctx, summary, true)
	return summary, err
}

func (a *App) store(ctx context.Context, opts RunOptions) (*storage.Store, func(), error) {
	if opts.NoPersist {
		return nil, nil, nil
	}
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	return store, closeStore, nil
}

// finish prints the per-meter lines and writes reports, metrics, and the notification.
// Failures here are logged; the run itself already succeeded.
func (a *App) finish(ctx context.Context, summary pipeline.Summary, estimated bool) {
	for _, o := range summary.Outcomes {
		fmt.Fprintln(a.Out, report.Line(o))
	}

	if estimated {
		a.writeReports(summary)
	}

	if path := a.Config.Metrics.Textfile; path != "" {
		if err := ensureDir(path); err != nil {
			a.Logger.Error().Err(err).Msg("failed to prepare metrics dir")
		} else if err := a.Metrics.WriteTextfile(path); err != nil {
			a.Logger.Error().Err(err).Str("path", path).Msg("failed to write metrics textfile")
		}
	}

	if notifier := a.newNotifier(); notifier != nil && estimated {
		if err := notifier.Notify(ctx, summary); err != nil {
			a.Logger.Error().Err(err).Msg("failed to dispatch run summary")
		}
	}
}

func (a *App) writeReports(summary pipeline.Summary) {
	outputs := []struct {
		path  string
		build func(pipeline.Summary) ([]byte, error)
	}{
		{a.Config.Report.XLSXPath, report.BuildSummaryXLSX},
		{a.Config.Report.PDFPath, report.BuildSummaryPDF},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		data, err := out.build(summary)
		if err == nil {
			err = writeFile(out.path, data)
		}
		if err != nil {
			a.Logger.Error().Err(err).Str("path", out.path).Msg("failed to write report")
			continue
		}
		a.Logger.Info().Str("path", out.path).Msg("report written")
	}
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
