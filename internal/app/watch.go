package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"operating-hours/internal/pipeline"
	"operating-hours/internal/scheduler"
)

// Watch re-runs the full pipeline on the configured interval until signalled.
// A run that finds the advisory lock held elsewhere is skipped.
func (a *App) Watch(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.Align,
		StartupDelay: a.Config.Watch.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Msg("starting watch loop")
	err := sched.Run(ctx, func(ctx context.Context, at time.Time) error {
		_, err := a.Run(ctx, opts)
		if errors.Is(err, pipeline.ErrLocked) {
			a.Logger.Debug().Time("at", at).Msg("skip run because advisory lock held elsewhere")
			return nil
		}
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}
