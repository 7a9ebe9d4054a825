package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"operating-hours/internal/storage"
)

// Show prints recent meter results, or the results of one run.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show results")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var results []storage.MeterResult
	if opts.RunID != "" {
		runID, parseErr := uuid.Parse(opts.RunID)
		if parseErr != nil {
			return fmt.Errorf("invalid run id: %w", parseErr)
		}
		results, err = store.ListRunResults(ctx, runID)
	} else {
		results, err = store.ListRecentResults(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(a.Out, "no results found")
		return nil
	}

	writeResults(a.Out, results)
	return nil
}

func writeResults(out io.Writer, results []storage.MeterResult) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tRun\tNMI\tState\tStatus\tWindow\tSupport\tQualifying\tEvaluated\tReason")

	for _, r := range results {
		reason := ""
		if r.Reason != nil {
			reason = sanitizeInline(*r.Reason)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.CreatedAt.UTC().Format(time.RFC3339),
			shortID(r.RunID),
			r.NMI,
			r.State,
			r.Status,
			r.Window(),
			r.Support,
			r.QualifyingDays,
			r.DaysEvaluated,
			reason,
		)
	}

	writer.Flush()
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
