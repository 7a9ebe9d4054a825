package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"operating-hours/internal/meter"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertReadingSQL = `INSERT INTO canonical_readings (
        nmi,
        source_ts,
        local_ts,
        local_zone,
        quantity_kwh,
        unit
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (nmi, source_ts) DO UPDATE
    SET
        local_ts     = EXCLUDED.local_ts,
        local_zone   = EXCLUDED.local_zone,
        quantity_kwh = EXCLUDED.quantity_kwh,
        unit         = EXCLUDED.unit;`

	countReadingsSQL = `SELECT COUNT(*) FROM canonical_readings WHERE nmi = $1;`

	insertResultSQL = `INSERT INTO meter_results (
        run_id,
        nmi,
        state,
        window_start,
        window_end,
        support,
        qualifying_days,
        days_evaluated,
        status,
        reason
    ) VALUES (
        $1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (run_id, nmi) DO UPDATE
    SET state           = EXCLUDED.state,
        window_start    = EXCLUDED.window_start,
        window_end      = EXCLUDED.window_end,
        support         = EXCLUDED.support,
        qualifying_days = EXCLUDED.qualifying_days,
        days_evaluated  = EXCLUDED.days_evaluated,
        status          = EXCLUDED.status,
        reason          = EXCLUDED.reason
    RETURNING id, created_at;`

	resultColumns = `id,
        run_id::text,
        nmi,
        state,
        window_start,
        window_end,
        support,
        qualifying_days,
        days_evaluated,
        status,
        reason,
        created_at`

	listRecentResultsSQL = `SELECT ` + resultColumns + `
    FROM meter_results
    ORDER BY created_at DESC, nmi
    LIMIT $1;`

	listRunResultsSQL = `SELECT ` + resultColumns + `
    FROM meter_results
    WHERE run_id = $1::uuid
    ORDER BY nmi;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ReadingStore persists canonical series.
type ReadingStore interface {
	UpsertReadings(ctx context.Context, nmi string, readings []meter.CanonicalReading) error
	CountReadings(ctx context.Context, nmi string) (int64, error)
}

// ResultStore persists per-meter run outcomes.
type ResultStore interface {
	InsertResult(ctx context.Context, result MeterResult) (MeterResult, error)
	ListRecentResults(ctx context.Context, limit int) ([]MeterResult, error)
	ListRunResults(ctx context.Context, runID uuid.UUID) ([]MeterResult, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to canonical readings and meter results.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertReadings writes a meter's canonical series in one batch.
func (s *Store) UpsertReadings(ctx context.Context, nmi string, readings []meter.CanonicalReading) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range readings {
		batch.Queue(upsertReadingSQL,
			nmi,
			r.SourceTime,
			localWallClock(r.LocalTime),
			r.LocalTime.Location().String(),
			decimal.NewFromFloat(r.Quantity).String(),
			string(r.Unit),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range readings {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert reading %s @ %s: %w", nmi, readings[i].SourceTime.Format(time.RFC3339), execErr)
		}
	}
	return nil
}

// CountReadings counts stored readings for a meter.
func (s *Store) CountReadings(ctx context.Context, nmi string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countReadingsSQL, nmi).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count readings: %w", scanErr)
	}
	return count, nil
}

// InsertResult persists one meter outcome, replacing a previous row of the same run.
func (s *Store) InsertResult(ctx context.Context, result MeterResult) (MeterResult, error) {
	pool, err := s.getPool()
	if err != nil {
		return MeterResult{}, err
	}

	var reason interface{}
	if result.Reason != nil {
		reason = *result.Reason
	}

	row := pool.QueryRow(ctx, insertResultSQL,
		result.RunID.String(),
		result.NMI,
		result.State,
		result.WindowStart,
		result.WindowEnd,
		result.Support,
		result.QualifyingDays,
		result.DaysEvaluated,
		result.Status,
		reason,
	)
	if scanErr := row.Scan(&result.ID, &result.CreatedAt); scanErr != nil {
		return MeterResult{}, fmt.Errorf("insert result: %w", scanErr)
	}
	return result, nil
}

// ListRecentResults lists the most recent meter results.
func (s *Store) ListRecentResults(ctx context.Context, limit int) ([]MeterResult, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentResultsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent results: %w", queryErr)
	}
	return collectResults(rows)
}

// ListRunResults lists the results of one run ordered by NMI.
func (s *Store) ListRunResults(ctx context.Context, runID uuid.UUID) ([]MeterResult, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunResultsSQL, runID.String())
	if queryErr != nil {
		return nil, fmt.Errorf("list run results: %w", queryErr)
	}
	return collectResults(rows)
}

func collectResults(rows pgx.Rows) ([]MeterResult, error) {
	defer rows.Close()

	results := make([]MeterResult, 0)
	for rows.Next() {
		result, scanErr := scanMeterResult(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, result)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func scanMeterResult(rows pgx.Rows) (MeterResult, error) {
	var (
		rec         MeterResult
		runID       string
		windowStart sql.NullString
		windowEnd   sql.NullString
		reason      sql.NullString
	)

	if err := rows.Scan(
		&rec.ID,
		&runID,
		&rec.NMI,
		&rec.State,
		&windowStart,
		&windowEnd,
		&rec.Support,
		&rec.QualifyingDays,
		&rec.DaysEvaluated,
		&rec.Status,
		&reason,
		&rec.CreatedAt,
	); err != nil {
		return MeterResult{}, err
	}

	parsed, err := uuid.Parse(runID)
	if err != nil {
		return MeterResult{}, fmt.Errorf("parse run id: %w", err)
	}
	rec.RunID = parsed

	if windowStart.Valid {
		v := windowStart.String
		rec.WindowStart = &v
	}
	if windowEnd.Valid {
		v := windowEnd.String
		rec.WindowEnd = &v
	}
	if reason.Valid {
		v := reason.String
		rec.Reason = &v
	}
	return rec, nil
}

// localWallClock keeps the local clock face for a timestamp-without-zone column.
func localWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
