package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/listsync"
)

// Store persists sync outcomes to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
// Retention and daily summaries are measured against now; nil means time.Now.
func NewStore(db *sql.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// Record saves an outcome. It implements listsync.Recorder.
func (s *Store) Record(ctx context.Context, o listsync.Outcome) error {
	started := o.StartedAt
	if started.IsZero() {
		started = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_outcomes (
			run_id, action, status, stage, week_start,
			manual_found, reinserted, reinsert_failed, notified,
			error, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, string(o.Action), string(o.Status), string(o.Stage), o.WeekStart,
		o.ManualFound, o.Reinserted, o.ReinsertFailed, o.Notified,
		o.Error, started.UnixMilli(), o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sync outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]listsync.Outcome, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, action, status, stage, week_start,
			manual_found, reinserted, reinsert_failed, notified,
			error, started_at, duration_ms
		FROM sync_outcomes
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync outcomes: %w", err)
	}
	defer rows.Close()

	var results []listsync.Outcome
	for rows.Next() {
		var (
			o                   listsync.Outcome
			action, status, stg string
			startedMS, duration int64
		)
		if err := rows.Scan(
			&o.RunID, &action, &status, &stg, &o.WeekStart,
			&o.ManualFound, &o.Reinserted, &o.ReinsertFailed, &o.Notified,
			&o.Error, &startedMS, &duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync outcome: %w", err)
		}
		o.Action = events.Action(action)
		o.Status = listsync.Status(status)
		o.Stage = listsync.Stage(stg)
		o.StartedAt = time.UnixMilli(startedMS).UTC()
		o.Duration = time.Duration(duration) * time.Millisecond
		results = append(results, o)
	}
	return results, rows.Err()
}

// DailySummary aggregates outcomes for a single day.
type DailySummary struct {
	Date       string `json:"date"`
	Runs       int    `json:"runs"`
	Failed     int    `json:"failed"`
	Reinserted int    `json:"reinserted"`
}

// GetDailySummary retrieves per-day totals for the last N days.
func (s *Store) GetDailySummary(ctx context.Context, days int) ([]DailySummary, error) {
	since := s.now().AddDate(0, 0, -days).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(started_at / 1000, 'unixepoch') AS day,
			COUNT(*),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			SUM(reinserted)
		FROM sync_outcomes
		WHERE started_at >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	defer rows.Close()

	var results []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.Runs, &d.Failed, &d.Reinserted); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_outcomes WHERE started_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sync outcomes: %w", err)
	}
	return res.RowsAffected()
}
