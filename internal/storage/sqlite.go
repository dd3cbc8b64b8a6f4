package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/your-org/fila/internal/attendance"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS daily_summaries (
	id           TEXT PRIMARY KEY,
	fecha        TEXT NOT NULL,
	attended     INTEGER NOT NULL,
	entries      INTEGER NOT NULL,
	avg_wait     REAL NOT NULL,
	median_wait  REAL NOT NULL,
	peak_queue   INTEGER NOT NULL,
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	trigger      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS daily_summaries_period_end_idx ON daily_summaries (period_end DESC);
`

// SQLiteStore is the embedded alternative to PostgresStore for single-host
// deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sum attendance.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_summaries
			(id, fecha, attended, entries, avg_wait, median_wait, peak_queue, period_start, period_end, trigger)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.Date, sum.Attended, sum.Entries, sum.AvgWait, sum.MedianWait, sum.PeakQueue,
		sum.PeriodStart.UTC().Format(time.RFC3339Nano), sum.PeriodEnd.UTC().Format(time.RFC3339Nano),
		string(sum.Trigger),
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent summaries first.
func (s *SQLiteStore) ListSummaries(ctx context.Context, limit int) ([]attendance.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fecha, attended, entries, avg_wait, median_wait, peak_queue, period_start, period_end, trigger
		 FROM daily_summaries ORDER BY period_end DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []attendance.Summary
	for rows.Next() {
		var (
			sum                 attendance.Summary
			start, end, trigger string
		)
		if err := rows.Scan(&sum.ID, &sum.Date, &sum.Attended, &sum.Entries, &sum.AvgWait,
			&sum.MedianWait, &sum.PeakQueue, &start, &end, &trigger); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if sum.PeriodStart, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("parse period_start: %w", err)
		}
		if sum.PeriodEnd, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("parse period_end: %w", err)
		}
		sum.Trigger = attendance.Trigger(trigger)
		out = append(out, sum)
	}
	return out, rows.Err()
}
