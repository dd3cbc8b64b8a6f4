package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS daily_summaries (
	id           UUID PRIMARY KEY,
	fecha        TEXT NOT NULL,
	attended     INTEGER NOT NULL,
	entries      INTEGER NOT NULL,
	avg_wait     DOUBLE PRECISION NOT NULL,
	median_wait  DOUBLE PRECISION NOT NULL,
	peak_queue   INTEGER NOT NULL,
	period_start TIMESTAMPTZ NOT NULL,
	period_end   TIMESTAMPTZ NOT NULL,
	trigger      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS daily_summaries_period_end_idx ON daily_summaries (period_end DESC);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sum attendance.Summary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_summaries
			(id, fecha, attended, entries, avg_wait, median_wait, peak_queue, period_start, period_end, trigger)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		sum.ID, sum.Date, sum.Attended, sum.Entries, sum.AvgWait, sum.MedianWait,
		sum.PeakQueue, sum.PeriodStart, sum.PeriodEnd, string(sum.Trigger),
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent summaries first.
func (s *PostgresStore) ListSummaries(ctx context.Context, limit int) ([]attendance.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, fecha, attended, entries, avg_wait, median_wait, peak_queue, period_start, period_end, trigger
		 FROM daily_summaries ORDER BY period_end DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []attendance.Summary
	for rows.Next() {
		var (
			sum     attendance.Summary
			trigger string
		)
		if err := rows.Scan(&sum.ID, &sum.Date, &sum.Attended, &sum.Entries, &sum.AvgWait,
			&sum.MedianWait, &sum.PeakQueue, &sum.PeriodStart, &sum.PeriodEnd, &trigger); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Trigger = attendance.Trigger(trigger)
		out = append(out, sum)
	}
	return out, rows.Err()
}
