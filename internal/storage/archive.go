package storage

import (
	"context"

	"github.com/your-org/fila/internal/attendance"
)

// DefaultHistoryLimit bounds ListSummaries when the caller passes no limit.
const DefaultHistoryLimit = 30

// SummaryStore persists the summaries of closed statistics periods.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s attendance.Summary) error
	ListSummaries(ctx context.Context, limit int) ([]attendance.Summary, error)
	Ping(ctx context.Context) error
	Close()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 365 {
		return DefaultHistoryLimit
	}
	return limit
}
