package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/observability"
)

type sink struct {
	name  string
	store SummaryStore
}

// Archiver writes period summaries to every configured store from its own
// goroutine so that callers never block on I/O.
type Archiver struct {
	sinks   []sink
	ch      chan attendance.Summary
	timeout time.Duration
}

func NewArchiver(buffer int) *Archiver {
	if buffer <= 0 {
		buffer = 16
	}
	return &Archiver{
		ch:      make(chan attendance.Summary, buffer),
		timeout: 10 * time.Second,
	}
}

// Add registers a store. Call before Run.
func (a *Archiver) Add(name string, store SummaryStore) {
	a.sinks = append(a.sinks, sink{name: name, store: store})
}

// Primary returns the first registered store, or nil.
func (a *Archiver) Primary() SummaryStore {
	if len(a.sinks) == 0 {
		return nil
	}
	return a.sinks[0].store
}

// Submit queues a summary for writing. The summary is dropped with a warning
// when the buffer is full.
func (a *Archiver) Submit(sum attendance.Summary) {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	select {
	case a.ch <- sum:
	default:
		slog.Warn("archive buffer full, dropping summary", "date", sum.Date, "id", sum.ID)
	}
}

// Run writes queued summaries until ctx is cancelled, then flushes what is
// already buffered.
func (a *Archiver) Run(ctx context.Context) {
	for {
		select {
		case sum := <-a.ch:
			a.write(context.Background(), sum)
		case <-ctx.Done():
			for {
				select {
				case sum := <-a.ch:
					a.write(context.Background(), sum)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) write(ctx context.Context, sum attendance.Summary) {
	for _, s := range a.sinks {
		opCtx, cancel := context.WithTimeout(ctx, a.timeout)
		err := s.store.SaveSummary(opCtx, sum)
		cancel()
		if err != nil {
			slog.Error("archive summary", "sink", s.name, "id", sum.ID, "error", err)
			observability.ArchiveWrites.WithLabelValues(s.name, "error").Inc()
			continue
		}
		observability.ArchiveWrites.WithLabelValues(s.name, "ok").Inc()
		slog.Info("summary archived", "sink", s.name, "id", sum.ID, "date", sum.Date)
	}
}
