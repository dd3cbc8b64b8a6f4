// Package segmenter turns one camera's detection frames into periodic
// segment reports.
package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/geo/r2"

	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/observability"
	"github.com/your-org/fila/internal/timeutil"
	"github.com/your-org/fila/internal/tracker"
	"github.com/your-org/fila/pkg/dto"
)

// Publisher delivers a segment report to the aggregation service.
type Publisher interface {
	PublishReport(ctx context.Context, report dto.SegmentReportRequest) error
}

type Segmenter struct {
	cameraID      string
	segment       int
	minConfidence float64
	zone          tracker.Zone
	tracker       *tracker.Tracker
	publisher     Publisher
	clock         timeutil.Clock
}

// New builds a segmenter for the camera described by cfg.
func New(cfg config.CameraConfig, publisher Publisher, clock timeutil.Clock) (*Segmenter, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("camera id is required")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	zone := tracker.Zone{
		Origin:    r2.Point{X: cfg.Origin[0], Y: cfg.Origin[1]},
		Direction: r2.Point{X: cfg.Direction[0], Y: cfg.Direction[1]},
	}
	for _, p := range cfg.Zone {
		zone.Polygon = append(zone.Polygon, r2.Point{X: p[0], Y: p[1]})
	}

	return &Segmenter{
		cameraID:      cfg.ID,
		segment:       cfg.Segment,
		minConfidence: cfg.MinConfidence,
		zone:          zone,
		tracker: tracker.NewTracker(tracker.Config{
			FusionDistance: cfg.FusionDistance,
			MaxDistance:    cfg.MaxDistance,
			MaxDisappeared: cfg.MaxDisappeared,
		}, clock),
		publisher: publisher,
		clock:     clock,
	}, nil
}

// HandleFrame applies one frame of detections to the tracker. Detections
// below the confidence threshold are ignored.
func (s *Segmenter) HandleFrame(_ context.Context, frame dto.DetectionFrame) error {
	if frame.CameraID != "" && frame.CameraID != s.cameraID {
		return nil
	}

	dets := make([]tracker.Detection, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		if d.Confidence < s.minConfidence {
			continue
		}
		box := tracker.BoxFromCorners(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
		dets = append(dets, tracker.Detection{
			Point:      tracker.FeetPoint(box),
			BBox:       box,
			Confidence: d.Confidence,
		})
	}

	_, evictedBefore := s.tracker.Totals()
	s.tracker.Update(dets)
	_, evictedAfter := s.tracker.Totals()

	observability.FramesProcessed.WithLabelValues(s.cameraID).Inc()
	observability.ActiveTracks.WithLabelValues(s.cameraID).Set(float64(s.tracker.TrackCount()))
	observability.TracksEvicted.WithLabelValues(s.cameraID).Add(float64(evictedAfter - evictedBefore))
	return nil
}

// Report builds the current segment report from the people inside the zone,
// ordered front to back.
func (s *Segmenter) Report() dto.SegmentReportRequest {
	ranked := s.tracker.OrderedInZone(s.zone)
	persons := make([]dto.LocalPerson, 0, len(ranked))
	for _, r := range ranked {
		persons = append(persons, dto.LocalPerson{
			LocalPos:   r.LocalPos,
			CenterY:    r.Position.Y,
			Confidence: r.Confidence,
		})
	}

	now := s.clock.Now()
	count := len(persons)
	return dto.SegmentReportRequest{
		Segment:   s.segment,
		CameraID:  s.cameraID,
		Count:     &count,
		Persons:   persons,
		Timestamp: float64(now.UnixNano()) / 1e9,
	}
}

// Run publishes a report every interval until ctx is cancelled. Publish
// failures are logged and the next tick tries again.
func (s *Segmenter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Publish(ctx); err != nil {
				slog.Warn("publish segment report", "camera_id", s.cameraID, "error", err)
			}
		}
	}
}

// Publish sends the current report once.
func (s *Segmenter) Publish(ctx context.Context) error {
	report := s.Report()
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishReport(opCtx, report); err != nil {
		return fmt.Errorf("publish segment %d: %w", s.segment, err)
	}
	observability.ReportsPublished.WithLabelValues(s.cameraID).Inc()
	slog.Debug("segment report published", "camera_id", s.cameraID, "segment", s.segment, "count", len(report.Persons))
	return nil
}
