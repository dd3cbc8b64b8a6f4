// Package bus carries detections and segment reports over NATS JetStream.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/fila/pkg/dto"
)

const (
	DetectionsStreamName  = "DETECTIONS"
	DetectionsSubjectBase = "detections"
	SegmentsStreamName    = "SEGMENTS"
	SegmentsSubjectBase   = "segments"
)

// DetectionsSubject returns the subject a camera's detections are published on.
func DetectionsSubject(cameraID string) string {
	return DetectionsSubjectBase + "." + cameraID
}

// SegmentsSubject returns the subject a camera's segment reports are published on.
func SegmentsSubject(cameraID string) string {
	return SegmentsSubjectBase + "." + cameraID
}

func connect(natsURL, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL, "fila-producer")
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// StreamConfigs returns the JetStream streams the services rely on.
// Both hold short-lived data: a report older than the liveness window is
// worthless, and so is a detection frame.
func StreamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        DetectionsStreamName,
			Subjects:    []string{DetectionsSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      time.Minute,
			MaxMsgs:     100000,
			Storage:     jetstream.MemoryStorage,
			Discard:     jetstream.DiscardOld,
			Description: "Per-frame person detections by camera",
		},
		{
			Name:        SegmentsStreamName,
			Subjects:    []string{SegmentsSubjectBase + ".>"},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      time.Minute,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  5 * time.Second,
			Description: "Segment reports by camera",
		},
	}
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := StreamConfigs()

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishDetections publishes one frame of detections for a camera.
func (p *Producer) PublishDetections(ctx context.Context, frame dto.DetectionFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}
	if _, err := p.js.Publish(ctx, DetectionsSubject(frame.CameraID), payload); err != nil {
		return fmt.Errorf("publish detections: %w", err)
	}
	return nil
}

// PublishReport publishes a segment report. The message id dedupes retries
// of the same report within the stream's duplicate window.
func (p *Producer) PublishReport(ctx context.Context, report dto.SegmentReportRequest) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal segment report: %w", err)
	}
	msgID := fmt.Sprintf("%s-%d-%.3f", report.CameraID, report.Segment, report.Timestamp)
	if _, err := p.js.Publish(ctx, SegmentsSubject(report.CameraID), payload, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("publish segment report: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
