package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/fila/pkg/dto"
)

// ErrMalformed marks a message that can never be processed. Such messages
// are terminated instead of redelivered.
var ErrMalformed = errors.New("malformed message")

type (
	DetectionHandler func(ctx context.Context, frame dto.DetectionFrame) error
	ReportHandler    func(ctx context.Context, report dto.SegmentReportRequest) error
)

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL, "fila-consumer")
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeDetections delivers one camera's detection frames in order to a
// single handler goroutine.
func (c *Consumer) ConsumeDetections(ctx context.Context, consumerName, cameraID string, handler DetectionHandler) error {
	cfg := jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    2,
		FilterSubject: DetectionsSubject(cameraID),
	}
	return c.consume(ctx, DetectionsStreamName, cfg, func(ctx context.Context, data []byte) error {
		var frame dto.DetectionFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("%w: decode detections: %v", ErrMalformed, err)
		}
		return handler(ctx, frame)
	})
}

// ConsumeReports delivers segment reports from every camera, starting with
// new messages only.
func (c *Consumer) ConsumeReports(ctx context.Context, consumerName string, handler ReportHandler) error {
	cfg := jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: SegmentsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	return c.consume(ctx, SegmentsStreamName, cfg, func(ctx context.Context, data []byte) error {
		var report dto.SegmentReportRequest
		if err := json.Unmarshal(data, &report); err != nil {
			return fmt.Errorf("%w: decode segment report: %v", ErrMalformed, err)
		}
		return handler(ctx, report)
	})
}

func (c *Consumer) consume(ctx context.Context, streamName string, cfg jetstream.ConsumerConfig, handle func(context.Context, []byte) error) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch messages error", "stream", streamName, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				settle(msg, handle(ctx, msg.Data()))
			}
		}
	}()

	slog.Info("consumer started", "stream", streamName, "consumer", cfg.Name)
	return nil
}

func settle(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrMalformed):
		slog.Warn("dropping message", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
	default:
		slog.Error("process message error", "subject", msg.Subject(), "error", err)
		_ = msg.Nak()
	}
}

func (c *Consumer) Close() {
	c.nc.Close()
}
