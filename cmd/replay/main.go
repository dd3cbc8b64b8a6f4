// Command replay publishes recorded detection frames, one JSON object per
// line, to the DETECTIONS stream at a fixed frame rate.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/fila/internal/bus"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/observability"
	"github.com/your-org/fila/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	input := flag.String("input", "-", "JSONL file of detection frames, - for stdin")
	camera := flag.String("camera", "", "camera id to stamp on frames without one (defaults to camera.id)")
	fps := flag.Float64("fps", 15, "frames per second")
	loop := flag.Bool("loop", false, "restart from the beginning at end of input")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *camera == "" {
		*camera = cfg.Camera.ID
	}
	if *fps <= 0 {
		fmt.Fprintln(os.Stderr, "fps must be positive")
		os.Exit(1)
	}

	producer, err := bus.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *fps))
	defer ticker.Stop()

	for {
		n, err := replay(ctx, *input, *camera, producer, ticker.C)
		slog.Info("replay pass finished", "frames", n)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("replay", "error", err)
				os.Exit(1)
			}
			return
		}
		if !*loop || *input == "-" {
			return
		}
	}
}

func replay(ctx context.Context, path, camera string, producer *bus.Producer, tick <-chan time.Time) (int, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	frames := 0
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var frame dto.DetectionFrame
		if err := json.Unmarshal(sc.Bytes(), &frame); err != nil {
			return frames, fmt.Errorf("decode line %d: %w", frames+1, err)
		}
		if frame.CameraID == "" {
			frame.CameraID = camera
		}

		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		case now := <-tick:
			frame.Timestamp = float64(now.UnixNano()) / 1e9
		}

		if err := producer.PublishDetections(ctx, frame); err != nil {
			return frames, err
		}
		frames++
	}
	return frames, sc.Err()
}
