package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/fila/internal/bus"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/observability"
	"github.com/your-org/fila/internal/segmenter"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "address for /metrics and /healthz")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting segmenter",
		"camera_id", cfg.Camera.ID,
		"segment", cfg.Camera.Segment,
		"send_interval", cfg.Camera.SendInterval.String(),
	)

	// Connect to NATS
	producer, err := bus.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	seg, err := segmenter.New(cfg.Camera, producer, nil)
	if err != nil {
		slog.Error("create segmenter", "error", err)
		os.Exit(1)
	}

	consumer, err := bus.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeDetections(ctx, "segmenter-"+cfg.Camera.ID, cfg.Camera.ID, seg.HandleFrame)
	if err != nil {
		slog.Error("start detections consumer", "error", err)
		os.Exit(1)
	}

	go seg.Run(ctx, cfg.Camera.SendInterval)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("segmenter metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down segmenter...")
	cancel()
	time.Sleep(time.Second)
	slog.Info("segmenter stopped")
}
