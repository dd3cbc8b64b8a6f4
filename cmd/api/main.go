package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/internal/api"
	"github.com/your-org/fila/internal/api/handlers"
	"github.com/your-org/fila/internal/api/ws"
	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/auth"
	"github.com/your-org/fila/internal/bus"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/observability"
	"github.com/your-org/fila/internal/storage"
	"github.com/your-org/fila/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	issueToken := flag.String("issue-token", "", "print an admin token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		tok, err := auth.IssueAdminToken(cfg.Server.AdminSecret, *issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting queue API service", "port", cfg.Server.Port)

	engine, err := aggregate.NewEngine(cfg.Queue, nil)
	if err != nil {
		slog.Error("create engine", "error", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Pinger{}

	// Summary archive
	archiver := storage.NewArchiver(16)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archiver.Add("postgres", db)
		checks["postgres"] = db.Ping
	case "sqlite":
		db, err := storage.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			slog.Error("open sqlite", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archiver.Add("sqlite", db)
		checks["sqlite"] = db.Ping
	}
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		archiver.Add("minio", minioStore)
		checks["minio"] = minioStore.Ping
	}

	// Connect to NATS
	producer, err := bus.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	checks["nats"] = func(context.Context) error { return producer.Ping() }

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		archiver.Run(ctx)
	}()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	engine.OnReset(archiver.Submit)
	engine.OnReset(func(s attendance.Summary) {
		hub.Broadcast(ws.TypeReset, handlers.SummaryToResponse(s))
	})
	engine.OnStateChange(func(s aggregate.State) {
		hub.Broadcast(ws.TypeState, handlers.StateToResponse(s))
	})

	// Segment reports published by segmenters
	consumer, err := bus.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create report consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	reportH := handlers.NewReportHandler(engine)
	err = consumer.ConsumeReports(ctx, "api-segments", func(ctx context.Context, req dto.SegmentReportRequest) error {
		_, err := reportH.Ingest(req)
		var verr *aggregate.ValidationError
		if errors.As(err, &verr) {
			slog.Warn("rejected segment report", "camera_id", req.CameraID, "field", verr.Field, "error", err)
			return nil
		}
		return err
	})
	if err != nil {
		slog.Warn("start report consumer", "error", err)
	}

	// Closing-time resets happen even when cameras stop reporting.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.MaybeReset()
			}
		}
	}()

	limiter := api.NewRateLimiter(cfg.Server.ReportRateLimit, cfg.Server.ReportRateWindow, nil)
	go limiter.Run(ctx)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		AdminSecret: cfg.Server.AdminSecret,
		Engine:      engine,
		Hub:         hub,
		History:     archiver.Primary(),
		ReportLimit: limiter,
		Checks:      checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	wg.Wait()

	slog.Info("API server stopped")
}
