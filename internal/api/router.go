package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/internal/api/handlers"
	"github.com/your-org/fila/internal/api/ws"
	"github.com/your-org/fila/internal/auth"
	"github.com/your-org/fila/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	AdminSecret string
	Engine      *aggregate.Engine
	Hub         *ws.Hub
	// History serves archived summaries; nil when no archive is configured.
	History     storage.SummaryStore
	ReportLimit *RateLimiter
	Checks      map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	reportH := handlers.NewReportHandler(cfg.Engine)
	v1.POST("/segments/report", RateLimit(cfg.ReportLimit), reportH.Create)

	queueH := handlers.NewQueueHandler(cfg.Engine)
	v1.GET("/state", queueH.State)
	v1.GET("/queue", queueH.Queue)
	v1.GET("/segments", queueH.Segments)

	statsH := handlers.NewStatsHandler(cfg.Engine, cfg.History)
	v1.GET("/statistics", statsH.Statistics)
	v1.GET("/statistics/history", statsH.History)

	configH := handlers.NewConfigHandler(cfg.Engine)
	v1.GET("/config", configH.Get)

	// Admin
	admin := v1.Group("")
	admin.Use(auth.AdminMiddleware(cfg.AdminSecret))
	admin.PUT("/config/schedule", configH.SetSchedule)
	admin.PUT("/config/service-time", configH.SetServiceTime)
	admin.PUT("/config/secondary-window", configH.SetSecondaryWindow)
	admin.POST("/reset", configH.Reset)

	return r
}
