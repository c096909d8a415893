// Package http assembles the gin route tree and the HTTP server around it.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/internal/interfaces/http/handlers"
	"github.com/edu008/HeatQuest/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil handlers leave their routes unregistered, which keeps partial
// wiring possible in tests.
type RouterConfig struct {
	Heatmap  *handlers.HeatmapHandler
	Analysis *handlers.AnalysisHandler
	Missions *handlers.MissionHandler
	Health   *handlers.HealthHandler

	Mode      string // gin mode: debug | release | test
	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := r.Group("/api/v1")
	{
		if cfg.Heatmap != nil {
			api.GET("/grid-heat-score-radius", cfg.Heatmap.ScanRadius)
		}
		if cfg.Analysis != nil {
			api.POST("/analysis/run", cfg.Analysis.Run)
			api.GET("/cells/:id/analysis", cfg.Analysis.GetForCell)
		}
		if cfg.Missions != nil {
			missions := api.Group("/missions")
			missions.POST("/generate", cfg.Missions.Generate)
			missions.GET("", cfg.Missions.List)
			missions.GET("/counts", cfg.Missions.Counts)
			missions.GET("/:id", cfg.Missions.Get)
			missions.POST("/:id/activate", cfg.Missions.Activate)
			missions.POST("/:id/complete", cfg.Missions.Complete)
			missions.POST("/:id/cancel", cfg.Missions.Cancel)
		}
	}

	return r
}
