// Package bootstrap assembles the full backend from configuration: database,
// cache, object store, messaging, metrics, the application services, and the
// HTTP server.  Both the serve command and the worker build on it.
package bootstrap

import (
	"context"

	"github.com/edu008/HeatQuest/internal/application/analysis"
	"github.com/edu008/HeatQuest/internal/application/heatmap"
	"github.com/edu008/HeatQuest/internal/application/hotspot"
	"github.com/edu008/HeatQuest/internal/application/mission"
	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/infrastructure/database/postgres"
	"github.com/edu008/HeatQuest/internal/infrastructure/database/postgres/repositories"
	"github.com/edu008/HeatQuest/internal/infrastructure/database/redis"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/internal/infrastructure/storage/minio"
	"github.com/edu008/HeatQuest/internal/infrastructure/vision"
	httpserver "github.com/edu008/HeatQuest/internal/interfaces/http"
	"github.com/edu008/HeatQuest/internal/interfaces/http/handlers"
)

// App holds the wired backend.
type App struct {
	Config *config.Config
	Logger logging.Logger

	DB       *postgres.Connection
	Redis    *redis.Client
	Cache    redis.Cache
	Quota    *redis.DailyQuota
	Storage  *minio.Client
	Scenes   *minio.SceneStore
	Producer *kafka.Producer
	Events   kafka.EventPublisher

	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Heatmap  heatmap.Service
	Analysis analysis.Service
	Missions mission.Service

	Server *httpserver.Server
}

// New wires the application.  Partial construction is cleaned up on error.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return nil, err
		}
	}

	db, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.DB = db

	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = redisClient
	a.Cache = redis.NewCache(redisClient, log,
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
	a.Quota = redis.NewDailyQuota(redisClient, log, "analysis", cfg.Analysis.MaxPerUserDaily)

	storage, err := minio.NewClient(cfg.MinIO, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = storage
	a.Scenes = minio.NewSceneStore(storage, log)

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Producer = producer
		a.Events = kafka.NewEventPublisher(producer, log)
	} else {
		a.Events = kafka.NewNopPublisher()
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "heatquest",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Collector = collector
	a.Metrics = prometheus.NewAppMetrics(collector)

	pool := db.Pool()
	parents := repositories.NewParentCellRepository(pool, log)
	children := repositories.NewChildCellRepository(pool, log)
	analyses := repositories.NewAnalysisRepository(pool, log)
	missions := repositories.NewMissionRepository(pool, log)

	detector, err := hotspot.NewDetector(cfg.Hotspot, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	scorer := heatmap.NewScorer(a.Scenes, cfg.Heatmap.NDVIWeight, cfg.Heatmap.EstimatedNDVI, log)
	a.Heatmap = heatmap.NewService(parents, children, scorer, detector,
		a.Cache, a.Events, a.Metrics, cfg.Grid, cfg.Heatmap, log)

	a.Analysis = analysis.NewService(children, analyses,
		newImagery(cfg.Analysis, log), newAnalyzer(cfg.Analysis, log),
		a.Quota, a.Events, a.Metrics, cfg.Analysis, log)

	a.Missions = mission.NewService(missions, analyses, children,
		a.Events, a.Metrics, cfg.Mission, log)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Heatmap:  handlers.NewHeatmapHandler(a.Heatmap),
		Analysis: handlers.NewAnalysisHandler(a.Analysis),
		Missions: handlers.NewMissionHandler(a.Missions),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(db.HealthCheck),
			"redis":    handlers.PingFunc(redisClient.Ping),
			"minio":    handlers.PingFunc(storage.HealthCheck),
		}),
		Mode:      cfg.Server.Mode,
		Logger:    log,
		Metrics:   a.Metrics,
		Collector: collector,
	})
	a.Server = httpserver.NewServer(cfg.Server, router, log)

	return a, nil
}

// newImagery builds the satellite imagery provider chain from the configured
// credentials.
func newImagery(cfg config.AnalysisConfig, log logging.Logger) *vision.ImageryChain {
	var providers []vision.ImageryProvider
	if cfg.MapboxToken != "" {
		providers = append(providers, vision.NewMapboxProvider(cfg.MapboxToken))
	}
	if cfg.GoogleMapsKey != "" {
		providers = append(providers, vision.NewGoogleProvider(cfg.GoogleMapsKey))
	}
	return vision.NewImageryChain(log, providers...)
}

// newAnalyzer builds the vision analyzer chain from the configured keys.
func newAnalyzer(cfg config.AnalysisConfig, log logging.Logger) *vision.AnalyzerChain {
	var analyzers []vision.Analyzer
	if cfg.GeminiAPIKey != "" {
		analyzers = append(analyzers, vision.NewGeminiAnalyzer(cfg.GeminiAPIKey, cfg.Timeout))
	}
	if cfg.OpenAIAPIKey != "" {
		analyzers = append(analyzers, vision.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.Timeout))
	}
	return vision.NewAnalyzerChain(log, analyzers...)
}

// Close releases every held resource; safe on a partially built App.
func (a *App) Close() {
	if a.Producer != nil {
		_ = a.Producer.Close()
	}
	if a.Storage != nil {
		_ = a.Storage.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
