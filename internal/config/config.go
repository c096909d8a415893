// Package config defines all configuration structures for the HeatQuest
// backend.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure sub-configurations
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer parameters for domain events.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
	Enabled         bool     `mapstructure:"enabled"`
}

// MinIOConfig holds the object store carrying prepared raster scenes.
type MinIOConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	SceneBucket string `mapstructure:"scene_bucket"`
	UseSSL      bool   `mapstructure:"use_ssl"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain sub-configurations
// ─────────────────────────────────────────────────────────────────────────────

// GridConfig controls how areas are tiled into analysis cells.
type GridConfig struct {
	CellSizeM  float64 `mapstructure:"cell_size_m"`
	MaxRadiusM float64 `mapstructure:"max_radius_m"`
}

// HeatmapConfig controls heat-score computation.
type HeatmapConfig struct {
	// NDVIWeight is the vegetation discount applied to surface temperature:
	// heat = tempC - NDVIWeight * ndvi.
	NDVIWeight float64 `mapstructure:"ndvi_weight"`
	// EstimatedNDVI is the flat fallback value used when no vegetation raster
	// covers the area.
	EstimatedNDVI float64 `mapstructure:"estimated_ndvi"`
	// UseBatch selects the batched zonal engine; the per-cell path is kept for
	// comparison and fallback.
	UseBatch bool `mapstructure:"use_batch"`
	// CacheTTL bounds the redis fast-path entry for a parent cell key.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// HotspotConfig selects and tunes the hotspot detection strategy.
type HotspotConfig struct {
	Strategy        string  `mapstructure:"strategy"` // "percentile" | "stddev" | "color" | "adaptive"
	Percentile      float64 `mapstructure:"percentile"`
	StdDevFactor    float64 `mapstructure:"stddev_factor"`
	Colormap        string  `mapstructure:"colormap"`
	ColorRedMin     int     `mapstructure:"color_red_min"`
	ColorContrast   int     `mapstructure:"color_contrast"`
	AdaptiveCVSplit float64 `mapstructure:"adaptive_cv_split"`
}

// AnalysisConfig controls the dedup-gated downstream analysis.
type AnalysisConfig struct {
	MaxPerRequest   int           `mapstructure:"max_per_request"`
	MaxPerUserDaily int           `mapstructure:"max_per_user_daily"`
	Timeout         time.Duration `mapstructure:"timeout"`

	MapboxToken     string `mapstructure:"mapbox_token"`
	GoogleMapsKey   string `mapstructure:"google_maps_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	ImageZoom       int    `mapstructure:"image_zoom"`
	ImageSizePixels int    `mapstructure:"image_size_pixels"`
}

// MissionConfig controls mission generation.
type MissionConfig struct {
	MinHeatScore     float64 `mapstructure:"min_heat_score"`
	MaxPerGeneration int     `mapstructure:"max_per_generation"`
	CompletionPoints int     `mapstructure:"completion_points"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the backend.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Log      LogConfig      `mapstructure:"log"`

	Grid     GridConfig     `mapstructure:"grid"`
	Heatmap  HeatmapConfig  `mapstructure:"heatmap"`
	Hotspot  HotspotConfig  `mapstructure:"hotspot"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Mission  MissionConfig  `mapstructure:"mission"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka is optional; validate only when enabled.
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}

	// Grid
	if c.Grid.CellSizeM <= 0 {
		return fmt.Errorf("config: grid.cell_size_m must be positive, got %v", c.Grid.CellSizeM)
	}
	if c.Grid.MaxRadiusM <= 0 {
		return fmt.Errorf("config: grid.max_radius_m must be positive, got %v", c.Grid.MaxRadiusM)
	}

	// Hotspot
	switch c.Hotspot.Strategy {
	case "percentile", "stddev", "color", "adaptive":
	default:
		return fmt.Errorf("config: hotspot.strategy %q is invalid; expected percentile|stddev|color|adaptive", c.Hotspot.Strategy)
	}
	if c.Hotspot.Percentile <= 0 || c.Hotspot.Percentile >= 1 {
		return fmt.Errorf("config: hotspot.percentile must be in (0, 1), got %v", c.Hotspot.Percentile)
	}
	if c.Hotspot.StdDevFactor <= 0 {
		return fmt.Errorf("config: hotspot.stddev_factor must be positive, got %v", c.Hotspot.StdDevFactor)
	}

	// Analysis
	if c.Analysis.MaxPerRequest < 1 || c.Analysis.MaxPerRequest > 2 {
		return fmt.Errorf("config: analysis.max_per_request must be 1 or 2, got %d", c.Analysis.MaxPerRequest)
	}
	if c.Analysis.MaxPerUserDaily < 1 {
		return fmt.Errorf("config: analysis.max_per_user_daily must be >= 1, got %d", c.Analysis.MaxPerUserDaily)
	}

	// Mission
	if c.Mission.MaxPerGeneration < 1 {
		return fmt.Errorf("config: mission.max_per_generation must be >= 1, got %d", c.Mission.MaxPerGeneration)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}
