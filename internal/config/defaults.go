// Package config provides configuration loading, defaults, and validation for
// the HeatQuest backend.
package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "heatquest"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultSceneBucket   = "raster-scenes"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultCellSizeM is the fine grid resolution, matching Landsat thermal
	// band ground sampling.
	DefaultCellSizeM  = 30.0
	DefaultMaxRadiusM = 2000.0

	// DefaultNDVIWeight is the vegetation discount in the heat score formula.
	DefaultNDVIWeight = 0.3
	// DefaultEstimatedNDVI is the flat urban fallback when no vegetation
	// raster is available.
	DefaultEstimatedNDVI = 0.3

	DefaultHotspotStrategy   = "percentile"
	DefaultPercentile        = 0.05
	DefaultStdDevFactor      = 1.5
	DefaultColormap          = "YlOrRd"
	DefaultColorRedMin       = 200
	DefaultColorContrast     = 50
	DefaultAdaptiveCVSplit   = 0.3

	DefaultAnalysisPerRequest = 2
	DefaultAnalysisPerDay     = 5
	DefaultImageZoom          = 18
	DefaultImageSizePixels    = 640

	DefaultMissionMinHeatScore = 11.0
	DefaultMissionsPerRun      = 5
	DefaultCompletionPoints    = 100
)

// ApplyDefaults fills every zero-value field in cfg with the backend default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling and before Validate() so that optional-but-defaulted
// fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "heatquest"
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = time.Hour
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.SceneBucket == "" {
		cfg.MinIO.SceneBucket = DefaultSceneBucket
	}

	// ── Grid / heatmap ────────────────────────────────────────────────────────
	if cfg.Grid.CellSizeM == 0 {
		cfg.Grid.CellSizeM = DefaultCellSizeM
	}
	if cfg.Grid.MaxRadiusM == 0 {
		cfg.Grid.MaxRadiusM = DefaultMaxRadiusM
	}
	if cfg.Heatmap.NDVIWeight == 0 {
		cfg.Heatmap.NDVIWeight = DefaultNDVIWeight
	}
	if cfg.Heatmap.EstimatedNDVI == 0 {
		cfg.Heatmap.EstimatedNDVI = DefaultEstimatedNDVI
	}
	if cfg.Heatmap.CacheTTL == 0 {
		cfg.Heatmap.CacheTTL = 24 * time.Hour
	}

	// ── Hotspot ───────────────────────────────────────────────────────────────
	if cfg.Hotspot.Strategy == "" {
		cfg.Hotspot.Strategy = DefaultHotspotStrategy
	}
	if cfg.Hotspot.Percentile == 0 {
		cfg.Hotspot.Percentile = DefaultPercentile
	}
	if cfg.Hotspot.StdDevFactor == 0 {
		cfg.Hotspot.StdDevFactor = DefaultStdDevFactor
	}
	if cfg.Hotspot.Colormap == "" {
		cfg.Hotspot.Colormap = DefaultColormap
	}
	if cfg.Hotspot.ColorRedMin == 0 {
		cfg.Hotspot.ColorRedMin = DefaultColorRedMin
	}
	if cfg.Hotspot.ColorContrast == 0 {
		cfg.Hotspot.ColorContrast = DefaultColorContrast
	}
	if cfg.Hotspot.AdaptiveCVSplit == 0 {
		cfg.Hotspot.AdaptiveCVSplit = DefaultAdaptiveCVSplit
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.MaxPerRequest == 0 {
		cfg.Analysis.MaxPerRequest = DefaultAnalysisPerRequest
	}
	if cfg.Analysis.MaxPerUserDaily == 0 {
		cfg.Analysis.MaxPerUserDaily = DefaultAnalysisPerDay
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 45 * time.Second
	}
	if cfg.Analysis.ImageZoom == 0 {
		cfg.Analysis.ImageZoom = DefaultImageZoom
	}
	if cfg.Analysis.ImageSizePixels == 0 {
		cfg.Analysis.ImageSizePixels = DefaultImageSizePixels
	}

	// ── Mission ───────────────────────────────────────────────────────────────
	if cfg.Mission.MinHeatScore == 0 {
		cfg.Mission.MinHeatScore = DefaultMissionMinHeatScore
	}
	if cfg.Mission.MaxPerGeneration == 0 {
		cfg.Mission.MaxPerGeneration = DefaultMissionsPerRun
	}
	if cfg.Mission.CompletionPoints == 0 {
		cfg.Mission.CompletionPoints = DefaultCompletionPoints
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
