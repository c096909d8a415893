package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate after defaults.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Database.User = "heatquest"
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"bad server mode", func(c *Config) { c.Server.Mode = "production" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing db user", func(c *Config) { c.Database.User = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"bad cell size", func(c *Config) { c.Grid.CellSizeM = -30 }},
		{"unknown hotspot strategy", func(c *Config) { c.Hotspot.Strategy = "kmeans" }},
		{"percentile out of range", func(c *Config) { c.Hotspot.Percentile = 1.5 }},
		{"per-request cap too high", func(c *Config) { c.Analysis.MaxPerRequest = 3 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"kafka enabled without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyDefaults_DomainConstants(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	assert.Equal(t, 30.0, cfg.Grid.CellSizeM)
	assert.Equal(t, 0.3, cfg.Heatmap.NDVIWeight)
	assert.Equal(t, 0.3, cfg.Heatmap.EstimatedNDVI)
	assert.Equal(t, 0.05, cfg.Hotspot.Percentile)
	assert.Equal(t, 1.5, cfg.Hotspot.StdDevFactor)
	assert.Equal(t, "YlOrRd", cfg.Hotspot.Colormap)
	assert.Equal(t, 0.3, cfg.Hotspot.AdaptiveCVSplit)
	assert.Equal(t, 2, cfg.Analysis.MaxPerRequest)
	assert.Equal(t, 5, cfg.Analysis.MaxPerUserDaily)
	assert.Equal(t, 11.0, cfg.Mission.MinHeatScore)
	assert.Equal(t, 5, cfg.Mission.MaxPerGeneration)
	assert.Equal(t, 100, cfg.Mission.CompletionPoints)
}

func TestApplyDefaults_DoesNotOverrideExplicit(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Server.Port = 9090
	cfg.Hotspot.Strategy = "adaptive"
	cfg.Mission.MinHeatScore = 15.5
	ApplyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "adaptive", cfg.Hotspot.Strategy)
	assert.Equal(t, 15.5, cfg.Mission.MinHeatScore)
}

func TestApplyDefaults_NilIsSafe(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
