package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9191
  mode: release
database:
  user: heatquest
  password: secret
hotspot:
  strategy: adaptive
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "adaptive", cfg.Hotspot.Strategy)
	// Defaults fill the rest.
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultCellSizeM, cfg.Grid.CellSizeM)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := writeConfigFile(t, `
database:
  user: heatquest
hotspot:
  strategy: definitely-not-a-strategy
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HEATQUEST_DATABASE_USER", "envuser")
	t.Setenv("HEATQUEST_SERVER_PORT", "7777")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.Database.User)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustLoad("/nonexistent/config.yaml") })
}
