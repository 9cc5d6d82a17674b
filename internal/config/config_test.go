package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "EDGE_01", c.StationID)
	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, 90*time.Second, c.Cameras.StaleAfter.Std())
	assert.Equal(t, 300, c.RateLimit.Ingest.Rate)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
station_id: EDGE_07
mongo:
  timeout: 3s
cameras:
  stale_after: 2m
rate_limit:
  ingest:
    rate: 50
    window: 30s
`)
	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EDGE_07", c.StationID)
	assert.Equal(t, 3*time.Second, c.Mongo.Timeout.Std())
	assert.Equal(t, 2*time.Minute, c.Cameras.StaleAfter.Std())
	assert.Equal(t, 50, c.RateLimit.Ingest.LimitConfig().Rate)
	assert.Equal(t, 30*time.Second, c.RateLimit.Ingest.LimitConfig().Window)

	// Untouched keys keep their defaults.
	assert.Equal(t, "shield", c.Mongo.Database)
}

func TestLoad_BadDurationRejected(t *testing.T) {
	path := writeFile(t, "cameras:\n  stale_after: soon\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STATION_ID", "EDGE_99")
	t.Setenv("MONGO_URI", "mongodb://db:27017")

	c, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "EDGE_99", c.StationID)
	assert.Equal(t, "mongodb://db:27017", c.Mongo.URI)
}
