package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "intersection-1", cfg.IntersectionID)
	assert.Equal(t, time.Second, cfg.Signal.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Signal.Timing.BaseGreen)
	assert.Equal(t, 5*time.Second, cfg.Signal.Timing.Yellow)
	assert.Equal(t, 25*time.Second, cfg.Signal.Timing.Red)
	assert.Equal(t, 0.7, cfg.Classifier.Boundaries.Green)
	assert.Equal(t, 3, cfg.Classifier.GridRows)
	assert.Equal(t, 100, cfg.History.Capacity)
	assert.Equal(t, 0.3, cfg.Detector.MinConfidence)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SIGNAL_TICK_INTERVAL", "250ms")
	t.Setenv("DETECTOR_TIMEOUT", "10")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_NAME", "signals")
	t.Setenv("GRID_COLS", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 250*time.Millisecond, cfg.Signal.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.Detector.Timeout)
	assert.True(t, cfg.Database.Enabled)
	assert.Contains(t, cfg.Database.DSN(), "dbname=signals")
	assert.Equal(t, 4, cfg.Classifier.GridCols)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INTERSECTION_ID=main-and-5th\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("INTERSECTION_ID") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "main-and-5th", cfg.IntersectionID)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "signal.yaml")
	content := `
intersection_id: north-gate
signal:
  tick_interval: 500ms
  timing:
    base_green: 20s
    heavy_green: 90s
classifier:
  boundaries:
    red: 0.2
    yellow: 0.5
    green: 0.8
  grid_rows: 4
mqtt:
  enabled: true
  topic_prefix: city/signals
history:
  capacity: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "north-gate", cfg.IntersectionID)
	assert.Equal(t, 500*time.Millisecond, cfg.Signal.TickInterval)
	assert.Equal(t, 20*time.Second, cfg.Signal.Timing.BaseGreen)
	assert.Equal(t, 90*time.Second, cfg.Signal.Timing.HeavyGreen)
	assert.Equal(t, 40*time.Second, cfg.Signal.Timing.ModerateGreen, "unset keys keep defaults")
	assert.Equal(t, 0.8, cfg.Classifier.Boundaries.Green)
	assert.Equal(t, 4, cfg.Classifier.GridRows)
	assert.Equal(t, 3, cfg.Classifier.GridCols)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "city/signals", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10, cfg.History.Capacity)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())

	tests := map[string]string{
		"SERVER_PORT":          "70000",
		"SIGNAL_TICK_INTERVAL": "-1s",
		"GRID_ROWS":            "0",
		"HISTORY_CAPACITY":     "-5",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "/nonexistent/signal.yaml")

	_, err := LoadConfig()
	assert.Error(t, err)
}
