package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Store.Port)
	assert.Equal(t, "smartmoney", cfg.Store.Database)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout())
	assert.Equal(t, "LOW", cfg.Alert.MinSeverity)
	assert.Equal(t, 24*time.Hour, cfg.Alert.DedupTTL())
	assert.Equal(t, 300*time.Second, cfg.ScanInterval())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  host: ch.internal
  database: analytics
alert:
  min_severity: high
  dedup_ttl_hours: 6
scheduler_interval_seconds: 120
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ch.internal", cfg.Store.Host)
	assert.Equal(t, "analytics", cfg.Store.Database)
	assert.Equal(t, "HIGH", cfg.Alert.MinSeverity, "severity is normalized to upper case")
	assert.Equal(t, 6*time.Hour, cfg.Alert.DedupTTL())
	assert.Equal(t, 120*time.Second, cfg.ScanInterval())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORE_HOST", "env-host")
	t.Setenv("STORE_PORT", "8123")
	t.Setenv("ALERT_MIN_SEVERITY", "CRITICAL")
	t.Setenv("WEBHOOK_URLS", "https://a.example, https://b.example")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "60")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Store.Host)
	assert.Equal(t, 8123, cfg.Store.Port)
	assert.Equal(t, "CRITICAL", cfg.Alert.MinSeverity)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Sinks.WebhookURLs)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval())
}

func TestInvalidSeverityRejected(t *testing.T) {
	t.Setenv("ALERT_MIN_SEVERITY", "SHOUTING")
	_, err := Load("")
	assert.Error(t, err)
}

func TestStorePathAppendsExtension(t *testing.T) {
	c := StoreConfig{Database: "analytics"}
	assert.Equal(t, "analytics.db", c.Path())
	c.Database = "analytics.db"
	assert.Equal(t, "analytics.db", c.Path())
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "LOW", cfg.Alert.MinSeverity)
}
