package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, "quote-sync", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Environment)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./logs/quote-sync.log", cfg.Log.File.Path)

	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, DefaultClientRetryMaxAttempts, cfg.Client.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Client.Retry.InitialInterval)
	assert.Equal(t, 30*time.Second, cfg.Client.CircuitBreaker.Timeout)

	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.Services.Quote.BaseURL)
	assert.Equal(t, "quote-source", cfg.Services.Quote.Name)
	assert.Equal(t, "/posts", cfg.Services.Quote.Path)

	assert.Equal(t, StorageDriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)

	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, DefaultSyncBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, DefaultProvenanceCategory, cfg.Sync.ProvenanceCategory)
	assert.Equal(t, "identity-merge", cfg.Sync.Policy)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_LOG_LEVEL", "warn")
	t.Setenv("APP_SYNC_BATCH_SIZE", "12")
	t.Setenv("APP_SYNC_POLICY", "server-replace")
	t.Setenv("APP_STORAGE_DRIVER", "memory")
	t.Setenv("APP_SERVICES_QUOTE_BASE_URL", "http://localhost:9999")
	t.Setenv("APP_TELEMETRY_ENABLED", "true")

	cfg, err := LoadFrom(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 12, cfg.Sync.BatchSize)
	assert.Equal(t, "server-replace", cfg.Sync.Policy)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "http://localhost:9999", cfg.Services.Quote.BaseURL)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_FilePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  environment: dev
sync:
  interval: 30s
  provenance_category: Remote
`)
	writeConfig(t, dir, "test.yaml", `
app:
  environment: test
storage:
  driver: memory
`)
	t.Setenv("APP_SYNC_INTERVAL", "45s")

	cfg, err := LoadFrom(dir, "test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "Remote", cfg.Sync.ProvenanceCategory)
	assert.Equal(t, 45*time.Second, cfg.Sync.Interval)
}

func TestLoad_NonExistentProfile(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "nonexistent")
	require.NoError(t, err)

	assert.Equal(t, "quote-sync", cfg.App.Name)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "sync: [unterminated")

	_, err := LoadFrom(dir, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading base config")
}

func TestEnvKeyMapper(t *testing.T) {
	mapper := envKeyMapper([]string{"sync.batch_size", "server.port", "services.quote.base_url"})

	assert.Equal(t, "sync.batch_size", mapper("APP_SYNC_BATCH_SIZE"))
	assert.Equal(t, "server.port", mapper("APP_SERVER_PORT"))
	assert.Equal(t, "services.quote.base_url", mapper("APP_SERVICES_QUOTE_BASE_URL"))
	assert.Equal(t, "brand.new.key", mapper("APP_BRAND_NEW_KEY"))
}
