package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DASHBOARD_PASSCODE", "PORT", "NOTION_API_KEY", "NOTION_DATABASE_ID",
		"TRADING_212_API_KEY", "TRADING_212_API_SECRET", "TRADING_212_BASE_URL",
		"LOG_LEVEL", "LOG_TRACING_ENABLED", "INSIGHTS_ENABLED", "COOKIE_SECURE", "SNAPSHOT_BUCKET",
		"BIGQUERY_PROJECT", "BIGQUERY_DATASET", "GEMINI_MODEL", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, 12*time.Hour, c.Server.SessionTTL)
	assert.Equal(t, "https://live.trading212.com", c.Trading212.BaseURL)
	assert.Equal(t, 20, c.Trading212.PageSize)
	assert.Equal(t, 3, c.Trading212.MaxRetries)
	assert.Equal(t, time.Second, c.Trading212.InitialBackoff)
	assert.Equal(t, 200*time.Millisecond, c.Trading212.PageDelay)
	assert.Equal(t, 500*time.Millisecond, c.Trading212.SourceDelay)
	assert.Equal(t, 1, c.Snapshot.Workers)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 5*time.Minute, c.Server.SessionSweep)
	assert.Empty(t, c.Server.AllowedOrigins)

	assert.True(t, errors.Is(c.ValidateServer(), ErrPasscodeNotConfigured))
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  session_ttl: 30m
  allowed_origins:
    - https://from-file.example
trading212:
  page_size: 50
  page_delay: 1s
log:
  level: debug
snapshot:
  bucket: from-file
`), 0o600))

	t.Setenv("DASHBOARD_PASSCODE", "1234")
	t.Setenv("SNAPSHOT_BUCKET", "from-env")
	t.Setenv("LOG_TRACING_ENABLED", "true")
	t.Setenv("INSIGHTS_ENABLED", "1")
	t.Setenv("NOTION_DATABASE_ID", `{"Finance 2026":"abc"}`)
	t.Setenv("ALLOWED_ORIGINS", "https://dash.example, http://localhost:3000,")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, 30*time.Minute, c.Server.SessionTTL)
	assert.Equal(t, 50, c.Trading212.PageSize)
	assert.Equal(t, time.Second, c.Trading212.PageDelay)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.Tracing)
	assert.True(t, c.Insights.Enabled)
	assert.Equal(t, "gemini-2.5-flash", c.Insights.Model)
	assert.Equal(t, "from-env", c.Snapshot.Bucket)
	assert.Equal(t, "1234", c.Server.Passcode)
	assert.Equal(t, `{"Finance 2026":"abc"}`, c.Notion.DatabaseID)
	assert.Equal(t, []string{"https://dash.example", "http://localhost:3000"}, c.Server.AllowedOrigins)
	assert.NoError(t, c.ValidateServer())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trading212:\n  page_size: -5\n"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "page_size")

	t.Setenv("ALLOWED_ORIGINS", "*")
	_, err = Load("")
	assert.ErrorContains(t, err, "wildcard")
	t.Setenv("ALLOWED_ORIGINS", "")

	t.Setenv("LOG_TRACING_ENABLED", "sometimes")
	_, err = Load("")
	assert.ErrorContains(t, err, "LOG_TRACING_ENABLED")
}
