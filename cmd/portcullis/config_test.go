package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "super_admin", cfg.Engine.SuperuserRole)
	assert.Equal(t, 4, cfg.Engine.FetchConcurrency)
	assert.Equal(t, time.Minute, cfg.Engine.CacheTTL)
	assert.True(t, cfg.Seed)
	assert.True(t, cfg.Routes)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portcullis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
engine:
  superuserrole: root
  cachettl: 30s
audit:
  enabled: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "root", cfg.Engine.SuperuserRole)
	assert.Equal(t, 30*time.Second, cfg.Engine.CacheTTL)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORTCULLIS_ENGINE_FETCHCONCURRENCY", "8")
	t.Setenv("PORTCULLIS_REDIS_ADDR", "localhost:6379")
	t.Setenv("PORTCULLIS_AUDIT_DENIEDONLY", "true")
	t.Setenv("PORTCULLIS_SEED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.FetchConcurrency)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Audit.DeniedOnly)
	assert.False(t, cfg.Seed)
}

func TestConfig_Extension(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Routes = false
	cfg.Audit.Enabled = true
	cfg.Engine.DisableSnapshot = true

	ext := cfg.Extension()
	assert.True(t, ext.DisableRoutes)
	assert.True(t, ext.AuditDecisions)
	assert.True(t, ext.DisableSnapshot)
	assert.Equal(t, cfg.Engine.SuperuserRole, ext.SuperuserRole)
	assert.Equal(t, cfg.Engine.CacheTTL, ext.CacheTTL)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "text", &buf)

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
