package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToml = `
[development]
host = "localhost"
port = 9000
log_level = "debug"
postgres_port = "5432"
allowed_origins = ["http://localhost:3000"]
save_timeout = "20s"
weekly_refresh_cooldown = "500ms"
session_idle_ttl = "45m"

[production]
port = 8080
log_level = "info"
`

func TestParse(t *testing.T) {
	cfg, err := Parse("dev", testToml)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 20*time.Second, cfg.SaveTimeout.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.WeeklyRefreshCooldown.Or(time.Second))
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTTL.Or(30*time.Minute))
	// unset durations fall back
	assert.Equal(t, 45*time.Second, cfg.ApproveTimeout.Or(45*time.Second))

	cfg, err = Parse("production", testToml)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("staging", testToml)
	assert.ErrorContains(t, err, "unknown env")

	_, err = Parse("dev", `[production]
port = 1`)
	assert.ErrorContains(t, err, "missing")

	_, err = Parse("dev", `[development]
port = 0`)
	assert.ErrorContains(t, err, "invalid port")

	_, err = Parse("dev", `[development]
port = 9000
save_timeout = "soon"`)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testToml), 0o600))

	cfg, err := Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)

	_, err = Load("development", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
