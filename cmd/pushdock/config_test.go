package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "", cfg.Webhook.Secret)
	assert.Equal(t, "./data/sites", cfg.Sites.ConfigDir)
	assert.Equal(t, "./data/repos", cfg.Git.WorkDir)
	assert.Equal(t, "pushdock", cfg.Docker.Network)
	assert.Equal(t, 2*time.Minute, cfg.Deploy.SyncTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Deploy.BuildTimeout)
	assert.Equal(t, 1*time.Minute, cfg.Deploy.ContainerOpTimeout)
	assert.Equal(t, 15*time.Second, cfg.Secrets.AuthTimeout)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "./data/pushdock.db", cfg.History.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_WriteTimeoutCoversDeployPipeline(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	// The webhook response is written only after sync, build and
	// container replacement finish for every target. The server must
	// not cut the connection before then.
	worstCasePerTarget := cfg.Deploy.SyncTimeout + cfg.Deploy.BuildTimeout + cfg.Deploy.ContainerOpTimeout
	assert.Greater(t, cfg.Server.WriteTimeout, worstCasePerTarget)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 60s
  shutdown_timeout: 15s

webhook:
  secret: "file-secret"

sites:
  config_dir: "/etc/pushdock/sites"

git:
  work_dir: "/var/lib/pushdock/repos"
  remote_host: "https://git.example.com"

deploy:
  build_timeout: 20m

history:
  enabled: false

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file-secret", cfg.Webhook.Secret)
	assert.Equal(t, "/etc/pushdock/sites", cfg.Sites.ConfigDir)
	assert.Equal(t, "/var/lib/pushdock/repos", cfg.Git.WorkDir)
	assert.Equal(t, "https://git.example.com", cfg.Git.RemoteHost)
	assert.Equal(t, 20*time.Minute, cfg.Deploy.BuildTimeout)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("PUSHDOCK_SERVER_HOST", "192.168.1.1")
	t.Setenv("PUSHDOCK_SERVER_PORT", "3000")
	t.Setenv("PUSHDOCK_WEBHOOK_SECRET", "env-secret")
	t.Setenv("PUSHDOCK_GIT_TOKEN", "env-token")
	t.Setenv("PUSHDOCK_HISTORY_DSN", "/custom/path.db")
	t.Setenv("PUSHDOCK_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Webhook.Secret)
	assert.Equal(t, "env-token", cfg.Git.Token)
	assert.Equal(t, "/custom/path.db", cfg.History.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "invalid",
			Format: "json",
		},
	}

	// Should fall back to info level, not panic
	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PUSHDOCK_SERVER_HOST",
		"PUSHDOCK_SERVER_PORT",
		"PUSHDOCK_WEBHOOK_SECRET",
		"PUSHDOCK_SITES_CONFIG_DIR",
		"PUSHDOCK_GIT_TOKEN",
		"PUSHDOCK_HISTORY_DSN",
		"PUSHDOCK_LOG_LEVEL",
		"PUSHDOCK_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
