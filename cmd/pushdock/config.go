package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Sites   SitesConfig   `mapstructure:"sites"`
	Git     GitConfig     `mapstructure:"git"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Deploy  DeployConfig  `mapstructure:"deploy"`
	Secrets SecretsConfig `mapstructure:"secrets"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout must exceed the worst-case webhook deploy. The
	// webhook handler runs the whole pipeline before responding, so a
	// write timeout shorter than sync + build + container ops across
	// all targets closes the connection before the response is sent.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WebhookConfig holds webhook verification configuration.
type WebhookConfig struct {
	// Secret is the shared HMAC secret for X-Hub-Signature-256
	// verification. Empty disables verification entirely; that is an
	// explicit insecure mode for local development, never a production
	// setting. Set via PUSHDOCK_WEBHOOK_SECRET.
	Secret string `mapstructure:"secret"`
}

// SitesConfig holds site target configuration loading.
type SitesConfig struct {
	// ConfigDir is the directory of site target YAML files, read fresh
	// on every webhook.
	ConfigDir string `mapstructure:"config_dir"`
}

// GitConfig holds source sync configuration.
type GitConfig struct {
	// WorkDir is the base directory for working copies, one per
	// container name.
	WorkDir string `mapstructure:"work_dir"`

	// RemoteHost overrides the transport base URL for repositories.
	RemoteHost string `mapstructure:"remote_host"`

	// Token is embedded in transport URLs for authentication.
	// Set via PUSHDOCK_GIT_TOKEN.
	Token string `mapstructure:"token"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`

	// Network is the docker network containers are attached to.
	Network string `mapstructure:"network"`
}

// DeployConfig bounds the external calls of one target's deploy.
type DeployConfig struct {
	SyncTimeout        time.Duration `mapstructure:"sync_timeout"`
	BuildTimeout       time.Duration `mapstructure:"build_timeout"`
	ContainerOpTimeout time.Duration `mapstructure:"container_op_timeout"`
}

// SecretsConfig holds secret store client configuration.
type SecretsConfig struct {
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// HistoryConfig holds deploy history persistence configuration.
type HistoryConfig struct {
	// Enabled toggles the SQLite deploy history store and its API route.
	Enabled bool `mapstructure:"enabled"`

	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "45m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("sites.config_dir", "./data/sites")
	v.SetDefault("git.work_dir", "./data/repos")
	v.SetDefault("git.remote_host", "")
	v.SetDefault("git.token", "")
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.network", "pushdock")
	v.SetDefault("deploy.sync_timeout", "2m")
	v.SetDefault("deploy.build_timeout", "10m")
	v.SetDefault("deploy.container_op_timeout", "1m")
	v.SetDefault("secrets.auth_timeout", "15s")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "./data/pushdock.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("PUSHDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
