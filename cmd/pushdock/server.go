package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/pushdock/internal/engine"
	"github.com/artpar/pushdock/internal/shell/api"
	"github.com/artpar/pushdock/internal/shell/docker"
	"github.com/artpar/pushdock/internal/shell/git"
	"github.com/artpar/pushdock/internal/shell/secrets"
	"github.com/artpar/pushdock/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
)

// ServerError carries an exit code alongside the failing operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Server
// =============================================================================

// Server is the pushdock application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	docker     docker.Client
	history    *store.History
	logger     *slog.Logger
}

// NewServer creates a server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to Docker
	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	// Verify Docker connection and the container network
	ctx := context.Background()
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}
	if err := d.EnsureNetwork(ctx, cfg.Docker.Network); err != nil {
		d.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	// Open deploy history if enabled
	var history *store.History
	if cfg.History.Enabled {
		history, err = store.OpenHistory(cfg.History.DSN)
		if err != nil {
			d.Close()
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
		}
		logger.Info("deploy history enabled", "dsn", cfg.History.DSN)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gitClient := git.NewClient(git.Config{
		WorkDir:    cfg.Git.WorkDir,
		RemoteHost: cfg.Git.RemoteHost,
		Token:      cfg.Git.Token,
	}, logger)

	secretsClient := secrets.NewClient(cfg.Secrets.AuthTimeout, logger)

	deployerCfg := engine.Config{
		Source:  gitClient,
		Engine:  d,
		Auth:    secretsClient,
		Metrics: engine.NewMetrics(registry),
		Network: cfg.Docker.Network,
		Timeouts: engine.Timeouts{
			Sync:        cfg.Deploy.SyncTimeout,
			Build:       cfg.Deploy.BuildTimeout,
			ContainerOp: cfg.Deploy.ContainerOpTimeout,
			SecretsAuth: cfg.Secrets.AuthTimeout,
		},
	}
	if history != nil {
		deployerCfg.History = history
	}
	deployer := engine.NewDeployer(deployerCfg, logger)

	handlerCfg := api.HandlerConfig{
		Sites:         store.NewSiteSource(cfg.Sites.ConfigDir),
		Remote:        gitClient,
		Deployer:      deployer,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookSecret: cfg.Webhook.Secret,
	}
	if history != nil {
		handlerCfg.History = history
	}
	handler := api.NewHandler(handlerCfg, logger)

	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook secret is empty, signature verification disabled")
	}

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		docker:  d,
		history: history,
		logger:  logger,
	}, nil
}

// Start runs the HTTP server until a shutdown signal or fatal error.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{Op: "Start", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully stops the server and closes clients.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error("history close failed", "error", err)
		}
	}
	if err := s.docker.Close(); err != nil {
		s.logger.Error("docker client close failed", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}
