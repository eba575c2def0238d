// Package api provides the HTTP handlers for pushdock.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/pushdock/internal/core/domain"
	"github.com/artpar/pushdock/internal/core/redact"
	"github.com/artpar/pushdock/internal/core/resolve"
	"github.com/artpar/pushdock/internal/core/signature"
	"github.com/artpar/pushdock/internal/shell/store"
)

// maxPayloadBytes bounds webhook request bodies.
const maxPayloadBytes = 1 << 20

// =============================================================================
// Collaborator Contracts
// =============================================================================

// SiteLoader supplies the active site configuration. Implementations must
// read fresh on every call; the handler relies on configuration edits
// taking effect on the next push.
type SiteLoader interface {
	LoadTargets() ([]domain.SiteTarget, error)
}

// Deployer runs the deploy pipeline for resolved targets.
type Deployer interface {
	DeployAll(ctx context.Context, event domain.PushEvent, targets []domain.DeployTarget) ([]domain.DeployResult, string)
}

// HistoryReader lists recent deploy records.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.DeployRecord, error)
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides the HTTP handlers for the webhook surface.
type Handler struct {
	sites    SiteLoader
	remote   resolve.RemoteBranches
	deployer Deployer
	history  HistoryReader
	metrics  http.Handler
	secret   []byte
	logger   *slog.Logger
}

// HandlerConfig holds the handler's collaborators. History and Metrics are
// optional; their routes are only mounted when present. An empty
// WebhookSecret disables signature verification (explicit insecure mode).
type HandlerConfig struct {
	Sites         SiteLoader
	Remote        resolve.RemoteBranches
	Deployer      Deployer
	History       HistoryReader
	Metrics       http.Handler
	WebhookSecret string
}

// NewHandler creates an API handler.
func NewHandler(cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sites:    cfg.Sites,
		remote:   cfg.Remote,
		deployer: cfg.Deployer,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		secret:   []byte(cfg.WebhookSecret),
		logger:   logger,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Post("/webhook", h.handleWebhook)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.history != nil {
		r.Get("/api/v1/deploys", h.handleListDeploys)
	}

	return r
}

// handleHealth is a pure process-alive signal: no dependency checks.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWebhook is the deploy trigger: verify, resolve, deploy, report.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body", "invalid_input")
		return
	}

	// Signature covers the raw, unparsed bytes.
	if err := signature.Verify(h.secret, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		h.logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		h.writeError(w, http.StatusForbidden, "signature mismatch", "unauthorized")
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON payload", "invalid_input")
		return
	}

	event, err := domain.NewPushEvent(payload.Repository.FullName, payload.Ref)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_input")
		return
	}

	logger := h.logger.With("repo", event.Repo, "branch", event.Branch)

	// Configuration is read fresh per webhook so edits apply to the very
	// next push.
	targets, err := h.sites.LoadTargets()
	if err != nil {
		logger.Error("failed to load site configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, redact.Mask(err.Error()), "config_error")
		return
	}

	resolution, err := resolve.Resolve(r.Context(), event, targets, h.remote)
	if err != nil {
		logger.Error("target resolution failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, redact.Mask(err.Error()), "resolve_error")
		return
	}

	switch resolution.Kind {
	case resolve.KindUnconfiguredRepo:
		logger.Info("push ignored", "reason", "unconfigured repo")
		h.writeJSON(w, http.StatusOK, WebhookResponse{
			Status:  "ignored",
			Message: fmt.Sprintf("no targets configured for %s", event.Repo),
		})
		return
	case resolve.KindBranchNotConfigured:
		logger.Info("push ignored",
			"reason", "branch not configured",
			"configured_branches", resolution.ConfiguredBranches,
		)
		h.writeJSON(w, http.StatusOK, WebhookResponse{
			Status: "ignored",
			Message: fmt.Sprintf("branch %s not configured (configured: %v)",
				event.Branch, resolution.ConfiguredBranches),
		})
		return
	}

	results, correlationID := h.deployer.DeployAll(r.Context(), event, resolution.Targets)

	var deployed, failed []string
	var firstErr error
	for _, res := range results {
		if res.Deployed() {
			deployed = append(deployed, res.ContainerName)
			continue
		}
		failed = append(failed, res.ContainerName)
		if firstErr == nil {
			firstErr = res.Err
		}
	}

	resp := WebhookResponse{
		CorrelationID: correlationID,
		Deployed:      deployed,
		Failed:        failed,
	}
	if len(deployed) == 0 {
		resp.Status = "failed"
		if firstErr != nil {
			resp.Message = redact.Mask(firstErr.Error())
		}
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.Status = "deployed"
	resp.Message = fmt.Sprintf("deployed: %v", deployed)
	h.writeJSON(w, http.StatusOK, resp)
}

// handleListDeploys returns recent deploy history, newest first.
func (h *Handler) handleListDeploys(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500", "invalid_input")
			return
		}
		limit = n
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list deploy history", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deploys", "store_error")
		return
	}
	if records == nil {
		records = []store.DeployRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// =============================================================================
// Response Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
