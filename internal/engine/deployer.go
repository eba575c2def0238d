// Package engine sequences the deploy pipeline for resolved targets:
// source sync, image build, best-effort secret injection, and container
// replacement.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/pushdock/internal/core/domain"
	"github.com/artpar/pushdock/internal/core/dockerfile"
	"github.com/artpar/pushdock/internal/core/redact"
	coresecrets "github.com/artpar/pushdock/internal/core/secrets"
	"github.com/artpar/pushdock/internal/shell/docker"
	"github.com/artpar/pushdock/internal/shell/store"
)

// =============================================================================
// Collaborator Contracts
// =============================================================================

// SourceSyncer maintains per-target working copies.
type SourceSyncer interface {
	// Sync brings the working copy for containerName to the tip of
	// branch and returns its path.
	Sync(ctx context.Context, repo, branch, containerName string) (string, error)
}

// Authenticator exchanges machine-identity credentials for session tokens.
type Authenticator interface {
	SessionToken(ctx context.Context, cfg *domain.SecretsConfig) (string, error)
}

// Recorder persists deploy history. Recording is best-effort.
type Recorder interface {
	Record(ctx context.Context, rec store.DeployRecord) error
}

// =============================================================================
// Timeouts
// =============================================================================

// Timeouts bound each external call. A target whose sync, build or
// container operation exceeds its bound fails like any other fatal error;
// the expired context cancels the underlying process.
type Timeouts struct {
	Sync        time.Duration
	Build       time.Duration
	ContainerOp time.Duration
	SecretsAuth time.Duration
}

// DefaultTimeouts returns the standard per-call bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Sync:        2 * time.Minute,
		Build:       10 * time.Minute,
		ContainerOp: 1 * time.Minute,
		SecretsAuth: 15 * time.Second,
	}
}

func (t Timeouts) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// =============================================================================
// Deployer
// =============================================================================

// Deployer runs the deploy pipeline for each resolved target in turn.
type Deployer struct {
	source   SourceSyncer
	engine   docker.Client
	auth     Authenticator
	history  Recorder
	metrics  *Metrics
	locks    *keyedLocks
	network  string
	timeouts Timeouts
	logger   *slog.Logger
}

// Config holds the deployer's collaborators and settings. Auth and History
// are optional; Network may be empty to skip network attachment.
type Config struct {
	Source   SourceSyncer
	Engine   docker.Client
	Auth     Authenticator
	History  Recorder
	Metrics  *Metrics
	Network  string
	Timeouts Timeouts
}

// NewDeployer creates a deployer.
func NewDeployer(cfg Config, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	return &Deployer{
		source:   cfg.Source,
		engine:   cfg.Engine,
		auth:     cfg.Auth,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		locks:    newKeyedLocks(),
		network:  cfg.Network,
		timeouts: cfg.Timeouts,
		logger:   logger,
	}
}

// DeployAll runs the pipeline for every target sequentially. Per-target
// failures are captured in the results; one target failing never aborts
// its siblings. The returned correlation ID ties every log line and
// history record of this run together.
func (d *Deployer) DeployAll(ctx context.Context, event domain.PushEvent, targets []domain.DeployTarget) ([]domain.DeployResult, string) {
	correlationID := uuid.NewString()
	logger := d.logger.With("correlation_id", correlationID, "repo", event.Repo, "branch", event.Branch)

	results := make([]domain.DeployResult, 0, len(targets))
	for _, target := range targets {
		result := d.deployOne(ctx, target, logger)
		d.record(ctx, correlationID, event, result, logger)
		d.metrics.recordDeploy(result.Outcome)
		d.metrics.recordInjection(result.Injection)
		results = append(results, result)
	}
	return results, correlationID
}

func (d *Deployer) deployOne(ctx context.Context, target domain.DeployTarget, logger *slog.Logger) domain.DeployResult {
	site := target.Site
	logger = logger.With("container", site.ContainerName, "source_branch", target.SourceBranch)

	// One deploy at a time per container name. Distinct targets do not
	// contend; the webhook cycle itself stays sequential.
	unlock := d.locks.acquire(site.ContainerName)
	defer unlock()

	result := domain.DeployResult{
		ContainerName: site.ContainerName,
		Repo:          site.Repo,
		SourceBranch:  target.SourceBranch,
		ImageTag:      site.ImageTag(),
	}

	syncCtx, cancel := d.timeouts.bound(ctx, d.timeouts.Sync)
	workDir, err := d.source.Sync(syncCtx, site.Repo, target.SourceBranch, site.ContainerName)
	cancel()
	if err != nil {
		logger.Error("source sync failed", "error", err)
		result.Outcome = domain.OutcomeSyncFailed
		result.Err = err
		return result
	}

	descriptor, usedRepoDockerfile, err := d.prepareDescriptor(workDir, site)
	if err != nil {
		logger.Error("build descriptor preparation failed", "error", err)
		result.Outcome = domain.OutcomeBuildFailed
		result.Err = err
		return result
	}

	logger.Info("building image",
		"image", site.ImageTag(),
		"repo_dockerfile", usedRepoDockerfile,
	)
	buildCtx, cancel := d.timeouts.bound(ctx, d.timeouts.Build)
	err = d.engine.BuildImage(buildCtx, workDir, descriptor, site.ImageTag())
	cancel()
	if err != nil {
		logger.Error("image build failed", "error", redact.Error(err))
		result.Outcome = domain.OutcomeBuildFailed
		result.Err = err
		return result
	}

	plan, injection := d.injectionPlan(ctx, site, usedRepoDockerfile, logger)
	result.Injection = injection

	logger.Info("replacing container", "host_port", site.Port)
	opCtx, cancel := d.timeouts.bound(ctx, d.timeouts.ContainerOp)
	err = d.engine.ReplaceContainer(opCtx, docker.ContainerSpec{
		Name:      site.ContainerName,
		Image:     site.ImageTag(),
		HostPort:  site.Port,
		Network:   d.network,
		Injection: plan,
	})
	cancel()
	if err != nil {
		logger.Error("container start failed", "error", err)
		result.Outcome = domain.OutcomeStartFailed
		result.Err = err
		return result
	}

	logger.Info("deployed", "image", site.ImageTag(), "injection", string(injection))
	result.Outcome = domain.OutcomeDeployed
	return result
}

// prepareDescriptor decides which build descriptor to use. A repo-owned
// Dockerfile wins; otherwise the parameterized template is rendered and
// written beside the working copy under its own name.
func (d *Deployer) prepareDescriptor(workDir string, site domain.SiteTarget) (name string, repoOwned bool, err error) {
	if _, statErr := os.Stat(filepath.Join(workDir, "Dockerfile")); statErr == nil {
		return "Dockerfile", true, nil
	}

	rendered, err := dockerfile.RenderDefault(site)
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(workDir, dockerfile.GeneratedName), []byte(rendered), 0o644); err != nil {
		return "", false, err
	}
	return dockerfile.GeneratedName, false, nil
}

// injectionPlan walks the best-effort injection chain. It never returns an
// error: every failure degrades to a skip outcome and the container starts
// with its base entrypoint.
func (d *Deployer) injectionPlan(ctx context.Context, site domain.SiteTarget, usedRepoDockerfile bool, logger *slog.Logger) (coresecrets.Plan, domain.InjectionOutcome) {
	if !site.Secrets.Complete() {
		logger.Warn("secret injection skipped", "reason", "missing config")
		return coresecrets.Plan{}, domain.InjectionNotConfigured
	}

	startCmd, ok, skip := coresecrets.StartCommand(site, usedRepoDockerfile)
	if !ok {
		logger.Warn("secret injection skipped", "reason", string(skip))
		return coresecrets.Plan{}, skip
	}

	if d.auth == nil {
		logger.Warn("secret injection skipped",
			"reason", "auth failed",
			"detail", "no authenticator configured",
		)
		return coresecrets.Plan{}, domain.InjectionAuthFailed
	}

	if outcome := d.ensureTooling(ctx, site.ImageTag(), logger); outcome != "" {
		return coresecrets.Plan{}, outcome
	}

	authCtx, cancel := d.timeouts.bound(ctx, d.timeouts.SecretsAuth)
	token, err := d.auth.SessionToken(authCtx, site.Secrets)
	cancel()
	if err != nil {
		logger.Warn("secret injection skipped",
			"reason", "auth failed",
			"error", redact.Error(err),
		)
		return coresecrets.Plan{}, domain.InjectionAuthFailed
	}

	logger.Info("secret injection enabled",
		"project", site.Secrets.ProjectID,
		"environment", site.Secrets.Environment,
	)
	return coresecrets.BuildPlan(site.Secrets, token, startCmd), domain.InjectionEnabled
}

// ensureTooling makes sure the secrets client exists inside the image,
// layering it on when absent. Returns a skip outcome or "" when the image
// is ready.
func (d *Deployer) ensureTooling(ctx context.Context, imageTag string, logger *slog.Logger) domain.InjectionOutcome {
	opCtx, cancel := d.timeouts.bound(ctx, d.timeouts.ContainerOp)
	has, err := d.engine.HasBinary(opCtx, imageTag, coresecrets.ClientBinary)
	cancel()
	if err != nil {
		// An unprobeable image (no shell, for instance) gets one install
		// attempt anyway; the re-probe below settles it.
		logger.Warn("tooling probe failed, attempting install", "error", err)
	}
	if has {
		return ""
	}

	buildCtx, cancel := d.timeouts.bound(ctx, d.timeouts.Build)
	installErr := d.engine.InstallSecretsClient(buildCtx, imageTag)
	cancel()
	if installErr != nil {
		logger.Warn("secret injection skipped",
			"reason", "cannot add tooling",
			"error", redact.Error(installErr),
		)
		return domain.InjectionNoTooling
	}

	opCtx, cancel = d.timeouts.bound(ctx, d.timeouts.ContainerOp)
	has, err = d.engine.HasBinary(opCtx, imageTag, coresecrets.ClientBinary)
	cancel()
	if err != nil || !has {
		logger.Warn("secret injection skipped", "reason", "cannot add tooling")
		return domain.InjectionNoTooling
	}
	return ""
}

// record persists one history row. Failures only warn; history never
// blocks a deploy.
func (d *Deployer) record(ctx context.Context, correlationID string, event domain.PushEvent, result domain.DeployResult, logger *slog.Logger) {
	if d.history == nil {
		return
	}
	rec := store.DeployRecord{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Repo:          result.Repo,
		Branch:        event.Branch,
		SourceBranch:  result.SourceBranch,
		ContainerName: result.ContainerName,
		ImageTag:      result.ImageTag,
		Outcome:       string(result.Outcome),
		Injection:     string(result.Injection),
	}
	if result.Err != nil {
		rec.ErrorDetail = redact.Mask(result.Err.Error())
	}
	if err := d.history.Record(ctx, rec); err != nil {
		logger.Warn("failed to record deploy history", "error", err)
	}
}
