package domain

// =============================================================================
// Deploy Outcomes
// =============================================================================

// DeployOutcome classifies the result of one target's deploy attempt.
type DeployOutcome string

const (
	OutcomeDeployed    DeployOutcome = "deployed"
	OutcomeSyncFailed  DeployOutcome = "sync_failed"
	OutcomeBuildFailed DeployOutcome = "build_failed"
	OutcomeStartFailed DeployOutcome = "start_failed"
)

// DeployResult is the per-target record produced by the orchestrator.
// A failed target never aborts its siblings; each result stands alone.
type DeployResult struct {
	ContainerName string
	Repo          string
	SourceBranch  string
	ImageTag      string
	Outcome       DeployOutcome
	Injection     InjectionOutcome
	Err           error
}

// Deployed reports whether the target ended with a running container.
func (r DeployResult) Deployed() bool {
	return r.Outcome == OutcomeDeployed
}

// =============================================================================
// Secret Injection Outcomes
// =============================================================================

// InjectionOutcome names the end state of the best-effort secret injection
// chain. Every skip reason still results in a normally started container.
type InjectionOutcome string

const (
	// InjectionEnabled means the container starts through the secrets
	// client, which exports fetched secrets before exec'ing the serve
	// command.
	InjectionEnabled InjectionOutcome = "enabled"

	// InjectionNotConfigured means the target has no usable secrets
	// configuration. Not a failure.
	InjectionNotConfigured InjectionOutcome = "skipped: missing config"

	// InjectionNoServeCommand means the image came from a repo-owned
	// Dockerfile and no explicit serve command exists to wrap.
	InjectionNoServeCommand InjectionOutcome = "skipped: no serve command for custom build"

	// InjectionNoTooling means the secrets client binary is absent from
	// the image and could not be layered on top of it.
	InjectionNoTooling InjectionOutcome = "skipped: cannot add tooling"

	// InjectionAuthFailed means the machine-identity exchange failed.
	InjectionAuthFailed InjectionOutcome = "skipped: auth failed"
)

// Skipped reports whether injection fell back to the base startup.
func (o InjectionOutcome) Skipped() bool {
	return o != InjectionEnabled && o != ""
}
