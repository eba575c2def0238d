// Package secrets holds the pure decision logic for best-effort secret
// injection.
//
// The injection chain has several independent bail-out points (no config,
// no wrappable start command, no client tooling in the image, failed
// authentication). Each is modeled as a named outcome so the shell layer
// walks an explicit sequence instead of nested conditionals, and every
// outcome other than enabled still produces a normally started container.
package secrets

import (
	"github.com/artpar/pushdock/internal/core/dockerfile"
	"github.com/artpar/pushdock/internal/core/domain"
)

// ClientBinary is the secrets client executable expected inside site images.
const ClientBinary = "infisical"

// TokenEnvVar carries the session token into the container environment.
const TokenEnvVar = "INFISICAL_TOKEN"

// =============================================================================
// Start Command Resolution
// =============================================================================

// StartCommand resolves the command the container should ultimately run,
// which injection wraps. Resolution order:
//
//  1. An explicit serveCommand always wins.
//  2. Without one, a template-built image falls back to the serve command
//     the template itself baked in.
//  3. A repo-owned Dockerfile with no explicit serveCommand leaves nothing
//     to wrap: the image's entrypoint is opaque to us.
//
// The third case returns ok=false with the matching skip outcome.
func StartCommand(site domain.SiteTarget, usedRepoDockerfile bool) (cmd string, ok bool, skip domain.InjectionOutcome) {
	if site.ServeCommand != "" {
		return site.ServeCommand, true, ""
	}
	if !usedRepoDockerfile {
		return dockerfile.ParamsFor(site).ServeOrDefault(), true, ""
	}
	return "", false, domain.InjectionNoServeCommand
}

// =============================================================================
// Injection Plan
// =============================================================================

// Plan is the container start override produced by a successful injection
// decision. Zero value means "no override": the image starts as built.
type Plan struct {
	// Entrypoint replaces the container entrypoint. The secrets client
	// authenticates, exports the scoped secret set into the process
	// environment, then execs the original start command as a subprocess.
	Entrypoint []string

	// Env is appended to the container environment.
	Env []string
}

// Override reports whether the plan modifies the container start.
func (p Plan) Override() bool {
	return len(p.Entrypoint) > 0
}

// BuildPlan assembles the start override for an enabled injection.
// sessionToken comes from the machine-identity exchange; startCmd from
// StartCommand.
func BuildPlan(cfg *domain.SecretsConfig, sessionToken, startCmd string) Plan {
	return Plan{
		Entrypoint: []string{
			ClientBinary, "run",
			"--projectId", cfg.ProjectID,
			"--env", cfg.Environment,
			"--path", cfg.SecretPath(),
			"--", "sh", "-c", startCmd,
		},
		Env: []string{TokenEnvVar + "=" + sessionToken},
	}
}
