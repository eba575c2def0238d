// Package domain contains the core domain types for push-triggered deploys.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// ContainerPort is the fixed port every site container listens on
	// internally. Host ports vary per target; this one never does.
	ContainerPort = 3000

	// DefaultNodeVersion is the Node.js major version used when a site
	// does not pin one and supplies no Dockerfile of its own.
	DefaultNodeVersion = "22"

	// DefaultBuildCommand installs dependencies and builds the site.
	DefaultBuildCommand = "npm install && npm run build"

	// DefaultServeCommand serves the static build output on ContainerPort.
	DefaultServeCommand = "npx serve -s dist -l 3000"
)

// =============================================================================
// Validation Errors
// =============================================================================

var (
	ErrRepoRequired          = errors.New("repo is required")
	ErrContainerNameRequired = errors.New("containerName is required")
	ErrBranchesRequired      = errors.New("at least one branch is required")
	ErrInvalidPort           = errors.New("port must be between 1 and 65535")
	ErrDuplicateContainer    = errors.New("containerName is not unique")
	ErrDuplicatePort         = errors.New("port is not unique")
)

// =============================================================================
// Site Target
// =============================================================================

// SiteTarget is one deployable unit: a repository, the branches it deploys
// from, and the container it runs as. A repository may fan out to several
// targets (for example production plus preview).
type SiteTarget struct {
	// Repo is the canonical repository identifier, "owner/name".
	Repo string

	// Branches is the ordered set of branch names this target deploys
	// from. Normalized at load time; never empty after validation.
	Branches []string

	// ContainerName uniquely identifies the running container. It doubles
	// as the working-copy directory name and the image tag base.
	ContainerName string

	// Port is the host-side TCP port published to ContainerPort.
	Port int

	// NodeVersion, BuildCommand and ServeCommand parameterize the
	// generated Dockerfile. Only consulted when the repository carries no
	// Dockerfile of its own (ServeCommand also feeds secret injection).
	NodeVersion  string
	BuildCommand string
	ServeCommand string

	// Secrets, when non-nil, enables secret injection for this target.
	Secrets *SecretsConfig
}

// SecretsConfig carries the machine identity and scope used to fetch
// runtime secrets for a container at start time.
type SecretsConfig struct {
	ClientID     string
	ClientSecret string
	ProjectID    string
	Environment  string
	Path         string
	SiteURL      string
}

// Complete reports whether every field needed to attempt injection is set.
// Path defaults to "/" and is not required.
func (c *SecretsConfig) Complete() bool {
	if c == nil {
		return false
	}
	return c.ClientID != "" && c.ClientSecret != "" && c.ProjectID != "" &&
		c.Environment != "" && c.SiteURL != ""
}

// SecretPath returns the configured secret path, defaulting to the root.
func (c *SecretsConfig) SecretPath() string {
	if c == nil || c.Path == "" {
		return "/"
	}
	return c.Path
}

// ImageTag returns the deterministic image tag for this target. Tags are
// always overwritten; no version history is kept.
func (t SiteTarget) ImageTag() string {
	return t.ContainerName + ":latest"
}

// DeploysBranch reports whether this target deploys from the given branch.
func (t SiteTarget) DeploysBranch(branch string) bool {
	for _, b := range t.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// Validate checks a single target in isolation.
func (t SiteTarget) Validate() error {
	if t.Repo == "" {
		return ErrRepoRequired
	}
	if t.ContainerName == "" {
		return ErrContainerNameRequired
	}
	if len(t.Branches) == 0 {
		return ErrBranchesRequired
	}
	if t.Port < 1 || t.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// ValidateTargets checks each target and the cross-target uniqueness of
// containerName and port. Targets keep their declaration order.
func ValidateTargets(targets []SiteTarget) error {
	names := make(map[string]struct{}, len(targets))
	ports := make(map[int]struct{}, len(targets))
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("target %q: %w", t.ContainerName, err)
		}
		if _, ok := names[t.ContainerName]; ok {
			return fmt.Errorf("target %q: %w", t.ContainerName, ErrDuplicateContainer)
		}
		names[t.ContainerName] = struct{}{}
		if _, ok := ports[t.Port]; ok {
			return fmt.Errorf("target %q (port %d): %w", t.ContainerName, t.Port, ErrDuplicatePort)
		}
		ports[t.Port] = struct{}{}
	}
	return nil
}

// =============================================================================
// Deploy Target
// =============================================================================

// DeployTarget pairs a SiteTarget with the branch whose content will
// actually be checked out. SourceBranch may differ from any branch in
// Site.Branches under the preview fallback rule.
type DeployTarget struct {
	Site         SiteTarget
	SourceBranch string
}
