// Package resolve maps a push event onto the configured site targets.
//
// Resolution is pure except for one injected query: when a push lands on
// main or master, targets tracking the "preview" branch may be deployed
// from that push if the remote has no dedicated preview branch. Whether
// the remote branch exists is answered by a RemoteBranches implementation;
// the lookup is gated on default-branch pushes to bound its cost.
package resolve

import (
	"context"
	"fmt"

	"github.com/artpar/pushdock/internal/core/domain"
)

// PreviewBranch is the branch name eligible for the fallback rule.
const PreviewBranch = "preview"

// RemoteBranches answers branch-existence queries against the remote
// repository. Implemented by the git shell client.
type RemoteBranches interface {
	// HasBranch reports whether the remote of repo has the named branch.
	HasBranch(ctx context.Context, repo, branch string) (bool, error)
}

// =============================================================================
// Resolution
// =============================================================================

// Kind classifies a resolution result.
type Kind string

const (
	// KindDeploy means at least one target matched.
	KindDeploy Kind = "deploy"

	// KindUnconfiguredRepo means no target is configured for the repo.
	// Not an error; the webhook may legitimately cover more repos than
	// this instance deploys.
	KindUnconfiguredRepo Kind = "ignored: unconfigured repo"

	// KindBranchNotConfigured means the repo is known but nothing deploys
	// from the pushed branch.
	KindBranchNotConfigured Kind = "ignored: branch not configured"
)

// Resolution is the outcome of mapping one push event onto configuration.
type Resolution struct {
	Kind    Kind
	Targets []domain.DeployTarget

	// ConfiguredBranches lists the branches that would have matched for
	// this repo. Populated on KindBranchNotConfigured for diagnostics.
	ConfiguredBranches []string
}

// Resolve produces the ordered deploy list for event against targets.
// Ordering follows configuration declaration order.
func Resolve(ctx context.Context, event domain.PushEvent, targets []domain.SiteTarget, remote RemoteBranches) (Resolution, error) {
	var repoTargets []domain.SiteTarget
	for _, t := range targets {
		if t.Repo == event.Repo {
			repoTargets = append(repoTargets, t)
		}
	}
	if len(repoTargets) == 0 {
		return Resolution{Kind: KindUnconfiguredRepo}, nil
	}

	var deploys []domain.DeployTarget
	for _, t := range repoTargets {
		if t.DeploysBranch(event.Branch) {
			deploys = append(deploys, domain.DeployTarget{Site: t, SourceBranch: event.Branch})
		}
	}

	if event.IsDefaultBranch() {
		fallback, err := previewFallback(ctx, event, repoTargets, deploys, remote)
		if err != nil {
			return Resolution{}, err
		}
		deploys = append(deploys, fallback...)
	}

	if len(deploys) == 0 {
		return Resolution{
			Kind:               KindBranchNotConfigured,
			ConfiguredBranches: configuredBranches(repoTargets),
		}, nil
	}
	return Resolution{Kind: KindDeploy, Targets: deploys}, nil
}

// previewFallback selects preview-tracking targets to be built from the
// pushed default branch when the remote has no preview branch of its own.
// The remote query runs at most once and only if a candidate exists.
func previewFallback(ctx context.Context, event domain.PushEvent, repoTargets []domain.SiteTarget, already []domain.DeployTarget, remote RemoteBranches) ([]domain.DeployTarget, error) {
	var candidates []domain.SiteTarget
	for _, t := range repoTargets {
		if t.DeploysBranch(PreviewBranch) && !contains(already, t.ContainerName) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	exists, err := remote.HasBranch(ctx, event.Repo, PreviewBranch)
	if err != nil {
		return nil, fmt.Errorf("check remote %s branch: %w", PreviewBranch, err)
	}
	if exists {
		// A dedicated preview branch exists; its own pushes deploy it.
		return nil, nil
	}

	fallback := make([]domain.DeployTarget, 0, len(candidates))
	for _, t := range candidates {
		fallback = append(fallback, domain.DeployTarget{Site: t, SourceBranch: event.Branch})
	}
	return fallback, nil
}

func contains(deploys []domain.DeployTarget, containerName string) bool {
	for _, d := range deploys {
		if d.Site.ContainerName == containerName {
			return true
		}
	}
	return false
}

func configuredBranches(targets []domain.SiteTarget) []string {
	seen := make(map[string]struct{})
	var branches []string
	for _, t := range targets {
		for _, b := range t.Branches {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			branches = append(branches, b)
		}
	}
	return branches
}
