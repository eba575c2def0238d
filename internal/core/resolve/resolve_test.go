package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/pushdock/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeRemote answers HasBranch from a fixed map and records whether it was
// consulted at all.
type fakeRemote struct {
	branches map[string]bool
	err      error
	queried  bool
}

func (f *fakeRemote) HasBranch(_ context.Context, _, branch string) (bool, error) {
	f.queried = true
	if f.err != nil {
		return false, f.err
	}
	return f.branches[branch], nil
}

func target(name, repo string, port int, branches ...string) domain.SiteTarget {
	return domain.SiteTarget{
		Repo:          repo,
		Branches:      branches,
		ContainerName: name,
		Port:          port,
	}
}

func event(t *testing.T, repo, branch string) domain.PushEvent {
	t.Helper()
	ev, err := domain.NewPushEvent(repo, "refs/heads/"+branch)
	require.NoError(t, err)
	return ev
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolve_UnconfiguredRepo(t *testing.T) {
	targets := []domain.SiteTarget{target("site-prod", "org/site", 9091, "main")}
	remote := &fakeRemote{}

	res, err := Resolve(context.Background(), event(t, "org/other", "main"), targets, remote)

	require.NoError(t, err)
	assert.Equal(t, KindUnconfiguredRepo, res.Kind)
	assert.Empty(t, res.Targets)
	assert.False(t, remote.queried)
}

func TestResolve_BranchNotConfigured(t *testing.T) {
	targets := []domain.SiteTarget{target("site-prod", "org/site", 9091, "main")}
	remote := &fakeRemote{}

	res, err := Resolve(context.Background(), event(t, "org/site", "develop"), targets, remote)

	require.NoError(t, err)
	assert.Equal(t, KindBranchNotConfigured, res.Kind)
	assert.Equal(t, []string{"main"}, res.ConfiguredBranches)
	assert.False(t, remote.queried)
}

func TestResolve_DirectMatch(t *testing.T) {
	targets := []domain.SiteTarget{target("site-prod", "org/site", 9091, "main")}

	res, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, &fakeRemote{})

	require.NoError(t, err)
	assert.Equal(t, KindDeploy, res.Kind)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "site-prod", res.Targets[0].Site.ContainerName)
	assert.Equal(t, "main", res.Targets[0].SourceBranch)
}

func TestResolve_RepoFansOutToMultipleTargets(t *testing.T) {
	targets := []domain.SiteTarget{
		target("site-prod", "org/site", 9091, "main"),
		target("site-staging", "org/site", 9092, "main"),
	}

	res, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, &fakeRemote{branches: map[string]bool{}})

	require.NoError(t, err)
	require.Len(t, res.Targets, 2)
	// Declaration order is preserved.
	assert.Equal(t, "site-prod", res.Targets[0].Site.ContainerName)
	assert.Equal(t, "site-staging", res.Targets[1].Site.ContainerName)
}

func TestResolve_PreviewFallbackFires(t *testing.T) {
	targets := []domain.SiteTarget{
		target("site-prod", "org/site", 9091, "main"),
		target("site-preview", "org/site", 9092, "preview"),
	}
	remote := &fakeRemote{branches: map[string]bool{"preview": false}}

	res, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, remote)

	require.NoError(t, err)
	require.Len(t, res.Targets, 2)
	assert.Equal(t, "site-preview", res.Targets[1].Site.ContainerName)
	// Fallback builds preview from the pushed branch's content.
	assert.Equal(t, "main", res.Targets[1].SourceBranch)
	assert.True(t, remote.queried)
}

func TestResolve_PreviewFallbackSuppressedByRemoteBranch(t *testing.T) {
	targets := []domain.SiteTarget{
		target("site-prod", "org/site", 9091, "main"),
		target("site-preview", "org/site", 9092, "preview"),
	}
	remote := &fakeRemote{branches: map[string]bool{"preview": true}}

	res, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, remote)

	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "site-prod", res.Targets[0].Site.ContainerName)
}

func TestResolve_PreviewFallbackOnMaster(t *testing.T) {
	targets := []domain.SiteTarget{target("site-preview", "org/site", 9092, "preview")}
	remote := &fakeRemote{branches: map[string]bool{}}

	res, err := Resolve(context.Background(), event(t, "org/site", "master"), targets, remote)

	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "master", res.Targets[0].SourceBranch)
}

func TestResolve_NoRemoteQueryOffDefaultBranch(t *testing.T) {
	targets := []domain.SiteTarget{target("site-preview", "org/site", 9092, "preview")}
	remote := &fakeRemote{}

	res, err := Resolve(context.Background(), event(t, "org/site", "develop"), targets, remote)

	require.NoError(t, err)
	assert.Equal(t, KindBranchNotConfigured, res.Kind)
	assert.False(t, remote.queried, "remote lookups are gated on main/master pushes")
}

func TestResolve_NoRemoteQueryWithoutPreviewTargets(t *testing.T) {
	targets := []domain.SiteTarget{target("site-prod", "org/site", 9091, "main")}
	remote := &fakeRemote{}

	_, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, remote)

	require.NoError(t, err)
	assert.False(t, remote.queried, "no preview candidate means no lookup")
}

func TestResolve_TargetTrackingBothBranchesNotDuplicated(t *testing.T) {
	targets := []domain.SiteTarget{target("site-all", "org/site", 9091, "main", "preview")}
	remote := &fakeRemote{branches: map[string]bool{}}

	res, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, remote)

	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.False(t, remote.queried, "already-deploying target is not a fallback candidate")
}

func TestResolve_RemoteQueryErrorPropagates(t *testing.T) {
	targets := []domain.SiteTarget{target("site-preview", "org/site", 9092, "preview")}
	remote := &fakeRemote{err: errors.New("ls-remote: network unreachable")}

	_, err := Resolve(context.Background(), event(t, "org/site", "main"), targets, remote)

	assert.Error(t, err)
}
