package secrets

import (
	"testing"

	"github.com/artpar/pushdock/internal/core/dockerfile"
	"github.com/artpar/pushdock/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommand_ExplicitServeCommandWins(t *testing.T) {
	site := domain.SiteTarget{ServeCommand: "node server.js"}

	for _, usedRepoDockerfile := range []bool{true, false} {
		cmd, ok, skip := StartCommand(site, usedRepoDockerfile)
		assert.True(t, ok)
		assert.Equal(t, "node server.js", cmd)
		assert.Empty(t, skip)
	}
}

func TestStartCommand_TemplateBuildDefaultsToStaticServe(t *testing.T) {
	cmd, ok, skip := StartCommand(domain.SiteTarget{}, false)

	assert.True(t, ok)
	assert.Equal(t, domain.DefaultServeCommand, cmd)
	assert.Empty(t, skip)
}

func TestStartCommand_TemplateBuildMatchesRenderedServe(t *testing.T) {
	// The wrapped command must be the one the template baked into the
	// image, whatever the fallback resolves to.
	site := domain.SiteTarget{}

	cmd, ok, _ := StartCommand(site, false)

	require.True(t, ok)
	assert.Equal(t, dockerfile.ParamsFor(site).ServeOrDefault(), cmd)
}

func TestStartCommand_RepoDockerfileWithoutServeCommand(t *testing.T) {
	cmd, ok, skip := StartCommand(domain.SiteTarget{}, true)

	assert.False(t, ok)
	assert.Empty(t, cmd)
	assert.Equal(t, domain.InjectionNoServeCommand, skip)
}

func TestBuildPlan(t *testing.T) {
	cfg := &domain.SecretsConfig{
		ClientID:     "machine-1",
		ClientSecret: "s3cret",
		ProjectID:    "proj-42",
		Environment:  "prod",
		Path:         "/frontend",
		SiteURL:      "https://app.infisical.com",
	}

	plan := BuildPlan(cfg, "st.session-token", "npx serve -s dist -l 3000")

	require.True(t, plan.Override())
	assert.Equal(t, []string{
		"infisical", "run",
		"--projectId", "proj-42",
		"--env", "prod",
		"--path", "/frontend",
		"--", "sh", "-c", "npx serve -s dist -l 3000",
	}, plan.Entrypoint)
	assert.Equal(t, []string{"INFISICAL_TOKEN=st.session-token"}, plan.Env)
}

func TestBuildPlan_DefaultPath(t *testing.T) {
	cfg := &domain.SecretsConfig{ProjectID: "p", Environment: "dev"}

	plan := BuildPlan(cfg, "tok", "cmd")

	assert.Contains(t, plan.Entrypoint, "/")
}

func TestPlan_ZeroValueDoesNotOverride(t *testing.T) {
	assert.False(t, Plan{}.Override())
}
