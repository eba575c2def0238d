// Package git shells out to the git CLI to maintain per-target working
// copies.
//
// Every invocation passes interpolated values as discrete arguments; no
// command line is ever assembled from concatenated strings. Branch names
// reaching this package have already passed the restrictive pattern check
// in domain.NewPushEvent.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/artpar/pushdock/internal/core/redact"
)

// DefaultRemoteHost is the transport base for repository identifiers.
const DefaultRemoteHost = "https://github.com"

// Client runs git commands for working-copy sync and remote queries.
type Client struct {
	workDir    string
	remoteHost string
	token      string
	logger     *slog.Logger
}

// Config holds the git client settings.
type Config struct {
	// WorkDir is the base directory holding one working copy per
	// container name.
	WorkDir string

	// RemoteHost overrides the transport base URL. Empty means GitHub.
	RemoteHost string

	// Token, when set, is embedded in the transport URL for
	// authentication. It never appears in logs or errors.
	Token string
}

// NewClient creates a git client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.RemoteHost
	if host == "" {
		host = DefaultRemoteHost
	}
	return &Client{
		workDir:    cfg.WorkDir,
		remoteHost: strings.TrimSuffix(host, "/"),
		token:      cfg.Token,
		logger:     logger,
	}
}

// WorkingCopyPath returns the deterministic on-disk path for a target's
// working copy. One directory per container name, never shared.
func (c *Client) WorkingCopyPath(containerName string) string {
	return filepath.Join(c.workDir, containerName)
}

// remoteURL builds the authenticated transport URL for a repository.
func (c *Client) remoteURL(repo string) string {
	if c.token == "" {
		return fmt.Sprintf("%s/%s.git", c.remoteHost, repo)
	}
	rest := strings.TrimPrefix(c.remoteHost, "https://")
	return fmt.Sprintf("https://x-access-token:%s@%s/%s.git", c.token, rest, repo)
}

// Sync brings the working copy for containerName to the exact tip of
// branch on the remote of repo, discarding any local divergence. The first
// sync clones shallowly, restricted to that branch; later syncs fetch only
// that branch and force-reset to it. Returns the working copy path.
func (c *Client) Sync(ctx context.Context, repo, branch, containerName string) (string, error) {
	dir := c.WorkingCopyPath(containerName)
	url := c.remoteURL(repo)

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create working copy dir: %w", err)
		}
		c.logger.Info("cloning working copy",
			"repo", repo,
			"branch", branch,
			"path", dir,
		)
		if err := c.run(ctx, "", "clone", "--depth", "1", "--branch", branch, "--single-branch", url, dir); err != nil {
			return "", err
		}
		return dir, nil
	}

	c.logger.Info("updating working copy",
		"repo", repo,
		"branch", branch,
		"path", dir,
	)
	if err := c.run(ctx, dir, "fetch", "--depth", "1", "origin", branch); err != nil {
		return "", err
	}
	// Hard reset to the fetched tip. Local modifications are build
	// residue, not state worth preserving.
	if err := c.run(ctx, dir, "checkout", "--force", "-B", branch, "FETCH_HEAD"); err != nil {
		return "", err
	}
	return dir, nil
}

// HasBranch reports whether the remote of repo has the named branch.
// Implements resolve.RemoteBranches.
func (c *Client) HasBranch(ctx context.Context, repo, branch string) (bool, error) {
	out, err := c.output(ctx, "", "ls-remote", "--heads", c.remoteURL(repo), "refs/heads/"+branch)
	if err != nil {
		return false, err
	}
	return lsRemoteListsBranch(out, branch), nil
}

// lsRemoteListsBranch interprets ls-remote --heads output. The ls-remote
// pattern tail-matches ref path components, so asking for "preview" also
// lists refs/heads/feature/preview; only an exact refs/heads/<branch> line
// counts as the branch existing.
func lsRemoteListsBranch(out, branch string) bool {
	want := "refs/heads/" + branch
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == want {
			return true
		}
	}
	return false
}

func (c *Client) run(ctx context.Context, dir string, args ...string) error {
	_, err := c.output(ctx, dir, args...)
	return err
}

// output runs git with the given args and returns combined output. Errors
// are redacted before they leave this package; the authenticated remote
// URL shows up verbatim in git's own messages.
func (c *Client) output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never let git fall back to an interactive credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", redact.Error(fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out))))
	}
	return string(out), nil
}
