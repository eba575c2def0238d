package domain

import (
	"errors"
	"regexp"
	"strings"
)

// =============================================================================
// Push Event
// =============================================================================

var (
	ErrMissingRepository = errors.New("payload is missing repository.full_name")
	ErrNotBranchRef      = errors.New("ref does not name a branch")
	ErrUnsafeBranchName  = errors.New("branch name contains disallowed characters")
)

// branchNamePattern is deliberately restrictive: branch names feed file
// paths and external commands, so anything outside this set is rejected
// before the engine touches the network or the filesystem.
var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// PushEvent is the distilled form of an inbound push webhook payload.
type PushEvent struct {
	// Repo is repository.full_name, "owner/name".
	Repo string

	// Branch is the pushed branch, extracted from refs/heads/<branch>.
	Branch string
}

// NewPushEvent validates raw payload fields and produces a PushEvent.
func NewPushEvent(repoFullName, ref string) (PushEvent, error) {
	if repoFullName == "" {
		return PushEvent{}, ErrMissingRepository
	}
	branch, ok := strings.CutPrefix(ref, "refs/heads/")
	if !ok || branch == "" {
		return PushEvent{}, ErrNotBranchRef
	}
	if !branchNamePattern.MatchString(branch) {
		return PushEvent{}, ErrUnsafeBranchName
	}
	return PushEvent{Repo: repoFullName, Branch: branch}, nil
}

// IsDefaultBranch reports whether the pushed branch is main or master,
// the only branches that can trip the preview fallback.
func (e PushEvent) IsDefaultBranch() bool {
	return e.Branch == "main" || e.Branch == "master"
}
