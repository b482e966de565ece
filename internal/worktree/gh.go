package worktree

import (
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/specksdev/specks/internal/errors"
)

// PRState is the lifecycle state of a branch's pull request as reported by
// the PR host.
type PRState string

const (
	// PRStateNone means the branch has no pull request.
	PRStateNone PRState = ""
	// PRStateOpen means the branch has an open pull request.
	PRStateOpen PRState = "OPEN"
	// PRStateMerged means the branch's pull request was merged.
	PRStateMerged PRState = "MERGED"
	// PRStateClosed means the branch's pull request was closed unmerged.
	PRStateClosed PRState = "CLOSED"
	// PRStateUnknown means the host could not be queried; callers must not
	// treat this as "no PR".
	PRStateUnknown PRState = "UNKNOWN"
)

// PRClient queries and mutates pull requests through the gh CLI.
type PRClient struct {
	repoRoot string
	executor CommandExecutor
}

// NewPRClient creates a PRClient for the repository at repoRoot.
func NewPRClient(repoRoot string) *PRClient {
	return &PRClient{repoRoot: repoRoot, executor: NewCLICommandExecutor()}
}

// NewPRClientWithExecutor creates a PRClient with a custom executor, for
// tests.
func NewPRClientWithExecutor(repoRoot string, executor CommandExecutor) *PRClient {
	return &PRClient{repoRoot: repoRoot, executor: executor}
}

// Available reports whether the gh CLI can be invoked. When it cannot,
// callers degrade to history-based checks instead of failing.
func (c *PRClient) Available() bool {
	return c.executor.RunQuiet(c.repoRoot, "gh", "--version") == nil
}

// State returns the pull request state for a branch. PRStateNone means the
// host answered and no PR exists; PRStateUnknown means the host could not
// be queried at all.
func (c *PRClient) State(branch string) (PRState, error) {
	output, err := c.executor.Run(c.repoRoot, "gh", "pr", "view", branch, "--json", "state")
	if err != nil {
		outStr := strings.ToLower(string(output))

		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return PRStateUnknown, nil
		}
		if strings.Contains(outStr, "no pull requests found") ||
			strings.Contains(outStr, "could not find") {
			return PRStateNone, nil
		}
		if strings.Contains(outStr, "not logged in") ||
			strings.Contains(outStr, "gh auth login") ||
			strings.Contains(outStr, "could not resolve to a repository") {
			return PRStateUnknown, nil
		}
		return PRStateUnknown, errors.NewGitError("failed to query PR state", err).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	var response struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(output, &response); err != nil {
		return PRStateUnknown, errors.Wrap(err, "failed to parse gh pr view output")
	}

	switch strings.ToUpper(response.State) {
	case "OPEN":
		return PRStateOpen, nil
	case "MERGED":
		return PRStateMerged, nil
	case "CLOSED":
		return PRStateClosed, nil
	default:
		return PRStateUnknown, nil
	}
}

// MergePR squash-merges a branch's open pull request on the host and deletes
// the remote branch.
func (c *PRClient) MergePR(branch string) error {
	output, err := c.executor.Run(c.repoRoot, "gh", "pr", "merge", branch, "--squash", "--delete-branch")
	if err != nil {
		return errors.NewGitError("failed to merge pull request", err).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}
