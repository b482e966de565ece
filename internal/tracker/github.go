package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// CommandExecutor executes a command and returns its combined output.
// It exists so tests can inject a fake in place of the gh CLI.
type CommandExecutor func(name string, args ...string) ([]byte, error)

var defaultExecutor CommandExecutor = func(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// GitHubTracker implements IssueTracker on top of the gh CLI.
type GitHubTracker struct {
	executor CommandExecutor
}

// NewGitHubTracker returns a tracker backed by the real gh CLI.
func NewGitHubTracker() *GitHubTracker {
	return &GitHubTracker{executor: defaultExecutor}
}

// NewGitHubTrackerWithExecutor returns a tracker with a custom command
// executor, for tests.
func NewGitHubTrackerWithExecutor(executor CommandExecutor) *GitHubTracker {
	return &GitHubTracker{executor: executor}
}

// Available reports whether the gh CLI can be invoked at all. Callers use
// this to degrade gracefully when gh is absent rather than failing whole
// operations.
func (g *GitHubTracker) Available() bool {
	_, err := g.executor("gh", "--version")
	return err == nil
}

// CreateIssue creates a GitHub issue and returns its reference.
func (g *GitHubTracker) CreateIssue(opts IssueOptions) (IssueRef, error) {
	if opts.Title == "" {
		return IssueRef{}, fmt.Errorf("issue title is required")
	}

	args := []string{"issue", "create",
		"--title", opts.Title,
		"--body", opts.Body,
	}
	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}

	output, err := g.executor("gh", args...)
	if err != nil {
		return IssueRef{}, g.classifyError(err, output)
	}

	// gh prints the new issue's URL on the last line.
	url := strings.TrimSpace(string(output))
	num, err := parseIssueNumber(url)
	if err != nil {
		return IssueRef{URL: url}, err
	}

	return IssueRef{Number: num, URL: url}, nil
}

// UpdateIssue updates an existing issue's title and/or body.
func (g *GitHubTracker) UpdateIssue(ref IssueRef, opts IssueOptions) error {
	if ref.Number <= 0 {
		return fmt.Errorf("issue number is required for update")
	}

	args := []string{"issue", "edit", strconv.Itoa(ref.Number)}
	if opts.Title != "" {
		args = append(args, "--title", opts.Title)
	}
	if opts.Body != "" {
		args = append(args, "--body", opts.Body)
	}

	output, err := g.executor("gh", args...)
	if err != nil {
		return g.classifyError(err, output)
	}
	return nil
}

// AddSubIssue links sub under parent using GitHub's sub-issue GraphQL
// mutation. Node IDs are resolved on demand when the refs carry only
// issue numbers.
func (g *GitHubTracker) AddSubIssue(parent, sub IssueRef) error {
	parentID, err := g.resolveNodeID(parent)
	if err != nil {
		return fmt.Errorf("failed to resolve parent issue: %w", err)
	}
	subID, err := g.resolveNodeID(sub)
	if err != nil {
		return fmt.Errorf("failed to resolve sub-issue: %w", err)
	}

	query := fmt.Sprintf(`mutation {
		addSubIssue(input: {issueId: "%s", subIssueId: "%s"}) {
			issue { number }
		}
	}`, parentID, subID)

	output, err := g.executor("gh", "api", "graphql", "-f", "query="+query)
	if err != nil {
		return g.classifyError(err, output)
	}

	var response struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(output, &response); err != nil {
		return fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	if len(response.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", response.Errors[0].Message)
	}
	return nil
}

// SupportsHierarchy returns true; GitHub supports sub-issues.
func (g *GitHubTracker) SupportsHierarchy() bool { return true }

// SupportsLabels returns true; GitHub supports issue labels.
func (g *GitHubTracker) SupportsLabels() bool { return true }

// resolveNodeID returns the ref's GraphQL node ID, fetching it by issue
// number when the ref does not already carry one.
func (g *GitHubTracker) resolveNodeID(ref IssueRef) (string, error) {
	if ref.ID != "" {
		return ref.ID, nil
	}
	if ref.Number <= 0 {
		return "", fmt.Errorf("issue reference has neither node ID nor number")
	}

	output, err := g.executor("gh", "issue", "view", strconv.Itoa(ref.Number), "--json", "id")
	if err != nil {
		return "", g.classifyError(err, output)
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(output, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("no node ID found for issue #%d", ref.Number)
	}
	return response.ID, nil
}

// classifyError maps gh failures onto the package's sentinel errors while
// preserving the original context for debugging.
func (g *GitHubTracker) classifyError(err error, output []byte) error {
	outStr := strings.ToLower(string(output))

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, execErr)
	}

	switch {
	case strings.Contains(outStr, "not logged in") ||
		strings.Contains(outStr, "authentication required") ||
		strings.Contains(outStr, "gh auth login"):
		return fmt.Errorf("%w: %s", ErrAuthRequired, strings.TrimSpace(string(output)))

	case strings.Contains(outStr, "could not find issue") ||
		strings.Contains(outStr, "issue not found"):
		return fmt.Errorf("%w: %s", ErrIssueNotFound, strings.TrimSpace(string(output)))

	case strings.Contains(outStr, "could not resolve to a repository"):
		return fmt.Errorf("repository not found or not accessible: %s", strings.TrimSpace(string(output)))
	}

	return fmt.Errorf("gh command failed: %w\n%s", err, string(output))
}

// parseIssueNumber extracts the issue number from a gh-printed issue URL,
// e.g. https://github.com/owner/repo/issues/123.
func parseIssueNumber(output string) (int, error) {
	re := regexp.MustCompile(`/issues/(\d+)`)
	matches := re.FindStringSubmatch(output)
	if len(matches) < 2 {
		return 0, fmt.Errorf("could not parse issue number from: %s", output)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid issue number: %w", err)
	}
	return num, nil
}

var _ IssueTracker = (*GitHubTracker)(nil)
