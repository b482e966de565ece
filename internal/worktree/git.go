// Package worktree is the worktree lifecycle core: creation with rollback,
// discovery, cleanup classification, removal, and merging. Every state read
// and mutation goes through the git CLI; nothing in this package caches
// repository state between operations.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/specksdev/specks/internal/errors"
)

// CommandExecutor abstracts command execution so tests can mock git and gh
// without executing them.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

var _ CommandExecutor = (*CLICommandExecutor)(nil)

// Git wraps the git CLI for one repository.
type Git struct {
	repoRoot string
	executor CommandExecutor
}

// NewGit creates a Git client rooted at repoRoot.
func NewGit(repoRoot string) *Git {
	return &Git{repoRoot: repoRoot, executor: NewCLICommandExecutor()}
}

// NewGitWithExecutor creates a Git client with a custom executor, for tests.
func NewGitWithExecutor(repoRoot string, executor CommandExecutor) *Git {
	return &Git{repoRoot: repoRoot, executor: executor}
}

// RepoRoot returns the repository root this client operates on.
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

var gitVersionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Version returns the installed git version string, e.g. "2.39.2".
func (g *Git) Version() (string, error) {
	output, err := g.executor.Run("", "git", "--version")
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", errors.NewGitError("git is not installed or not in PATH", err)
		}
		return "", errors.NewGitError("failed to query git version", err).
			WithGitOutput(string(output))
	}

	m := gitVersionRe.FindString(string(output))
	if m == "" {
		return "", errors.NewGitError("could not parse git version", nil).
			WithGitOutput(string(output))
	}
	return m, nil
}

// CheckVersion fails with ErrGitTooOld when the installed git is older than
// min (e.g. "2.20.0").
func (g *Git) CheckVersion(min string) error {
	version, err := g.Version()
	if err != nil {
		return err
	}
	if compareVersions(version, min) < 0 {
		return errors.NewGitError(
			fmt.Sprintf("git %s is too old, need %s or newer", version, min),
			errors.ErrGitTooOld)
	}
	return nil
}

// compareVersions compares dotted version strings numerically.
func compareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// FindRepoRoot resolves the repository root containing dir, or
// ErrNotGitRepository.
func FindRepoRoot(dir string) (string, error) {
	return findRepoRootWithExecutor(dir, NewCLICommandExecutor())
}

func findRepoRootWithExecutor(dir string, executor CommandExecutor) (string, error) {
	output, err := executor.Run(dir, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.NewGitError("not inside a git repository", errors.ErrNotGitRepository).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(branch string) bool {
	return g.executor.RunQuiet(g.repoRoot, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch) == nil
}

// ListBranches returns local branches matching the given prefix.
func (g *Git) ListBranches(prefix string) ([]string, error) {
	output, err := g.executor.Run(g.repoRoot, "git", "for-each-ref",
		"--format=%(refname:short)", "refs/heads/"+prefix)
	if err != nil {
		return nil, errors.NewGitError("failed to list branches", err).
			WithRepository(g.repoRoot).
			WithGitOutput(string(output))
	}

	var branches []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// CreateBranch creates a branch from a base branch without checking it out.
func (g *Git) CreateBranch(branch, base string) error {
	output, err := g.executor.Run(g.repoRoot, "git", "branch", branch, base)
	if err != nil {
		if strings.Contains(string(output), "already exists") {
			return errors.NewGitError("branch already exists", errors.ErrBranchExists).
				WithRepository(g.repoRoot).
				WithBranch(branch).
				WithGitOutput(string(output))
		}
		return errors.NewGitError("failed to create branch "+branch+" from "+base, err).
			WithRepository(g.repoRoot).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (g *Git) DeleteBranch(branch string) error {
	output, err := g.executor.Run(g.repoRoot, "git", "branch", "-D", branch)
	if err != nil {
		if strings.Contains(string(output), "not found") {
			return errors.NewGitError("branch not found", errors.ErrBranchNotFound).
				WithRepository(g.repoRoot).
				WithBranch(branch).
				WithGitOutput(string(output))
		}
		return errors.NewGitError("failed to delete branch", err).
			WithRepository(g.repoRoot).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// AddWorktree checks out an existing branch into a new worktree at path.
func (g *Git) AddWorktree(path, branch string) error {
	output, err := g.executor.Run(g.repoRoot, "git", "worktree", "add", path, branch)
	if err != nil {
		return errors.NewGitError("failed to add worktree", err).
			WithRepository(g.repoRoot).
			WithWorktree(path).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// RemoveWorktree removes a worktree, escalating through the fallback chain:
// plain remove, forced remove, then deleting the directory and pruning the
// registration.
func (g *Git) RemoveWorktree(path string) error {
	if _, err := g.executor.Run(g.repoRoot, "git", "worktree", "remove", path); err == nil {
		return nil
	}

	if _, err := g.executor.Run(g.repoRoot, "git", "worktree", "remove", "--force", path); err == nil {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return errors.NewGitError("failed to remove worktree directory", err).
			WithRepository(g.repoRoot).
			WithWorktree(path)
	}
	output, err := g.executor.Run(g.repoRoot, "git", "worktree", "prune")
	if err != nil {
		return errors.NewGitError("failed to prune worktree registrations", err).
			WithRepository(g.repoRoot).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

// PruneWorktrees drops stale worktree registrations.
func (g *Git) PruneWorktrees() error {
	output, err := g.executor.Run(g.repoRoot, "git", "worktree", "prune")
	if err != nil {
		return errors.NewGitError("failed to prune worktrees", err).
			WithRepository(g.repoRoot).
			WithGitOutput(string(output))
	}
	return nil
}

// WorktreeInfo is one entry from git worktree list --porcelain.
type WorktreeInfo struct {
	// Path is the worktree's checkout directory.
	Path string
	// Head is the checked-out commit SHA.
	Head string
	// Branch is the checked-out branch, empty when detached.
	Branch string
	// Detached is true for a detached HEAD checkout.
	Detached bool
	// Prunable is true when git considers the registration stale.
	Prunable bool
}

// ListWorktrees parses git worktree list --porcelain. The first entry is
// always the main worktree.
func (g *Git) ListWorktrees() ([]WorktreeInfo, error) {
	output, err := g.executor.Run(g.repoRoot, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.NewGitError("failed to list worktrees", err).
			WithRepository(g.repoRoot).
			WithGitOutput(string(output))
	}
	return parseWorktreeList(string(output)), nil
}

// parseWorktreeList parses porcelain output: stanzas separated by blank
// lines, each starting with a "worktree <path>" line.
func parseWorktreeList(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo
	var current *WorktreeInfo

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case current == nil:
			// Ignore stray lines before the first stanza.
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			current.Detached = true
		case strings.HasPrefix(line, "prunable"):
			current.Prunable = true
		}
	}
	flush()

	return worktrees
}

// IsAncestor reports whether ancestor is reachable from descendant, i.e.
// every commit on ancestor is already contained in descendant's history.
func (g *Git) IsAncestor(ancestor, descendant string) (bool, error) {
	err := g.executor.RunQuiet(g.repoRoot, "git", "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	// Exit status 1 means "not an ancestor"; anything else is a real failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, errors.NewGitError("failed to check ancestry", err).
		WithRepository(g.repoRoot).
		WithBranch(ancestor)
}

// HasUncommittedChanges reports whether a worktree has staged, unstaged, or
// untracked changes.
func (g *Git) HasUncommittedChanges(path string) (bool, error) {
	output, err := g.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("failed to check git status", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// CurrentBranch returns the branch checked out at path.
func (g *Git) CurrentBranch(path string) (string, error) {
	output, err := g.executor.Run(path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to get current branch", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// CommitAll stages and commits everything in a worktree. A clean tree is
// not an error.
func (g *Git) CommitAll(path, message string) error {
	output, err := g.executor.Run(path, "git", "add", "-A")
	if err != nil {
		return errors.NewGitError("failed to stage changes", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	output, err = g.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewGitError("failed to commit changes", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// CommitPaths stages only the given paths in a worktree and commits them.
// A clean tree is not an error.
func (g *Git) CommitPaths(path, message string, paths []string) error {
	args := append([]string{"add", "--"}, paths...)
	output, err := g.executor.Run(path, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to stage paths", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	output, err = g.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewGitError("failed to commit changes", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// MergeSquash squash-merges branch into the checkout at path without
// committing. The returned conflict flag is true when the merge stopped on
// conflicts, which is a state the caller must resolve or unwind.
func (g *Git) MergeSquash(path, branch string) (conflict bool, err error) {
	output, runErr := g.executor.Run(path, "git", "merge", "--squash", branch)
	if runErr == nil {
		return false, nil
	}
	if strings.Contains(string(output), "CONFLICT") ||
		strings.Contains(string(output), "Automatic merge failed") {
		return true, nil
	}
	return false, errors.NewGitError("failed to squash-merge "+branch, runErr).
		WithRepository(path).
		WithBranch(branch).
		WithGitOutput(string(output))
}

// ConflictingFiles returns paths with unresolved merge conflicts at path.
func (g *Git) ConflictingFiles(path string) ([]string, error) {
	output, err := g.executor.Run(path, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, errors.NewGitError("failed to get conflicting files", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	lines := strings.TrimSpace(string(output))
	if lines == "" {
		return []string{}, nil
	}
	return strings.Split(lines, "\n"), nil
}

// ResolveTheirs resolves conflicts on the given files by taking the incoming
// side and staging the result.
func (g *Git) ResolveTheirs(path string, files []string) error {
	args := append([]string{"checkout", "--theirs", "--"}, files...)
	output, err := g.executor.Run(path, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to resolve conflicts with incoming side", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	args = append([]string{"add", "--"}, files...)
	output, err = g.executor.Run(path, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to stage resolved files", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// ResetHard discards all staged and unstaged changes at path.
func (g *Git) ResetHard(path string) error {
	output, err := g.executor.Run(path, "git", "reset", "--hard", "HEAD")
	if err != nil {
		return errors.NewGitError("failed to reset working tree", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// CleanUntracked removes untracked files and directories at path, keeping
// anything under the given exclude patterns.
func (g *Git) CleanUntracked(path string, excludes []string) error {
	args := []string{"clean", "-fd"}
	for _, ex := range excludes {
		args = append(args, "-e", ex)
	}
	output, err := g.executor.Run(path, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to clean untracked files", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// StatusEntry is one line of git status --porcelain.
type StatusEntry struct {
	// Path is the file path relative to the worktree root.
	Path string
	// Untracked is true for "??" entries.
	Untracked bool
}

// Status returns the uncommitted changes at path, one entry per file.
func (g *Git) Status(path string) ([]StatusEntry, error) {
	output, err := g.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return nil, errors.NewGitError("failed to check git status", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	var entries []StatusEntry
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Renames and copies report "old -> new"; the live file is new.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		entries = append(entries, StatusEntry{
			Path:      path,
			Untracked: strings.HasPrefix(line, "??"),
		})
	}
	return entries, nil
}

// CheckoutPaths restores the given tracked paths from the index, discarding
// working tree modifications to them.
func (g *Git) CheckoutPaths(path string, paths []string) error {
	args := append([]string{"checkout", "--"}, paths...)
	output, err := g.executor.Run(path, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to restore paths from index", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// Head returns the commit SHA checked out at path.
func (g *Git) Head(path string) (string, error) {
	output, err := g.executor.Run(path, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// Commit commits whatever is currently staged. A clean index is not an
// error.
func (g *Git) Commit(path, message string) error {
	output, err := g.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewGitError("failed to commit", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// PullFFOnly fast-forwards the current branch from a remote.
func (g *Git) PullFFOnly(remote, branch string) error {
	output, err := g.executor.Run(g.repoRoot, "git", "pull", "--ff-only", remote, branch)
	if err != nil {
		return errors.NewGitError("failed to fast-forward from "+remote, err).
			WithRepository(g.repoRoot).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// HasRemote reports whether the named remote is configured.
func (g *Git) HasRemote(name string) bool {
	return g.executor.RunQuiet(g.repoRoot, "git", "remote", "get-url", name) == nil
}

// MergeTreeConflicts predicts whether merging branch into base would
// conflict, without touching the working tree.
func (g *Git) MergeTreeConflicts(base, branch string) (bool, error) {
	mergeBaseOut, err := g.executor.Run(g.repoRoot, "git", "merge-base", base, branch)
	if err != nil {
		return false, errors.NewGitError("failed to get merge base", err).
			WithRepository(g.repoRoot).
			WithBranch(branch).
			WithGitOutput(string(mergeBaseOut))
	}
	mergeBase := strings.TrimSpace(string(mergeBaseOut))

	output, err := g.executor.Run(g.repoRoot, "git", "merge-tree", mergeBase, base, branch)
	if err != nil {
		return false, errors.NewGitError("failed to run merge-tree", err).
			WithRepository(g.repoRoot).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	out := string(output)
	return strings.Contains(out, "<<<<<<<") || strings.Contains(out, ">>>>>>>"), nil
}

// RunInit runs an environment initialization command inside a worktree
// through the shell, checked by exit status.
func (g *Git) RunInit(path, command string) error {
	output, err := g.executor.Run(path, "sh", "-c", command)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("init command failed: %s", strings.TrimSpace(string(output))))
	}
	return nil
}
