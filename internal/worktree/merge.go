package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specksdev/specks/internal/config"
	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/naming"
	"github.com/specksdev/specks/internal/plan"
	"github.com/specksdev/specks/internal/session"
)

// MergeMode says how a worktree's branch lands on the base branch.
type MergeMode string

const (
	// MergeLocal squash-merges the branch directly in the primary worktree.
	MergeLocal MergeMode = "local"
	// MergeRemote delegates the squash merge to the PR host and
	// fast-forwards the primary branch afterward.
	MergeRemote MergeMode = "remote"
)

// MergeOutcome reports what a merge did, or in a dry run, would do.
type MergeOutcome struct {
	Mode   MergeMode
	Branch string
	Slug   string

	// SquashCommit is the commit id produced by a local merge.
	SquashCommit string

	// CommittedInfra and DiscardedPaths report the pre-merge
	// reconciliation of the primary worktree.
	CommittedInfra []string
	DiscardedPaths []string

	// WouldConflict is set by a dry run when a local merge is predicted
	// to stop on conflicts.
	WouldConflict bool

	// Cleaned is true when the worktree and branch were removed after a
	// successful merge.
	Cleaned bool

	// DryRun marks an outcome that mutated nothing.
	DryRun bool
}

// Merger lands a plan's worktree branch on the base branch.
type Merger struct {
	git           *Git
	discovery     *Discovery
	store         *session.Store
	pr            *PRClient
	cfg           *config.Config
	log           *logging.Logger
	worktreesRoot string
}

// NewMerger wires a Merger.
func NewMerger(git *Git, store *session.Store, pr *PRClient, cfg *config.Config, worktreesRoot string, log *logging.Logger) *Merger {
	return &Merger{
		git:           git,
		discovery:     NewDiscovery(git, store),
		store:         store,
		pr:            pr,
		cfg:           cfg,
		log:           log,
		worktreesRoot: worktreesRoot,
	}
}

// Merge lands the worktree bound to planPath on the base branch.
//
// The caller must be in the primary working copy on the base branch. The
// target worktree is discovered fresh from git by the plan's slug; the
// session index is never trusted for existence. Conflicts are auto-resolved
// only when every conflicting path falls under the configured infrastructure
// prefixes; anything else aborts, restores the pre-merge state, and surfaces
// ErrMergeConflict.
func (m *Merger) Merge(planPath string, dryRun bool) (*MergeOutcome, error) {
	p, err := plan.Parse(planPath)
	if err != nil {
		return nil, err
	}

	if err := m.checkPrimary(); err != nil {
		return nil, err
	}

	matches, err := m.discovery.FindBySlug(p.Slug)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.NewGitError(
			fmt.Sprintf("no live worktree found for branch prefix %s", naming.BranchPrefix(p.Slug)),
			errors.ErrWorktreeNotFound)
	}
	// Branches sort by timestamp; the newest worktree is the merge target.
	wt := matches[len(matches)-1]

	outcome := &MergeOutcome{
		Branch: wt.Branch,
		Slug:   wt.Slug,
		Mode:   MergeLocal,
		DryRun: dryRun,
	}

	if m.git.HasRemote("origin") && m.pr != nil && m.pr.Available() {
		state, err := m.pr.State(wt.Branch)
		if err != nil {
			m.log.Warn("failed to query PR state", "branch", wt.Branch, "error", err)
		}
		if state == PRStateOpen {
			outcome.Mode = MergeRemote
		}
	}

	infra, discard, err := m.planReconciliation()
	if err != nil {
		return nil, err
	}
	outcome.CommittedInfra = infra
	outcome.DiscardedPaths = discard

	if dryRun {
		if outcome.Mode == MergeLocal {
			conflict, err := m.git.MergeTreeConflicts(m.cfg.Branch.Base, wt.Branch)
			if err != nil {
				return nil, err
			}
			outcome.WouldConflict = conflict
		}
		return outcome, nil
	}

	if err := m.reconcile(infra, discard); err != nil {
		return nil, err
	}

	switch outcome.Mode {
	case MergeRemote:
		if err := m.mergeRemote(wt); err != nil {
			return nil, err
		}
	default:
		if err := m.mergeLocal(wt, p, outcome); err != nil {
			return nil, err
		}
	}

	m.cleanupAfterMerge(wt, outcome)
	return outcome, nil
}

// checkPrimary verifies we are acting in the primary working copy on the
// base branch, not inside one of the tool's worktrees.
func (m *Merger) checkPrimary() error {
	infos, err := m.git.ListWorktrees()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return errors.NewGitError("no worktrees reported", errors.ErrNotGitRepository).
			WithRepository(m.git.RepoRoot())
	}
	if infos[0].Path != m.git.RepoRoot() {
		return errors.NewValidationError("merge must run from the primary working copy")
	}

	current, err := m.git.CurrentBranch(m.git.RepoRoot())
	if err != nil {
		return err
	}
	if current != m.cfg.Branch.Base {
		return errors.NewValidationError(
			fmt.Sprintf("merge must run on branch %s, currently on %s", m.cfg.Branch.Base, current))
	}
	return nil
}

// planReconciliation splits the primary worktree's uncommitted files into
// infrastructure paths to commit and paths to discard. Anything under the
// worktrees root is left alone entirely; discarding it would delete live
// worktrees.
func (m *Merger) planReconciliation() (infra, discard []string, err error) {
	entries, err := m.git.Status(m.git.RepoRoot())
	if err != nil {
		return nil, nil, err
	}

	wtRel := m.worktreesRelPath()

	for _, entry := range entries {
		if wtRel != "" && strings.HasPrefix(entry.Path, wtRel) {
			continue
		}
		if m.isInfraPath(entry.Path) {
			infra = append(infra, entry.Path)
		} else {
			discard = append(discard, entry.Path)
		}
	}
	return infra, discard, nil
}

// reconcile commits infrastructure changes as a pre-merge synchronization
// commit and discards everything else; discarded paths are expected to
// arrive unchanged from the branch being merged.
func (m *Merger) reconcile(infra, discard []string) error {
	root := m.git.RepoRoot()

	if len(infra) > 0 {
		if err := m.git.CommitPaths(root, "Pre-merge infrastructure synchronization", infra); err != nil {
			return err
		}
	}
	return m.discardPaths(discard)
}

// discardPaths drops uncommitted changes to the given paths: tracked files
// are restored from the index, untracked ones deleted.
func (m *Merger) discardPaths(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	root := m.git.RepoRoot()

	entries, err := m.git.Status(root)
	if err != nil {
		return err
	}
	untracked := make(map[string]bool)
	for _, e := range entries {
		if e.Untracked {
			untracked[e.Path] = true
		}
	}

	var tracked []string
	for _, path := range paths {
		if untracked[path] {
			if err := os.RemoveAll(filepath.Join(root, path)); err != nil {
				return errors.Wrapf(err, "failed to discard untracked path %s", path)
			}
			continue
		}
		tracked = append(tracked, path)
	}
	if len(tracked) > 0 {
		if err := m.git.CheckoutPaths(root, tracked); err != nil {
			return err
		}
	}
	return nil
}

// mergeLocal squash-merges the branch in the primary worktree, resolving
// infrastructure-only conflicts by taking the incoming side.
func (m *Merger) mergeLocal(wt Worktree, p *plan.Plan, outcome *MergeOutcome) error {
	root := m.git.RepoRoot()

	conflict, err := m.git.MergeSquash(root, wt.Branch)
	if err != nil {
		// A non-conflict merge failure still restores the pre-merge state.
		m.restore()
		return err
	}

	if conflict {
		files, err := m.git.ConflictingFiles(root)
		if err != nil {
			m.restore()
			return err
		}

		var code []string
		for _, f := range files {
			if !m.isInfraPath(f) {
				code = append(code, f)
			}
		}
		if len(code) > 0 {
			m.restore()
			return errors.NewGitError(
				fmt.Sprintf("merge conflicts on code files: %s", strings.Join(code, ", ")),
				errors.ErrMergeConflict).
				WithBranch(wt.Branch).
				WithGitOutput(strings.Join(files, "\n"))
		}

		if err := m.git.ResolveTheirs(root, files); err != nil {
			m.restore()
			return err
		}
		m.log.Info("auto-resolved infrastructure conflicts", "files", strings.Join(files, ","))
	}

	message := fmt.Sprintf("%s (squash of %s)", p.Title, wt.Branch)
	if err := m.git.Commit(root, message); err != nil {
		m.restore()
		return err
	}

	head, err := m.git.Head(root)
	if err != nil {
		return err
	}
	outcome.SquashCommit = head
	return nil
}

// mergeRemote delegates the squash merge to the PR host and fast-forwards
// the primary branch.
func (m *Merger) mergeRemote(wt Worktree) error {
	if err := m.pr.MergePR(wt.Branch); err != nil {
		return err
	}
	return m.git.PullFFOnly("origin", m.cfg.Branch.Base)
}

// cleanupAfterMerge removes the merged worktree and its branch; failures
// here are warnings since the merge itself succeeded.
func (m *Merger) cleanupAfterMerge(wt Worktree, outcome *MergeOutcome) {
	if err := m.git.RemoveWorktree(wt.Path); err != nil {
		m.log.Warn("failed to remove merged worktree", "path", wt.Path, "error", err)
		return
	}
	if err := m.git.DeleteBranch(wt.Branch); err != nil {
		m.log.Warn("failed to delete merged branch", "branch", wt.Branch, "error", err)
	}
	if wt.Session != nil {
		if err := m.store.Delete(wt.Session.ID); err != nil {
			m.log.Warn("failed to delete session record", "session", wt.Session.ID, "error", err)
		}
	}
	if err := m.git.PruneWorktrees(); err != nil {
		m.log.Warn("failed to prune worktree registry", "error", err)
	}
	outcome.Cleaned = true
}

// restore returns the primary worktree to a clean pre-merge state after a
// failed or refused merge. Untracked leftovers are cleaned with the
// worktrees root excluded.
func (m *Merger) restore() {
	root := m.git.RepoRoot()
	if err := m.git.ResetHard(root); err != nil {
		m.log.Error("failed to restore working tree", "error", err)
		return
	}
	var excludes []string
	if rel := m.worktreesRelPath(); rel != "" {
		excludes = append(excludes, rel)
	}
	if err := m.git.CleanUntracked(root, excludes); err != nil {
		m.log.Warn("failed to clean untracked files", "error", err)
	}
}

// isInfraPath reports whether a repository-relative path falls under one of
// the configured infrastructure prefixes.
func (m *Merger) isInfraPath(path string) bool {
	p := filepath.ToSlash(path)
	for _, prefix := range m.cfg.Merge.InfraPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// worktreesRelPath returns the worktrees root relative to the repository,
// or "" when it lives outside the repository.
func (m *Merger) worktreesRelPath() string {
	rel, err := filepath.Rel(m.git.RepoRoot(), m.worktreesRoot)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel) + "/"
}
