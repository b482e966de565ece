package worktree

import (
	"github.com/specksdev/specks/internal/config"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/session"
)

// CleanupStatus classifies one branch for cleanup. Computed fresh on every
// invocation, never cached.
type CleanupStatus string

const (
	// StatusMerged means the branch's work is contained in its base: its
	// pull request reports merged, or the base is a descendant of it.
	StatusMerged CleanupStatus = "merged"
	// StatusOrphaned means the PR host answered and the branch has no pull
	// request at all.
	StatusOrphaned CleanupStatus = "orphaned"
	// StatusStale marks a namespace branch with no live worktree.
	StatusStale CleanupStatus = "stale"
	// StatusSkipped means the branch is protected from cleanup; Reason
	// says why.
	StatusSkipped CleanupStatus = "skipped"
)

// CleanupCandidate is the classification of one branch.
type CleanupCandidate struct {
	Branch string
	// Path is the worktree directory, empty for stale branches.
	Path   string
	Slug   string
	Status CleanupStatus
	// Reason explains a skip ("open PR", "in progress").
	Reason string
	// Session is the bound record when one exists.
	Session *session.Session
}

// CleanupMode selects which classifications a live run acts on.
type CleanupMode int

const (
	// ModeMerged removes only merged worktrees.
	ModeMerged CleanupMode = 1 << iota
	// ModeOrphaned removes only worktrees whose branch has no PR.
	ModeOrphaned
	// ModeStale deletes only namespace branches with no worktree.
	ModeStale
	// ModeAll is the union of the other modes.
	ModeAll = ModeMerged | ModeOrphaned | ModeStale
)

// CleanupResult is the full classification plus what a live run removed.
type CleanupResult struct {
	Merged   []CleanupCandidate
	Orphaned []CleanupCandidate
	Stale    []CleanupCandidate
	Skipped  []CleanupCandidate

	// Removed lists the branches actually acted on; empty for a dry run.
	Removed []string
}

// Cleaner classifies and removes worktrees and branches that are no longer
// needed.
type Cleaner struct {
	git       *Git
	discovery *Discovery
	store     *session.Store
	pr        *PRClient
	cfg       *config.Config
	log       *logging.Logger
}

// NewCleaner wires a Cleaner.
func NewCleaner(git *Git, store *session.Store, pr *PRClient, cfg *config.Config, log *logging.Logger) *Cleaner {
	return &Cleaner{
		git:       git,
		discovery: NewDiscovery(git, store),
		store:     store,
		pr:        pr,
		cfg:       cfg,
		log:       log,
	}
}

// Classify computes the cleanup classification for every namespace branch.
// Nothing is mutated.
func (c *Cleaner) Classify() (*CleanupResult, error) {
	result := &CleanupResult{}

	worktrees, err := c.discovery.List()
	if err != nil {
		return nil, err
	}

	prAvailable := c.pr != nil && c.pr.Available()

	for _, wt := range worktrees {
		cand := CleanupCandidate{
			Branch:  wt.Branch,
			Path:    wt.Path,
			Slug:    wt.Slug,
			Session: wt.Session,
		}

		state := PRStateUnknown
		if prAvailable {
			s, err := c.pr.State(wt.Branch)
			if err != nil {
				c.log.Warn("failed to query PR state", "branch", wt.Branch, "error", err)
				s = PRStateUnknown
			}
			state = s
		}

		switch state {
		case PRStateNone:
			cand.Status = StatusOrphaned
			result.Orphaned = append(result.Orphaned, cand)
			continue
		case PRStateOpen:
			// An open PR protects the branch regardless of mode.
			cand.Status = StatusSkipped
			cand.Reason = "open PR"
			result.Skipped = append(result.Skipped, cand)
			continue
		case PRStateMerged:
			cand.Status = StatusMerged
			result.Merged = append(result.Merged, cand)
			continue
		}

		// Closed PR or no PR information: fall back to history. The branch
		// is merged iff the base already contains it.
		base := c.cfg.Branch.Base
		if wt.Session != nil && wt.Session.BaseBranch != "" {
			base = wt.Session.BaseBranch
		}
		contained, err := c.git.IsAncestor(wt.Branch, base)
		if err != nil {
			return nil, err
		}
		if contained {
			cand.Status = StatusMerged
			result.Merged = append(result.Merged, cand)
		} else {
			cand.Status = StatusSkipped
			cand.Reason = "in progress"
			result.Skipped = append(result.Skipped, cand)
		}
	}

	stale, err := c.discovery.StaleBranches()
	if err != nil {
		return nil, err
	}
	for _, branch := range stale {
		cand := CleanupCandidate{
			Branch: branch,
			Slug:   slugFromBranch(branch),
			Status: StatusStale,
		}
		if sess, err := c.store.FindByBranch(branch); err == nil {
			cand.Session = sess
		}

		// An open PR protects a branch even after its worktree is gone.
		if prAvailable {
			state, err := c.pr.State(branch)
			if err != nil {
				c.log.Warn("failed to query PR state", "branch", branch, "error", err)
			} else if state == PRStateOpen {
				cand.Status = StatusSkipped
				cand.Reason = "open PR"
				result.Skipped = append(result.Skipped, cand)
				continue
			}
		}
		result.Stale = append(result.Stale, cand)
	}

	return result, nil
}

// Cleanup classifies every branch and, unless dryRun is set, removes the
// classifications selected by mode. The registry is pruned once at the end
// of a live run.
func (c *Cleaner) Cleanup(mode CleanupMode, dryRun bool) (*CleanupResult, error) {
	result, err := c.Classify()
	if err != nil {
		return nil, err
	}
	if dryRun {
		return result, nil
	}

	if mode&ModeMerged != 0 {
		for _, cand := range result.Merged {
			c.removeCandidate(cand, result)
		}
	}
	if mode&ModeOrphaned != 0 {
		for _, cand := range result.Orphaned {
			c.removeCandidate(cand, result)
		}
	}
	if mode&ModeStale != 0 {
		for _, cand := range result.Stale {
			c.deleteBranchAndSession(cand)
			result.Removed = append(result.Removed, cand.Branch)
		}
	}

	if len(result.Removed) > 0 {
		if err := c.git.PruneWorktrees(); err != nil {
			c.log.Warn("failed to prune worktree registry", "error", err)
		}
	}

	return result, nil
}

// removeCandidate removes a candidate's worktree, branch, and session.
// Worktree removal failure is fatal for the candidate; a branch delete
// failure is a warning because the worktree is already gone.
func (c *Cleaner) removeCandidate(cand CleanupCandidate, result *CleanupResult) {
	if err := c.git.RemoveWorktree(cand.Path); err != nil {
		c.log.Error("failed to remove worktree", "path", cand.Path, "error", err)
		return
	}
	c.deleteBranchAndSession(cand)
	result.Removed = append(result.Removed, cand.Branch)
	c.log.Info("cleaned up worktree", "branch", cand.Branch, "status", string(cand.Status))
}

func (c *Cleaner) deleteBranchAndSession(cand CleanupCandidate) {
	if err := c.git.DeleteBranch(cand.Branch); err != nil {
		c.log.Warn("failed to delete branch", "branch", cand.Branch, "error", err)
	}
	if cand.Session != nil {
		if err := c.store.Delete(cand.Session.ID); err != nil {
			c.log.Warn("failed to delete session record", "session", cand.Session.ID, "error", err)
		}
	}
}
