package worktree

import (
	"time"

	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/session"
)

// Remover takes down a single worktree by explicit user request.
type Remover struct {
	git       *Git
	discovery *Discovery
	store     *session.Store
	log       *logging.Logger
}

// NewRemover wires a Remover.
func NewRemover(git *Git, store *session.Store, log *logging.Logger) *Remover {
	return &Remover{
		git:       git,
		discovery: NewDiscovery(git, store),
		store:     store,
		log:       log,
	}
}

// RemovedInfo reports what Remove took down.
type RemovedInfo struct {
	Branch string
	Path   string
	Slug   string
	// BranchDeleted is false when the worktree was removed but the branch
	// delete failed; that failure is a warning, not fatal.
	BranchDeleted bool
}

// Remove resolves target (a plan document path, slug, branch name, or
// worktree directory) against live worktrees and removes the single match.
//
// A target matching more than one live worktree fails with the full
// candidate list; nothing is removed, and the tool never guesses. A worktree
// with uncommitted changes is refused unless force is set.
func (r *Remover) Remove(target string, force bool) (*RemovedInfo, error) {
	matches, err := r.discovery.FindByTarget(target)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, errors.NewGitError("no worktree matches target", errors.ErrWorktreeNotFound).
			WithWorktree(target)
	case 1:
		// Proceed.
	default:
		candidates := make([]errors.Candidate, len(matches))
		for i, wt := range matches {
			var createdAt time.Time
			if wt.Session != nil {
				createdAt = wt.Session.CreatedAt
			}
			candidates[i] = errors.Candidate{
				Branch:    wt.Branch,
				Path:      wt.Path,
				CreatedAt: createdAt,
			}
		}
		return nil, errors.NewAmbiguousTargetError(target, candidates)
	}

	wt := matches[0]

	dirty, err := r.git.HasUncommittedChanges(wt.Path)
	if err != nil {
		return nil, err
	}
	if dirty && !force {
		return nil, errors.NewGitError("worktree has uncommitted changes, use force to remove anyway", errors.ErrDirtyWorktree).
			WithWorktree(wt.Path).
			WithBranch(wt.Branch)
	}

	if err := r.git.RemoveWorktree(wt.Path); err != nil {
		return nil, err
	}

	info := &RemovedInfo{
		Branch:        wt.Branch,
		Path:          wt.Path,
		Slug:          wt.Slug,
		BranchDeleted: true,
	}

	// The worktree is already gone; a branch delete failure downgrades to
	// a warning.
	if err := r.git.DeleteBranch(wt.Branch); err != nil {
		r.log.Warn("failed to delete branch", "branch", wt.Branch, "error", err)
		info.BranchDeleted = false
	}

	if wt.Session != nil {
		if err := r.store.Delete(wt.Session.ID); err != nil {
			r.log.Warn("failed to delete session record", "session", wt.Session.ID, "error", err)
		}
	}

	if err := r.git.PruneWorktrees(); err != nil {
		r.log.Warn("failed to prune worktree registry", "error", err)
	}

	r.log.Info("worktree removed", "branch", wt.Branch, "path", wt.Path)
	return info, nil
}
