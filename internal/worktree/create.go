package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/specksdev/specks/internal/config"
	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/naming"
	"github.com/specksdev/specks/internal/plan"
	"github.com/specksdev/specks/internal/session"
	"github.com/specksdev/specks/internal/tracker"
)

// Creator provisions a worktree for a plan document as an ordered
// transaction. Each completed step has a compensating action; on the first
// failure the compensations run in reverse so a partial attempt leaves the
// repository exactly as it was found.
type Creator struct {
	git           *Git
	store         *session.Store
	discovery     *Discovery
	tracker       tracker.IssueTracker
	cfg           *config.Config
	log           *logging.Logger
	worktreesRoot string

	// now is the clock used for branch timestamps, injectable in tests.
	now func() time.Time
}

// NewCreator wires a Creator. The tracker may be nil to disable issue
// synchronization entirely.
func NewCreator(git *Git, store *session.Store, trk tracker.IssueTracker, cfg *config.Config, worktreesRoot string, log *logging.Logger) *Creator {
	return &Creator{
		git:           git,
		store:         store,
		discovery:     NewDiscovery(git, store),
		tracker:       trk,
		cfg:           cfg,
		log:           log,
		worktreesRoot: worktreesRoot,
		now:           time.Now,
	}
}

// CreateOptions are the inputs to Create.
type CreateOptions struct {
	// PlanPath is the plan document to bind the worktree to.
	PlanPath string
	// BaseBranch overrides the configured default base branch when set.
	BaseBranch string
}

// CreateResult reports the outcome of Create.
type CreateResult struct {
	// Session is the record bound to the worktree.
	Session *session.Session
	// Reused is true when a live worktree for the plan already existed and
	// was returned instead of provisioning a new one.
	Reused bool
}

// sagaStep pairs a creation action with the compensation that undoes it.
type sagaStep struct {
	name       string
	action     func() error
	compensate func() error
}

// availabilityReporter is implemented by trackers that can report whether
// their backing tool is usable at all.
type availabilityReporter interface {
	Available() bool
}

// Create provisions a worktree for the plan document in opts.
//
// Preconditions are checked before anything is mutated: git meets the
// minimum version, the base branch exists, and the plan declares at least
// one step. If a live worktree for the plan's slug already exists it is
// returned with Reused set and nothing is created.
func (c *Creator) Create(opts CreateOptions) (*CreateResult, error) {
	if err := c.git.CheckVersion(c.cfg.Git.MinVersion); err != nil {
		return nil, err
	}

	p, err := plan.Parse(opts.PlanPath)
	if err != nil {
		return nil, err
	}

	base := opts.BaseBranch
	if base == "" {
		base = c.cfg.Branch.Base
	}
	if !c.git.BranchExists(base) {
		return nil, errors.NewGitError("base branch does not exist", errors.ErrBranchNotFound).
			WithRepository(c.git.RepoRoot()).
			WithBranch(base)
	}

	// Idempotency: a repeat invocation for a plan with a live worktree
	// returns that worktree instead of racing a second one into existence.
	existing, err := c.discovery.FindBySlug(p.Slug)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		wt := existing[0]
		c.log.Info("reusing existing worktree", "slug", p.Slug, "path", wt.Path, "branch", wt.Branch)

		sess := wt.Session
		if sess != nil {
			sess.Reused = true
			sess.Touch()
			if err := c.store.Save(sess); err != nil {
				c.log.Warn("failed to update session record", "session", sess.ID, "error", err)
			}
		}
		return &CreateResult{Session: sess, Reused: true}, nil
	}

	branch := naming.BranchNameAt(p.Slug, c.now())
	wtPath := filepath.Join(c.worktreesRoot, naming.Sanitize(branch))

	if _, err := os.Stat(wtPath); err == nil {
		return nil, errors.NewGitError("worktree path already exists", errors.ErrWorktreeExists).
			WithWorktree(wtPath).
			WithBranch(branch)
	}

	sess := session.New(p.Path, p.Slug, branch, base, wtPath, len(p.Steps))
	log := c.log.WithSession(sess.ID).WithBranch(branch)

	steps := []sagaStep{
		{
			name:       "create branch",
			action:     func() error { return c.git.CreateBranch(branch, base) },
			compensate: func() error { return c.git.DeleteBranch(branch) },
		},
		{
			name:       "add worktree",
			action:     func() error { return c.git.AddWorktree(wtPath, branch) },
			compensate: func() error { return c.git.RemoveWorktree(wtPath) },
		},
		{
			name:   "initialize environment",
			action: func() error { return c.runInit(wtPath, log) },
		},
		{
			name:   "synchronize tracker",
			action: func() error { return c.syncTracker(p, sess, wtPath, log) },
		},
		{
			name:       "save session",
			action:     func() error { return c.store.Save(sess) },
			compensate: func() error { return c.store.Delete(sess.ID) },
		},
	}

	if err := c.runSaga(steps, log); err != nil {
		return nil, err
	}

	log.Info("worktree created", "path", wtPath, "base", base, "steps", len(p.Steps))
	return &CreateResult{Session: sess}, nil
}

// runSaga executes steps in order. On the first failure it runs the
// compensations of every completed step in reverse; compensation failures
// are logged but never displace the original error.
func (c *Creator) runSaga(steps []sagaStep, log *logging.Logger) error {
	var completed []sagaStep

	for _, step := range steps {
		log.Debug("running step", "step", step.name)
		if err := step.action(); err != nil {
			log.Error("step failed, rolling back", "step", step.name, "error", err)
			for i := len(completed) - 1; i >= 0; i-- {
				comp := completed[i]
				if comp.compensate == nil {
					continue
				}
				if compErr := comp.compensate(); compErr != nil {
					log.Warn("compensation failed", "step", comp.name, "error", compErr)
				}
			}
			return errors.Wrapf(err, "creation failed at %q", step.name)
		}
		completed = append(completed, step)
	}
	return nil
}

// runInit runs the configured environment initialization command inside the
// new worktree. No command configured means the step is a no-op.
func (c *Creator) runInit(wtPath string, log *logging.Logger) error {
	command := c.cfg.Init.Command
	if command == "" {
		return nil
	}
	log.Debug("running init command", "command", command)
	return c.git.RunInit(wtPath, command)
}

// syncTracker creates tracker issues for the plan, writes the references
// into the worktree's copy of the plan document, and commits the result.
// A disabled or unavailable tracker skips the step; an actual sync failure
// aborts the transaction.
func (c *Creator) syncTracker(p *plan.Plan, sess *session.Session, wtPath string, log *logging.Logger) error {
	if c.tracker == nil || !c.cfg.Tracker.Enabled {
		return nil
	}
	if reporter, ok := c.tracker.(availabilityReporter); ok && !reporter.Available() {
		log.Warn("tracker tool unavailable, skipping issue synchronization")
		return nil
	}

	result, err := tracker.Sync(c.tracker, p, c.cfg.Tracker.Labels, log)
	if err != nil {
		return err
	}
	sess.RootIssue = result.RootIssue

	copyPath, ok := c.planCopyPath(p.Path, wtPath)
	if !ok {
		log.Warn("plan document lives outside the repository, skipping annotation")
		return nil
	}

	if err := plan.AnnotateIssues(copyPath, result.StepIssues); err != nil {
		return err
	}

	rel, _ := filepath.Rel(wtPath, copyPath)
	message := fmt.Sprintf("Link plan steps to tracker issues for %s", p.Slug)
	return c.git.CommitPaths(wtPath, message, []string{rel})
}

// planCopyPath maps the plan document's repository-relative path into the
// new worktree. Returns false when the plan lives outside the repository.
func (c *Creator) planCopyPath(planPath, wtPath string) (string, bool) {
	abs, err := filepath.Abs(planPath)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(c.git.RepoRoot(), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.Join(wtPath, rel), true
}
