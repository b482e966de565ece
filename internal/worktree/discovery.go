package worktree

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/specksdev/specks/internal/naming"
	"github.com/specksdev/specks/internal/session"
)

// Worktree is a live, tool-managed worktree derived from git's own registry,
// joined with its session record when one exists. Discovery always re-derives
// this from git; it is never cached.
type Worktree struct {
	// Path is the worktree's checkout directory.
	Path string
	// Branch is the checked-out namespace branch.
	Branch string
	// Head is the checked-out commit SHA.
	Head string
	// Slug is the plan identifier derived from the branch name.
	Slug string
	// Session is the bound session record, nil when the record is missing
	// or unreadable.
	Session *session.Session
}

// branchTimestampRe matches the timestamp suffix BranchNameAt appends.
var branchTimestampRe = regexp.MustCompile(`-\d{8}-\d{6}$`)

// slugFromBranch recovers the plan slug from a namespace branch name.
// "specks/auth-20260830-120000" -> "auth".
func slugFromBranch(branch string) string {
	s := strings.TrimPrefix(branch, naming.BranchNamespace+"/")
	return branchTimestampRe.ReplaceAllString(s, "")
}

// Discovery derives live worktree state from git, joined with session
// records.
type Discovery struct {
	git   *Git
	store *session.Store
}

// NewDiscovery creates a Discovery over a git client and session store.
func NewDiscovery(git *Git, store *session.Store) *Discovery {
	return &Discovery{git: git, store: store}
}

// List returns every live worktree on a namespace branch, sorted by branch
// name so timestamped branches for the same slug come out chronologically.
// The registry is pruned first so entries whose directory vanished out of
// band are never reported as live.
func (d *Discovery) List() ([]Worktree, error) {
	if err := d.git.PruneWorktrees(); err != nil {
		return nil, err
	}
	infos, err := d.git.ListWorktrees()
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	for _, info := range infos {
		if info.Detached || info.Prunable || !naming.InNamespace(info.Branch) {
			continue
		}

		wt := Worktree{
			Path:   info.Path,
			Branch: info.Branch,
			Head:   info.Head,
			Slug:   slugFromBranch(info.Branch),
		}
		// Sessions are bound to their checkout directory. A missing record
		// is a classification signal, not an error.
		if sess, err := d.store.FindByPath(info.Path); err == nil {
			wt.Session = sess
		}
		worktrees = append(worktrees, wt)
	}

	sort.Slice(worktrees, func(i, j int) bool {
		return worktrees[i].Branch < worktrees[j].Branch
	})
	return worktrees, nil
}

// FindBySlug returns the live worktrees whose branch carries the given
// plan slug.
func (d *Discovery) FindBySlug(slug string) ([]Worktree, error) {
	worktrees, err := d.List()
	if err != nil {
		return nil, err
	}
	var matched []Worktree
	for _, wt := range worktrees {
		if wt.Slug == slug {
			matched = append(matched, wt)
		}
	}
	return matched, nil
}

// FindByTarget resolves a user-supplied removal target against live
// worktrees. A target may be a plan document path, a slug, a full branch
// name, or a worktree path; all interpretations are collected so ambiguity
// is visible to the caller.
func (d *Discovery) FindByTarget(target string) ([]Worktree, error) {
	worktrees, err := d.List()
	if err != nil {
		return nil, err
	}

	// A plan path narrows to its slug.
	slug := target
	if strings.HasSuffix(target, ".md") {
		slug = naming.Slug(target)
	}

	seen := make(map[string]bool)
	var matched []Worktree
	add := func(wt Worktree) {
		if !seen[wt.Path] {
			seen[wt.Path] = true
			matched = append(matched, wt)
		}
	}

	for _, wt := range worktrees {
		switch {
		case wt.Branch == target:
			add(wt)
		case wt.Path == target || filepath.Base(wt.Path) == target:
			add(wt)
		case wt.Slug == slug:
			add(wt)
		}
	}
	return matched, nil
}

// StaleBranches returns namespace branches that have no live worktree
// checked out.
func (d *Discovery) StaleBranches() ([]string, error) {
	branches, err := d.git.ListBranches(naming.BranchNamespace + "/")
	if err != nil {
		return nil, err
	}
	worktrees, err := d.List()
	if err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(worktrees))
	for _, wt := range worktrees {
		live[wt.Branch] = true
	}

	var stale []string
	for _, branch := range branches {
		if !live[branch] {
			stale = append(stale, branch)
		}
	}
	return stale, nil
}
