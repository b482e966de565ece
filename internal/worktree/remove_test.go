package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/session"
	"github.com/specksdev/specks/internal/testutil"
)

func setupRemove(t *testing.T) (repo string, r *Remover, store *session.Store) {
	t.Helper()
	testutil.SkipIfNoGit(t)
	repo = testutil.SetupTestRepo(t)
	store = session.NewStore(filepath.Join(repo, ".specks", "worktrees"))
	r = NewRemover(NewGit(repo), store, logging.NopLogger())
	return repo, r, store
}

func TestRemoveByBranch(t *testing.T) {
	repo, r, store := setupRemove(t)

	branch := "specks/auth-20260830-120000"
	path := addNamespaceWorktree(t, repo, branch)
	sess := session.New("plan.md", "auth", branch, "main", path, 2)
	if err := store.Save(sess); err != nil {
		t.Fatal(err)
	}

	info, err := r.Remove(branch, false)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if info.Branch != branch || !info.BranchDeleted {
		t.Errorf("RemovedInfo = %+v", info)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("worktree directory still exists")
	}
	if testutil.BranchExists(t, repo, branch) {
		t.Error("branch still exists")
	}
	if _, err := store.Load(sess.ID); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("session record still present: %v", err)
	}
}

func TestRemoveBySlug(t *testing.T) {
	repo, r, _ := setupRemove(t)
	addNamespaceWorktree(t, repo, "specks/auth-20260830-120000")

	info, err := r.Remove("auth", false)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if info.Slug != "auth" {
		t.Errorf("Slug = %q", info.Slug)
	}
}

func TestRemoveNotFound(t *testing.T) {
	_, r, _ := setupRemove(t)

	_, err := r.Remove("nothing", false)
	if !errors.Is(err, errors.ErrWorktreeNotFound) {
		t.Errorf("Remove() error = %v, want ErrWorktreeNotFound", err)
	}
}

func TestRemoveAmbiguousTarget(t *testing.T) {
	repo, r, _ := setupRemove(t)

	// Two live worktrees share the slug; a slug target must not pick one.
	addNamespaceWorktree(t, repo, "specks/auth-20260829-090000")
	addNamespaceWorktree(t, repo, "specks/auth-20260830-120000")

	_, err := r.Remove("auth", false)
	if err == nil {
		t.Fatal("Remove() succeeded on ambiguous target")
	}
	var ambiguous *errors.AmbiguousTargetError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("Remove() error = %T, want AmbiguousTargetError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("Candidates = %d, want 2", len(ambiguous.Candidates))
	}

	// An exact branch target still disambiguates.
	if _, err := r.Remove("specks/auth-20260829-090000", false); err != nil {
		t.Errorf("Remove() by exact branch = %v", err)
	}
}

func TestRemoveDirtyProtection(t *testing.T) {
	repo, r, _ := setupRemove(t)

	branch := "specks/auth-20260830-120000"
	path := addNamespaceWorktree(t, repo, branch)
	testutil.WriteFile(t, path, "wip.txt", "uncommitted work")

	_, err := r.Remove(branch, false)
	if !errors.Is(err, errors.ErrDirtyWorktree) {
		t.Fatalf("Remove() error = %v, want ErrDirtyWorktree", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Error("refused removal must leave the worktree intact")
	}

	// Force overrides the protection.
	if _, err := r.Remove(branch, true); err != nil {
		t.Fatalf("Remove(force) error = %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("worktree directory still exists after forced removal")
	}
}
