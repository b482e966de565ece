package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specksdev/specks/internal/config"
	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/session"
	"github.com/specksdev/specks/internal/testutil"
)

type mergeFixture struct {
	repo     string
	planPath string
	root     string
	store    *session.Store
	gh       *fakePRExecutor
	merger   *Merger
}

func setupMerge(t *testing.T) *mergeFixture {
	t.Helper()
	testutil.SkipIfNoGit(t)
	repo, planPath := testutil.SetupTestRepoWithPlan(t, "auth", testPlan)
	return newMergeFixture(t, repo, planPath, &fakePRExecutor{unavailable: true})
}

func newMergeFixture(t *testing.T, repo, planPath string, gh *fakePRExecutor) *mergeFixture {
	t.Helper()
	cfg := config.Default()
	root := cfg.Paths.ResolveWorktreeDir(repo)
	store := session.NewStore(root)
	merger := NewMerger(NewGit(repo), store, NewPRClientWithExecutor(repo, gh), cfg, root, logging.NopLogger())
	return &mergeFixture{repo: repo, planPath: planPath, root: root, store: store, gh: gh, merger: merger}
}

// addMergeTarget provisions a branch and worktree for the auth plan with one
// feature commit of its own.
func (f *mergeFixture) addMergeTarget(t *testing.T) (branch, path string) {
	t.Helper()
	branch = "specks/auth-20260830-120000"
	path = addNamespaceWorktree(t, f.repo, branch)
	testutil.CommitFile(t, path, "feature.go", "package feature\n", "Add feature")
	return branch, path
}

func TestMergeLocalSquash(t *testing.T) {
	f := setupMerge(t)
	branch, path := f.addMergeTarget(t)

	before := testutil.GetCommitCount(t, f.repo)

	outcome, err := f.merger.Merge(f.planPath, false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.Mode != MergeLocal {
		t.Errorf("Mode = %q, want local", outcome.Mode)
	}
	if outcome.SquashCommit == "" {
		t.Error("SquashCommit not recorded")
	}
	if !outcome.Cleaned {
		t.Error("merged worktree was not cleaned up")
	}

	// The branch's work landed as exactly one commit on main.
	if got := testutil.GetCommitCount(t, f.repo); got != before+1 {
		t.Errorf("commit count = %d, want %d", got, before+1)
	}
	if _, err := os.Stat(filepath.Join(f.repo, "feature.go")); err != nil {
		t.Error("merged file missing from primary worktree")
	}
	if testutil.HasUncommittedChanges(t, f.repo) {
		t.Error("primary worktree dirty after merge")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("merged worktree directory still exists")
	}
	if testutil.BranchExists(t, f.repo, branch) {
		t.Error("merged branch still exists")
	}
}

func TestMergeDryRun(t *testing.T) {
	f := setupMerge(t)
	branch, path := f.addMergeTarget(t)

	before := testutil.GetCommitCount(t, f.repo)

	outcome, err := f.merger.Merge(f.planPath, true)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !outcome.DryRun {
		t.Error("outcome should be marked dry-run")
	}
	if outcome.WouldConflict {
		t.Error("clean merge predicted to conflict")
	}

	if got := testutil.GetCommitCount(t, f.repo); got != before {
		t.Error("dry run created commits")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("dry run removed the worktree")
	}
	if !testutil.BranchExists(t, f.repo, branch) {
		t.Error("dry run deleted the branch")
	}
}

func TestMergeDryRunPredictsConflict(t *testing.T) {
	f := setupMerge(t)
	_, path := f.addMergeTarget(t)
	testutil.CommitFile(t, path, "shared.txt", "branch side\n", "Branch change")
	testutil.CommitFile(t, f.repo, "shared.txt", "main side\n", "Main change")

	outcome, err := f.merger.Merge(f.planPath, true)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !outcome.WouldConflict {
		t.Error("diverged file should predict a conflict")
	}
	if testutil.HasUncommittedChanges(t, f.repo) {
		t.Error("conflict prediction dirtied the primary worktree")
	}
}

func TestMergeCodeConflictAbortsAndRestores(t *testing.T) {
	f := setupMerge(t)
	branch, path := f.addMergeTarget(t)
	testutil.CommitFile(t, path, "shared.txt", "branch side\n", "Branch change")
	testutil.CommitFile(t, f.repo, "shared.txt", "main side\n", "Main change")

	_, err := f.merger.Merge(f.planPath, false)
	if !errors.Is(err, errors.ErrMergeConflict) {
		t.Fatalf("Merge() error = %v, want ErrMergeConflict", err)
	}
	if !strings.Contains(err.Error(), "shared.txt") {
		t.Errorf("error %v should name the conflicting file", err)
	}

	// Pre-merge state is restored: main's content, clean tree, worktree
	// and branch untouched.
	content, readErr := os.ReadFile(filepath.Join(f.repo, "shared.txt"))
	if readErr != nil || string(content) != "main side\n" {
		t.Errorf("shared.txt = %q, %v; want main side restored", content, readErr)
	}
	if testutil.HasUncommittedChanges(t, f.repo) {
		t.Error("primary worktree dirty after aborted merge")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Error("aborted merge removed the worktree")
	}
	if !testutil.BranchExists(t, f.repo, branch) {
		t.Error("aborted merge deleted the branch")
	}
}

func TestMergeInfraConflictAutoResolved(t *testing.T) {
	testutil.SkipIfNoGit(t)
	repo, planPath := testutil.SetupTestRepoWithPlan(t, "auth", testPlan)
	// Both sides edit a file under the infrastructure prefix.
	notesRel := filepath.Join(".specks", "notes.md")
	testutil.CommitFile(t, repo, notesRel, "original\n", "Add notes")

	f := newMergeFixture(t, repo, planPath, &fakePRExecutor{unavailable: true})
	_, path := f.addMergeTarget(t)
	testutil.CommitFile(t, path, notesRel, "branch notes\n", "Update notes on branch")
	testutil.CommitFile(t, repo, notesRel, "main notes\n", "Update notes on main")

	outcome, err := f.merger.Merge(f.planPath, false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.SquashCommit == "" {
		t.Error("SquashCommit not recorded")
	}

	// The incoming branch side wins infrastructure conflicts.
	content, readErr := os.ReadFile(filepath.Join(repo, notesRel))
	if readErr != nil || string(content) != "branch notes\n" {
		t.Errorf("notes = %q, %v; want branch side", content, readErr)
	}
	if testutil.HasUncommittedChanges(t, repo) {
		t.Error("primary worktree dirty after auto-resolved merge")
	}
}

func TestMergeReconciliation(t *testing.T) {
	f := setupMerge(t)
	branch, _ := f.addMergeTarget(t)

	// Uncommitted infra file: committed before merging. Uncommitted code
	// file: discarded. Session records under the worktrees root: untouched,
	// even though they sit under the infra prefix.
	testutil.WriteFile(t, f.repo, filepath.Join(".specks", "state-note.md"), "infra drift\n")
	testutil.WriteFile(t, f.repo, "scratch.txt", "stray output\n")
	otherSess := session.New("other.md", "other", "specks/other-20260830-110000", "main", "", 1)
	if err := f.store.Save(otherSess); err != nil {
		t.Fatal(err)
	}

	outcome, err := f.merger.Merge(f.planPath, false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if len(outcome.CommittedInfra) != 1 || outcome.CommittedInfra[0] != ".specks/state-note.md" {
		t.Errorf("CommittedInfra = %v", outcome.CommittedInfra)
	}
	if len(outcome.DiscardedPaths) != 1 || outcome.DiscardedPaths[0] != "scratch.txt" {
		t.Errorf("DiscardedPaths = %v", outcome.DiscardedPaths)
	}

	if _, err := os.Stat(filepath.Join(f.repo, ".specks", "state-note.md")); err != nil {
		t.Error("infra file should have been committed, not discarded")
	}
	if _, err := os.Stat(filepath.Join(f.repo, "scratch.txt")); !os.IsNotExist(err) {
		t.Error("code file should have been discarded")
	}
	if _, err := f.store.Load(otherSess.ID); err != nil {
		t.Errorf("unrelated session record lost during merge: %v", err)
	}
	if testutil.BranchExists(t, f.repo, branch) {
		t.Error("merged branch still exists")
	}
}

func TestMergeNoLiveWorktree(t *testing.T) {
	f := setupMerge(t)

	_, err := f.merger.Merge(f.planPath, false)
	if !errors.Is(err, errors.ErrWorktreeNotFound) {
		t.Errorf("Merge() error = %v, want ErrWorktreeNotFound", err)
	}
}

func TestMergeRequiresBaseBranch(t *testing.T) {
	f := setupMerge(t)
	f.addMergeTarget(t)

	testutil.CreateBranch(t, f.repo, "side")
	testutil.CheckoutBranch(t, f.repo, "side")

	_, err := f.merger.Merge(f.planPath, false)
	if err == nil || !strings.Contains(err.Error(), "merge must run on branch main") {
		t.Errorf("Merge() off base = %v, want base-branch refusal", err)
	}
}

func TestMergePicksNewestWorktree(t *testing.T) {
	f := setupMerge(t)

	addNamespaceWorktree(t, f.repo, "specks/auth-20260829-090000")
	newPath := addNamespaceWorktree(t, f.repo, "specks/auth-20260830-120000")
	testutil.CommitFile(t, newPath, "feature.go", "package feature\n", "Add feature")

	outcome, err := f.merger.Merge(f.planPath, false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.Branch != "specks/auth-20260830-120000" {
		t.Errorf("merged branch = %q, want the newest timestamp", outcome.Branch)
	}
	// The older worktree survives.
	if !testutil.BranchExists(t, f.repo, "specks/auth-20260829-090000") {
		t.Error("older branch should be untouched")
	}
}

func TestMergeRemoteDelegation(t *testing.T) {
	testutil.SkipIfNoGit(t)
	repo, _ := testutil.SetupTestRepoWithRemote(t)
	planRel := filepath.Join(".specks", "specks-auth.md")
	testutil.CommitFile(t, repo, planRel, testPlan, "Add plan document")

	branch := "specks/auth-20260830-120000"
	gh := &fakePRExecutor{states: map[string]string{branch: "OPEN"}}
	f := newMergeFixture(t, repo, filepath.Join(repo, planRel), gh)
	path := addNamespaceWorktree(t, repo, branch)

	outcome, err := f.merger.Merge(f.planPath, false)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.Mode != MergeRemote {
		t.Errorf("Mode = %q, want remote with an open PR", outcome.Mode)
	}
	if len(gh.merged) != 1 || gh.merged[0] != branch {
		t.Errorf("pr merge invocations = %v", gh.merged)
	}
	if outcome.SquashCommit != "" {
		t.Error("remote merge should not record a local squash commit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("worktree not cleaned up after remote merge")
	}
}
