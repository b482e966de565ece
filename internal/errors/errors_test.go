package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestKindExitCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
	}{
		{KindUnknown, 1},
		{KindNotARepository, 2},
		{KindGitTooOld, 3},
		{KindBaseBranchMissing, 4},
		{KindPlanHasNoSteps, 5},
		{KindAlreadyExists, 6},
		{KindAmbiguousTarget, 7},
		{KindDirtyWorktree, 8},
		{KindMergeConflict, 9},
	}

	seen := make(map[int]Kind)
	for _, tt := range tests {
		got := tt.kind.ExitCode()
		if got != tt.code {
			t.Errorf("Kind(%s).ExitCode() = %d, want %d", tt.kind, got, tt.code)
		}
		if prev, dup := seen[got]; dup && got != 1 {
			t.Errorf("exit code %d shared by %s and %s", got, prev, tt.kind)
		}
		seen[got] = tt.kind
	}
}

func TestKindOf(t *testing.T) {
	gitErr := NewGitError("worktree add failed", ErrWorktreeExists).WithKind(KindAlreadyExists)
	wrapped := fmt.Errorf("create: %w", gitErr)

	if got := KindOf(wrapped); got != KindAlreadyExists {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindAlreadyExists)
	}
	if got := KindOf(New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindUnknown)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %s, want %s", got, KindUnknown)
	}
}

// Errors carrying only a sentinel cause, the way most constructors build
// them, still map to a distinct exit code.
func TestKindOfSentinelCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
		code int
	}{
		{"not a repository", NewGitError("not inside a git repository", ErrNotGitRepository), KindNotARepository, 2},
		{"git too old", NewGitError("git 2.19.1 is too old", ErrGitTooOld), KindGitTooOld, 3},
		{"base branch missing", NewGitError("base branch does not exist", ErrBranchNotFound).WithBranch("develop"), KindBaseBranchMissing, 4},
		{"plan has no steps", fmt.Errorf("parse plan: %w", ErrPlanNoSteps), KindPlanHasNoSteps, 5},
		{"worktree exists", NewGitError("worktree path already exists", ErrWorktreeExists), KindAlreadyExists, 6},
		{"branch exists", NewGitError("branch already exists", ErrBranchExists), KindAlreadyExists, 6},
		{"dirty worktree", NewGitError("worktree has uncommitted changes", ErrDirtyWorktree), KindDirtyWorktree, 8},
		{"merge conflict", NewGitError("merge conflicts on code files", ErrMergeConflict), KindMergeConflict, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("specks: %w", tt.err)
			got := KindOf(wrapped)
			if got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
			if code := got.ExitCode(); code != tt.code {
				t.Errorf("ExitCode() = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestGitErrorContext(t *testing.T) {
	err := NewGitError("failed to create worktree", ErrWorktreeExists).
		WithBranch("specks/auth-20260210-143022").
		WithWorktree("/repo/.specks/worktrees/specks__auth-20260210-143022").
		WithGitOutput("fatal: already exists\n")

	msg := err.Error()
	for _, want := range []string{
		"branch=specks/auth-20260210-143022",
		"worktree=/repo/.specks/worktrees/specks__auth-20260210-143022",
		"fatal: already exists",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("GitError message missing %q:\n%s", want, msg)
		}
	}

	if !Is(err, ErrWorktreeExists) {
		t.Error("GitError should match its sentinel cause via errors.Is")
	}

	var gitErr *GitError
	if !As(err, &gitErr) {
		t.Error("errors.As should extract *GitError")
	}
}

func TestAmbiguousTargetError(t *testing.T) {
	created := time.Date(2026, 2, 10, 14, 30, 22, 0, time.UTC)
	err := NewAmbiguousTargetError(".specks/specks-auth.md", []Candidate{
		{Branch: "specks/auth-20260210-143022", Path: "/wt/a", CreatedAt: created},
		{Branch: "specks/auth-20260211-090000", Path: "/wt/b", CreatedAt: created.Add(18 * time.Hour)},
	})

	if err.Kind() != KindAmbiguousTarget {
		t.Errorf("Kind() = %s, want %s", err.Kind(), KindAmbiguousTarget)
	}

	msg := err.Error()
	if !strings.Contains(msg, "matches 2 worktrees") {
		t.Errorf("message should state candidate count:\n%s", msg)
	}
	for _, branch := range []string{"specks/auth-20260210-143022", "specks/auth-20260211-090000"} {
		if !strings.Contains(msg, branch) {
			t.Errorf("message should list candidate %s:\n%s", branch, msg)
		}
	}
}

func TestValidationErrorIsInvalidInput(t *testing.T) {
	err := NewValidationError("base branch cannot be empty").WithField("base")
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	base := NewSessionError("save failed", ErrSessionCorrupted).WithSessionID("abc123")
	wrapped := Wrapf(base, "persisting session for %s", ".specks/specks-auth.md")

	if !Is(wrapped, ErrSessionCorrupted) {
		t.Error("wrapped error should still match sentinel")
	}
	var sessErr *SessionError
	if !As(wrapped, &sessErr) || sessErr.SessionID != "abc123" {
		t.Error("wrapped error should still expose *SessionError context")
	}

	if Wrap(nil, "nope") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
