// Package errors provides centralized error definitions and error handling
// utilities for the specks codebase. It defines domain-specific errors,
// error constructors with context wrapping, and the mapping from error
// kinds to stable process exit codes.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GitError: errors from git operations (worktrees, branches, merges)
//   - SessionError: errors related to session record persistence
//   - TrackerError: errors from the issue-tracker collaborator
//
// Semantic errors represent common conditions:
//   - NotFoundError: resource not found
//   - AmbiguousTargetError: a removal target matched more than one worktree
//   - ValidationError: invalid input or state
//
// # Exit Codes
//
// Every error can carry a Kind. The cmd layer converts the kind of the
// outermost classified error into a process exit code via ExitCode, so
// callers of the CLI can distinguish failure classes without parsing
// messages. None of this package's errors are fatal by themselves; the
// caller decides whether to retry, prompt, or exit.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Kind classifies an error for exit-code mapping.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota
	// KindNotARepository indicates the target directory is not a git work tree.
	KindNotARepository
	// KindGitTooOld indicates git is missing or below the minimum version.
	KindGitTooOld
	// KindBaseBranchMissing indicates the requested base branch does not exist.
	KindBaseBranchMissing
	// KindPlanHasNoSteps indicates the plan document declared no actionable steps.
	KindPlanHasNoSteps
	// KindAlreadyExists indicates a branch or worktree already exists.
	KindAlreadyExists
	// KindAmbiguousTarget indicates a removal target matched multiple worktrees.
	KindAmbiguousTarget
	// KindDirtyWorktree indicates uncommitted changes without --force.
	KindDirtyWorktree
	// KindMergeConflict indicates merge conflicts outside the infrastructure paths.
	KindMergeConflict
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotARepository:
		return "not-a-repository"
	case KindGitTooOld:
		return "git-too-old"
	case KindBaseBranchMissing:
		return "base-branch-missing"
	case KindPlanHasNoSteps:
		return "plan-has-no-steps"
	case KindAlreadyExists:
		return "already-exists"
	case KindAmbiguousTarget:
		return "ambiguous-target"
	case KindDirtyWorktree:
		return "dirty-worktree"
	case KindMergeConflict:
		return "merge-conflict"
	default:
		return "unknown"
	}
}

// ExitCode returns the stable process exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindNotARepository:
		return 2
	case KindGitTooOld:
		return 3
	case KindBaseBranchMissing:
		return 4
	case KindPlanHasNoSteps:
		return 5
	case KindAlreadyExists:
		return 6
	case KindAmbiguousTarget:
		return 7
	case KindDirtyWorktree:
		return 8
	case KindMergeConflict:
		return 9
	default:
		return 1
	}
}

// Kinder is implemented by errors that carry a Kind.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the kind of the outermost classified error in err's chain.
// When no error in the chain carries an explicit kind, the sentinel cause
// determines the classification, so constructors do not need WithKind for
// the common failure classes.
func KindOf(err error) Kind {
	var k Kinder
	if As(err, &k) {
		if kind := k.Kind(); kind != KindUnknown {
			return kind
		}
	}

	switch {
	case Is(err, ErrNotGitRepository):
		return KindNotARepository
	case Is(err, ErrGitTooOld):
		return KindGitTooOld
	case Is(err, ErrBranchNotFound):
		return KindBaseBranchMissing
	case Is(err, ErrPlanNoSteps):
		return KindPlanHasNoSteps
	case Is(err, ErrWorktreeExists), Is(err, ErrBranchExists):
		return KindAlreadyExists
	case Is(err, ErrDirtyWorktree):
		return KindDirtyWorktree
	case Is(err, ErrMergeConflict):
		return KindMergeConflict
	}
	return KindUnknown
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrGitTooOld indicates that git is missing or below the minimum version.
	ErrGitTooOld = New("git missing or too old")
	// ErrWorktreeNotFound indicates that a worktree could not be found.
	ErrWorktreeNotFound = New("worktree not found")
	// ErrWorktreeExists indicates that a worktree already exists.
	ErrWorktreeExists = New("worktree already exists")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrMergeConflict indicates that a merge conflict occurred.
	ErrMergeConflict = New("merge conflict")
	// ErrDirtyWorktree indicates that the worktree has uncommitted changes.
	ErrDirtyWorktree = New("worktree has uncommitted changes")
)

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session record could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionCorrupted indicates that a session record failed to parse.
	ErrSessionCorrupted = New("session record corrupted")
)

// Plan-related sentinel errors
var (
	// ErrPlanNotFound indicates that a plan document could not be read.
	ErrPlanNotFound = New("plan not found")
	// ErrPlanNoSteps indicates that a plan document declares no actionable steps.
	ErrPlanNoSteps = New("plan has no actionable steps")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
	kind    Kind
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Kind returns the error's classification.
func (e *baseError) Kind() Kind {
	return e.kind
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors from git or gh operations.
//
// Example:
//
//	err := errors.NewGitError("failed to create worktree", errors.ErrWorktreeExists).
//		WithBranch("specks/auth-20260210-143022").
//		WithWorktree("/repo/.specks/worktrees/specks__auth-20260210-143022")
type GitError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithKind classifies the error for exit-code mapping.
func (e *GitError) WithKind(k Kind) *GitError {
	e.kind = k
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to session record persistence.
type SessionError struct {
	baseError
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("session error [session=%s]", e.SessionID)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TrackerError represents errors from the issue-tracker collaborator.
type TrackerError struct {
	baseError
	Provider string
}

// NewTrackerError creates a new TrackerError.
func NewTrackerError(message string, cause error) *TrackerError {
	return &TrackerError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithProvider adds the tracker provider name to the error context.
func (e *TrackerError) WithProvider(provider string) *TrackerError {
	e.Provider = provider
	return e
}

// Error returns the formatted error message.
func (e *TrackerError) Error() string {
	prefix := "tracker error"
	if e.Provider != "" {
		prefix = fmt.Sprintf("tracker error [provider=%s]", e.Provider)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TrackerError) Is(target error) bool {
	if _, ok := target.(*TrackerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("worktree", "specks/auth-")
//	fmt.Println(err) // "worktree 'specks/auth-' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// Candidate identifies one live worktree in an ambiguous-target error.
type Candidate struct {
	Branch    string
	Path      string
	CreatedAt time.Time
}

// AmbiguousTargetError reports that a removal target matched more than one
// live worktree. Nothing is removed; the caller must pick a branch or path.
type AmbiguousTargetError struct {
	baseError
	Target     string
	Candidates []Candidate
}

// NewAmbiguousTargetError creates a new AmbiguousTargetError.
func NewAmbiguousTargetError(target string, candidates []Candidate) *AmbiguousTargetError {
	return &AmbiguousTargetError{
		baseError: baseError{
			message: fmt.Sprintf("target '%s' matches multiple worktrees", target),
			kind:    KindAmbiguousTarget,
		},
		Target:     target,
		Candidates: candidates,
	}
}

// Error returns the formatted error message including every candidate.
func (e *AmbiguousTargetError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "target '%s' matches %d worktrees:", e.Target, len(e.Candidates))
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n  %s  %s  (created %s)", c.Branch, c.Path, c.CreatedAt.Format(time.RFC3339))
	}
	b.WriteString("\nspecify a branch or worktree path instead")
	return b.String()
}

// Is checks if this error matches the target.
func (e *AmbiguousTargetError) Is(target error) bool {
	if _, ok := target.(*AmbiguousTargetError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// WithKind classifies the error for exit-code mapping.
func (e *ValidationError) WithKind(k Kind) *ValidationError {
	e.kind = k
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to provision worktree")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
