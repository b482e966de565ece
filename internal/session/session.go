// Package session persists the binding between a worktree and the plan
// document it implements. Records are single JSON files under
// <worktrees-root>/.sessions/, owned exclusively by this tool: created at
// successful worktree creation, updated as steps complete, deleted when the
// worktree is removed.
package session

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every record so future readers can migrate
// old files.
const SchemaVersion = 1

// StepProgress is an optional per-step progress summary.
type StepProgress struct {
	Number    int       `json:"number"`
	Title     string    `json:"title,omitempty"`
	Completed bool      `json:"completed"`
	Summary   string    `json:"summary,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Session binds one worktree to one plan document.
type Session struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	PlanPath      string `json:"plan_path"`
	Slug          string `json:"slug"`
	Branch        string `json:"branch"`
	BaseBranch    string `json:"base_branch"`
	WorktreePath  string `json:"worktree_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`

	// RootIssue is the tracker issue number for the plan, or 0 when tracker
	// synchronization was skipped or unavailable.
	RootIssue int `json:"root_issue,omitempty"`

	// Reused is true when a create invocation found this session's worktree
	// already live and returned it instead of provisioning a new one.
	Reused bool `json:"reused"`

	Steps []StepProgress `json:"steps,omitempty"`
}

// New returns a Session with a fresh ID and creation timestamps set.
func New(planPath, slug, branch, baseBranch, worktreePath string, totalSteps int) *Session {
	now := time.Now().UTC()
	return &Session{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		PlanPath:      planPath,
		Slug:          slug,
		Branch:        branch,
		BaseBranch:    baseBranch,
		WorktreePath:  worktreePath,
		CreatedAt:     now,
		UpdatedAt:     now,
		TotalSteps:    totalSteps,
	}
}

// Touch updates the record's UpdatedAt timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// MarkStepComplete records completion of a step and recounts CompletedSteps.
// A progress entry is created if the step has none yet.
func (s *Session) MarkStepComplete(number int, summary string) {
	now := time.Now().UTC()
	found := false
	for i := range s.Steps {
		if s.Steps[i].Number == number {
			s.Steps[i].Completed = true
			s.Steps[i].Summary = summary
			s.Steps[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		s.Steps = append(s.Steps, StepProgress{
			Number:    number,
			Completed: true,
			Summary:   summary,
			UpdatedAt: now,
		})
	}

	completed := 0
	for _, st := range s.Steps {
		if st.Completed {
			completed++
		}
	}
	s.CompletedSteps = completed
	s.UpdatedAt = now
}
