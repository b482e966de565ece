package tracker

import (
	"fmt"
	"strings"

	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/plan"
)

// SyncResult maps plan steps to the tracker issues created for them.
type SyncResult struct {
	// RootIssue is the number of the umbrella issue for the plan, or 0 if
	// none was created.
	RootIssue int

	// StepIssues maps step numbers to issue numbers. Steps that already
	// carried an issue reference keep it and are not re-created.
	StepIssues map[int]int
}

// Sync creates tracker issues for a plan: one root issue plus one sub-issue
// per step, linked hierarchically when the provider supports it. Steps that
// already reference an issue are skipped, so repeated synchronization of the
// same plan is idempotent. The plan document itself is not modified; callers
// write the result back with plan.AnnotateIssues.
func Sync(t IssueTracker, p *plan.Plan, labels []string, log *logging.Logger) (*SyncResult, error) {
	result := &SyncResult{StepIssues: make(map[int]int)}

	if !t.SupportsLabels() {
		labels = nil
	}

	rootRef, err := t.CreateIssue(IssueOptions{
		Title:  p.Title,
		Body:   renderRootBody(p),
		Labels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create root issue: %w", err)
	}
	result.RootIssue = rootRef.Number
	log.Info("created root issue", "issue", rootRef.Number, "url", rootRef.URL)

	for _, step := range p.Steps {
		if step.Issue != 0 {
			result.StepIssues[step.Number] = step.Issue
			continue
		}

		ref, err := t.CreateIssue(IssueOptions{
			Title:  step.Title,
			Body:   renderStepBody(step, rootRef.Number),
			Labels: labels,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create issue for step %d: %w", step.Number, err)
		}
		result.StepIssues[step.Number] = ref.Number
		log.Info("created step issue", "step", step.Number, "issue", ref.Number)

		if t.SupportsHierarchy() {
			if err := t.AddSubIssue(rootRef, ref); err != nil {
				// Linking is cosmetic; the issue itself exists.
				log.Warn("failed to link sub-issue", "issue", ref.Number, "error", err)
			}
		}
	}

	return result, nil
}

func renderRootBody(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tracking issue for plan `%s`.\n\n## Steps\n\n", p.Slug)
	for _, step := range p.Steps {
		box := " "
		if step.Completed {
			box = "x"
		}
		fmt.Fprintf(&b, "- [%s] Step %d: %s\n", box, step.Number, step.Title)
	}
	return b.String()
}

func renderStepBody(step plan.Step, rootIssue int) string {
	var b strings.Builder
	if step.Body != "" {
		b.WriteString(step.Body)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "*Part of #%d*\n", rootIssue)
	return b.String()
}
