package tracker

import (
	"testing"

	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/plan"
)

// memTracker is an in-memory IssueTracker for sync tests.
type memTracker struct {
	nextNum   int
	created   []IssueOptions
	links     [][2]int
	hierarchy bool
}

func newMemTracker() *memTracker {
	return &memTracker{nextNum: 100, hierarchy: true}
}

func (m *memTracker) CreateIssue(opts IssueOptions) (IssueRef, error) {
	m.nextNum++
	m.created = append(m.created, opts)
	return IssueRef{Number: m.nextNum, ID: "node", URL: "https://example.test"}, nil
}

func (m *memTracker) UpdateIssue(ref IssueRef, opts IssueOptions) error { return nil }

func (m *memTracker) AddSubIssue(parent, sub IssueRef) error {
	m.links = append(m.links, [2]int{parent.Number, sub.Number})
	return nil
}

func (m *memTracker) SupportsHierarchy() bool { return m.hierarchy }
func (m *memTracker) SupportsLabels() bool    { return true }

var _ IssueTracker = (*memTracker)(nil)

func testPlan() *plan.Plan {
	return &plan.Plan{
		Slug:  "caching",
		Title: "Add request caching",
		Steps: []plan.Step{
			{Number: 1, Title: "Define the interface"},
			{Number: 2, Title: "Wire it in", Issue: 55},
			{Number: 3, Title: "Add eviction"},
		},
	}
}

func TestSyncCreatesRootAndStepIssues(t *testing.T) {
	m := newMemTracker()
	result, err := Sync(m, testPlan(), []string{"specks"}, logging.NopLogger())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.RootIssue != 101 {
		t.Errorf("RootIssue = %d, want 101", result.RootIssue)
	}

	// Root + steps 1 and 3; step 2 already carries an issue.
	if len(m.created) != 3 {
		t.Fatalf("created %d issues, want 3", len(m.created))
	}
	if m.created[0].Title != "Add request caching" {
		t.Errorf("root title = %q", m.created[0].Title)
	}

	if result.StepIssues[1] != 102 {
		t.Errorf("step 1 issue = %d, want 102", result.StepIssues[1])
	}
	if result.StepIssues[2] != 55 {
		t.Errorf("step 2 issue = %d, want existing 55 preserved", result.StepIssues[2])
	}
	if result.StepIssues[3] != 103 {
		t.Errorf("step 3 issue = %d, want 103", result.StepIssues[3])
	}
}

func TestSyncLinksHierarchy(t *testing.T) {
	m := newMemTracker()
	result, err := Sync(m, testPlan(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if len(m.links) != 2 {
		t.Fatalf("links = %d, want 2", len(m.links))
	}
	for _, link := range m.links {
		if link[0] != result.RootIssue {
			t.Errorf("link parent = %d, want root %d", link[0], result.RootIssue)
		}
	}
}

func TestSyncWithoutHierarchy(t *testing.T) {
	m := newMemTracker()
	m.hierarchy = false
	if _, err := Sync(m, testPlan(), nil, logging.NopLogger()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(m.links) != 0 {
		t.Errorf("links = %d, want 0 when hierarchy unsupported", len(m.links))
	}
}

func TestSyncIdempotentWhenAllStepsAnnotated(t *testing.T) {
	p := testPlan()
	for i := range p.Steps {
		p.Steps[i].Issue = 10 + i
	}

	m := newMemTracker()
	result, err := Sync(m, p, nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// Only the root issue is created; every step keeps its reference.
	if len(m.created) != 1 {
		t.Errorf("created %d issues, want 1", len(m.created))
	}
	for i, step := range p.Steps {
		if result.StepIssues[step.Number] != 10+i {
			t.Errorf("step %d issue = %d, want %d", step.Number, result.StepIssues[step.Number], 10+i)
		}
	}
}
