package tracker

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
)

// fakeExecutor records invocations and returns canned outputs keyed by the
// joined command line.
type fakeExecutor struct {
	calls   [][]string
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeExecutor) exec(name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call, " ")
	for pattern, err := range f.errs {
		if strings.Contains(key, pattern) {
			return []byte(f.outputs[pattern]), err
		}
	}
	for pattern, out := range f.outputs {
		if strings.Contains(key, pattern) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func TestCreateIssue(t *testing.T) {
	fake := &fakeExecutor{
		outputs: map[string]string{
			"issue create": "https://github.com/owner/repo/issues/42\n",
		},
	}
	g := NewGitHubTrackerWithExecutor(fake.exec)

	ref, err := g.CreateIssue(IssueOptions{
		Title:  "Step 1: Define the cache interface",
		Body:   "details",
		Labels: []string{"specks"},
	})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if ref.Number != 42 {
		t.Errorf("Number = %d, want 42", ref.Number)
	}
	if ref.URL != "https://github.com/owner/repo/issues/42" {
		t.Errorf("URL = %q", ref.URL)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fake.calls))
	}
	call := strings.Join(fake.calls[0], " ")
	if !strings.Contains(call, "--label specks") {
		t.Errorf("expected label flag in call: %s", call)
	}
}

func TestCreateIssueRequiresTitle(t *testing.T) {
	g := NewGitHubTrackerWithExecutor(func(string, ...string) ([]byte, error) {
		t.Fatal("executor should not be called")
		return nil, nil
	})
	if _, err := g.CreateIssue(IssueOptions{}); err == nil {
		t.Error("CreateIssue() with empty title should fail")
	}
}

func TestUpdateIssue(t *testing.T) {
	fake := &fakeExecutor{outputs: map[string]string{}}
	g := NewGitHubTrackerWithExecutor(fake.exec)

	if err := g.UpdateIssue(IssueRef{Number: 7}, IssueOptions{Body: "new body"}); err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}
	call := strings.Join(fake.calls[0], " ")
	if !strings.Contains(call, "issue edit 7") {
		t.Errorf("unexpected call: %s", call)
	}

	if err := g.UpdateIssue(IssueRef{}, IssueOptions{Body: "x"}); err == nil {
		t.Error("UpdateIssue() without number should fail")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		output string
		want   error
	}{
		{
			name: "gh not installed",
			err:  &exec.Error{Name: "gh", Err: exec.ErrNotFound},
			want: ErrProviderUnavailable,
		},
		{
			name:   "auth required",
			err:    fmt.Errorf("exit status 1"),
			output: "To get started with GitHub CLI, please run: gh auth login",
			want:   ErrAuthRequired,
		},
		{
			name:   "issue not found",
			err:    fmt.Errorf("exit status 1"),
			output: "GraphQL: Could not find issue",
			want:   ErrIssueNotFound,
		},
	}

	g := NewGitHubTracker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.classifyError(tt.err, []byte(tt.output))
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddSubIssueResolvesNodeIDs(t *testing.T) {
	fake := &fakeExecutor{
		outputs: map[string]string{
			"issue view 1": `{"id": "NODE_PARENT"}`,
			"issue view 2": `{"id": "NODE_SUB"}`,
			"api graphql":  `{"data": {}}`,
		},
	}
	g := NewGitHubTrackerWithExecutor(fake.exec)

	err := g.AddSubIssue(IssueRef{Number: 1}, IssueRef{Number: 2})
	if err != nil {
		t.Fatalf("AddSubIssue() error = %v", err)
	}

	last := strings.Join(fake.calls[len(fake.calls)-1], " ")
	if !strings.Contains(last, "NODE_PARENT") || !strings.Contains(last, "NODE_SUB") {
		t.Errorf("mutation missing node IDs: %s", last)
	}
}

func TestAddSubIssueGraphQLError(t *testing.T) {
	fake := &fakeExecutor{
		outputs: map[string]string{
			"api graphql": `{"errors": [{"message": "sub-issues disabled"}]}`,
		},
	}
	g := NewGitHubTrackerWithExecutor(fake.exec)

	err := g.AddSubIssue(IssueRef{ID: "A"}, IssueRef{ID: "B"})
	if err == nil || !strings.Contains(err.Error(), "sub-issues disabled") {
		t.Errorf("AddSubIssue() error = %v, want GraphQL error surfaced", err)
	}
}

func TestParseIssueNumber(t *testing.T) {
	if _, err := parseIssueNumber("no url here"); err == nil {
		t.Error("parseIssueNumber() should fail on non-URL output")
	}
	num, err := parseIssueNumber("https://github.com/o/r/issues/350")
	if err != nil || num != 350 {
		t.Errorf("parseIssueNumber() = %d, %v", num, err)
	}
}
