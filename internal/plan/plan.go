// Package plan parses specks plan documents: markdown files named
// specks-<slug>.md that declare the ordered steps a worktree exists to
// implement.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/specksdev/specks/internal/errors"
	"github.com/specksdev/specks/internal/naming"
)

// Step is a single actionable step declared in a plan document.
type Step struct {
	// Number is the 1-based step identifier as declared in the document.
	Number int
	// Title is the step's heading text, without the issue reference.
	Title string
	// Body is the free-form markdown between this step's heading and the
	// next heading.
	Body string
	// Completed reports whether the step's checkbox (if any) is checked.
	Completed bool
	// Issue is the tracker issue number referenced by the step heading,
	// or 0 if none has been assigned yet.
	Issue int
}

// Plan is a parsed plan document.
type Plan struct {
	// Path is the document's path as given to Parse.
	Path string
	// Slug is derived from the document's filename.
	Slug string
	// Title is the document's first top-level heading, or the slug if the
	// document has none.
	Title string
	// Steps are the actionable steps in declaration order.
	Steps []Step
}

// Plan document structure patterns. Steps come in two accepted syntaxes:
// a "## Step N: Title" heading, or a "- [ ] Title" checkbox item. A document
// may use either; heading steps take precedence when both appear.
var (
	titleRe = regexp.MustCompile(`^#\s+(.+)$`)

	// stepHeaderRe matches "## Step 3: Wire the parser" and tolerates
	// deeper heading levels and a period separator.
	stepHeaderRe = regexp.MustCompile(`(?i)^##+\s*Step\s+(\d+)\s*[:.]\s*(.+)$`)

	// checkboxRe matches "- [ ] Title" and "- [x] Title" list items.
	checkboxRe = regexp.MustCompile(`^\s*-\s*\[([xX ])\]\s*(.+)$`)

	// issueRefRe matches a trailing tracker reference like "(#42)".
	issueRefRe = regexp.MustCompile(`\s*\(#(\d+)\)\s*$`)
)

// Parse reads and parses the plan document at path.
// It returns ErrPlanNotFound if the file does not exist and ErrPlanNoSteps
// if the document declares no actionable steps.
func Parse(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrPlanNotFound, path)
		}
		return nil, fmt.Errorf("failed to read plan document: %w", err)
	}

	p, err := ParseDocument(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}

	p.Path = path
	p.Slug = naming.Slug(path)
	if p.Title == "" {
		p.Title = p.Slug
	}
	return p, nil
}

// ParseDocument parses plan markdown content. Path and Slug are left for the
// caller to fill in.
func ParseDocument(content string) (*Plan, error) {
	p := &Plan{}

	lines := strings.Split(content, "\n")

	var headingSteps []Step
	var checkboxSteps []Step
	var bodyLines []string

	flushBody := func() {
		if len(headingSteps) > 0 {
			headingSteps[len(headingSteps)-1].Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
		}
		bodyLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if p.Title == "" {
			if m := titleRe.FindStringSubmatch(trimmed); len(m) == 2 {
				p.Title = strings.TrimSpace(m[1])
				continue
			}
		}

		if m := stepHeaderRe.FindStringSubmatch(trimmed); len(m) == 3 {
			flushBody()
			num, err := strconv.Atoi(m[1])
			if err != nil || num <= 0 {
				return nil, fmt.Errorf("invalid step number in heading %q", trimmed)
			}
			title, issue := splitIssueRef(strings.TrimSpace(m[2]))
			headingSteps = append(headingSteps, Step{
				Number: num,
				Title:  title,
				Issue:  issue,
			})
			continue
		}

		// Any other heading ends the current step's body.
		if strings.HasPrefix(trimmed, "#") {
			flushBody()
			continue
		}

		if m := checkboxRe.FindStringSubmatch(line); len(m) == 3 {
			title, issue := splitIssueRef(strings.TrimSpace(m[2]))
			checkboxSteps = append(checkboxSteps, Step{
				Number:    len(checkboxSteps) + 1,
				Title:     title,
				Completed: m[1] != " ",
				Issue:     issue,
			})
		}

		if len(headingSteps) > 0 {
			bodyLines = append(bodyLines, line)
		}
	}
	flushBody()

	switch {
	case len(headingSteps) > 0:
		p.Steps = headingSteps
	case len(checkboxSteps) > 0:
		p.Steps = checkboxSteps
	default:
		return nil, errors.ErrPlanNoSteps
	}

	return p, nil
}

// splitIssueRef strips a trailing "(#N)" tracker reference from a step title.
func splitIssueRef(title string) (string, int) {
	m := issueRefRe.FindStringSubmatch(title)
	if len(m) != 2 {
		return title, 0
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return title, 0
	}
	return strings.TrimSpace(issueRefRe.ReplaceAllString(title, "")), num
}

// CompletedCount returns the number of steps whose checkbox is checked.
func (p *Plan) CompletedCount() int {
	count := 0
	for _, s := range p.Steps {
		if s.Completed {
			count++
		}
	}
	return count
}

// Step returns the step with the given number, or nil if none exists.
func (p *Plan) Step(number int) *Step {
	for i := range p.Steps {
		if p.Steps[i].Number == number {
			return &p.Steps[i]
		}
	}
	return nil
}

// AnnotateIssues rewrites the plan document at path, appending "(#N)" tracker
// references to step headings and checkbox items per the issues mapping
// (step number to issue number). Steps that already carry a reference keep
// the existing one. The rewrite goes through a temp file and rename so a
// failure cannot corrupt the document.
func AnnotateIssues(path string, issues map[int]int) error {
	if len(issues) == 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plan document: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	checkboxIndex := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := stepHeaderRe.FindStringSubmatch(trimmed); len(m) == 3 {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			lines[i] = annotateLine(line, issues[num])
			continue
		}

		if checkboxRe.MatchString(line) {
			checkboxIndex++
			lines[i] = annotateLine(line, issues[checkboxIndex])
		}
	}

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// annotateLine appends an issue reference to a step line unless it already
// has one or the issue number is zero.
func annotateLine(line string, issue int) string {
	if issue == 0 || issueRefRe.MatchString(strings.TrimRight(line, " \t")) {
		return line
	}
	return strings.TrimRight(line, " \t") + fmt.Sprintf(" (#%d)", issue)
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place.
func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace plan document: %w", err)
	}
	return nil
}
