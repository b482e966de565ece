// Package tracker synchronizes plan steps with an issue tracking system.
// It defines the IssueTracker interface so additional backends can be added
// beside the gh-CLI-backed GitHub implementation.
package tracker

// IssueRef is an opaque reference to an issue in an issue tracking system.
type IssueRef struct {
	// ID is the provider-specific unique identifier. For GitHub this is
	// the GraphQL node ID.
	ID string

	// Number is a human-readable issue number when the provider uses one.
	Number int

	// URL is the web URL to view the issue.
	URL string
}

// IssueOptions contains the parameters for creating or updating an issue.
type IssueOptions struct {
	// Title is the issue title (required for creation).
	Title string

	// Body is the issue body in markdown.
	Body string

	// Labels are applied to the issue when the provider supports them.
	Labels []string
}

// IssueTracker defines the operations plan synchronization needs from a
// tracking backend.
type IssueTracker interface {
	// CreateIssue creates a new issue and returns its reference.
	CreateIssue(opts IssueOptions) (IssueRef, error)

	// UpdateIssue updates an existing issue's content.
	UpdateIssue(ref IssueRef, opts IssueOptions) error

	// AddSubIssue links a sub-issue under a parent, when the provider
	// supports hierarchical issues. Returns ErrHierarchyNotSupported
	// otherwise.
	AddSubIssue(parent, sub IssueRef) error

	// SupportsHierarchy reports whether the provider supports parent-child
	// issue relationships.
	SupportsHierarchy() bool

	// SupportsLabels reports whether the provider supports issue labels.
	SupportsLabels() bool
}
