package tracker

import "errors"

// Sentinel errors for issue tracker operations.
var (
	// ErrHierarchyNotSupported indicates that the provider does not support
	// parent-child issue relationships.
	ErrHierarchyNotSupported = errors.New("issue hierarchy not supported by this provider")

	// ErrIssueNotFound indicates that the requested issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrAuthRequired indicates that the provider requires authentication.
	ErrAuthRequired = errors.New("authentication required")

	// ErrProviderUnavailable indicates that the provider tool is not
	// installed or not reachable.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
