// Package naming derives plan identifiers, branch names, and filesystem-safe
// directory names. All functions are pure; the only ambient input is the
// clock used for branch timestamps.
package naming

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// BranchNamespace scopes every branch this tool creates.
	BranchNamespace = "specks"

	// PlanPrefix is the conventional filename prefix stripped from plan
	// documents to obtain the slug ("specks-auth.md" -> "auth").
	PlanPrefix = "specks-"

	// FallbackName is substituted when sanitization empties a name.
	FallbackName = "worktree"

	// timestampLayout is a sortable UTC civil timestamp, collision-resistant
	// at one-second granularity.
	timestampLayout = "20060102-150405"
)

// Slug derives the human-readable identifier for a plan document from its
// base filename: the extension is dropped and the conventional prefix
// stripped. "/.specks/specks-auth.md" -> "auth".
func Slug(planPath string) string {
	base := filepath.Base(planPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, PlanPrefix)
}

// BranchName returns the branch for a slug, namespaced and stamped with the
// current UTC time: "specks/<slug>-YYYYMMDD-HHMMSS".
func BranchName(slug string) string {
	return BranchNameAt(slug, time.Now())
}

// BranchNameAt is BranchName with an explicit clock, for deterministic tests.
func BranchNameAt(slug string, now time.Time) string {
	return BranchNamespace + "/" + slug + "-" + now.UTC().Format(timestampLayout)
}

// BranchPrefix returns the prefix shared by every branch created for a slug,
// used to match live worktrees back to their plan document.
func BranchPrefix(slug string) string {
	return BranchNamespace + "/" + slug + "-"
}

// InNamespace reports whether a branch was created by this tool.
func InNamespace(branch string) bool {
	return strings.HasPrefix(branch, BranchNamespace+"/")
}

// Characters that are invalid in directory names on common filesystems are
// mapped to a single underscore so adjacent words stay visually separated;
// everything else outside the allowed set is simply dropped by the filter.
const unsafeChars = ":\"<>|?* "

// Sanitize turns an arbitrary name (typically a branch) into a directory
// component: path separators become a double underscore, unsafe characters a
// single underscore, and anything outside [A-Za-z0-9_-] is dropped. An empty
// result falls back to a fixed literal so the caller always gets a usable name.
func Sanitize(name string) string {
	s := strings.ReplaceAll(name, "/", "__")
	s = strings.ReplaceAll(s, "\\", "__")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case strings.ContainsRune(unsafeChars, r):
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" {
		return FallbackName
	}
	return out
}
