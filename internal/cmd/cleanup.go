package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specksdev/specks/internal/worktree"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove worktrees and branches that are no longer needed",
	Long: `Cleanup classifies every specks branch and removes the selected ones:

- Merged:   the branch's work is already contained in its base branch,
  or its pull request reports merged
- Orphaned: the PR host answered and the branch has no pull request
- Stale:    a specks branch with no live worktree

A branch with an open pull request is never removed. With no selection
flags, all three classes are cleaned.

Use --dry-run to see the classification without making changes.`,
	RunE: runCleanup,
}

var (
	cleanupMerged   bool
	cleanupOrphaned bool
	cleanupStale    bool
	cleanupAll      bool
	cleanupDryRun   bool
	cleanupForce    bool
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupMerged, "merged", false, "clean up only merged worktrees")
	cleanupCmd.Flags().BoolVar(&cleanupOrphaned, "orphaned", false, "clean up only worktrees without a pull request")
	cleanupCmd.Flags().BoolVar(&cleanupStale, "stale", false, "clean up only branches without a worktree")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "clean up everything (default)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be cleaned up without making changes")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip confirmation prompt")
}

func cleanupMode() worktree.CleanupMode {
	var mode worktree.CleanupMode
	if cleanupMerged {
		mode |= worktree.ModeMerged
	}
	if cleanupOrphaned {
		mode |= worktree.ModeOrphaned
	}
	if cleanupStale {
		mode |= worktree.ModeStale
	}
	if cleanupAll || mode == 0 {
		mode = worktree.ModeAll
	}
	return mode
}

func runCleanup(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	pr := worktree.NewPRClient(app.repoRoot)
	cleaner := worktree.NewCleaner(app.git, app.store, pr, app.cfg, app.log)
	mode := cleanupMode()
	out := cmd.OutOrStdout()

	// Classify first so the user confirms against the real plan.
	result, err := cleaner.Classify()
	if err != nil {
		return err
	}

	printClassification(out, result, mode)

	selected := selectedCount(result, mode)
	if selected == 0 {
		fmt.Fprintln(out, "Nothing to clean up.")
		return nil
	}
	if cleanupDryRun {
		fmt.Fprintln(out, styleDim.Render("\nDry run mode - no changes made."))
		return nil
	}

	if !cleanupForce {
		fmt.Fprintf(out, "\nRemove %d item(s)? [y/N] ", selected)
		reader := bufio.NewReader(cmd.InOrStdin())
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Cleanup cancelled.")
			return nil
		}
	}

	result, err = cleaner.Cleanup(mode, false)
	if err != nil {
		return err
	}
	for _, branch := range result.Removed {
		fmt.Fprintln(out, successMsg("removed "+styleBranch.Render(branch)))
	}
	return nil
}

func selectedCount(result *worktree.CleanupResult, mode worktree.CleanupMode) int {
	n := 0
	if mode&worktree.ModeMerged != 0 {
		n += len(result.Merged)
	}
	if mode&worktree.ModeOrphaned != 0 {
		n += len(result.Orphaned)
	}
	if mode&worktree.ModeStale != 0 {
		n += len(result.Stale)
	}
	return n
}

func printClassification(w io.Writer, result *worktree.CleanupResult, mode worktree.CleanupMode) {
	printGroup := func(title string, cands []worktree.CleanupCandidate, active bool) {
		if len(cands) == 0 {
			return
		}
		fmt.Fprintln(w, styleHeader.Render(title))
		for _, cand := range cands {
			line := "  " + styleBranch.Render(cand.Branch)
			if cand.Reason != "" {
				line += styleDim.Render(" (" + cand.Reason + ")")
			}
			if !active {
				line += styleDim.Render(" [not selected]")
			}
			fmt.Fprintln(w, line)
		}
	}

	printGroup("Merged", result.Merged, mode&worktree.ModeMerged != 0)
	printGroup("Orphaned", result.Orphaned, mode&worktree.ModeOrphaned != 0)
	printGroup("Stale branches", result.Stale, mode&worktree.ModeStale != 0)
	printGroup("Skipped", result.Skipped, false)
}
