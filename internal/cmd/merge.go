package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specksdev/specks/internal/worktree"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <plan>",
	Short: "Merge a plan's worktree back onto the base branch",
	Long: `Merge lands the plan's worktree branch on the base branch and removes
the worktree afterwards. Run it from the primary working copy, checked out
on the base branch.

When the branch has an open pull request on origin, the squash merge is
delegated to the host and the base branch fast-forwarded. Otherwise the
branch is squash-merged locally; conflicts confined to infrastructure paths
are resolved by taking the incoming side, any other conflict aborts the
merge and restores the previous state.

Use --dry-run to see the merge mode and predicted conflicts.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

var mergeDryRun bool

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "show what the merge would do without making changes")
}

func runMerge(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	pr := worktree.NewPRClient(app.repoRoot)
	merger := worktree.NewMerger(app.git, app.store, pr, app.cfg, app.wtRoot, app.log)

	outcome, err := merger.Merge(args[0], mergeDryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outcome.DryRun {
		fmt.Fprintln(out, styleHeader.Render("Merge plan (dry run)"))
		fmt.Fprintf(out, "  Branch: %s\n", styleBranch.Render(outcome.Branch))
		fmt.Fprintf(out, "  Mode:   %s\n", outcome.Mode)
		if len(outcome.CommittedInfra) > 0 {
			fmt.Fprintf(out, "  Would commit: %s\n", strings.Join(outcome.CommittedInfra, ", "))
		}
		if len(outcome.DiscardedPaths) > 0 {
			fmt.Fprintf(out, "  Would discard: %s\n", strings.Join(outcome.DiscardedPaths, ", "))
		}
		if outcome.WouldConflict {
			fmt.Fprintln(out, warnMsg("merge is predicted to conflict"))
		}
		return nil
	}

	fmt.Fprintln(out, successMsg("merged "+styleBranch.Render(outcome.Branch)))
	fmt.Fprintf(out, "  Mode: %s\n", outcome.Mode)
	if outcome.SquashCommit != "" {
		fmt.Fprintf(out, "  Commit: %s\n", styleDim.Render(outcome.SquashCommit))
	}
	if len(outcome.CommittedInfra) > 0 {
		fmt.Fprintf(out, "  Committed infrastructure: %s\n", strings.Join(outcome.CommittedInfra, ", "))
	}
	if len(outcome.DiscardedPaths) > 0 {
		fmt.Fprintf(out, "  Discarded: %s\n", strings.Join(outcome.DiscardedPaths, ", "))
	}
	if !outcome.Cleaned {
		fmt.Fprintln(out, warnMsg("worktree could not be cleaned up, run 'specks cleanup'"))
	}
	return nil
}
