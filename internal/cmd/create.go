package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specksdev/specks/internal/tracker"
	"github.com/specksdev/specks/internal/worktree"
)

var createCmd = &cobra.Command{
	Use:   "create <plan>",
	Short: "Create an isolated worktree for a plan document",
	Long: `Create provisions a timestamped branch and worktree for the plan,
runs the configured init command inside it, synchronizes plan steps to the
issue tracker, and saves a session record. Creation is transactional: if any
step fails, everything already done is rolled back.

Running create again for a plan that already has a live worktree returns
that worktree instead of creating a second one.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var createBase string

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createBase, "base", "", "base branch for the new worktree (default from config)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	var trk tracker.IssueTracker
	if app.cfg.Tracker.Enabled && app.cfg.Tracker.Provider == "github" {
		trk = tracker.NewGitHubTracker()
	}

	creator := worktree.NewCreator(app.git, app.store, trk, app.cfg, app.wtRoot, app.log)
	result, err := creator.Create(worktree.CreateOptions{
		PlanPath:   args[0],
		BaseBranch: createBase,
	})
	if err != nil {
		return err
	}

	sess := result.Session
	if result.Reused {
		fmt.Fprintln(cmd.OutOrStdout(), warnMsg("worktree already exists, reusing it"))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), successMsg("worktree created"))
	}
	if sess != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Branch:   %s\n", styleBranch.Render(sess.Branch))
		fmt.Fprintf(cmd.OutOrStdout(), "  Worktree: %s\n", stylePath.Render(sess.WorktreePath))
		fmt.Fprintf(cmd.OutOrStdout(), "  Steps:    %d\n", sess.TotalSteps)
		if sess.RootIssue != 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  Issue:    #%d\n", sess.RootIssue)
		}
	}
	return nil
}
