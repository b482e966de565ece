package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specksdev/specks/internal/worktree"
)

var removeCmd = &cobra.Command{
	Use:   "remove <target>",
	Short: "Remove a single worktree",
	Long: `Remove deletes one worktree, its branch, and its session record.

The target may be a plan document path, a plan slug, a branch name, or a
worktree directory. A target matching more than one worktree is refused
with the list of candidates; use the full branch name to disambiguate.

A worktree with uncommitted changes is refused unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var removeForce bool

func init() {
	rootCmd.AddCommand(removeCmd)
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "remove even with uncommitted changes")
}

func runRemove(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	remover := worktree.NewRemover(app.git, app.store, app.log)
	info, err := remover.Remove(args[0], removeForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successMsg("removed worktree"))
	fmt.Fprintf(out, "  Branch:   %s\n", styleBranch.Render(info.Branch))
	fmt.Fprintf(out, "  Worktree: %s\n", stylePath.Render(info.Path))
	if !info.BranchDeleted {
		fmt.Fprintln(out, warnMsg("branch could not be deleted, remove it manually"))
	}
	return nil
}
