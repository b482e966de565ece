package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/specksdev/specks/internal/worktree"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live worktrees",
	Long: `List shows every live worktree on a specks branch, derived fresh from
git's own registry and joined with session records where they exist.

With --watch the listing refreshes whenever the session store changes.`,
	RunE: runList,
}

var (
	listJSON  bool
	listWatch bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	listCmd.Flags().BoolVar(&listWatch, "watch", false, "refresh when the session store changes")
}

// worktreeView is the JSON shape of one listed worktree.
type worktreeView struct {
	Branch         string `json:"branch"`
	Path           string `json:"path"`
	Slug           string `json:"slug"`
	PlanPath       string `json:"plan_path,omitempty"`
	TotalSteps     int    `json:"total_steps,omitempty"`
	CompletedSteps int    `json:"completed_steps,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	discovery := worktree.NewDiscovery(app.git, app.store)

	if err := printWorktrees(cmd.OutOrStdout(), discovery); err != nil {
		return err
	}
	if !listWatch {
		return nil
	}
	return watchWorktrees(cmd.OutOrStdout(), discovery, app.store.Dir())
}

func printWorktrees(w io.Writer, discovery *worktree.Discovery) error {
	worktrees, err := discovery.List()
	if err != nil {
		return err
	}

	if listJSON {
		views := make([]worktreeView, 0, len(worktrees))
		for _, wt := range worktrees {
			view := worktreeView{
				Branch: wt.Branch,
				Path:   wt.Path,
				Slug:   wt.Slug,
			}
			if wt.Session != nil {
				view.PlanPath = wt.Session.PlanPath
				view.TotalSteps = wt.Session.TotalSteps
				view.CompletedSteps = wt.Session.CompletedSteps
				view.CreatedAt = wt.Session.CreatedAt.Format(time.RFC3339)
			}
			views = append(views, view)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(worktrees) == 0 {
		fmt.Fprintln(w, "No live worktrees.")
		return nil
	}

	fmt.Fprintln(w, styleHeader.Render("Live worktrees"))
	for _, wt := range worktrees {
		fmt.Fprintf(w, "%s\n", styleBranch.Render(wt.Branch))
		fmt.Fprintf(w, "  %s\n", stylePath.Render(wt.Path))
		if wt.Session != nil {
			fmt.Fprintf(w, "  %s\n", styleDim.Render(
				fmt.Sprintf("plan %s, %d/%d steps", wt.Session.PlanPath, wt.Session.CompletedSteps, wt.Session.TotalSteps)))
		}
	}
	return nil
}

// watchWorktrees re-renders the listing whenever the session store directory
// changes, until interrupted.
func watchWorktrees(w io.Writer, discovery *worktree.Discovery, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	// Coalesce bursts of events into one refresh.
	var pending <-chan time.Time

	for {
		select {
		case <-interrupt:
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(w, errorMsg(err.Error()))
		case <-pending:
			pending = nil
			fmt.Fprintln(w)
			if err := printWorktrees(w, discovery); err != nil {
				return err
			}
		}
	}
}
