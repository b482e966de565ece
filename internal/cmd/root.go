package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/specksdev/specks/internal/config"
	"github.com/specksdev/specks/internal/logging"
	"github.com/specksdev/specks/internal/session"
	"github.com/specksdev/specks/internal/worktree"
)

var rootCmd = &cobra.Command{
	Use:   "specks",
	Short: "Git worktree lifecycle manager for plan documents",
	Long: `Specks manages isolated git worktrees, one per plan document.
Each worktree gets its own timestamped branch under the specks/ namespace,
a persisted session record, and optional issue-tracker synchronization.
Worktrees are discovered live from git, classified for cleanup, and merged
back onto the base branch when the plan is done.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/specks/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/specks")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPECKS")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SPECKS_BRANCH_BASE for branch.base
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// app bundles the collaborators every command wires the same way: repository
// root, configuration, git client, session store, and logger.
type app struct {
	cfg      *config.Config
	git      *worktree.Git
	store    *session.Store
	log      *logging.Logger
	repoRoot string
	wtRoot   string
}

// newApp locates the enclosing repository and wires the shared collaborators.
func newApp() (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	repoRoot, err := worktree.FindRepoRoot(cwd)
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	wtRoot := cfg.Paths.ResolveWorktreeDir(repoRoot)

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log = logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	}

	return &app{
		cfg:      cfg,
		git:      worktree.NewGit(repoRoot),
		store:    session.NewStore(wtRoot),
		log:      log,
		repoRoot: repoRoot,
		wtRoot:   wtRoot,
	}, nil
}

// close flushes the app's logger.
func (a *app) close() {
	_ = a.log.Close()
}
