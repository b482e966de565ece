// Package config defines the specks configuration, loaded through viper
// from config.yaml with SPECKS_* environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete specks configuration
type Config struct {
	Branch  BranchConfig  `mapstructure:"branch"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Init    InitConfig    `mapstructure:"init"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Git     GitConfig     `mapstructure:"git"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BranchConfig controls branch naming and the default merge base
type BranchConfig struct {
	// Base is the default base branch for new worktrees (default: "main")
	Base string `mapstructure:"base"`
}

// PathsConfig controls where specks stores worktrees and session records
type PathsConfig struct {
	// WorktreeDir is the directory where git worktrees are created.
	// If empty, defaults to ".specks/worktrees" relative to the repository
	// root. Can be an absolute path to store worktrees outside the
	// repository. Supports ~ for home directory expansion.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// InitConfig controls environment initialization for new worktrees
type InitConfig struct {
	// Command is run inside every new worktree after checkout and must be
	// idempotent; a non-zero exit rolls the creation back. Empty disables
	// the step.
	Command string `mapstructure:"command"`
}

// TrackerConfig controls issue-tracker synchronization
type TrackerConfig struct {
	// Enabled controls whether plan steps are synchronized to the tracker
	// during worktree creation (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Provider selects the tracker backend; "github" is the only provider
	// currently implemented
	Provider string `mapstructure:"provider"`
	// Labels are added to every created issue
	Labels []string `mapstructure:"labels"`
}

// MergeConfig controls merge behavior
type MergeConfig struct {
	// InfraPrefixes are the path prefixes eligible for automatic conflict
	// resolution during merge. Conflicts outside these prefixes abort the
	// merge (default: [".specks/"])
	InfraPrefixes []string `mapstructure:"infra_prefixes"`
}

// GitConfig controls git invocation requirements
type GitConfig struct {
	// MinVersion is the minimum acceptable git version (default: "2.20.0")
	MinVersion string `mapstructure:"min_version"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// ResolveWorktreeDir returns the resolved worktrees root.
// If WorktreeDir is empty, it returns the default path relative to repoRoot.
// If WorktreeDir starts with ~, it expands to the user's home directory.
// A relative path is resolved relative to repoRoot.
func (p *PathsConfig) ResolveWorktreeDir(repoRoot string) string {
	if p.WorktreeDir == "" {
		return filepath.Join(repoRoot, ".specks", "worktrees")
	}

	path := p.WorktreeDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Branch: BranchConfig{
			Base: "main",
		},
		Paths: PathsConfig{
			WorktreeDir: "", // Empty means use default: .specks/worktrees
		},
		Init: InitConfig{
			Command: "",
		},
		Tracker: TrackerConfig{
			Enabled:  true,
			Provider: "github",
			Labels:   []string{},
		},
		Merge: MergeConfig{
			InfraPrefixes: []string{".specks/"},
		},
		Git: GitConfig{
			MinVersion: "2.20.0",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			File:    "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("branch.base", defaults.Branch.Base)
	viper.SetDefault("paths.worktree_dir", defaults.Paths.WorktreeDir)
	viper.SetDefault("init.command", defaults.Init.Command)
	viper.SetDefault("tracker.enabled", defaults.Tracker.Enabled)
	viper.SetDefault("tracker.provider", defaults.Tracker.Provider)
	viper.SetDefault("tracker.labels", defaults.Tracker.Labels)
	viper.SetDefault("merge.infra_prefixes", defaults.Merge.InfraPrefixes)
	viper.SetDefault("git.min_version", defaults.Git.MinVersion)
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "specks")
	}
	// Fall back to ~/.config/specks
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specks"
	}
	return filepath.Join(home, ".config", "specks")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
