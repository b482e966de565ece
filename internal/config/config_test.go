package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Branch.Base != "main" {
		t.Errorf("Branch.Base = %q, want %q", cfg.Branch.Base, "main")
	}
	if cfg.Paths.WorktreeDir != "" {
		t.Errorf("Paths.WorktreeDir = %q, want empty", cfg.Paths.WorktreeDir)
	}
	if !cfg.Tracker.Enabled {
		t.Error("Tracker.Enabled = false, want true")
	}
	if cfg.Tracker.Provider != "github" {
		t.Errorf("Tracker.Provider = %q, want %q", cfg.Tracker.Provider, "github")
	}
	if len(cfg.Merge.InfraPrefixes) != 1 || cfg.Merge.InfraPrefixes[0] != ".specks/" {
		t.Errorf("Merge.InfraPrefixes = %v, want [.specks/]", cfg.Merge.InfraPrefixes)
	}
	if cfg.Git.MinVersion != "2.20.0" {
		t.Errorf("Git.MinVersion = %q, want %q", cfg.Git.MinVersion, "2.20.0")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestSetDefaultsAndLoad(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Branch.Base != want.Branch.Base {
		t.Errorf("Branch.Base = %q, want %q", cfg.Branch.Base, want.Branch.Base)
	}
	if cfg.Tracker.Enabled != want.Tracker.Enabled {
		t.Errorf("Tracker.Enabled = %v, want %v", cfg.Tracker.Enabled, want.Tracker.Enabled)
	}
	if cfg.Git.MinVersion != want.Git.MinVersion {
		t.Errorf("Git.MinVersion = %q, want %q", cfg.Git.MinVersion, want.Git.MinVersion)
	}
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("branch.base", "develop")
	viper.Set("merge.infra_prefixes", []string{".specks/", "docs/generated/"})
	viper.Set("init.command", "make setup")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Branch.Base != "develop" {
		t.Errorf("Branch.Base = %q, want %q", cfg.Branch.Base, "develop")
	}
	if len(cfg.Merge.InfraPrefixes) != 2 {
		t.Errorf("Merge.InfraPrefixes = %v, want 2 entries", cfg.Merge.InfraPrefixes)
	}
	if cfg.Init.Command != "make setup" {
		t.Errorf("Init.Command = %q, want %q", cfg.Init.Command, "make setup")
	}
}

func TestResolveWorktreeDir(t *testing.T) {
	repoRoot := "/repo"
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}

	tests := []struct {
		name        string
		worktreeDir string
		want        string
	}{
		{
			name:        "empty uses default under repo root",
			worktreeDir: "",
			want:        filepath.Join(repoRoot, ".specks", "worktrees"),
		},
		{
			name:        "absolute path used as-is",
			worktreeDir: "/tmp/worktrees",
			want:        "/tmp/worktrees",
		},
		{
			name:        "relative path resolved against repo root",
			worktreeDir: "wt",
			want:        filepath.Join(repoRoot, "wt"),
		},
		{
			name:        "tilde expands to home",
			worktreeDir: "~/worktrees",
			want:        filepath.Join(home, "worktrees"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PathsConfig{WorktreeDir: tt.worktreeDir}
			got := p.ResolveWorktreeDir(repoRoot)
			if got != tt.want {
				t.Errorf("ResolveWorktreeDir(%q) = %q, want %q", tt.worktreeDir, got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigDir(); got != "/custom/config/specks" {
		t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/specks")
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}
	want := filepath.Join(home, ".config", "specks")
	if got := ConfigDir(); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}
