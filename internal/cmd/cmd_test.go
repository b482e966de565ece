package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/specksdev/specks/internal/worktree"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommandRegistration(t *testing.T) {
	if rootCmd.Use != "specks" {
		t.Errorf("rootCmd.Use = %q, want specks", rootCmd.Use)
	}

	expected := []string{"create", "list", "cleanup", "remove", "merge", "config"}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
	}{
		{"create", "base"},
		{"list", "json"},
		{"list", "watch"},
		{"cleanup", "merged"},
		{"cleanup", "orphaned"},
		{"cleanup", "stale"},
		{"cleanup", "all"},
		{"cleanup", "dry-run"},
		{"remove", "force"},
		{"merge", "dry-run"},
	}
	for _, tt := range tests {
		cmd, _, err := rootCmd.Find([]string{tt.command})
		if err != nil {
			t.Fatalf("command %q not found: %v", tt.command, err)
		}
		if cmd.Flags().Lookup(tt.flag) == nil {
			t.Errorf("command %q missing flag --%s", tt.command, tt.flag)
		}
	}
}

func TestCleanupModeSelectionFlags(t *testing.T) {
	reset := func() {
		cleanupMerged, cleanupOrphaned, cleanupStale, cleanupAll = false, false, false, false
	}

	reset()
	if got := cleanupMode(); got != worktree.ModeAll {
		t.Errorf("no flags: mode = %v, want ModeAll", got)
	}

	reset()
	cleanupMerged = true
	if got := cleanupMode(); got != worktree.ModeMerged {
		t.Errorf("--merged: mode = %v", got)
	}

	reset()
	cleanupMerged, cleanupStale = true, true
	if got := cleanupMode(); got != worktree.ModeMerged|worktree.ModeStale {
		t.Errorf("--merged --stale: mode = %v", got)
	}

	reset()
	cleanupAll, cleanupMerged = true, true
	if got := cleanupMode(); got != worktree.ModeAll {
		t.Errorf("--all wins: mode = %v", got)
	}
	reset()
}

func TestConfigCommand(t *testing.T) {
	output, err := executeCommand("config")
	if err != nil {
		t.Fatalf("config command error = %v", err)
	}
	for _, key := range []string{"branch", "merge", "tracker"} {
		if !strings.Contains(output, key) {
			t.Errorf("config output missing %q section:\n%s", key, output)
		}
	}
}
