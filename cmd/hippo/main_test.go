package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// writeTestConfig writes a sqlite-backed config into a temp dir and returns
// its path. extra is appended verbatim.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\n%s", filepath.Join(dir, "hippo.db"), extra)
	path := filepath.Join(dir, "hippo.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// run executes the root command with args and returns combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "hippo dev") {
		t.Errorf("expected output to contain 'hippo dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "hippo 1.0.0") {
		t.Errorf("expected output to contain 'hippo 1.0.0', got: %s", out)
	}
	if !strings.Contains(out, "built: 2026-01-01") {
		t.Errorf("expected output to contain 'built: 2026-01-01', got: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"Packaging Hippo", "serve", "redirect", "digest", "admin"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdNoArgs(t *testing.T) {
	if _, err := run(t); err != nil {
		t.Fatalf("root command with no args failed: %v", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	if code := execute(newRootCmd()); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestExecuteError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("intentional error")
		},
	}
	if code := execute(cmd); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestCommands_MissingConfig(t *testing.T) {
	tests := [][]string{
		{"db", "migrate"},
		{"serve"},
		{"redirect", "list"},
		{"admin", "token"},
		{"digest", "preview"},
		{"chat", "list"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, append(args, "--config", "/nonexistent/hippo.yaml")...)
			if err == nil {
				t.Fatal("expected error for missing config file")
			}
			if !strings.Contains(err.Error(), "load config") {
				t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
			}
		})
	}
}
