// Package gittest creates throwaway git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// RequireGit skips the test when no git executable is installed.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

// NewRepo initializes a repository in a temp directory with a committer
// identity and one initial commit, and returns its symlink-resolved path.
func NewRepo(t testing.TB) string {
	t.Helper()
	RequireGit(t)

	dir := NewEmptyRepo(t)

	if err := os.WriteFile(filepath.Join(dir, "initial.txt"), []byte("Initial content"), 0o644); err != nil {
		t.Fatalf("Failed to create initial file: %v", err)
	}
	Run(t, dir, "add", "initial.txt")
	Run(t, dir, "commit", "-m", "Initial commit")
	return dir
}

// NewEmptyRepo initializes a repository without any commits.
func NewEmptyRepo(t testing.TB) string {
	t.Helper()
	RequireGit(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}

	Run(t, dir, "init")
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// Run executes git in dir and fails the test on error. It returns stdout.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return string(out)
}

// CommitCount returns the number of commits reachable from HEAD.
func CommitCount(t testing.TB, dir string) int {
	t.Helper()

	n, err := strconv.Atoi(strings.TrimSpace(Run(t, dir, "rev-list", "--count", "HEAD")))
	if err != nil {
		t.Fatalf("Failed to parse commit count: %v", err)
	}
	return n
}

// CommitMessages returns commit subjects from newest to oldest.
func CommitMessages(t testing.TB, dir string) []string {
	t.Helper()

	out := strings.TrimSpace(Run(t, dir, "log", "--pretty=format:%s"))
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// IsClean reports whether git status shows nothing.
func IsClean(t testing.TB, dir string) bool {
	t.Helper()
	return strings.TrimSpace(Run(t, dir, "status", "--porcelain")) == ""
}

// NewBareRemote creates a bare repository and registers it as origin of dir.
func NewBareRemote(t testing.TB, dir string) string {
	t.Helper()

	remote, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	Run(t, remote, "init", "--bare")
	Run(t, dir, "remote", "add", "origin", remote)
	return remote
}
