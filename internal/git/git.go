package git

import (
	"context"
	"os/exec"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	autogitErrors "github.com/bashhack/autogit/internal/errors"
)

// Repository runs git commands against a single working tree.
type Repository struct {
	root     string
	executor CommandExecutor
}

// NewRepository creates a Repository for the working tree at root.
func NewRepository(root string, executor CommandExecutor) *Repository {
	if executor == nil {
		executor = NewExecExecutor()
	}
	return &Repository{
		root:     root,
		executor: executor,
	}
}

// Root returns the working tree path.
func (r *Repository) Root() string {
	return r.root
}

// HasUncommittedChanges returns true if git status reports anything,
// including untracked files.
func (r *Repository) HasUncommittedChanges(ctx context.Context) (bool, error) {
	output, err := r.runGitCommandWithOutput(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

// CurrentBranch returns the checked out branch name. It is empty on a
// detached HEAD.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	output, err := r.runGitCommandWithOutput(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// CommitAll stages every change in the working tree and commits it with msg.
//
// The returned Output accumulates both streams of every command that ran.
// When nothing is staged after "git add" the commit is skipped and the error
// wraps ErrNothingToCommit. Any other failure is a GitError wrapping
// ErrGitOperationFailed.
func (r *Repository) CommitAll(ctx context.Context, msg string) (Output, error) {
	var combined Output

	out, err := r.runGitCommandInTree(ctx, "add", ".")
	combined = appendOutput(combined, out)
	if err != nil {
		return combined, err
	}

	// exit 0: index matches HEAD, exit 1: staged changes
	out, err = r.runGitCommandInTree(ctx, "diff", "--cached", "--quiet")
	combined = appendOutput(combined, out)
	if err == nil {
		return combined, autogitErrors.Wrap(autogitErrors.ErrNothingToCommit, "working tree clean")
	}
	if out.ExitCode != 1 {
		return combined, err
	}

	out, err = r.runGitCommandInTree(ctx, "commit", "-m", msg)
	combined = appendOutput(combined, out)
	if err != nil {
		if isNothingToCommit(out) {
			return combined, autogitErrors.Wrap(autogitErrors.ErrNothingToCommit, "working tree clean")
		}
		return combined, err
	}
	return combined, nil
}

// Push runs a push command in the working tree. argv[0] is the executable;
// no shell is involved.
func (r *Repository) Push(ctx context.Context, argv []string) (Output, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return Output{}, autogitErrors.NewConfigError("push_command", strings.Join(argv, " "),
			autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, "empty push command"))
	}
	return r.executor.ExecuteInDir(ctx, r.root, argv[0], argv[1:]...)
}

// Init creates a new repository at path with "git init".
func Init(ctx context.Context, executor CommandExecutor, path string) (Output, error) {
	if executor == nil {
		executor = NewExecExecutor()
	}
	return executor.ExecuteInDir(ctx, "", "git", "init", path)
}

// IsRepository reports whether path is inside a git working tree.
// A missing repository is (false, nil); any other failure to open it is
// returned as an error.
func IsRepository(path string) (bool, error) {
	_, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err == nil {
		return true, nil
	}
	if autogitErrors.Is(err, gogit.ErrRepositoryNotExists) {
		return false, nil
	}
	return false, autogitErrors.Wrap(err, "failed to open repository")
}

// LookPath reports whether the git executable is available.
func LookPath() (string, error) {
	return exec.LookPath("git")
}

// runGitCommandWithOutput executes a git command in the repository and returns stdout.
func (r *Repository) runGitCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-C", r.root}, args...)
	return r.executor.ExecuteWithContextAndOutput(ctx, "git", allArgs...)
}

// runGitCommandInTree executes a git command in the repository and captures both streams.
func (r *Repository) runGitCommandInTree(ctx context.Context, args ...string) (Output, error) {
	allArgs := append([]string{"-C", r.root}, args...)
	return r.executor.ExecuteInDir(ctx, r.root, "git", allArgs...)
}

func appendOutput(acc, out Output) Output {
	acc.Stdout += out.Stdout
	acc.Stderr += out.Stderr
	acc.ExitCode = out.ExitCode
	return acc
}

func isNothingToCommit(out Output) bool {
	text := out.Stdout + out.Stderr
	return strings.Contains(text, "nothing to commit") ||
		strings.Contains(text, "nothing added to commit") ||
		strings.Contains(text, "no changes added to commit")
}
