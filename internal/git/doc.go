// Package git runs the version-control commands autogit depends on.
//
// Every operation shells out to the git executable through a CommandExecutor,
// so tests can substitute a mock. Failures are returned as *errors.GitError
// values that wrap errors.ErrGitOperationFailed and carry the captured stderr.
//
// # Core Components
//
// - CommandExecutor: runs a command with a context and captures its output
// - Repository: status, commit and push for one working tree
// - Init: creates a repository with "git init"
// - IsRepository: detects a working tree (go-git, walking up to the .git dir)
//
// # Commits
//
// CommitAll stages the whole tree and commits it. A tree with nothing staged
// after "git add ." is reported as errors.ErrNothingToCommit, which callers
// treat as a distinct non-error outcome. The decision is made from exit
// statuses ("git diff --cached --quiet"), not from parsing messages.
//
// # Usage
//
//	repo := git.NewRepository(root, git.NewExecExecutor())
//	out, err := repo.CommitAll(ctx, "auto: changes in main.go")
//	switch {
//	case errors.Is(err, errors.ErrNothingToCommit):
//		// clean tree
//	case err != nil:
//		// failed; out.Stderr has details
//	}
package git
