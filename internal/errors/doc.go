// Package errors provides error handling utilities for the autogit application.
//
// This package defines the error taxonomy of the watcher: sentinel errors for
// conditions callers branch on, and typed errors that carry the context of the
// failing operation (git command, lock file, configuration parameter, ignore
// rules file).
//
// # Error Categories
//
//   - Configuration: ConfigError wrapping ErrInvalidConfiguration or ErrInvalidFlag
//   - Ignore rules: RulesError wrapping ErrMalformedRules or the underlying I/O error
//   - External commands: GitError wrapping ErrGitOperationFailed
//   - Locking: LockError, possibly wrapping ErrAlreadyRunning
//   - Watch source: ErrWatchSourceLost, the only error that stops a running watch
//
// # Usage
//
//	if err := repo.CommitAll(ctx, msg); err != nil {
//	    if errors.Is(err, errors.ErrNothingToCommit) {
//	        return nil
//	    }
//	    return errors.Wrap(err, "auto-commit failed")
//	}
//
// All types and functions in this package are safe for concurrent use.
package errors
