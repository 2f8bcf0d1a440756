// Package autogit commits a git working tree as it changes.
//
// # Quick Start
//
//	cd /path/to/your/repo
//	autogit watch
//
//	# Press Ctrl+C to stop when finished
//
// # Key Features
//
//   - Debounced commits: a burst of changes becomes one commit
//   - Ignore rules: gitignore syntax, reloaded when the file changes
//   - Periodic pushes: after a number of commits or on a cron schedule
//   - Catch-up: changes made while autogit was not running are committed at startup
//   - Prometheus metrics on an optional HTTP endpoint
//
// # Module Structure
//
//   - cmd/autogit: Command-line interface
//   - internal/pipeline: Connects the watcher, scheduler and push counter
//   - internal/watch: Recursive filesystem watcher
//   - internal/ignore: Ignore rules and path classification
//   - internal/scheduler: Debounced, serialized commits
//   - internal/push: Commit countdown and pushes
//   - internal/git: git command execution
//   - internal/config: Configuration file, environment and flags
//   - internal/lock: One watcher per working tree
//   - internal/metrics: Prometheus metrics
//   - internal/logger, internal/errors: Logging and error types
package autogit
