// Package main implements autogit, a watcher that commits a git working tree
// as it changes.
//
// autogit listens for filesystem changes under a working tree and commits
// them shortly afterwards. A burst of edits, such as an editor saving several
// files or a formatter rewriting a package, becomes a single commit once the
// debounce window closes. Paths matched by the ignore rules (the tree's
// .gitignore by default) never trigger a commit, and changes to the rules file
// take effect immediately. After a configurable number of commits the tree is
// pushed.
//
// # Basic Usage
//
//	autogit init [path]                # git init, reporting success or failure
//	autogit watch [path]               # watch until interrupted
//	autogit watch --debounce 5s        # wait longer before committing
//	autogit watch --push-threshold 0   # never push
//	autogit version
//
// # Configuration
//
// Settings are layered: built-in defaults, then .autogit.yaml in the working
// tree, then environment variables, then flags.
//
//	--rules-file      Ignore rules file (env: AUTOGIT_RULES_FILE)
//	--debounce        Delay before committing a burst (env: AUTOGIT_DEBOUNCE)
//	--push-threshold  Commits between pushes, 0 disables (env: AUTOGIT_PUSH_THRESHOLD)
//	--push-command    Push command; {branch} and {root} are substituted (env: AUTOGIT_PUSH_COMMAND)
//	--push-schedule   Cron expression for periodic pushes (env: AUTOGIT_PUSH_SCHEDULE)
//	--prefix          Commit message prefix (env: AUTOGIT_COMMIT_PREFIX)
//	--no-catch-up     Do not commit leftover changes at startup (env: AUTOGIT_CATCH_UP=false)
//	--event-buffer    Watcher queue capacity (env: AUTOGIT_EVENT_BUFFER)
//	--quiet, -q       Hide per-path messages (env: AUTOGIT_VERBOSE=false)
//	--debug           Write a structured debug log (env: AUTOGIT_DEBUG)
//	--log-file        Debug log location (env: AUTOGIT_LOG_FILE)
//	--metrics-addr    Serve Prometheus metrics, e.g. 127.0.0.1:9090 (env: AUTOGIT_METRICS_ADDR)
//
// Only one watcher may run per working tree. SIGINT, SIGTERM and SIGHUP stop
// the watcher after any pending commit has been made.
package main
