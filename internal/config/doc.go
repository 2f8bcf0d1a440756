// Package config provides configuration handling for autogit.
//
// Configuration values are layered with the following precedence:
//
// 1. Command-line flags (highest priority, only flags the user set)
// 2. AUTOGIT_* environment variables
// 3. The .autogit.yaml file in the watched root
// 4. Default values (lowest priority)
//
// # Environment Variables
//
//	AUTOGIT_RULES_FILE      Ignore rules file (default: .gitignore)
//	AUTOGIT_DEBOUNCE        Commit delay, e.g. 2s or 500ms (default: 2s)
//	AUTOGIT_PUSH_THRESHOLD  Commits between pushes, 0 disables (default: 10)
//	AUTOGIT_PUSH_COMMAND    Push command line (default: git push origin)
//	AUTOGIT_PUSH_SCHEDULE   Cron expression for periodic pushes (default: off)
//	AUTOGIT_COMMIT_PREFIX   Commit message prefix (default: auto:)
//	AUTOGIT_CATCH_UP        Commit pre-existing changes at startup (default: true)
//	AUTOGIT_EVENT_BUFFER    Filesystem event queue capacity (default: 256)
//	AUTOGIT_VERBOSE         Show per-path messages (default: true)
//	AUTOGIT_DEBUG           Enable debug logging (default: false)
//	AUTOGIT_LOG_FILE        Debug log path
//	AUTOGIT_METRICS_ADDR    Prometheus listen address (default: off)
//
// # Usage
//
//	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
//	config.RegisterFlags(fs)
//	_ = fs.Parse(args)
//
//	cfg, err := config.Load(path, fs)
//	if err != nil {
//		return err
//	}
package config
