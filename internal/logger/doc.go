// Package logger provides the textual progress log for autogit.
//
// Two audiences are served by one interface. Messages for the person running
// the watcher (InfoToUser, WarningToUser, Success, StatusMessage) go to stdout
// with a short emoji prefix. Diagnostic messages (Info, Warning, Error) go to a
// structured log/slog text handler that writes to a debug log file when debug
// logging is enabled. Every structured record carries a session attribute so
// the log of one watcher run can be separated from earlier runs appending to
// the same file.
//
// In verbose mode Info and Warning are also echoed to stdout. This is how the
// per-path classification lines ("Ignoring changes in: ...") reach the user.
//
// # Usage
//
//	log := logger.New(cfg.Debug, cfg.LogFile, cfg.Verbose)
//	defer log.Close()
//
//	log.InfoToUser("Watching %s", root)
//	log.Success("Committed: %s", msg)
//	log.Error("Push failed: %v", err)
//
// All methods are safe for concurrent use.
package logger
