package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the common logging interface used throughout the application.
// It separates the diagnostic log (Info, Warning, Error) from messages meant
// for the person running the watcher (InfoToUser, WarningToUser, Success,
// StatusMessage).
type Logger interface {
	// Info logs an informational message. It is written to the debug log file
	// when one is enabled and echoed to stdout in verbose mode.
	Info(format string, args ...interface{})

	// Warning logs a warning message. Warnings indicate conditions the watcher
	// recovered from, such as a commit that wrote to stderr. They are shown to
	// users in verbose mode.
	Warning(format string, args ...interface{})

	// Error logs an error message. Errors are always shown on stderr.
	Error(format string, args ...interface{})

	// InfoToUser logs an informational message intended for users.
	InfoToUser(format string, args ...interface{})

	// WarningToUser logs a warning message intended for users.
	WarningToUser(format string, args ...interface{})

	// Success logs a success message to the user.
	Success(format string, args ...interface{})

	// StatusMessage prints a status line to the user without logging it.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the debug log file, if any.
	Close() error
}

// Options configures a DefaultLogger.
type Options struct {
	// Debug enables the structured debug log file.
	Debug bool

	// LogFile is the debug log destination. Parent directories are created.
	LogFile string

	// Verbose echoes Info and Warning messages to stdout.
	Verbose bool

	// SessionID tags every structured record. A random id is used when empty.
	SessionID string

	Stdout io.Writer
	Stderr io.Writer
}

// DefaultLogger provides structured logging capability and implements the Logger interface
type DefaultLogger struct {
	mu        sync.Mutex
	logger    *slog.Logger
	enabled   bool
	logFile   string
	verbose   bool
	sessionID string
	stdout    io.Writer
	stderr    io.Writer
	file      *os.File
}

// New creates a new Logger writing user messages to the process streams
func New(debug bool, logFile string, verbose bool) Logger {
	return NewWithOptions(Options{
		Debug:   debug,
		LogFile: logFile,
		Verbose: verbose,
	})
}

// NewWithOutput creates a DefaultLogger with custom output writers
func NewWithOutput(debug bool, logFile string, verbose bool, stdout, stderr io.Writer) *DefaultLogger {
	return NewWithOptions(Options{
		Debug:   debug,
		LogFile: logFile,
		Verbose: verbose,
		Stdout:  stdout,
		Stderr:  stderr,
	})
}

// NewWithOptions creates a DefaultLogger from opts
func NewWithOptions(opts Options) *DefaultLogger {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var (
		logger *slog.Logger
		file   *os.File
	)

	if opts.Debug {
		logDir := filepath.Dir(opts.LogFile)
		if logDir != "." {
			if err := os.MkdirAll(logDir, 0o755); err != nil {
				_, _ = fmt.Fprintf(stderr, "⚠️ Failed to create log directory: %v\n", err)
			}
		}

		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			file = f
			logger = slog.New(slog.NewTextHandler(f, handlerOpts))
			_, _ = fmt.Fprintf(stdout, "🔍 Debug logging enabled. Logs will be written to: %s\n", opts.LogFile)
		} else {
			logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
			_, _ = fmt.Fprintf(stderr, "⚠️ Failed to open log file: %v, using stderr instead\n", err)
		}
	} else {
		logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
	}

	logger = logger.With("session", sessionID)
	if opts.Debug {
		logger.Info("autogit debug logging started")
	}

	return &DefaultLogger{
		logger:    logger,
		enabled:   opts.Debug,
		logFile:   opts.LogFile,
		verbose:   opts.Verbose,
		sessionID: sessionID,
		stdout:    stdout,
		stderr:    stderr,
		file:      file,
	}
}

// SessionID returns the id attached to every structured record
func (l *DefaultLogger) SessionID() string {
	return l.sessionID
}

// Info logs an informational message
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	if l.verbose {
		_, _ = fmt.Fprintf(l.stdout, "   %s\n", msg)
	}
}

// InfoToUser logs an informational message to both file and stdout
func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "ℹ️  %s\n", msg)
}

// Success logs a success message to both file and stdout
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "✅ %s\n", msg)
}

// Warning logs a warning message
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	if l.verbose {
		_, _ = fmt.Fprintf(l.stdout, "⚠️  %s\n", msg)
	}
}

// WarningToUser logs a warning message to both file and stdout
func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "⚠️  %s\n", msg)
}

// Error logs an error message
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Error(msg)
	}

	_, _ = fmt.Fprintf(l.stderr, "❌ %s\n", msg)
}

// StatusMessage prints a status message to stdout only (no logging)
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintln(l.stdout, msg)
}

// Close ensures any buffered data is written and closes open log file handles
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SetStdout sets a custom writer for user-facing stdout messages only.
// NOTE: This does not affect where structured log messages from slog are directed.
func (l *DefaultLogger) SetStdout(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = w
}

// SetStderr sets a custom writer for user-facing stderr messages only.
// NOTE: This does not affect where structured log messages from slog are directed.
func (l *DefaultLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}
