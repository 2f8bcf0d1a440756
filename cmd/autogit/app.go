package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bashhack/autogit/internal/config"
	autogitErrors "github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/git"
	"github.com/bashhack/autogit/internal/ignore"
	"github.com/bashhack/autogit/internal/lock"
	"github.com/bashhack/autogit/internal/logger"
	"github.com/bashhack/autogit/internal/metrics"
	"github.com/bashhack/autogit/internal/pipeline"
	"github.com/bashhack/autogit/internal/push"
	"github.com/bashhack/autogit/internal/scheduler"
	"github.com/bashhack/autogit/internal/watch"
)

// Watcher runs until its context is cancelled.
type Watcher interface {
	Run(ctx context.Context) error
}

// Locker manages file locking
type Locker interface {
	Acquire() error
	Release() error
}

// AppOptions contains app configuration and dependencies.
// Optional dependencies left nil are created during Initialize or Run.
type AppOptions struct {
	// Config holds the application configuration settings (required).
	// The application will panic if this field is nil.
	Config *config.Config

	// Logger provides logging functionality (optional, a default will be created if nil).
	Logger logger.Logger

	// Locker guards the working tree (optional, a default will be created if nil).
	Locker Locker

	// Watcher is the change pipeline (optional, built from Config if nil).
	Watcher Watcher

	// Stdout is the writer for standard output (optional, defaults to os.Stdout).
	Stdout io.Writer

	// Stderr is the writer for error output (optional, defaults to os.Stderr).
	Stderr io.Writer

	// ExecLookPath is used to find executables in PATH (optional, defaults to exec.LookPath).
	ExecLookPath func(file string) (string, error)

	// IsRepository checks if a path is a valid Git repository (optional, defaults to git.IsRepository).
	IsRepository func(string) (bool, error)
}

// App is the autogit watch application.
// It verifies the environment, takes the working tree lock, runs the
// pipeline and reports what happened.
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	Locker  Locker
	Watcher Watcher

	Stdout io.Writer
	Stderr io.Writer

	stats   *sessionStats
	metrics *metrics.Collector

	execLookPath func(file string) (string, error)
	isRepository func(string) (bool, error)

	closeOnce sync.Once
	closeErr  error
}

// NewApp creates an App with custom dependencies specified in opts.
//
// Panics:
//   - If opts.Config is nil
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Locker:       opts.Locker,
		Watcher:      opts.Watcher,
		Stdout:       opts.Stdout,
		Stderr:       opts.Stderr,
		stats:        newSessionStats(),
		execLookPath: opts.ExecLookPath,
		isRepository: opts.IsRepository,
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.execLookPath == nil {
		app.execLookPath = exec.LookPath
	}
	if app.isRepository == nil {
		app.isRepository = git.IsRepository
	}

	return app
}

// Initialize sets up components not provided during construction
func (a *App) Initialize() error {
	if a.Logger == nil {
		a.Logger = logger.NewWithOutput(a.Config.Debug, a.Config.LogFile, a.Config.Verbose, a.Stdout, a.Stderr)
	}

	if a.Locker == nil {
		a.Locker = lock.New(a.Config.RepoPath)
	}

	return nil
}

// Run watches the working tree until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(); err != nil {
		return err
	}

	if err := a.checkRequiredCommands(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error: %v. Please install it and try again.\n", err)
		return err
	}

	isRepo, err := a.isRepository(a.Config.RepoPath)
	if err != nil {
		a.Logger.Warning("Failed to check if path is a git repository: %v", err)
		return autogitErrors.Wrap(autogitErrors.ErrGitOperationFailed, err.Error())
	}
	if !isRepo {
		return autogitErrors.Wrapf(autogitErrors.ErrNotGitRepository, "%s", a.Config.RepoPath)
	}
	a.Logger.Info("Git repository verified")

	if err := a.Locker.Acquire(); err != nil {
		if autogitErrors.Is(err, autogitErrors.ErrAlreadyRunning) {
			return err
		}
		return autogitErrors.Wrap(autogitErrors.ErrLockAcquisitionFailure, err.Error())
	}

	if a.Watcher == nil {
		w, err := a.buildPipeline()
		if err != nil {
			return err
		}
		a.Watcher = w
	}

	if a.Config.MetricsAddr != "" {
		if a.metrics == nil {
			a.metrics = metrics.NewCollector(nil)
		}
		srv, err := metrics.Listen(a.Config.MetricsAddr, a.metrics)
		if err != nil {
			return autogitErrors.NewConfigError("metrics_addr", a.Config.MetricsAddr,
				autogitErrors.Wrapf(autogitErrors.ErrInvalidConfiguration, "cannot listen: %v", err))
		}
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				a.Logger.Error("Metrics server stopped: %v", err)
			}
		}()
		a.Logger.InfoToUser("Serving metrics on http://%s/metrics", srv.Addr())
	}

	a.printBanner()
	a.stats.start()
	return a.Watcher.Run(ctx)
}

// buildPipeline wires the filesystem watcher, ignore matcher, repository and
// metrics into a pipeline for the configured working tree.
func (a *App) buildPipeline() (*pipeline.Pipeline, error) {
	cfg := a.Config

	matcher, err := ignore.NewMatcher(cfg.RepoPath, cfg.RulesPath(), a.Logger)
	if err != nil {
		return nil, err
	}

	source, err := watch.New(cfg.RepoPath, cfg.EventBuffer, a.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewCollector(nil)
	}

	repo := git.NewRepository(cfg.RepoPath, git.NewExecExecutor())
	return pipeline.New(repo, source, matcher, pipeline.Options{
		Root:          cfg.RepoPath,
		CatchUp:       cfg.CatchUp,
		CommitPrefix:  cfg.CommitPrefix,
		Debounce:      cfg.Debounce,
		PushThreshold: cfg.PushThreshold,
		PushCommand:   cfg.PushCommand,
		PushSchedule:  cfg.PushSchedule,
		OnCommit:      a.stats.recordCommit,
		OnPush:        a.stats.recordPush,
		Metrics:       a.metrics,
		Logger:        a.Logger,
	}), nil
}

func (a *App) printBanner() {
	cfg := a.Config
	a.Logger.StatusMessage("🔄 autogit watching %s", cfg.RepoPath)
	a.Logger.StatusMessage("   Debounce: %s", cfg.Debounce)
	if cfg.PushThreshold > 0 {
		a.Logger.StatusMessage("   Push: every %d commits with %q", cfg.PushThreshold, cfg.PushCommand)
	} else {
		a.Logger.StatusMessage("   Push: disabled")
	}
	if cfg.PushSchedule != "" {
		a.Logger.StatusMessage("   Push schedule: %s", cfg.PushSchedule)
	}
	a.Logger.StatusMessage("   Ignore rules: %s", cfg.RulesPath())
	a.Logger.StatusMessage("   Press Ctrl+C to stop")
}

// showVersion displays version information
func showVersion(w io.Writer, v config.VersionInfo) {
	_, _ = fmt.Fprintf(w, "autogit %s (%s) built on %s\n", v.Version, v.Commit, v.Date)
}

// checkRequiredCommands verifies git is available in PATH
func (a *App) checkRequiredCommands() error {
	if _, err := a.execLookPath("git"); err != nil {
		return fmt.Errorf("git is not found in PATH")
	}
	return nil
}

// Close releases resources held by the App. Only the first call does any work.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close()
	})
	return a.closeErr
}

func (a *App) close() error {
	var errs []error

	if a.Locker != nil {
		if err := a.Locker.Release(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("Failed to release lock during cleanup: %v", err)
			} else {
				_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to release lock during cleanup: %v\n", err)
			}
			errs = append(errs, err)
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return autogitErrors.Join(errs...)
	}
	return nil
}

// CleanupOnSignal releases the lock and shows a summary when shutdown is forced
func (a *App) CleanupOnSignal() {
	a.PrintSummary()
	if err := a.Close(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error during cleanup: %v\n", err)
	}
}

// PrintSummary reports the session's commits and pushes.
func (a *App) PrintSummary() {
	s := a.stats.snapshot()
	if s.started.IsZero() {
		return
	}

	_, _ = fmt.Fprintln(a.Stdout, "\n📊 autogit session summary")
	_, _ = fmt.Fprintf(a.Stdout, "   Duration: %s\n", formatDuration(time.Since(s.started)))
	_, _ = fmt.Fprintf(a.Stdout, "   Commits: %d\n", s.commits)
	if s.failedCommits > 0 {
		_, _ = fmt.Fprintf(a.Stdout, "   Failed commits: %d\n", s.failedCommits)
	}
	_, _ = fmt.Fprintf(a.Stdout, "   Pushes: %d\n", s.pushes)
	if s.failedPushes > 0 {
		_, _ = fmt.Fprintf(a.Stdout, "   Failed pushes: %d\n", s.failedPushes)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// sessionStats accumulates results reported by the pipeline hooks.
type sessionStats struct {
	mu            sync.Mutex
	started       time.Time
	commits       int
	failedCommits int
	pushes        int
	failedPushes  int
}

func newSessionStats() *sessionStats {
	return &sessionStats{}
}

func (s *sessionStats) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = time.Now()
}

func (s *sessionStats) recordCommit(res scheduler.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch res.Outcome {
	case scheduler.Committed:
		s.commits++
	case scheduler.Failed:
		s.failedCommits++
	}
}

func (s *sessionStats) recordPush(res push.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Err != nil {
		s.failedPushes++
		return
	}
	s.pushes++
}

type statsSnapshot struct {
	started       time.Time
	commits       int
	failedCommits int
	pushes        int
	failedPushes  int
}

func (s *sessionStats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsSnapshot{
		started:       s.started,
		commits:       s.commits,
		failedCommits: s.failedCommits,
		pushes:        s.pushes,
		failedPushes:  s.failedPushes,
	}
}
