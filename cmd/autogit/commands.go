package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bashhack/autogit/internal/config"
	autogitErrors "github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/git"
)

// forceExitTimeout is how long a signalled watcher may take to shut down
// before the process exits anyway.
const forceExitTimeout = 5 * time.Second

// errReported marks failures that were already printed to the user.
var errReported = autogitErrors.New("command failed")

// commandEnv holds what the commands need from the process. Tests replace
// its fields.
type commandEnv struct {
	versionInfo config.VersionInfo
	stdout      io.Writer
	stderr      io.Writer
	exit        func(code int)
	newApp      func(opts AppOptions) *App
}

func newRootCommand(versionInfo config.VersionInfo, stdout, stderr io.Writer) *cobra.Command {
	return newRootCommandWithEnv(&commandEnv{
		versionInfo: versionInfo,
		stdout:      stdout,
		stderr:      stderr,
		exit:        os.Exit,
		newApp:      NewApp,
	})
}

func newRootCommandWithEnv(env *commandEnv) *cobra.Command {
	root := &cobra.Command{
		Use:   "autogit",
		Short: "Commit every change to a git working tree as it happens",
		Long: `autogit watches a git working tree and commits changes shortly after
they are made. Bursts of changes are folded into one commit, paths matched by
the ignore rules never trigger a commit, and every few commits the result is
pushed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	root.AddCommand(
		newInitCommand(env),
		newWatchCommand(env),
		newVersionCommand(env),
	)
	return root
}

func newInitCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a new git repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolveRepoPath(pathArg(args))
			if err != nil {
				_, _ = fmt.Fprintf(env.stderr, "❌ Error: %v\n", err)
				return errReported
			}

			out, err := git.Init(cmd.Context(), nil, path)
			if err != nil {
				if out.Stderr != "" {
					_, _ = fmt.Fprint(env.stderr, out.Stderr)
				}
				_, _ = fmt.Fprintln(env.stderr, "❌ Failed to initialize git repository.")
				return errReported
			}

			_, _ = fmt.Fprintln(env.stdout, "✅ Successfully initialized git repository.")
			return nil
		},
	}
}

func newWatchCommand(env *commandEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a working tree and commit its changes",
		Long: `Watch a working tree and commit its changes.

Settings are read from .autogit.yaml in the working tree, then from AUTOGIT_*
environment variables, then from flags. The push command may contain
{branch} and {root}, which are replaced before it runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(pathArg(args), cmd.Flags())
			if err != nil {
				_, _ = fmt.Fprintf(env.stderr, "❌ Error: %v\n", err)
				return errReported
			}
			cfg.VersionInfo = env.versionInfo

			app := env.newApp(AppOptions{
				Config: cfg,
				Stdout: env.stdout,
				Stderr: env.stderr,
			})
			defer func() { _ = app.Close() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stop := handleSignals(cancel, app, env)
			defer stop()

			if err := app.Run(ctx); err != nil {
				app.PrintSummary()
				_, _ = fmt.Fprintf(env.stderr, "❌ Error: %v\n", err)
				return errReported
			}

			app.PrintSummary()
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newVersionCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			showVersion(env.stdout, env.versionInfo)
		},
	}
}

// handleSignals cancels the watch on SIGINT, SIGTERM or SIGHUP. If the watch
// has not returned forceExitTimeout later, the lock is released and the
// process exits. The returned function stops signal delivery.
func handleSignals(cancel context.CancelFunc, app *App, env *commandEnv) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-c:
			_, _ = fmt.Fprintf(env.stdout, "\nReceived signal %v, stopping autogit...\n", sig)
			cancel()

			select {
			case <-done:
			case <-time.After(forceExitTimeout):
				_, _ = fmt.Fprintln(env.stderr, "⚠️  Shutdown is taking too long, exiting")
				app.CleanupOnSignal()
				env.exit(0)
			}
		case <-done:
		}
	}()

	return func() {
		signal.Stop(c)
		close(done)
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
