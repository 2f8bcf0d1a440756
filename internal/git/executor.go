package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/bashhack/autogit/internal/errors"
)

// Output holds everything a finished command reported.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// ExecuteWithContextAndOutput runs a command and returns its stdout
	ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error)

	// ExecuteInDir runs a command in dir and captures both output streams.
	// The Output is populated even when the command fails.
	ExecuteInDir(ctx context.Context, dir, name string, args ...string) (Output, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// ExecuteWithContextAndOutput implements CommandExecutor.ExecuteWithContextAndOutput
func (e *ExecExecutor) ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := e.ExecuteInDir(ctx, "", name, args...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// ExecuteInDir implements CommandExecutor.ExecuteInDir
func (e *ExecExecutor) ExecuteInDir(ctx context.Context, dir, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if err != nil {
		// Keep both the sentinel and the *exec.ExitError reachable through errors.As
		wrappedErr := fmt.Errorf("%w: %w", errors.ErrGitOperationFailed, err)
		return out, errors.NewGitError(operationName(name, args), args, wrappedErr, out.Stderr)
	}
	return out, nil
}

// operationName picks the git subcommand out of an argument list, skipping
// a leading "-C <dir>". Non-git commands are named by their executable.
func operationName(name string, args []string) string {
	if name != "git" {
		return name
	}
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			i++
			continue
		}
		return args[i]
	}
	return name
}
