package git

import (
	"context"
	"strings"
	"sync"
)

// MockCommandExecutor records calls and answers from a per-command table.
// Keys are the command line with any "-C <dir>" prefix removed, e.g. "status --porcelain".
type MockCommandExecutor struct {
	mu       sync.Mutex
	Commands []string
	Dirs     []string
	Results  map[string]MockResult
}

// MockResult is the canned answer for one command line.
type MockResult struct {
	Output Output
	Err    error
}

// NewMockCommandExecutor creates a new mock executor
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Results: make(map[string]MockResult),
	}
}

// ExecuteWithContextAndOutput implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := m.ExecuteInDir(ctx, "", name, args...)
	return out.Stdout, err
}

// ExecuteInDir implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteInDir(_ context.Context, dir, name string, args ...string) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := commandKey(name, args)
	m.Commands = append(m.Commands, key)
	m.Dirs = append(m.Dirs, dir)

	res, ok := m.Results[key]
	if !ok {
		return Output{}, nil
	}
	return res.Output, res.Err
}

func commandKey(name string, args []string) string {
	if name == "git" && len(args) >= 2 && args[0] == "-C" {
		args = args[2:]
	}
	if name != "git" {
		return strings.Join(append([]string{name}, args...), " ")
	}
	return strings.Join(args, " ")
}
