package main

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/bashhack/autogit/internal/config"
)

// MockWatcher implements the Watcher interface for testing
type MockWatcher struct {
	RunCalled bool
	RunErr    error
	// BlockUntilCancel makes Run wait for its context
	BlockUntilCancel bool
}

func (m *MockWatcher) Run(ctx context.Context) error {
	m.RunCalled = true
	if m.BlockUntilCancel {
		<-ctx.Done()
	}
	return m.RunErr
}

// MockLocker implements the Locker interface for testing
type MockLocker struct {
	AcquireErr    error
	ReleaseErr    error
	AcquireCalled bool
	ReleaseCalled int
}

func (m *MockLocker) Acquire() error {
	m.AcquireCalled = true
	return m.AcquireErr
}

func (m *MockLocker) Release() error {
	m.ReleaseCalled++
	return m.ReleaseErr
}

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	mu          sync.Mutex
	Messages    []string
	CloseCalled bool
	CloseErr    error
}

func (m *MockLogger) record(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...interface{})          { m.record(format, args...) }
func (m *MockLogger) Warning(format string, args ...interface{})       { m.record(format, args...) }
func (m *MockLogger) Error(format string, args ...interface{})         { m.record(format, args...) }
func (m *MockLogger) InfoToUser(format string, args ...interface{})    { m.record(format, args...) }
func (m *MockLogger) WarningToUser(format string, args ...interface{}) { m.record(format, args...) }
func (m *MockLogger) Success(format string, args ...interface{})       { m.record(format, args...) }
func (m *MockLogger) StatusMessage(format string, args ...interface{}) { m.record(format, args...) }

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// testApp bundles an App with its mocks and captured output
type testApp struct {
	*App
	logger  *MockLogger
	locker  *MockLocker
	watcher *MockWatcher
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

// NewTestApp creates an App whose dependencies are all mocks and whose
// environment checks pass
func NewTestApp() *testApp {
	cfg := config.New()
	cfg.RepoPath = "/work/tree"

	ta := &testApp{
		logger:  &MockLogger{},
		locker:  &MockLocker{},
		watcher: &MockWatcher{},
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	ta.App = NewApp(AppOptions{
		Config:       cfg,
		Logger:       ta.logger,
		Locker:       ta.locker,
		Watcher:      ta.watcher,
		Stdout:       ta.stdout,
		Stderr:       ta.stderr,
		ExecLookPath: func(string) (string, error) { return "/usr/bin/git", nil },
		IsRepository: func(string) (bool, error) { return true, nil },
	})
	return ta
}
