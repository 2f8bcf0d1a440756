package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/bashhack/autogit/internal/config"
	autogitErrors "github.com/bashhack/autogit/internal/errors"
)

// Locker guards one working tree.
type Locker struct {
	path string
	file *os.File
	pid  int
}

// New creates a Locker for repoPath with its lock file in the temp directory.
// repoPath should already be absolute and symlink-resolved so every watcher
// of the same tree derives the same lock file.
func New(repoPath string) *Locker {
	return NewInDir(os.TempDir(), repoPath)
}

// NewInDir creates a Locker for repoPath whose lock file lives in dir.
func NewInDir(dir, repoPath string) *Locker {
	return &Locker{
		path: filepath.Join(dir, fmt.Sprintf("autogit-%s.lock", config.RepoHash(repoPath))),
		pid:  os.Getpid(),
	}
}

// Path returns the lock file path.
func (l *Locker) Path() string {
	return l.path
}

// Held reports whether this Locker currently owns the lock.
func (l *Locker) Held() bool {
	return l.file != nil
}

// Acquire takes the lock without blocking.
func (l *Locker) Acquire() error {
	if l.file != nil {
		return nil
	}

	// A second pass only happens after a stale lock file was removed
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return autogitErrors.NewLockError(l.path, 0,
				autogitErrors.Wrapf(autogitErrors.ErrLockAcquisitionFailure, "failed to open lock file: %v", err))
		}

		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			_ = f.Close()

			// EWOULDBLOCK and EAGAIN are distinct on some older systems
			if !autogitErrors.Is(err, syscall.EWOULDBLOCK) && !autogitErrors.Is(err, syscall.EAGAIN) {
				return autogitErrors.NewLockError(l.path, 0,
					autogitErrors.Wrapf(autogitErrors.ErrLockAcquisitionFailure, "flock: %v", err))
			}

			stale, err := l.checkHolder()
			if err != nil {
				return err
			}
			if stale {
				continue
			}
		}

		if err := writePID(f, l.pid); err != nil {
			_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			_ = f.Close()
			return autogitErrors.NewLockError(l.path, l.pid,
				autogitErrors.Wrapf(autogitErrors.ErrLockAcquisitionFailure, "failed to write PID: %v", err))
		}

		l.file = f
		return nil
	}

	return autogitErrors.NewLockError(l.path, 0,
		autogitErrors.Wrap(autogitErrors.ErrLockAcquisitionFailure, "lock taken again after removing a stale lock file"))
}

// checkHolder inspects a lock held by someone else. It reports true when the
// recorded owner is gone and the lock file was removed so Acquire can retry.
func (l *Locker) checkHolder() (bool, error) {
	pid, err := readPID(l.path)
	if err != nil {
		// The owner may still be writing its PID
		return false, autogitErrors.NewLockError(l.path, 0,
			autogitErrors.Wrapf(autogitErrors.ErrAlreadyRunning, "owner unknown (%v)", err))
	}

	if isProcessRunning(pid) {
		return false, autogitErrors.NewLockError(l.path, pid, autogitErrors.ErrAlreadyRunning)
	}

	// The flock is held through a descriptor inherited from a dead owner
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return false, autogitErrors.NewLockError(l.path, pid,
			autogitErrors.Wrapf(autogitErrors.ErrLockAcquisitionFailure, "failed to remove stale lock file: %v", err))
	}
	return true, nil
}

// Release gives the lock up and removes the lock file. Releasing a lock that
// is not held is a no-op.
func (l *Locker) Release() error {
	if l.file == nil {
		return nil
	}

	var err error
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		err = autogitErrors.NewLockError(l.path, l.pid,
			autogitErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	if unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); unlockErr != nil && err == nil {
		err = autogitErrors.NewLockError(l.path, l.pid,
			autogitErrors.Wrap(unlockErr, "failed to release lock"))
	}

	// Closing drops the flock even when the explicit unlock failed
	if closeErr := l.file.Close(); closeErr != nil && err == nil {
		err = autogitErrors.NewLockError(l.path, l.pid,
			autogitErrors.Wrap(closeErr, "failed to close lock file"))
	}

	l.file = nil
	return err
}

func writePID(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(pid)), 0)
	return err
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in lock file: %w", err)
	}
	return pid, nil
}

// isProcessRunning checks if a process exists using signal 0
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
