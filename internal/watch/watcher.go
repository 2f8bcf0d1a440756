package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/logger"
)

const gitDir = ".git"

// Watcher delivers changes under a directory tree into a bounded channel.
// Every directory below the root is watched, except .git directories, and
// directories created while running are added as they appear.
type Watcher struct {
	root    string
	events  chan Event
	logger  logger.Logger
	watcher *fsnotify.Watcher

	// dirs tracks watched directories so removals can be classified after
	// the path is gone. Only the Run goroutine touches it after New returns.
	dirs map[string]struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates a Watcher for root with a channel of the given capacity and
// registers every directory under root before returning.
func New(root string, buffer int, log logger.Logger) (*Watcher, error) {
	if buffer < 1 {
		buffer = 1
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filesystem watcher")
	}

	w := &Watcher{
		root:    filepath.Clean(root),
		events:  make(chan Event, buffer),
		logger:  log,
		watcher: fsw,
		dirs:    make(map[string]struct{}),
	}

	if _, err := w.addTree(w.root); err != nil {
		_ = fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", w.root)
	}

	w.logger.Info("Watching %d directories under %s", len(w.dirs), w.root)
	return w, nil
}

// Events returns the channel changes are delivered on. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Run forwards filesystem events until ctx is cancelled or the watch is
// lost. It returns nil on cancellation and an error wrapping
// ErrWatchSourceLost when the root disappears or the notifier shuts down.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer func() { _ = w.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return errors.Wrap(errors.ErrWatchSourceLost, "event channel closed")
			}
			if err := w.handle(ctx, ev); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.Wrap(errors.ErrWatchSourceLost, "error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warning("Filesystem event queue overflowed; some changes may be picked up by the next commit only")
				continue
			}
			w.logger.Error("Filesystem watcher error: %v", err)
		}
	}
}

// Close releases the underlying notifier. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) error {
	op, ok := opFromNotify(ev.Op)
	if !ok {
		return nil
	}

	path := filepath.Clean(ev.Name)
	if path == w.root && (op == Removed || op == Renamed) {
		return errors.Wrapf(errors.ErrWatchSourceLost, "watched root %s was %s", w.root, op)
	}
	if isGitPath(w.root, path) {
		return nil
	}

	isDir := false
	switch op {
	case Created:
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			isDir = true
			files, err := w.addTree(path)
			if err != nil {
				w.logger.Warning("Failed to watch new directory %s: %v", path, err)
			}
			// Files written before the watch was registered produce no events of their own
			for _, f := range files {
				if !w.emit(ctx, Event{Path: f, Op: Created}) {
					return nil
				}
			}
		}
	case Modified:
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			isDir = true
		}
	case Removed, Renamed:
		if _, ok := w.dirs[path]; ok {
			isDir = true
			w.forget(path)
		}
	}

	w.emit(ctx, Event{Path: path, IsDir: isDir, Op: op})
	return nil
}

func (w *Watcher) emit(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// addTree watches dir and every directory below it, skipping .git. It
// returns the regular files found along the way.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if !d.IsDir() {
			if d.Type().IsRegular() && path != dir {
				files = append(files, path)
			}
			return nil
		}

		if d.Name() == gitDir {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch directory %q", path)
		}
		w.dirs[path] = struct{}{}
		return nil
	})

	return files, err
}

// forget drops dir and everything below it from the watched set. The
// notifier removes its own watches when a directory goes away.
func (w *Watcher) forget(dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

func isGitPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == gitDir
}
