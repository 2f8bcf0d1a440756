package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/git"
	"github.com/bashhack/autogit/internal/gittest"
	"github.com/bashhack/autogit/internal/ignore"
	"github.com/bashhack/autogit/internal/logger"
	"github.com/bashhack/autogit/internal/metrics"
	"github.com/bashhack/autogit/internal/push"
	"github.com/bashhack/autogit/internal/scheduler"
	"github.com/bashhack/autogit/internal/watch"
)

// fakeSource delivers events pushed by the test and fails on demand.
type fakeSource struct {
	events chan watch.Event
	fail   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan watch.Event, 64),
		fail:   make(chan error, 1),
	}
}

func (s *fakeSource) Events() <-chan watch.Event {
	return s.events
}

func (s *fakeSource) Run(ctx context.Context) error {
	defer close(s.events)
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.fail:
		return err
	}
}

type results struct {
	mu      sync.Mutex
	commits []scheduler.Result
	pushes  []push.Result
}

func (r *results) commit(res scheduler.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, res)
}

func (r *results) push(res push.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, res)
}

func (r *results) counts() (commits, pushes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits), len(r.pushes)
}

type harness struct {
	root     string
	source   *fakeSource
	pipeline *Pipeline
	metrics  *metrics.Collector
	results  *results
	cancel   context.CancelFunc
	done     chan error
}

func quietLogger() logger.Logger {
	return logger.NewWithOutput(false, "", false, io.Discard, io.Discard)
}

func defaultOptions(root string) Options {
	return Options{
		Root:          root,
		CatchUp:       true,
		CommitPrefix:  "auto:",
		Debounce:      100 * time.Millisecond,
		PushThreshold: 0,
		PushCommand:   "git push origin {branch}",
	}
}

func newHarness(t *testing.T, root string, opts Options) *harness {
	t.Helper()

	log := quietLogger()
	matcher, err := ignore.NewMatcher(root, filepath.Join(root, ".gitignore"), log)
	require.NoError(t, err)

	h := &harness{
		root:    root,
		source:  newFakeSource(),
		metrics: metrics.NewCollector(nil),
		results: &results{},
	}

	opts.Logger = log
	opts.Metrics = h.metrics
	opts.OnCommit = h.results.commit
	opts.OnPush = h.results.push

	repo := git.NewRepository(root, nil)
	h.pipeline = New(repo, h.source, matcher, opts)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() {
		h.done <- h.pipeline.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(10 * time.Second):
		}
	})
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()

	h.cancel()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()

	path := filepath.Join(h.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	h.source.events <- watch.Event{Path: path, Op: watch.Modified}
}

func (h *harness) waitForCommits(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		commits, _ := h.results.counts()
		return commits >= n
	}, 10*time.Second, 20*time.Millisecond)
}

// eventCount reads autogit_pipeline_events_total for one outcome.
func eventCount(t *testing.T, c *metrics.Collector, outcome string) float64 {
	t.Helper()
	return counterValue(t, c, "autogit_pipeline_events_total", "outcome", outcome)
}

// eventTotal sums autogit_pipeline_events_total over every outcome.
func eventTotal(t *testing.T, c *metrics.Collector) float64 {
	t.Helper()
	return counterValue(t, c, "autogit_pipeline_events_total", "", "")
}

// counterValue sums the samples of a counter family whose label matches.
// An empty label matches every sample.
func counterValue(t *testing.T, c *metrics.Collector, family, label, value string) float64 {
	t.Helper()

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				sum += m.GetCounter().GetValue()
				continue
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					sum += m.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}

func TestBurstWithIgnoredFileCommitsOnce(t *testing.T) {
	root := gittest.NewRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
	gittest.Run(t, root, "add", ".gitignore")
	gittest.Run(t, root, "commit", "-m", "ignore logs")
	before := gittest.CommitCount(t, root)

	opts := defaultOptions(root)
	opts.Debounce = 300 * time.Millisecond
	h := newHarness(t, root, opts)
	h.start(t)

	for i := 0; i < 5; i++ {
		h.write(t, "a.txt", strings.Repeat("x", i+1))
	}
	h.write(t, "debug.log", "noise")

	h.waitForCommits(t, 1)
	require.NoError(t, h.stop(t))

	assert.Equal(t, before+1, gittest.CommitCount(t, root))
	assert.Equal(t, "auto: changes in a.txt", gittest.CommitMessages(t, root)[0])
	assert.Equal(t, "xxxxx", strings.TrimSpace(gittest.Run(t, root, "show", "HEAD:a.txt")))

	files := gittest.Run(t, root, "show", "--name-only", "--pretty=format:", "HEAD")
	assert.NotContains(t, files, "debug.log")

	commits, _ := h.results.counts()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1.0, eventCount(t, h.metrics, metrics.EventIgnored))
	assert.Equal(t, 5.0, eventCount(t, h.metrics, metrics.EventSubmitted)+eventCount(t, h.metrics, metrics.EventCoalesced))
}

func TestPushAfterThreshold(t *testing.T) {
	root := gittest.NewRepo(t)
	remote := gittest.NewBareRemote(t, root)

	opts := defaultOptions(root)
	opts.PushThreshold = 3
	h := newHarness(t, root, opts)
	h.start(t)

	for i := 1; i <= 3; i++ {
		h.write(t, "file.txt", strings.Repeat("v", i))
		h.waitForCommits(t, i)
	}

	require.Eventually(t, func() bool {
		_, pushes := h.results.counts()
		return pushes == 1
	}, 10*time.Second, 20*time.Millisecond)
	require.NoError(t, h.stop(t))

	h.results.mu.Lock()
	res := h.results.pushes[0]
	h.results.mu.Unlock()
	require.NoError(t, res.Err)
	assert.Equal(t, push.TriggerThreshold, res.Trigger)
	assert.Equal(t, 3, res.Commits)

	branch := strings.TrimSpace(gittest.Run(t, root, "branch", "--show-current"))
	local := strings.TrimSpace(gittest.Run(t, root, "rev-parse", "HEAD"))
	pushed := strings.TrimSpace(gittest.Run(t, remote, "rev-parse", branch))
	assert.Equal(t, local, pushed)
	assert.Equal(t, 3, h.pipeline.Counter().Remaining())
}

func TestCatchUpCommit(t *testing.T) {
	tests := map[string]struct {
		dirty       bool
		catchUp     bool
		wantCommits int
	}{
		"dirty tree is committed":  {dirty: true, catchUp: true, wantCommits: 1},
		"clean tree is left alone": {dirty: false, catchUp: true, wantCommits: 0},
		"disabled":                 {dirty: true, catchUp: false, wantCommits: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := gittest.NewRepo(t)
			if tc.dirty {
				require.NoError(t, os.WriteFile(filepath.Join(root, "left-over.txt"), []byte("x"), 0o644))
			}
			before := gittest.CommitCount(t, root)

			opts := defaultOptions(root)
			opts.CatchUp = tc.catchUp
			h := newHarness(t, root, opts)
			h.start(t)
			require.NoError(t, h.stop(t))

			assert.Equal(t, before+tc.wantCommits, gittest.CommitCount(t, root))
			if tc.wantCommits > 0 {
				assert.Equal(t, "auto: changes before starting watcher", gittest.CommitMessages(t, root)[0])
				assert.True(t, gittest.IsClean(t, root))
			}
		})
	}
}

func TestCatchUpCountsTowardPush(t *testing.T) {
	root := gittest.NewRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "left-over.txt"), []byte("x"), 0o644))

	opts := defaultOptions(root)
	opts.PushThreshold = 5
	h := newHarness(t, root, opts)
	h.start(t)
	h.waitForCommits(t, 1)
	require.NoError(t, h.stop(t))

	assert.Equal(t, 4, h.pipeline.Counter().Remaining())
}

func TestRulesFileChangeReloadsMatcher(t *testing.T) {
	root := gittest.NewRepo(t)
	h := newHarness(t, root, defaultOptions(root))
	h.start(t)

	h.write(t, ".gitignore", "*.tmp\n")
	require.Eventually(t, func() bool {
		return h.pipeline.matcher.Rules().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.write(t, "scratch.tmp", "ignored")
	require.Eventually(t, func() bool {
		return eventCount(t, h.metrics, metrics.EventIgnored) == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.waitForCommits(t, 1)
	require.NoError(t, h.stop(t))

	assert.Equal(t, "auto: changes in .gitignore", gittest.CommitMessages(t, root)[0])
	assert.Equal(t, 2.0, eventTotal(t, h.metrics), "each filesystem event is counted once")
	assert.Equal(t, 1.0, counterValue(t, h.metrics, "autogit_rules_reloads_total", "status", "success"))
	files := gittest.Run(t, root, "show", "--name-only", "--pretty=format:", "HEAD")
	assert.Contains(t, files, ".gitignore")
	assert.NotContains(t, files, "scratch.tmp")
}

func TestMalformedRulesKeepPreviousSet(t *testing.T) {
	root := gittest.NewRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))

	h := newHarness(t, root, defaultOptions(root))
	h.start(t)

	h.write(t, ".gitignore", "bad\x00rule\n")
	h.write(t, "still.log", "ignored")

	require.Eventually(t, func() bool {
		return eventCount(t, h.metrics, metrics.EventIgnored) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, 1, h.pipeline.matcher.Rules().Len())
}

func TestDirectoryEventsAreDropped(t *testing.T) {
	root := gittest.NewRepo(t)
	h := newHarness(t, root, defaultOptions(root))
	h.start(t)

	dir := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	h.source.events <- watch.Event{Path: dir, IsDir: true, Op: watch.Created}

	require.Eventually(t, func() bool {
		return eventCount(t, h.metrics, metrics.EventDirectory) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	commits, _ := h.results.counts()
	assert.Zero(t, commits)
}

func TestShutdownFlushesPendingCommit(t *testing.T) {
	root := gittest.NewRepo(t)
	before := gittest.CommitCount(t, root)

	opts := defaultOptions(root)
	opts.Debounce = time.Hour
	h := newHarness(t, root, opts)
	h.start(t)

	h.write(t, "late.txt", "x")
	require.Eventually(t, h.pipeline.Scheduler().Busy, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, h.stop(t))
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Equal(t, before+1, gittest.CommitCount(t, root))
	assert.Equal(t, "auto: changes in late.txt", gittest.CommitMessages(t, root)[0])
}

func TestEventQueuedBeforeStopIsCommitted(t *testing.T) {
	for i := 0; i < 20; i++ {
		t.Run(fmt.Sprintf("run-%d", i), func(t *testing.T) {
			t.Parallel()

			root := gittest.NewRepo(t)
			before := gittest.CommitCount(t, root)

			opts := defaultOptions(root)
			opts.CatchUp = false
			h := newHarness(t, root, opts)

			path := filepath.Join(root, "queued.txt")
			require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
			h.source.events <- watch.Event{Path: path, Op: watch.Modified}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			require.NoError(t, h.pipeline.Run(ctx))

			assert.Equal(t, before+1, gittest.CommitCount(t, root))
			assert.Equal(t, "auto: changes in queued.txt", gittest.CommitMessages(t, root)[0])
			assert.True(t, gittest.IsClean(t, root))
		})
	}
}

func TestSourceFailureIsFatal(t *testing.T) {
	root := gittest.NewRepo(t)
	h := newHarness(t, root, defaultOptions(root))
	h.start(t)

	h.source.fail <- errors.Wrap(errors.ErrWatchSourceLost, "root removed")

	select {
	case err := <-h.done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrWatchSourceLost))
		h.done <- err
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop after source failure")
	}
}

func TestWithFilesystemWatcher(t *testing.T) {
	root := gittest.NewRepo(t)
	log := quietLogger()

	w, err := watch.New(root, 64, log)
	require.NoError(t, err)
	matcher, err := ignore.NewMatcher(root, filepath.Join(root, ".gitignore"), log)
	require.NoError(t, err)

	var rec results
	opts := defaultOptions(root)
	opts.Logger = log
	opts.OnCommit = rec.commit
	p := New(git.NewRepository(root, nil), w, matcher, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "today.md"), []byte("hello"), 0o644))

	require.Eventually(t, func() bool {
		commits, _ := rec.counts()
		return commits >= 1
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, gittest.CommitMessages(t, root)[0], "auto: changes in notes")
	assert.True(t, gittest.IsClean(t, root))
}
