package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/ignore"
	"github.com/bashhack/autogit/internal/logger"
	"github.com/bashhack/autogit/internal/metrics"
	"github.com/bashhack/autogit/internal/push"
	"github.com/bashhack/autogit/internal/scheduler"
	"github.com/bashhack/autogit/internal/watch"
)

// Source produces filesystem events until Run returns. The Events channel
// must be closed when Run returns.
type Source interface {
	Events() <-chan watch.Event
	Run(ctx context.Context) error
}

// Repository is the working tree the pipeline commits to and pushes from.
type Repository interface {
	scheduler.Committer
	push.Pusher
	HasUncommittedChanges(ctx context.Context) (bool, error)
}

// Options configures a Pipeline.
type Options struct {
	// Root is the watched working tree.
	Root string

	// CatchUp commits changes left in the tree before Run starts watching.
	CatchUp bool

	// CommitPrefix starts every commit message.
	CommitPrefix string

	// Debounce is the scheduler delay.
	Debounce time.Duration

	PushThreshold int
	PushCommand   string
	PushSchedule  string

	// OnCommit and OnPush observe results after the pipeline has handled them.
	OnCommit func(scheduler.Result)
	OnPush   func(push.Result)

	Metrics *metrics.Collector
	Logger  logger.Logger
}

// Pipeline turns filesystem events into commits and pushes.
type Pipeline struct {
	root     string
	catchUp  bool
	prefix   string
	schedule string

	repo      Repository
	source    Source
	matcher   *ignore.Matcher
	scheduler *scheduler.Scheduler
	counter   *push.Counter
	metrics   *metrics.Collector
	logger    logger.Logger

	onCommit func(scheduler.Result)

	seq atomic.Uint64
}

// New assembles a Pipeline. The scheduler and push counter are created here
// and wired to each other.
func New(repo Repository, source Source, matcher *ignore.Matcher, opts Options) *Pipeline {
	p := &Pipeline{
		root:     filepath.Clean(opts.Root),
		catchUp:  opts.CatchUp,
		prefix:   opts.CommitPrefix,
		schedule: opts.PushSchedule,
		repo:     repo,
		source:   source,
		matcher:  matcher,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		onCommit: opts.OnCommit,
	}

	onPush := opts.OnPush
	p.counter = push.New(repo, push.Options{
		Threshold: opts.PushThreshold,
		Command:   opts.PushCommand,
		Root:      p.root,
		Logger:    opts.Logger,
		OnPush: func(res push.Result) {
			p.metrics.RecordPush(res)
			if onPush != nil {
				onPush(res)
			}
		},
	})

	p.scheduler = scheduler.New(repo, scheduler.Options{
		Delay:    opts.Debounce,
		Message:  p.commitMessage,
		OnCommit: p.recordCommit,
		Logger:   opts.Logger,
	})

	p.metrics.SetPushCountdown(p.counter.Remaining())
	return p
}

// Counter returns the push counter driven by this pipeline.
func (p *Pipeline) Counter() *push.Counter {
	return p.counter
}

// Scheduler returns the commit scheduler driven by this pipeline.
func (p *Pipeline) Scheduler() *scheduler.Scheduler {
	return p.scheduler
}

// Run watches and commits until ctx is cancelled or the source fails. A
// source failure is returned; cancellation returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.catchUp {
		if err := p.catchUpCommit(ctx); err != nil {
			return err
		}
	}

	if err := p.counter.StartSchedule(ctx, p.schedule); err != nil {
		return err
	}
	defer p.counter.Stop()

	// The scheduler outlives the event loop so a request submitted just
	// before shutdown is still flushed.
	schedCtx, cancelSched := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSched()
	schedDone := make(chan error, 1)
	go func() {
		schedDone <- p.scheduler.Run(schedCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.source.Run(gctx)
	})
	g.Go(p.loop)
	err := g.Wait()

	cancelSched()
	if schedErr := <-schedDone; schedErr != nil && err == nil {
		err = schedErr
	}
	p.counter.Stop()

	if err != nil {
		return errors.Wrap(err, "pipeline stopped")
	}
	return nil
}

// catchUpCommit commits changes made while nothing was watching.
func (p *Pipeline) catchUpCommit(ctx context.Context) error {
	dirty, err := p.repo.HasUncommittedChanges(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check for uncommitted changes")
	}
	if !dirty {
		p.logger.Info("Working tree clean, no catch-up commit needed")
		return nil
	}

	req := scheduler.Request{Path: ".", Seq: p.seq.Add(1), At: time.Now()}
	msg := fmt.Sprintf("%s changes before starting watcher", p.prefix)
	start := time.Now()
	out, err := p.repo.CommitAll(ctx, msg)

	res := scheduler.Result{
		Request:  req,
		Absorbed: 1,
		Message:  msg,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      err,
		Duration: time.Since(start),
	}
	switch {
	case err == nil:
		res.Outcome = scheduler.Committed
		p.logger.Success("Committed changes made before starting watcher")
	case errors.Is(err, errors.ErrNothingToCommit):
		res.Outcome = scheduler.NothingToCommit
		p.logger.Info("Nothing to commit before starting watcher")
	default:
		res.Outcome = scheduler.Failed
		p.logger.Error("Catch-up commit failed: %v", err)
	}

	p.recordCommit(res)
	return nil
}

// loop drains the source until it closes its channel, so events queued
// before a stop are still submitted.
func (p *Pipeline) loop() error {
	for ev := range p.source.Events() {
		p.handle(ev)
	}
	return nil
}

func (p *Pipeline) handle(ev watch.Event) {
	path := ev.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.root, path)
	}
	path = filepath.Clean(path)

	if path == p.matcher.RulesPath() {
		p.metrics.RecordRulesReload(p.matcher.Reload())
	}

	if ev.IsDir {
		p.metrics.RecordEvent(metrics.EventDirectory)
		return
	}
	if p.matcher.IsIgnored(path) {
		p.metrics.RecordEvent(metrics.EventIgnored)
		return
	}

	rel, _ := p.matcher.Relative(path)
	req := scheduler.Request{
		Path: rel,
		Seq:  p.seq.Add(1),
		At:   time.Now(),
	}
	p.logger.Info("File %s has been %s", rel, ev.Op)

	if p.scheduler.Submit(req) {
		p.metrics.RecordEvent(metrics.EventCoalesced)
		return
	}
	p.metrics.RecordEvent(metrics.EventSubmitted)
}

func (p *Pipeline) commitMessage(req scheduler.Request) string {
	return fmt.Sprintf("%s changes in %s", p.prefix, req.Path)
}

// recordCommit runs for every finished commit, catch-up included.
func (p *Pipeline) recordCommit(res scheduler.Result) {
	p.metrics.RecordCommit(res)
	// Push goroutines must not die with the watch context.
	p.counter.RecordCommit(context.Background(), res)
	p.metrics.SetPushCountdown(p.counter.Remaining())

	if p.onCommit != nil {
		p.onCommit(res)
	}
}
