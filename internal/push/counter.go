package push

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/git"
	"github.com/bashhack/autogit/internal/logger"
	"github.com/bashhack/autogit/internal/scheduler"
)

// Trigger names what started a push.
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerSchedule  Trigger = "schedule"
)

// Pusher runs a push command and reports the current branch.
type Pusher interface {
	Push(ctx context.Context, argv []string) (git.Output, error)
	CurrentBranch(ctx context.Context) (string, error)
}

// Result describes one push.
type Result struct {
	Trigger  Trigger
	Commits  int
	Argv     []string
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// Options configures a Counter.
type Options struct {
	// Threshold is the number of successful commits between pushes; 0 disables
	// count-triggered pushes.
	Threshold int

	// Command is the push command template. {branch} and {root} are replaced
	// after the template is split into arguments.
	Command string

	// Root is substituted for {root}.
	Root string

	// OnPush receives every Result once the push has finished.
	OnPush func(Result)

	Logger logger.Logger
}

// Counter counts successful commits down to a push.
//
// The countdown starts at Threshold, never goes below one between calls and
// is reset to Threshold at the moment a push starts. Pushes run in their own
// goroutine so the commit path never waits for the network, and they are
// serialized among themselves. A failed push is logged and not retried.
type Counter struct {
	pusher    Pusher
	threshold int
	template  []string
	root      string
	onPush    func(Result)
	logger    logger.Logger

	mu        sync.Mutex
	remaining int
	pending   int

	pushMu sync.Mutex
	wg     sync.WaitGroup

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New creates a Counter that pushes through pusher.
func New(pusher Pusher, opts Options) *Counter {
	return &Counter{
		pusher:    pusher,
		threshold: opts.Threshold,
		template:  strings.Fields(opts.Command),
		root:      opts.Root,
		onPush:    opts.OnPush,
		logger:    opts.Logger,
		remaining: opts.Threshold,
	}
}

// Remaining returns how many more commits start the next push. It is zero
// when count-triggered pushes are disabled.
func (c *Counter) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Pending returns the number of commits made since the last push started.
func (c *Counter) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// RecordCommit counts a finished commit. Only committed outcomes count.
// It reports whether this commit started a push.
func (c *Counter) RecordCommit(ctx context.Context, res scheduler.Result) bool {
	if res.Outcome != scheduler.Committed {
		return false
	}

	c.mu.Lock()
	c.pending++
	if c.threshold <= 0 {
		c.mu.Unlock()
		return false
	}

	c.remaining--
	if c.remaining > 0 {
		c.logger.Info("%d commits left before push", c.remaining)
		c.mu.Unlock()
		return false
	}

	commits := c.pending
	c.remaining = c.threshold
	c.pending = 0
	c.mu.Unlock()

	c.start(ctx, TriggerThreshold, commits)
	return true
}

// StartSchedule pushes pending commits on a standard cron schedule until
// Stop is called. Ticks with nothing pending are skipped.
func (c *Counter) StartSchedule(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.NewConfigError("push_schedule", spec,
			errors.Wrap(errors.ErrInvalidConfiguration, err.Error()))
	}

	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() { c.scheduledPush(ctx) }); err != nil {
		return errors.NewConfigError("push_schedule", spec,
			errors.Wrap(errors.ErrInvalidConfiguration, err.Error()))
	}
	sched.Start()
	c.cron = sched

	if next := c.nextRunLocked(); next != nil {
		c.logger.Info("Push schedule %q active, next run at %s", spec, next.Format(time.RFC3339))
	}
	return nil
}

// NextScheduledPush returns the next cron run, or nil without a schedule.
func (c *Counter) NextScheduledPush() *time.Time {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	return c.nextRunLocked()
}

func (c *Counter) nextRunLocked() *time.Time {
	if c.cron == nil {
		return nil
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// Stop ends the push schedule, then waits for every push to finish.
func (c *Counter) Stop() {
	c.cronMu.Lock()
	if c.cron != nil {
		<-c.cron.Stop().Done()
		c.cron = nil
	}
	c.cronMu.Unlock()

	c.Wait()
}

// Wait blocks until all pushes started so far have finished.
func (c *Counter) Wait() {
	c.wg.Wait()
}

func (c *Counter) scheduledPush(ctx context.Context) {
	c.mu.Lock()
	commits := c.pending
	if commits == 0 {
		c.mu.Unlock()
		c.logger.Info("Scheduled push skipped, nothing new to push")
		return
	}
	c.pending = 0
	c.remaining = c.threshold
	c.mu.Unlock()

	c.start(ctx, TriggerSchedule, commits)
}

func (c *Counter) start(ctx context.Context, trigger Trigger, commits int) {
	// Pushes run to completion even after shutdown begins
	pushCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.push(pushCtx, trigger, commits)
	}()
}

func (c *Counter) push(ctx context.Context, trigger Trigger, commits int) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	start := time.Now()
	argv := c.expand(ctx)
	c.logger.Info("Pushing %d commits (%s): %s", commits, trigger, strings.Join(argv, " "))

	out, err := c.pusher.Push(ctx, argv)
	res := Result{
		Trigger:  trigger,
		Commits:  commits,
		Argv:     argv,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      err,
		Duration: time.Since(start),
	}

	if err != nil {
		c.logger.Error("Git push error: %v", err)
	} else {
		if text := strings.TrimSpace(out.Stdout + out.Stderr); text != "" {
			c.logger.Info("%s", text)
		}
		c.logger.Success("Git pushed %d commits", commits)
	}

	if c.onPush != nil {
		c.onPush(res)
	}
}

// expand substitutes {branch} and {root} in each argument of the template.
func (c *Counter) expand(ctx context.Context) []string {
	needsBranch := false
	for _, arg := range c.template {
		if strings.Contains(arg, "{branch}") {
			needsBranch = true
			break
		}
	}

	branch := "HEAD"
	if needsBranch {
		if b, err := c.pusher.CurrentBranch(ctx); err != nil {
			c.logger.Warning("Cannot determine current branch, pushing HEAD: %v", err)
		} else if b != "" {
			branch = b
		}
	}

	r := strings.NewReplacer("{branch}", branch, "{root}", c.root)
	argv := make([]string, len(c.template))
	for i, arg := range c.template {
		argv[i] = r.Replace(arg)
	}
	return argv
}
