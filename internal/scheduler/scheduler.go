package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/git"
	"github.com/bashhack/autogit/internal/logger"
)

// Outcome classifies a finished commit attempt.
type Outcome int

const (
	Committed Outcome = iota + 1
	NothingToCommit
	Failed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case NothingToCommit:
		return "nothing_to_commit"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request asks for the working tree to be committed because Path changed.
// Seq is a logical timestamp that strictly increases per pipeline.
type Request struct {
	Path string
	Seq  uint64
	At   time.Time
}

// Result describes one commit attempt.
type Result struct {
	// Request is the request that started the cycle; its path names the commit.
	Request Request

	// Absorbed counts every request folded into this commit, the trigger included.
	Absorbed int

	Message  string
	Outcome  Outcome
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// Committer stages and commits the whole working tree.
type Committer interface {
	CommitAll(ctx context.Context, msg string) (git.Output, error)
}

// Options configures a Scheduler.
type Options struct {
	// Delay is the debounce window measured from the first request of a burst.
	Delay time.Duration

	// Message builds the commit message for the triggering request.
	Message func(Request) string

	// OnCommit receives every Result after the scheduler is idle again.
	OnCommit func(Result)

	Logger logger.Logger
}

// Scheduler debounces commit requests and runs at most one commit at a time.
//
// Requests land in a single "next" slot. When the slot is taken a new request
// is coalesced into it. Run takes the slot, waits Delay, absorbs whatever
// arrived in the meantime and commits. Requests arriving while the commit
// command runs fill the slot again and start exactly one follow-up cycle.
type Scheduler struct {
	committer Committer
	delay     time.Duration
	message   func(Request) string
	onCommit  func(Result)
	logger    logger.Logger

	// wake holds one token whenever the slot may have been filled
	wake chan struct{}

	mu   sync.Mutex
	busy bool
	next *Request
	// pending counts the requests folded into next, next included
	pending int
}

// New creates a Scheduler that commits through committer.
func New(committer Committer, opts Options) *Scheduler {
	msg := opts.Message
	if msg == nil {
		msg = func(r Request) string {
			return fmt.Sprintf("auto: changes in %s", r.Path)
		}
	}

	return &Scheduler{
		committer: committer,
		delay:     opts.Delay,
		message:   msg,
		onCommit:  opts.OnCommit,
		logger:    opts.Logger,
		wake:      make(chan struct{}, 1),
	}
}

// Submit schedules a commit without blocking. It reports true when the
// request was coalesced into one that is already waiting.
func (s *Scheduler) Submit(req Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy = true
	s.pending++
	if s.next != nil {
		return true
	}

	s.next = &req
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return false
}

// Busy reports whether a commit cycle is scheduled or running.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Run processes requests until ctx is cancelled. On cancellation a request
// that is waiting or still inside its debounce window is committed
// immediately; a commit already running is never interrupted.
func (s *Scheduler) Run(ctx context.Context) error {
	// Commits outlive ctx so git is never killed halfway through
	commitCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			s.flush(commitCtx)
			return nil
		}

		select {
		case <-ctx.Done():
			s.flush(commitCtx)
			return nil
		case <-s.wake:
		}

		req, absorbed, ok := s.takeSlot()
		if !ok {
			// Stale token; the slot was emptied by an earlier absorb
			continue
		}

		if s.delay > 0 {
			timer := time.NewTimer(s.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}

		if _, n, ok := s.takeSlot(); ok {
			absorbed += n
		}

		s.commit(commitCtx, req, absorbed)
	}
}

// flush commits a waiting request without debouncing.
func (s *Scheduler) flush(ctx context.Context) {
	req, absorbed, ok := s.takeSlot()
	if !ok {
		return
	}
	s.logger.Info("Flushing pending commit for %s before shutdown", req.Path)
	s.commit(ctx, req, absorbed)
}

// takeSlot empties the slot, returning the waiting request and the number
// of requests folded into it.
func (s *Scheduler) takeSlot() (Request, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next == nil {
		return Request{}, 0, false
	}
	req, n := *s.next, s.pending
	s.next = nil
	s.pending = 0
	return req, n, true
}

// waiting reports whether a request sits in the slot.
func (s *Scheduler) waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next != nil
}

func (s *Scheduler) commit(ctx context.Context, req Request, absorbed int) {
	start := time.Now()
	msg := s.message(req)

	out, err := s.committer.CommitAll(ctx, msg)
	res := Result{
		Request:  req,
		Absorbed: absorbed,
		Message:  msg,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		res.Outcome = Committed
		s.logger.Success("Committed: %s", msg)
	case errors.Is(err, errors.ErrNothingToCommit):
		res.Outcome = NothingToCommit
		s.logger.Info("Nothing to commit for %s", req.Path)
	default:
		res.Outcome = Failed
		res.Err = err
		s.logger.Error("Commit failed for %s: %v", req.Path, err)
	}

	if stdout := strings.TrimSpace(out.Stdout); stdout != "" {
		s.logger.Info("%s", stdout)
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" && res.Outcome != Failed {
		s.logger.Warning("git: %s", stderr)
	}

	s.markIdle()

	if s.onCommit != nil {
		s.onCommit(res)
	}
}

// markIdle clears the busy flag unless a follow-up request is already waiting.
func (s *Scheduler) markIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next == nil {
		s.busy = false
	}
}
