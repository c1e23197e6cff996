package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of the scheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the scheduler.
type Status struct {
	State     State
	LastRun   time.Time
	LastError error
	Runs      int
	NextRun   time.Time
}

// Result is published after every run.
type Result struct {
	Started  time.Time
	Finished time.Time
	Manual   bool
	Err      error
}

// RunFunc performs one scheduled job.
type RunFunc func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	// Interval between runs; defaults to 24h.
	Interval time.Duration

	// RunOnStart runs the job as soon as Start is called.
	RunOnStart bool

	// RunTimeout bounds a single run; zero means no limit.
	RunTimeout time.Duration
}

const defaultInterval = 24 * time.Hour

// ErrAlreadyRunning is returned by Start when the scheduler is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Scheduler runs a job periodically and on demand. Runs never overlap:
// they happen one at a time on the scheduler's own goroutine, and manual
// triggers that arrive during a run collapse into one follow-up run.
type Scheduler struct {
	run      RunFunc
	opts     Options
	logger   *slog.Logger
	status   Status
	resultCh chan Result
	trigger  chan struct{}
	stopCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// New creates a Scheduler for run.
func New(run RunFunc, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		run:      run,
		opts:     opts,
		logger:   logger,
		resultCh: make(chan Result, 16),
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start runs the scheduling loop until ctx is cancelled or Stop is called.
// It blocks; run it on its own goroutine when the caller needs to continue.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.status.NextRun = time.Now().Add(s.opts.Interval)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.opts.Interval),
		slog.Bool("run_on_start", s.opts.RunOnStart))

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	if s.opts.RunOnStart {
		s.execute(ctx, false)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		case <-s.stopCh:
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.execute(ctx, false)
		case <-s.trigger:
			s.execute(ctx, true)
		}
	}
}

// Stop halts the scheduling loop after any in-flight run finishes. A
// stopped Scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Trigger requests an immediate run. It reports false when a request is
// already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Results delivers one Result per finished run. Results are dropped when
// nobody reads them.
func (s *Scheduler) Results() <-chan Result {
	return s.resultCh
}

// execute performs a single run, updates the status, and publishes the
// result.
func (s *Scheduler) execute(parent context.Context, manual bool) {
	if parent.Err() != nil {
		return
	}

	s.setState(StateRunning, nil, false)

	ctx := parent
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.opts.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	s.logger.Info("scheduled run starting", slog.Bool("manual", manual))

	err := s.run(ctx)

	finished := time.Now()
	if err != nil {
		s.logger.Error("scheduled run failed",
			slog.Duration("took", finished.Sub(started)),
			slog.String("error", err.Error()))
		s.setState(StateError, err, true)
	} else {
		s.logger.Info("scheduled run finished", slog.Duration("took", finished.Sub(started)))
		s.setState(StateIdle, nil, true)
	}

	s.sendResult(Result{Started: started, Finished: finished, Manual: manual, Err: err})
}

// setState updates the scheduler status.
func (s *Scheduler) setState(state State, err error, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	if finished {
		s.status.LastError = err
		s.status.LastRun = time.Now()
		s.status.Runs++
		s.status.NextRun = s.status.LastRun.Add(s.opts.Interval)
	}
}

// sendResult publishes a Result without blocking.
func (s *Scheduler) sendResult(r Result) {
	select {
	case s.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the scheduler
	}
}
