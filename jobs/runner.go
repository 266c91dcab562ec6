// Package jobs runs the scrape and import pipelines in the background, at
// most one run per kind at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Kind names a job.
type Kind string

const (
	KindScrape Kind = "scrape"
	KindImport Kind = "import"
)

// Outcome is the synchronous answer to a trigger.
type Outcome int

const (
	Started Outcome = iota
	Busy
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Busy:
		return "busy"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	// ErrPrecondition wraps the reason a trigger was rejected before starting.
	ErrPrecondition = errors.New("jobs: precondition failed")
	// ErrUnknownKind is returned for a kind that was never registered.
	ErrUnknownKind = errors.New("jobs: unknown job kind")
)

// Body is the work of one run. The summary is kept as the last run's result.
type Body func(ctx context.Context) (map[string]int, error)

// Precondition is checked on every trigger before the lock is tried.
type Precondition func() error

// Run describes a finished run.
type Run struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Summary    map[string]int `json:"summary,omitempty"`
}

// Status is a point-in-time view of a slot. Locked can be true while Running
// is false only briefly around acquire and release.
type Status struct {
	Running bool `json:"running"`
	Locked  bool `json:"locked"`
	LastRun *Run `json:"last_run"`
}

// Slot guards one job kind.
type Slot struct {
	kind   Kind
	body   Body
	pre    Precondition
	runner *Runner

	mu      sync.Mutex
	locked  atomic.Bool
	running atomic.Bool
	last    atomic.Pointer[Run]
}

// Trigger starts the body in the background and returns Started, or returns
// Busy without doing anything if a run is in progress. A failed precondition
// returns Rejected and an error wrapping ErrPrecondition.
func (s *Slot) Trigger() (Outcome, error) {
	if s.pre != nil {
		if err := s.pre(); err != nil {
			s.runner.metrics.trigger(s.kind, Rejected)
			return Rejected, fmt.Errorf("%w: %v", ErrPrecondition, err)
		}
	}

	if !s.mu.TryLock() {
		s.runner.metrics.trigger(s.kind, Busy)
		s.runner.logger.Info("job busy", slog.String("job", string(s.kind)))
		return Busy, nil
	}
	s.locked.Store(true)
	s.running.Store(true)

	s.runner.metrics.trigger(s.kind, Started)
	s.runner.metrics.started(s.kind)
	s.runner.wg.Add(1)
	go s.execute()
	return Started, nil
}

// Status reports the slot state.
func (s *Slot) Status() Status {
	return Status{
		Running: s.running.Load(),
		Locked:  s.locked.Load(),
		LastRun: s.last.Load(),
	}
}

func (s *Slot) execute() {
	logger := s.runner.logger.With(slog.String("job", string(s.kind)))
	run := &Run{StartedAt: time.Now()}
	var (
		summary map[string]int
		err     error
	)

	defer s.runner.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}

		run.FinishedAt = time.Now()
		run.Summary = summary
		run.Status = StatusSucceeded
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
			logger.Error("job failed", slog.Any("error", err), slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
		} else {
			logger.Info("job finished", slog.Any("summary", summary), slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
		}
		s.last.Store(run)
		s.runner.metrics.finished(s.kind, run.Status, run.FinishedAt.Sub(run.StartedAt))

		s.running.Store(false)
		s.locked.Store(false)
		s.mu.Unlock()
	}()

	logger.Info("job started")
	summary, err = s.body(s.runner.ctx)
}

// Runner owns one Slot per job kind. Job bodies run on the runner's context,
// not on the context of the caller that triggered them.
type Runner struct {
	ctx     context.Context
	metrics *Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu    sync.RWMutex
	slots map[Kind]*Slot
}

// NewRunner returns a runner whose job bodies run on ctx.
func NewRunner(ctx context.Context, metrics *Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ctx:     ctx,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "jobs")),
		slots:   make(map[Kind]*Slot),
	}
}

// Register installs the body for kind, replacing any earlier registration.
func (r *Runner) Register(kind Kind, body Body, pre Precondition) *Slot {
	slot := &Slot{kind: kind, body: body, pre: pre, runner: r}
	r.mu.Lock()
	r.slots[kind] = slot
	r.mu.Unlock()
	return slot
}

// Slot returns the slot registered for kind.
func (r *Runner) Slot(kind Kind) (*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slot, ok := r.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return slot, nil
}

func (r *Runner) Trigger(kind Kind) (Outcome, error) {
	slot, err := r.Slot(kind)
	if err != nil {
		return Rejected, err
	}
	return slot.Trigger()
}

func (r *Runner) Status(kind Kind) (Status, error) {
	slot, err := r.Slot(kind)
	if err != nil {
		return Status{}, err
	}
	return slot.Status(), nil
}

// Wait blocks until every started run has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
