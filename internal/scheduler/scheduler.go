// Package scheduler runs periodic tasks cooperatively on one goroutine.
//
// Run drives the scheduler on the calling goroutine, sleeping until the
// earliest task deadline between passes. Callers with their own loop can
// call RunPending directly. Tasks never run concurrently with each other.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Task is a periodic callable.
type Task struct {
	Name string
	// Run is called with the pass time.
	Run func(now time.Time)
	// Period is the minimum spacing between runs. Must be positive.
	Period time.Duration
	// Offset delays the first run relative to the first pass.
	Offset time.Duration
}

type entry struct {
	Task
	next time.Time
	runs atomic.Uint64
}

// Scheduler runs registered tasks in registration order.
type Scheduler struct {
	tasks   []*entry
	started bool
	log     *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source Run passes to RunPending.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimer sets how Run waits for the next deadline. after must return a
// channel that receives once d has passed.
func WithTimer(after func(d time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) { s.after = after }
}

// New creates an empty scheduler. log may be nil. The clock defaults to
// time.Now and the timer to time.After.
func New(log *slog.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{log: log, now: time.Now, after: time.After}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs a pass, sleeps until the earliest deadline, and repeats
// until ctx is done. The first pass happens immediately. It returns
// ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.tasks) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		now := s.now()
		s.RunPending(now)

		wait := s.NextDeadline().Sub(now)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(wait):
		}
	}
}

// Add registers a task. Tasks must be added before the first pass.
func (s *Scheduler) Add(t Task) error {
	if s.started {
		return errors.New("scheduler: already started")
	}
	if t.Run == nil {
		return fmt.Errorf("scheduler: task %q has no Run", t.Name)
	}
	if t.Period <= 0 {
		return fmt.Errorf("scheduler: task %q period %v must be positive", t.Name, t.Period)
	}
	if t.Offset < 0 {
		return fmt.Errorf("scheduler: task %q offset %v is negative", t.Name, t.Offset)
	}
	s.tasks = append(s.tasks, &entry{Task: t})
	return nil
}

// RunPending performs one pass at now: every task whose deadline has
// arrived runs once, in registration order. It returns the number of tasks
// run.
//
// A task's next deadline is its previous deadline plus its period. If the
// pass is so late that this is still not in the future, the deadline is
// moved to now plus the period rather than running the task back to back.
func (s *Scheduler) RunPending(now time.Time) int {
	if !s.started {
		s.started = true
		for _, e := range s.tasks {
			e.next = now.Add(e.Offset)
		}
		s.log.Debug("scheduler started", "tasks", len(s.tasks))
	}

	ran := 0
	for _, e := range s.tasks {
		if now.Before(e.next) {
			continue
		}
		e.Run(now)
		e.runs.Add(1)
		ran++

		e.next = e.next.Add(e.Period)
		if !e.next.After(now) {
			s.log.Debug("task behind schedule", "task", e.Name, "late", now.Sub(e.next))
			e.next = now.Add(e.Period)
		}
	}
	return ran
}

// NextDeadline returns the earliest pending deadline, or the zero time if
// no task is registered or the scheduler has not started.
func (s *Scheduler) NextDeadline() time.Time {
	var next time.Time
	if !s.started {
		return next
	}
	for _, e := range s.tasks {
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	return next
}

// Runs returns how many times the named task has run. Safe from any
// goroutine once all tasks are added.
func (s *Scheduler) Runs(name string) uint64 {
	for _, e := range s.tasks {
		if e.Name == name {
			return e.runs.Load()
		}
	}
	return 0
}

// Names returns the registered task names in order.
func (s *Scheduler) Names() []string {
	names := make([]string, len(s.tasks))
	for i, e := range s.tasks {
		names[i] = e.Name
	}
	return names
}
