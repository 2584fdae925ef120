// File: internal/scheduler/scheduler.go
// Description: Generic multi-task periodic scheduler. Scenarios register
// tasks with independent intervals; one session drives them all from a
// priority queue keyed on due time. No scenario-specific scheduling code
// lives here.

package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// Task is one periodic unit of work inside a session. The callback typically
// composes locator and executor calls.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// State models the session lifecycle:
// Idle -> Running -> {Completed, Cancelled, Failed}.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// taskEntry is a scheduled task plus its due time, owned by the queue.
type taskEntry struct {
	task    Task
	nextDue time.Time
	fired   int
}

// taskQueue is a min-heap ordered by due time.
type taskQueue []*taskEntry

func (q taskQueue) Len() int            { return len(q) }
func (q taskQueue) Less(i, j int) bool  { return q[i].nextDue.Before(q[j].nextDue) }
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)         { *q = append(*q, x.(*taskEntry)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// TaskStats reports how often a task fired during a session.
type TaskStats struct {
	Name     string
	Interval time.Duration
	Fired    int
}

// Session owns an ordered set of tasks and runs them until its duration
// elapses, it is cancelled, or a task fails fatally. A session is single-use.
type Session struct {
	id       uuid.UUID
	name     string
	tasks    []Task
	duration time.Duration // zero means unbounded
	logger   *zap.Logger

	cancelCh   chan struct{}
	cancelOnce sync.Once

	mu      sync.Mutex
	state   State
	err     error
	started time.Time
	stats   []TaskStats
}

// Option configures a session.
type Option func(*Session)

// WithDuration sets a hard duration after which the session completes.
func WithDuration(d time.Duration) Option {
	return func(s *Session) { s.duration = d }
}

// NewSession creates an idle session over the given tasks.
func NewSession(name string, tasks []Task, logger *zap.Logger, opts ...Option) (*Session, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("session %q has no tasks", name)
	}
	for _, task := range tasks {
		if task.Interval <= 0 {
			return nil, fmt.Errorf("task %q has a non-positive interval", task.Name)
		}
		if task.Run == nil {
			return nil, fmt.Errorf("task %q has no callback", task.Name)
		}
	}
	s := &Session{
		id:       uuid.New(),
		name:     name,
		tasks:    tasks,
		logger:   logger.Named("scheduler").With(zap.String("session", name)),
		cancelCh: make(chan struct{}),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Name returns the scenario name the session runs.
func (s *Session) Name() string { return s.name }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fatal error of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns per-task firing counts. Stable once the session has ended.
func (s *Session) Stats() []TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStats, len(s.stats))
	copy(out, s.stats)
	return out
}

// Started returns when Run began, zero before that.
func (s *Session) Started() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Cancel requests cooperative cancellation. The session leaves Running after
// the in-flight callback, if any, returns; callers can expect up to one task
// interval of latency.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// Run executes the session until completion, cancellation or fatal failure,
// and reports the terminal state through its return value: nil for Completed
// and Cancelled, the fatal error for Failed. Run may be called once.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session %q already ran (state %s)", s.name, state)
	}
	s.state = StateRunning
	s.started = time.Now()
	start := s.started
	s.mu.Unlock()

	s.logger.Info("Session started",
		zap.String("id", s.id.String()),
		zap.Int("tasks", len(s.tasks)),
		zap.Duration("duration", s.duration))

	var deadlineCh <-chan time.Time
	if s.duration > 0 {
		deadlineTimer := time.NewTimer(s.duration)
		defer deadlineTimer.Stop()
		deadlineCh = deadlineTimer.C
	}

	q := make(taskQueue, 0, len(s.tasks))
	entries := make([]*taskEntry, 0, len(s.tasks))
	for _, task := range s.tasks {
		e := &taskEntry{task: task, nextDue: start.Add(task.Interval)}
		entries = append(entries, e)
		q = append(q, e)
	}
	heap.Init(&q)

	finish := func(state State, err error) error {
		s.mu.Lock()
		s.state = state
		s.err = err
		s.stats = make([]TaskStats, 0, len(entries))
		for _, e := range entries {
			s.stats = append(s.stats, TaskStats{Name: e.task.Name, Interval: e.task.Interval, Fired: e.fired})
		}
		s.mu.Unlock()

		s.logger.Info("Session ended",
			zap.String("state", state.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if state == StateFailed {
			return err
		}
		return nil
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		e := heap.Pop(&q).(*taskEntry)

		// Sleep until the earliest-due task, waking early on cancellation,
		// context cancellation or the hard duration deadline.
		wait := time.Until(e.nextDue)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)

		select {
		case <-s.cancelCh:
			return finish(StateCancelled, nil)
		case <-ctx.Done():
			return finish(StateCancelled, nil)
		case <-deadlineCh:
			return finish(StateCompleted, nil)
		case <-timer.C:
		}

		if err := e.task.Run(ctx); err != nil {
			if schemas.IsRecoverable(err) {
				s.logger.Warn("Task error absorbed; task stays scheduled",
					zap.String("task", e.task.Name), zap.Error(err))
			} else {
				s.logger.Error("Task failed fatally; aborting session",
					zap.String("task", e.task.Name), zap.Error(err))
				e.fired++
				return finish(StateFailed, fmt.Errorf("task %q: %w", e.task.Name, err))
			}
		}
		e.fired++

		e.nextDue = e.nextDue.Add(e.task.Interval)
		heap.Push(&q, e)
	}
}
