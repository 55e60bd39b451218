// Package scheduler implements fixed-interval background task scheduling for
// the Bazar bot: the connection health probe and session cleanup run here,
// independent of request volume. The Scheduler interface lets tests drive
// tasks with manual ticks instead of waiting on wall-clock timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// Task is a unit of periodic background work.
type Task func(ctx context.Context)

// Handle identifies a scheduled task for cancellation.
type Handle int

// Scheduler runs tasks on fixed intervals.
type Scheduler interface {
	// Schedule registers a named task to run every interval.
	Schedule(name string, interval time.Duration, task Task) Handle

	// Cancel stops a single scheduled task.
	Cancel(h Handle)

	// Stop cancels every task and waits for in-flight runs to finish.
	// No timers are leaked after Stop returns.
	Stop()
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULER
// Production implementation backed by time.Ticker.
// ══════════════════════════════════════════════════════════════════════════════

// IntervalScheduler runs each task on its own ticker goroutine.
type IntervalScheduler struct {
	mu      sync.Mutex
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	next    Handle
	cancels map[Handle]context.CancelFunc
	stopped bool
}

// NewIntervalScheduler creates a running scheduler.
func NewIntervalScheduler(log *logger.Logger) *IntervalScheduler {
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &IntervalScheduler{
		logger:  log.With(logger.Component("scheduler")),
		ctx:     ctx,
		cancel:  cancel,
		cancels: make(map[Handle]context.CancelFunc),
	}
}

// Schedule registers a task to run every interval until cancelled.
// The first run happens one interval after registration.
func (s *IntervalScheduler) Schedule(name string, interval time.Duration, task Task) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next

	if s.stopped {
		return h
	}

	taskCtx, taskCancel := context.WithCancel(s.ctx)
	s.cancels[h] = taskCancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("task scheduled",
			logger.String("task", name),
			logger.Duration("interval", interval))

		for {
			select {
			case <-taskCtx.Done():
				s.logger.Info("task stopped", logger.String("task", name))
				return
			case <-ticker.C:
				task(taskCtx)
			}
		}
	}()

	return h
}

// Cancel stops a single task.
func (s *IntervalScheduler) Cancel(h Handle) {
	s.mu.Lock()
	cancel, ok := s.cancels[h]
	delete(s.cancels, h)
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

// Stop cancels all tasks and waits for their goroutines to exit.
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL SCHEDULER
// Test implementation: tasks run only when explicitly ticked.
// ══════════════════════════════════════════════════════════════════════════════

// ManualScheduler runs tasks on demand via Tick.
type ManualScheduler struct {
	mu    sync.Mutex
	next  Handle
	tasks map[Handle]manualTask
}

type manualTask struct {
	name     string
	interval time.Duration
	task     Task
}

// NewManualScheduler creates a manual scheduler for tests.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[Handle]manualTask)}
}

// Schedule registers the task without starting any timer.
func (s *ManualScheduler) Schedule(name string, interval time.Duration, task Task) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.tasks[s.next] = manualTask{name: name, interval: interval, task: task}
	return s.next
}

// Cancel removes a task.
func (s *ManualScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, h)
}

// Stop removes every task.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[Handle]manualTask)
}

// Tick runs every registered task with the given name once, synchronously.
func (s *ManualScheduler) Tick(name string) {
	s.mu.Lock()
	var toRun []Task
	for _, mt := range s.tasks {
		if mt.name == name {
			toRun = append(toRun, mt.task)
		}
	}
	s.mu.Unlock()

	for _, task := range toRun {
		task(context.Background())
	}
}

// Interval returns the registered interval for a named task (0 if absent).
func (s *ManualScheduler) Interval(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mt := range s.tasks {
		if mt.name == name {
			return mt.interval
		}
	}
	return 0
}
