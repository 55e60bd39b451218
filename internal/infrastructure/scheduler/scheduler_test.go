package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalScheduler_RunsAndStops(t *testing.T) {
	s := NewIntervalScheduler(nil)

	var runs atomic.Int32
	s.Schedule("probe", 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestIntervalScheduler_CancelSingleTask(t *testing.T) {
	s := NewIntervalScheduler(nil)
	defer s.Stop()

	var a, b atomic.Int32
	ha := s.Schedule("a", 10*time.Millisecond, func(ctx context.Context) { a.Add(1) })
	s.Schedule("b", 10*time.Millisecond, func(ctx context.Context) { b.Add(1) })

	s.Cancel(ha)
	cancelled := a.Load()

	assert.Eventually(t, func() bool {
		return b.Load() >= cancelled+2
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, a.Load(), cancelled+1)
}

func TestManualScheduler_TickRunsSynchronously(t *testing.T) {
	s := NewManualScheduler()

	runs := 0
	s.Schedule("cleanup", 5*time.Minute, func(ctx context.Context) { runs++ })

	s.Tick("cleanup")
	s.Tick("cleanup")
	assert.Equal(t, 2, runs)
	assert.Equal(t, 5*time.Minute, s.Interval("cleanup"))

	s.Tick("unknown")
	assert.Equal(t, 2, runs)
}

func TestManualScheduler_CancelPreventsTick(t *testing.T) {
	s := NewManualScheduler()

	runs := 0
	h := s.Schedule("cleanup", time.Minute, func(ctx context.Context) { runs++ })
	s.Cancel(h)

	s.Tick("cleanup")
	assert.Equal(t, 0, runs)
}
