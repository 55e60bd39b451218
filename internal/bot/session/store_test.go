package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

func TestStore_LazyCreation(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	store := NewStore(DefaultConfig(), clk)

	sess := store.Get(101)
	assert.Equal(t, 0, sess.MessageCount)
	assert.Equal(t, start, sess.LastActivity)
	assert.Equal(t, start.Add(60*time.Second), sess.RateLimitResetAt)
	assert.Equal(t, 1, store.Len())
}

func TestStore_TouchUpdatesLastActivity(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	store := NewStore(DefaultConfig(), clk)

	store.Get(101)
	clk.Advance(10 * time.Minute)
	store.Touch(101)

	assert.Equal(t, start.Add(10*time.Minute), store.Get(101).LastActivity)
}

func TestStore_CleanupRemovesIdleSessions(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	store := NewStore(DefaultConfig(), clk)

	// Idle for 25h: expired. Idle for 23h: retained.
	store.Get(1)
	clk.Advance(2 * time.Hour)
	store.Get(2)

	now := start.Add(25*time.Hour + time.Minute)
	removed := store.Cleanup(now)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestStore_WithSessionMutatesAtomically(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewStore(DefaultConfig(), clk)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.WithSession(101, func(sess *Session) {
				sess.MessageCount++
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.Get(101).MessageCount)
}

func TestStore_FlowState(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewStore(DefaultConfig(), clk)

	store.WithSession(101, func(sess *Session) {
		sess.CurrentFlow = "sell"
		sess.FlowData = map[string]string{"title": "iPhone 13"}
	})

	sess := store.Get(101)
	assert.Equal(t, "sell", sess.CurrentFlow)
	assert.Equal(t, "iPhone 13", sess.FlowData["title"])
}
