// Package monitor tracks the health of the connection to the Telegram Bot
// API. A single process-wide ConnectionStatus is fed by both the periodic
// health probe and the retry executor, so health reporting reflects real
// traffic and not just probes.
package monitor

import (
	"sync"
	"time"

	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

// Status is the process-wide connection health state. All mutation goes
// through RecordOutcome/RecordRateLimit; reads go through Snapshot.
type Status struct {
	mu    sync.Mutex
	clock clock.Clock

	// threshold is the consecutive-error count at which the connection
	// is reported as down.
	threshold int

	connected         bool
	lastSuccessAt     time.Time
	consecutiveErrors int
	lastError         string
	rateLimitResetAt  time.Time
	retryAfter        time.Duration
}

// Snapshot is an immutable copy of the connection state.
type Snapshot struct {
	Connected         bool
	LastSuccessAt     time.Time
	ConsecutiveErrors int
	LastError         string
	RateLimitResetAt  time.Time
	RetryAfter        time.Duration
}

// NewStatus creates a Status that reports disconnected after threshold
// consecutive errors. The connection is assumed up until proven otherwise.
func NewStatus(threshold int, clk clock.Clock) *Status {
	if threshold <= 0 {
		threshold = 5
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Status{
		clock:     clk,
		threshold: threshold,
		connected: true,
	}
}

// RecordOutcome records a terminal call outcome. Any success resets the
// error streak and re-arms alerting; failures accumulate until the
// threshold flips the connected flag.
func (s *Status) RecordOutcome(success bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if success {
		s.connected = true
		s.consecutiveErrors = 0
		s.lastError = ""
		s.lastSuccessAt = s.clock.Now()
		return
	}

	s.consecutiveErrors++
	if err != nil {
		s.lastError = err.Error()
	}
	if s.consecutiveErrors >= s.threshold {
		s.connected = false
	}
}

// RecordRateLimit records an upstream-imposed backoff window.
func (s *Status) RecordRateLimit(retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryAfter = retryAfter
	s.rateLimitResetAt = s.clock.Now().Add(retryAfter)
}

// Snapshot returns a copy of the current state.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Connected:         s.connected,
		LastSuccessAt:     s.lastSuccessAt,
		ConsecutiveErrors: s.consecutiveErrors,
		LastError:         s.lastError,
		RateLimitResetAt:  s.rateLimitResetAt,
		RetryAfter:        s.retryAfter,
	}
}
