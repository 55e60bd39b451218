// Package session keeps short-lived, in-memory per-user state for the bot:
// rate-limit windows and multi-step conversational flows (e.g. the /sell
// wizard). Sessions only gate short-term behaviour, never authorization, so
// losing them on restart is acceptable.
package session

import (
	"sync"
	"time"

	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is the per-user in-memory state, keyed by Telegram user ID.
// It is mutated only under the store lock (see Store.WithSession) so
// concurrent webhook deliveries for the same user stay serialized.
type Session struct {
	// LastActivity is the time of the last observed activity.
	LastActivity time.Time

	// MessageCount is the number of messages in the current rate window.
	MessageCount int

	// RateLimitResetAt is when the current rate window ends.
	RateLimitResetAt time.Time

	// CurrentFlow marks an in-flight conversational flow ("" when idle).
	CurrentFlow string

	// FlowData holds intermediate flow input (e.g. the listing draft).
	FlowData map[string]string
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Config holds session store configuration.
type Config struct {
	// Window is the rate-limit window length.
	// Default: 60s
	Window time.Duration

	// IdleTimeout is how long a session survives without activity.
	// Default: 24h
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Window:      60 * time.Second,
		IdleTimeout: 24 * time.Hour,
	}
}

// Store is a thread-safe in-memory session store.
type Store struct {
	mu       sync.Mutex
	config   Config
	clock    clock.Clock
	sessions map[int64]*Session
}

// NewStore creates a session store with an injected clock.
func NewStore(config Config, clk clock.Clock) *Store {
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Store{
		config:   config,
		clock:    clk,
		sessions: make(map[int64]*Session),
	}
}

// Get returns the user's session, creating it lazily on first activity.
// The returned value is a snapshot; use WithSession to mutate.
func (s *Store) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.locked(userID)
}

// WithSession runs fn with the user's session under the store lock,
// creating the session if needed. All mutation goes through here so
// read-modify-write sequences are atomic per user.
func (s *Store) WithSession(userID int64, fn func(sess *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.locked(userID))
}

// Touch updates the session's last-activity timestamp.
func (s *Store) Touch(userID int64) {
	now := s.clock.Now()
	s.WithSession(userID, func(sess *Session) {
		sess.LastActivity = now
	})
}

// Cleanup removes every session idle longer than the idle timeout.
// Returns the number of removed sessions. Scheduled on a fixed interval,
// independent of request handling.
func (s *Store) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.config.IdleTimeout {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Window returns the configured rate-limit window.
func (s *Store) Window() time.Duration {
	return s.config.Window
}

// locked returns the live session for userID; callers must hold s.mu.
func (s *Store) locked(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		now := s.clock.Now()
		sess = &Session{
			LastActivity:     now,
			MessageCount:     0,
			RateLimitResetAt: now.Add(s.config.Window),
		}
		s.sessions[userID] = sess
	}
	return sess
}
