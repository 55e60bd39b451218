package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// Fixed-window counter kept in the session store. The admin gets a wide
// window for moderation work; everyone else gets the default.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// AdminLimit is the per-window message budget for the configured admin.
	// Default: 100
	AdminLimit int

	// DefaultLimit is the per-window message budget for everyone else.
	// Default: 10
	DefaultLimit int
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		AdminLimit:   100,
		DefaultLimit: 10,
	}
}

// IsAdminFunc reports whether the Telegram ID belongs to the configured
// administrator.
type IsAdminFunc func(telegramID int64) bool

// RateLimit is the rate limiting stage. It is the only writer of the
// session counters besides cleanup.
type RateLimit struct {
	config   RateLimitConfig
	sessions *session.Store
	clock    clock.Clock
	isAdmin  IsAdminFunc
	logger   *logger.Logger
}

// NewRateLimit creates the rate limiting stage.
func NewRateLimit(config RateLimitConfig, sessions *session.Store, clk clock.Clock, isAdmin IsAdminFunc, log *logger.Logger) *RateLimit {
	if config.AdminLimit <= 0 {
		config.AdminLimit = 100
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	if log == nil {
		log = logger.Default()
	}
	return &RateLimit{
		config:   config,
		sessions: sessions,
		clock:    clk,
		isAdmin:  isAdmin,
		logger:   log,
	}
}

func (s *RateLimit) Name() string { return "rate_limit" }

func (s *RateLimit) Process(ctx context.Context, req *Request) (Result, error) {
	if req.Sender == nil {
		return Continue(), nil
	}

	limit := s.config.DefaultLimit
	if s.isAdmin(req.Sender.ID) {
		limit = s.config.AdminLimit
	}

	now := s.clock.Now()
	throttled := false

	s.sessions.WithSession(req.Sender.ID, func(sess *session.Session) {
		if now.After(sess.RateLimitResetAt) {
			sess.MessageCount = 0
			sess.RateLimitResetAt = now.Add(s.sessions.Window())
		}
		if sess.MessageCount >= limit {
			throttled = true
			return
		}
		sess.MessageCount++
		sess.LastActivity = now
	})

	if throttled {
		s.logger.Warn("sender throttled",
			logger.UserID(req.Sender.ID),
			logger.Int("limit", limit))
		return Stop(throttleNotice(s.sessions.Window())), nil
	}

	return Continue(), nil
}

func throttleNotice(window time.Duration) string {
	return fmt.Sprintf(
		"⏳ Слишком много сообщений!\n\n"+
			"Подожди %d секунд и попробуй снова.\n"+
			"<i>Это защита от спама.</i>",
		int(window.Seconds()),
	)
}
