// Package retry provides classification-aware retry with exponential backoff
// for outbound Telegram API calls. Every outbound call the bot makes goes
// through an Executor so retry behaviour is uniform and testable in one place.
// No external dependencies - uses only standard library.
package retry

import (
	"context"
	"time"

	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// A Classifier maps a raised error to a retry policy. Centralizing the retry
// decision here keeps error-type checks out of individual handlers.
// ══════════════════════════════════════════════════════════════════════════════

// Kind is the retry policy assigned to a failed call.
type Kind int

const (
	// KindRetryable means the call failed transiently and should be retried
	// with exponential backoff (timeouts, 5xx, connection resets).
	KindRetryable Kind = iota

	// KindRateLimited means the upstream asked us to back off for an exact
	// duration (HTTP 429 with retry_after).
	KindRateLimited

	// KindFatal means the call must not be retried (4xx other than 429).
	KindFatal
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying a failed call.
type Classification struct {
	Kind Kind

	// RetryAfter is the exact wait demanded by the upstream.
	// Only meaningful for KindRateLimited.
	RetryAfter time.Duration
}

// Retryable classifies an error as transient.
func Retryable() Classification {
	return Classification{Kind: KindRetryable}
}

// RateLimited classifies an error as a rate limit with an exact wait.
func RateLimited(retryAfter time.Duration) Classification {
	return Classification{Kind: KindRateLimited, RetryAfter: retryAfter}
}

// Fatal classifies an error as non-retryable.
func Fatal() Classification {
	return Classification{Kind: KindFatal}
}

// Classifier maps an error to its retry policy.
type Classifier func(error) Classification

// ══════════════════════════════════════════════════════════════════════════════
// STATUS RECORDING
// The executor reports every call outcome so connection health reflects real
// traffic, not just periodic probes.
// ══════════════════════════════════════════════════════════════════════════════

// StatusRecorder receives call outcomes from the executor.
type StatusRecorder interface {
	// RecordOutcome records a terminal call outcome (success or failure).
	RecordOutcome(success bool, err error)

	// RecordRateLimit records an upstream-imposed backoff window.
	RecordRateLimit(retryAfter time.Duration)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int

	// BaseDelay is the backoff delay after the first failed attempt.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	// Default: 30s
	MaxDelay time.Duration

	// OnRetry is called before each retry attempt. Useful for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Option is a functional option for configuring the executor.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBaseDelay sets the backoff delay after the first failed attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.BaseDelay = d
		}
	}
}

// WithMaxDelay sets the backoff delay cap.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithOnRetry sets a callback invoked before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTOR
// ══════════════════════════════════════════════════════════════════════════════

// Executor runs outbound calls with classification-aware retries.
type Executor struct {
	config Config
	clock  clock.Clock
	status StatusRecorder
}

// New creates an Executor. The clock is injected so backoff delays are
// assertable in tests; status may be nil when no health tracking is wanted.
func New(clk clock.Clock, status StatusRecorder, opts ...Option) *Executor {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Executor{config: config, clock: clk, status: status}
}

// Do executes the operation, retrying according to the classification of
// each failure. An iterative loop with an explicit attempt counter keeps the
// recursion depth bounded and the attempt count directly assertable.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error, classify Classifier) error {
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			e.recordOutcome(true, nil)
			return nil
		}
		lastErr = err

		c := Retryable()
		if classify != nil {
			c = classify(err)
		}

		if c.Kind == KindFatal {
			e.recordOutcome(false, err)
			return err
		}

		// Last attempt: no more sleeping, report exhaustion below.
		if attempt == e.config.MaxAttempts {
			break
		}

		var delay time.Duration
		switch c.Kind {
		case KindRateLimited:
			// The upstream dictated the exact wait; the exponential
			// schedule does not apply.
			delay = c.RetryAfter
			e.recordRateLimit(c.RetryAfter)
		default:
			delay = e.backoffDelay(attempt)
		}

		if e.config.OnRetry != nil {
			e.config.OnRetry(attempt, err, delay)
		}

		if err := e.clock.Sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	e.recordOutcome(false, lastErr)
	return lastErr
}

// backoffDelay returns min(base * 2^(attempt-1), maxDelay) for the given
// failed attempt number.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := e.config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.config.MaxDelay {
			return e.config.MaxDelay
		}
	}
	if delay > e.config.MaxDelay {
		return e.config.MaxDelay
	}
	return delay
}

func (e *Executor) recordOutcome(success bool, err error) {
	if e.status != nil {
		e.status.RecordOutcome(success, err)
	}
}

func (e *Executor) recordRateLimit(retryAfter time.Duration) {
	if e.status != nil {
		e.status.RecordRateLimit(retryAfter)
	}
}

// DoWithData is a helper for operations that return data.
func DoWithData[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error), classify Classifier) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, classify)
	return result, err
}
