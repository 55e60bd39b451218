package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

// statusSpy records executor outcomes for assertions.
type statusSpy struct {
	mu         sync.Mutex
	successes  int
	failures   int
	lastErr    error
	rateLimits []time.Duration
}

func (s *statusSpy) RecordOutcome(success bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.successes++
	} else {
		s.failures++
		s.lastErr = err
	}
}

func (s *statusSpy) RecordRateLimit(retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimits = append(s.rateLimits, retryAfter)
}

func classifyAs(c Classification) Classifier {
	return func(error) Classification { return c }
}

func TestExecutor_RetryableExhaustsAttempts(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	status := &statusSpy{}
	exec := New(clk, status)

	callErr := errors.New("telegram: 502 bad gateway")
	calls := 0

	err := exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return callErr
	}, classifyAs(Retryable()))

	require.ErrorIs(t, err, callErr)
	assert.Equal(t, 3, calls, "should make exactly MaxAttempts calls")

	// Backoff schedule: 1s after attempt 1, 2s after attempt 2, no sleep
	// after the final attempt.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clk.Sleeps())
	assert.Equal(t, 1, status.failures)
	assert.Equal(t, 0, status.successes)
}

func TestExecutor_BackoffIsCappedAtMaxDelay(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	exec := New(clk, nil,
		WithMaxAttempts(7),
		WithBaseDelay(1*time.Second),
		WithMaxDelay(8*time.Second),
	)

	err := exec.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("still down")
	}, classifyAs(Retryable()))

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}, clk.Sleeps())
}

func TestExecutor_RateLimitedSleepsExactRetryAfter(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	status := &statusSpy{}
	exec := New(clk, status)

	retryAfter := 17 * time.Second
	calls := 0

	err := exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("telegram: 429 too many requests")
		}
		return nil
	}, classifyAs(RateLimited(retryAfter)))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	// Exact retry_after, not the exponential schedule.
	assert.Equal(t, []time.Duration{retryAfter}, clk.Sleeps())
	assert.Equal(t, []time.Duration{retryAfter}, status.rateLimits)
	assert.Equal(t, 1, status.successes)
}

func TestExecutor_FatalMakesSingleCallWithoutSleeping(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	status := &statusSpy{}
	exec := New(clk, status)

	callErr := errors.New("telegram: 400 bad request: chat not found")
	calls := 0

	err := exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return callErr
	}, classifyAs(Fatal()))

	require.ErrorIs(t, err, callErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps(), "fatal errors must not sleep")
	assert.Equal(t, 1, status.failures)
	assert.Equal(t, callErr, status.lastErr)
}

func TestExecutor_SuccessOnFirstAttempt(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	status := &statusSpy{}
	exec := New(clk, status)

	err := exec.Do(context.Background(), func(ctx context.Context) error {
		return nil
	}, classifyAs(Retryable()))

	require.NoError(t, err)
	assert.Empty(t, clk.Sleeps())
	assert.Equal(t, 1, status.successes)
	assert.Equal(t, 0, status.failures)
}

func TestExecutor_SucceedsAfterTransientFailure(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	exec := New(clk, nil)

	calls := 0
	err := exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, classifyAs(Retryable()))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clk.Sleeps())
}

func TestExecutor_ContextCancelledBeforeFirstAttempt(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	exec := New(clk, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestExecutor_OnRetryCallback(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	var attempts []int
	var delays []time.Duration
	exec := New(clk, nil, WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	}))

	_ = exec.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}, classifyAs(Retryable()))

	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestDoWithData(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	exec := New(clk, nil)

	calls := 0
	result, err := DoWithData(context.Background(), exec, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return "message_id:42", nil
	}, classifyAs(Retryable()))

	require.NoError(t, err)
	assert.Equal(t, "message_id:42", result)
	assert.Equal(t, 2, calls)
}
