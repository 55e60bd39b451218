package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/scheduler"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
	"github.com/bazarhub/bazar-marketplace/pkg/retry"
)

// Prober issues the lightweight "are you alive" call to Telegram.
// Implemented by the Telegram client's GetMe.
type Prober interface {
	Ping(ctx context.Context) error
}

// Alerter delivers an operator alert (a Telegram message to the admin chat).
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Config holds connection monitor configuration.
type Config struct {
	// Interval between health probes.
	// Default: 60s
	Interval time.Duration

	// ProbeTimeout bounds a single probe cycle.
	// Default: 5s
	ProbeTimeout time.Duration

	// AlertThreshold is the consecutive-error count that triggers a single
	// operator alert. Default: 5
	AlertThreshold int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       60 * time.Second,
		ProbeTimeout:   5 * time.Second,
		AlertThreshold: 5,
	}
}

// Monitor probes the Telegram API on a fixed interval and alerts the
// operator after a failure streak. A success re-arms alerting, so every new
// streak past the threshold produces exactly one alert.
type Monitor struct {
	config  Config
	prober  Prober
	exec    *retry.Executor
	status  *Status
	alerter Alerter
	logger  *logger.Logger

	classify retry.Classifier

	// alerted is only touched from probe runs, which the scheduler
	// serializes.
	alerted bool
}

// New creates a Monitor. The executor must share its StatusRecorder with
// status so probe outcomes land in the same place as real traffic.
func New(config Config, prober Prober, exec *retry.Executor, status *Status, alerter Alerter, classify retry.Classifier, log *logger.Logger) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.AlertThreshold <= 0 {
		config.AlertThreshold = 5
	}
	if log == nil {
		log = logger.Default()
	}
	return &Monitor{
		config:   config,
		prober:   prober,
		exec:     exec,
		status:   status,
		alerter:  alerter,
		classify: classify,
		logger:   log.With(logger.Component("connection_monitor")),
	}
}

// Start registers the probe on the scheduler and returns its handle.
func (m *Monitor) Start(sched scheduler.Scheduler) scheduler.Handle {
	return sched.Schedule("connection_probe", m.config.Interval, m.Probe)
}

// Probe runs one health-check cycle. The executor records the outcome on
// the shared Status; this method only decides whether to alert.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	err := m.exec.Do(probeCtx, func(ctx context.Context) error {
		return m.prober.Ping(ctx)
	}, m.classify)

	snap := m.status.Snapshot()

	if err == nil {
		if m.alerted {
			m.logger.Info("connection recovered, alerting re-armed")
		}
		m.alerted = false
		return
	}

	m.logger.Warn("health probe failed",
		logger.Err(err),
		logger.Int("consecutive_errors", snap.ConsecutiveErrors))

	if snap.ConsecutiveErrors >= m.config.AlertThreshold && !m.alerted {
		m.alerted = true
		m.sendAlert(ctx, snap)
	}
}

// sendAlert delivers the operator alert best-effort: failures are logged,
// never raised.
func (m *Monitor) sendAlert(ctx context.Context, snap Snapshot) {
	if m.alerter == nil {
		return
	}

	text := fmt.Sprintf(
		"⚠️ Bazar bot: потеряна связь с Telegram API.\nПоследовательных ошибок: %d\nПоследняя ошибка: %s",
		snap.ConsecutiveErrors, snap.LastError,
	)

	if err := m.alerter.Alert(ctx, text); err != nil {
		m.logger.Error("operator alert failed", logger.Err(err))
	}
}
