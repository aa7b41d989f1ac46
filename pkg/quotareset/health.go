package quotareset

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultWindowBuffer is added to the 24h daily window so a slightly late
// scheduler tick does not raise a false alert.
const defaultWindowBuffer = time.Hour

// MonitorConfig holds health monitor configuration
type MonitorConfig struct {
	// WindowBuffer extends the 24h daily detection window (default: 1 hour)
	WindowBuffer time.Duration

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics is used for tracking health checks (default: NoopMetrics)
	Metrics Metrics

	// Now overrides the wall clock, mainly for tests (default: time.Now UTC)
	Now func() time.Time
}

// Monitor inspects the reset log for missed executions. It is the sole
// writer of health alerts and of the latest-status singleton.
type Monitor struct {
	store   Store
	buffer  time.Duration
	logger  Logger
	metrics Metrics
	now     func() time.Time
}

// NewMonitor creates a health monitor with the given store and configuration
func NewMonitor(store Store, config MonitorConfig) (*Monitor, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}

	if config.WindowBuffer <= 0 {
		config.WindowBuffer = defaultWindowBuffer
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Monitor{
		store:   store,
		buffer:  config.WindowBuffer,
		logger:  config.Logger,
		metrics: config.Metrics,
		now:     config.Now,
	}, nil
}

// Check looks for a completed daily reset inside the trailing window and
// publishes the latest status. A missing entry raises a missing_daily_reset
// alert; a store failure is itself caught and raised as a
// health_check_failure alert rather than crashing the monitor. The returned
// status always carries the projected next trigger time for each kind.
func (m *Monitor) Check(ctx context.Context) *HealthStatus {
	started := m.now()
	window := 24*time.Hour + m.buffer

	status := &HealthStatus{
		Status:      HealthHealthy,
		CheckedAt:   started,
		NextDaily:   NextDailyReset(started),
		NextWeekly:  NextWeeklyReset(started),
		NextMonthly: NextMonthlyReset(started),
	}

	entry, err := m.store.LatestLog(ctx, KindDaily, started.Add(-window))
	switch {
	case err != nil:
		status.Status = HealthWarning
		m.raiseAlert(ctx, AlertHealthCheckFailure, SeverityError,
			fmt.Sprintf("reset log query failed: %v", err))
	case entry == nil:
		status.Status = HealthWarning
		m.raiseAlert(ctx, AlertMissingDailyReset, SeverityWarning,
			fmt.Sprintf("no completed daily reset in the last %s", window))
	default:
		ts := entry.Timestamp
		status.LastDailyReset = &ts
	}

	if err := m.store.SetHealthStatus(ctx, status); err != nil {
		m.logger.Error("health status publish failed", Field{"error", err.Error()})
	}

	m.metrics.RecordHealthCheck(status.Status, m.now().Sub(started))
	m.logger.Info("health check finished",
		Field{"status", status.Status},
		Field{"next_daily", status.NextDaily})

	return status
}

func (m *Monitor) raiseAlert(ctx context.Context, alertType, severity, message string) {
	alert := &Alert{
		ID:        uuid.NewString(),
		Timestamp: m.now(),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
	}

	m.metrics.RecordAlert(alertType)
	m.logger.Warn("health alert raised",
		Field{"type", alertType}, Field{"message", message})

	if err := m.store.AppendAlert(ctx, alert); err != nil {
		m.logger.Error("health alert write failed",
			Field{"type", alertType}, Field{"error", err.Error()})
	}
}
