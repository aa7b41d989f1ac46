package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Metrics implements quotareset.Metrics using Prometheus.
type Metrics struct {
	resetsTotal         *prometheus.CounterVec
	resetUsers          *prometheus.HistogramVec
	resetDuration       *prometheus.HistogramVec
	batchCommitsTotal   *prometheus.CounterVec
	batchCommitSize     *prometheus.HistogramVec
	healthChecksTotal   *prometheus.CounterVec
	healthCheckDuration prometheus.Histogram
	alertsTotal         *prometheus.CounterVec
	manualTriggersTotal *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		resetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Total number of reset runs by kind and status.",
		}, []string{"kind", "status"}),

		resetUsers: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reset_users",
			Help:      "Distribution of users reset per run.",
			Buckets:   []float64{0, 10, 100, 500, 1000, 5000, 10000, 100000},
		}, []string{"kind"}),

		resetDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reset_duration_seconds",
			Help:      "Latency of reset runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		batchCommitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_commits_total",
			Help:      "Total number of batch commit attempts.",
		}, []string{"kind", "success"}),

		batchCommitSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_size",
			Help:      "Distribution of batch commit sizes.",
			Buckets:   []float64{1, 50, 100, 250, 500},
		}, []string{"kind"}),

		healthChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Total number of health checks by status.",
		}, []string{"status"}),

		healthCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_check_duration_seconds",
			Help:      "Latency of health checks.",
			Buckets:   prometheus.DefBuckets,
		}),

		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_alerts_total",
			Help:      "Total number of health alerts raised.",
		}, []string{"type"}),

		manualTriggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_triggers_total",
			Help:      "Total number of manual trigger attempts.",
		}, []string{"kind", "authorized"}),
	}
}

func (m *Metrics) RecordReset(kind quotareset.Kind, status quotareset.Status, usersReset int, duration time.Duration) {
	m.resetsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.resetUsers.WithLabelValues(string(kind)).Observe(float64(usersReset))
	m.resetDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *Metrics) RecordBatchCommit(kind quotareset.Kind, size int, err error) {
	m.batchCommitsTotal.WithLabelValues(string(kind), strconv.FormatBool(err == nil)).Inc()
	if err == nil {
		m.batchCommitSize.WithLabelValues(string(kind)).Observe(float64(size))
	}
}

func (m *Metrics) RecordHealthCheck(status string, duration time.Duration) {
	m.healthChecksTotal.WithLabelValues(status).Inc()
	m.healthCheckDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordAlert(alertType string) {
	m.alertsTotal.WithLabelValues(alertType).Inc()
}

func (m *Metrics) RecordManualTrigger(kind string, authorized bool) {
	m.manualTriggersTotal.WithLabelValues(kind, strconv.FormatBool(authorized)).Inc()
}
