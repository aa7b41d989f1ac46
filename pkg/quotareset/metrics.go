package quotareset

import "time"

// Metrics defines the interface for tracking reset and health operations.
type Metrics interface {
	// RecordReset records a finished reset run.
	RecordReset(kind Kind, status Status, usersReset int, duration time.Duration)

	// RecordBatchCommit records one batch commit attempt.
	RecordBatchCommit(kind Kind, size int, err error)

	// RecordHealthCheck records a health check result.
	RecordHealthCheck(status string, duration time.Duration)

	// RecordAlert records a raised health alert.
	RecordAlert(alertType string)

	// RecordManualTrigger records a manual trigger attempt.
	RecordManualTrigger(kind string, authorized bool)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordReset(kind Kind, status Status, usersReset int, duration time.Duration) {}
func (n *NoopMetrics) RecordBatchCommit(kind Kind, size int, err error)                             {}
func (n *NoopMetrics) RecordHealthCheck(status string, duration time.Duration)                      {}
func (n *NoopMetrics) RecordAlert(alertType string)                                                 {}
func (n *NoopMetrics) RecordManualTrigger(kind string, authorized bool)                             {}
