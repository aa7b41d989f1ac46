package quotareset

import "time"

// Kind identifies which usage-period counter a reset run targets.
type Kind string

const (
	// KindDaily resets DailyUsage and restores the anonymous limit.
	KindDaily Kind = "daily"
	// KindWeekly resets WeeklyUsage.
	KindWeekly Kind = "weekly"
	// KindMonthly resets MonthlyUsage.
	KindMonthly Kind = "monthly"
)

// KindAll is accepted only by the manual trigger and fans out to all three kinds.
const KindAll = "all"

// Kinds lists the three schedulable reset kinds in canonical order.
var Kinds = []Kind{KindDaily, KindWeekly, KindMonthly}

// ParseKind validates a reset kind received from an external caller.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDaily, KindWeekly, KindMonthly:
		return Kind(s), nil
	default:
		return "", ErrInvalidKind
	}
}

// Status is the terminal state of a reset attempt.
type Status string

const (
	// StatusCompleted means every batch committed and the log entry was written.
	StatusCompleted Status = "completed"
	// StatusFailed means the run hit an unrecoverable error; earlier batches stay committed.
	StatusFailed Status = "failed"
)

// User is one tracked account, anonymous or registered.
// A nil UsageCount means the account was never provisioned for usage
// tracking; reset runs must leave such records untouched.
type User struct {
	ID               string
	UsageCount       *int64
	DailyUsage       int64
	WeeklyUsage      int64
	MonthlyUsage     int64
	LastDailyReset   time.Time
	LastWeeklyReset  time.Time
	LastMonthlyReset time.Time
	IsPro            bool
}

// Provisioned reports whether the account participates in period resets.
func (u *User) Provisioned() bool {
	return u.UsageCount != nil
}

// Limits is the shared quota-policy singleton.
type Limits struct {
	// ResetHour is the intended hour-of-day for the daily reset. Informational;
	// actual triggering is owned by the external scheduler.
	ResetHour int

	// AnonymousLimit is the quota ceiling for unauthenticated accounts. Restored
	// to the configured default on every daily reset.
	AnonymousLimit int

	LastDailyReset   time.Time
	LastWeeklyReset  time.Time
	LastMonthlyReset time.Time
	UpdatedAt        time.Time
}

// LimitsUpdate is a partial mutation of the Limits singleton.
// Nil fields are left untouched.
type LimitsUpdate struct {
	AnonymousLimit   *int
	LastDailyReset   *time.Time
	LastWeeklyReset  *time.Time
	LastMonthlyReset *time.Time
}

// LogEntry is an append-only record of one completed reset attempt.
type LogEntry struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	// UsersReset is the number of users whose counter was actually committed.
	// For a failed run it counts the batches that committed before the failure.
	UsersReset int
	Batches    int
	Status     Status
	// AnonymousLimitReset carries the restored anonymous limit for daily runs.
	AnonymousLimitReset *int
	Error               string
}

// Alert types raised by the health monitor.
const (
	AlertMissingDailyReset  = "missing_daily_reset"
	AlertHealthCheckFailure = "health_check_failure"
)

// Alert severities, used by stores to partition alerts.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Alert is an append-only record raised by the health monitor.
type Alert struct {
	ID        string
	Timestamp time.Time
	Type      string
	Severity  string
	Message   string
}

// Health states published by the monitor.
const (
	HealthHealthy = "healthy"
	HealthWarning = "warning"
)

// HealthStatus is the latest health summary published by the monitor.
// The Next* fields are informational projections of the external schedule,
// not commitments enforced by this subsystem.
type HealthStatus struct {
	Status         string
	CheckedAt      time.Time
	LastDailyReset *time.Time
	NextDaily      time.Time
	NextWeekly     time.Time
	NextMonthly    time.Time
}

// Claims is the capability credential passed explicitly into the manual
// trigger. It is never read from ambient state.
type Claims struct {
	Subject string
	Admin   bool
}

// Outcome summarizes one reset run. A failed run is recorded here and in the
// store's error log; it is never propagated as a panic or raw error to the
// job runtime.
type Outcome struct {
	Kind       Kind
	Status     Status
	UsersReset int
	Batches    int
	RanAt      time.Time
	Duration   time.Duration
	Err        string
}

// Completed reports whether the run finished with every batch committed.
func (o Outcome) Completed() bool {
	return o.Status == StatusCompleted
}

// ManualResult is returned by the manual trigger.
type ManualResult struct {
	Success  bool
	Message  string
	Outcomes []Outcome
}
