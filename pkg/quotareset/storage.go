package quotareset

import (
	"context"
	"time"
)

// Store defines the document-store contract for the reset subsystem.
// All methods use concrete types from this package to avoid import cycles.
type Store interface {
	// Limits retrieves the shared quota-policy singleton.
	// Returns ErrLimitsNotFound if it was never written.
	Limits(ctx context.Context) (*Limits, error)

	// ListUsers returns one page of the user collection, ordered by ID.
	// cursor is the opaque position returned by the previous call ("" starts
	// from the beginning); the returned cursor is "" when the scan is done.
	// The sequence is lazy and restartable so the executor never holds the
	// full collection in memory.
	ListUsers(ctx context.Context, cursor string, limit int) ([]User, string, error)

	// ApplyResets commits one atomic batch that zeroes the period counter
	// matching kind and stamps the matching last-reset timestamp for every
	// listed user. len(userIDs) must not exceed BatchLimit. Each batch
	// commits independently of the others.
	ApplyResets(ctx context.Context, kind Kind, userIDs []string, at time.Time) error

	// UpdateLimits applies a partial mutation to the limits singleton.
	UpdateLimits(ctx context.Context, update *LimitsUpdate) error

	// AppendLog appends a reset log entry. Completed entries go to the
	// partition matching entry.Kind, failed entries to the errors partition.
	AppendLog(ctx context.Context, entry *LogEntry) error

	// LatestLog returns the newest completed log entry for kind with a
	// timestamp at or after since, or nil if none exists (not an error).
	LatestLog(ctx context.Context, kind Kind, since time.Time) (*LogEntry, error)

	// AppendAlert appends a health alert, partitioned by severity.
	AppendAlert(ctx context.Context, alert *Alert) error

	// SetHealthStatus overwrites the latest-status singleton.
	SetHealthStatus(ctx context.Context, status *HealthStatus) error

	// BatchLimit is the per-batch operation ceiling of the underlying store.
	BatchLimit() int
}
