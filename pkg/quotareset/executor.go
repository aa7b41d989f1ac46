package quotareset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultPageSize = 500

// Config holds executor configuration
type Config struct {
	// DefaultAnonymousLimit is the quota ceiling restored for anonymous
	// accounts on every daily reset (default: 10)
	DefaultAnonymousLimit int

	// PageSize is the number of users fetched per store page (default: 500)
	PageSize int

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics is used for tracking reset operations (default: NoopMetrics)
	Metrics Metrics

	// Now overrides the wall clock, mainly for tests (default: time.Now UTC)
	Now func() time.Time
}

// Executor runs period resets against the user collection. It is the sole
// writer of user period-usage fields and of the reset log.
type Executor struct {
	store     Store
	anonLimit int
	pageSize  int
	logger    Logger
	metrics   Metrics
	now       func() time.Time
}

// NewExecutor creates a reset executor with the given store and configuration
func NewExecutor(store Store, config Config) (*Executor, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}

	// Set defaults
	if config.DefaultAnonymousLimit == 0 {
		config.DefaultAnonymousLimit = 10
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
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

	return &Executor{
		store:     store,
		anonLimit: config.DefaultAnonymousLimit,
		pageSize:  config.PageSize,
		logger:    config.Logger,
		metrics:   config.Metrics,
		now:       config.Now,
	}, nil
}

// Run executes one reset pass for the given kind. Failures are recorded in
// the store's error log and reflected in the returned Outcome; they are never
// propagated as an error because the job runtime's at-least-once retry would
// re-run batches that already committed.
//
// Re-running a kind after a successful completion is idempotent in effect
// (zero written twice is still zero) but appends a second log entry.
func (e *Executor) Run(ctx context.Context, kind Kind) Outcome {
	started := e.now()
	outcome := Outcome{Kind: kind, RanAt: started}

	if _, err := ParseKind(string(kind)); err != nil {
		return e.fail(ctx, outcome, started, err)
	}

	e.logger.Info("reset run started", Field{"kind", string(kind)})

	// Read the shared config once at the start of the run. A missing
	// singleton is tolerated: the restore value for the anonymous limit
	// comes from executor configuration, not from the stored document.
	if _, err := e.store.Limits(ctx); err != nil && !errors.Is(err, ErrLimitsNotFound) {
		return e.fail(ctx, outcome, started, fmt.Errorf("load limits: %w", err))
	}

	usersReset, batches, err := e.resetUsers(ctx, kind, started)
	outcome.UsersReset = usersReset
	outcome.Batches = batches
	if err != nil {
		return e.fail(ctx, outcome, started, err)
	}

	if err := e.store.UpdateLimits(ctx, e.limitsUpdate(kind, started)); err != nil {
		// Partial completion: user batches are already committed and stay
		// committed. Recorded, not rolled back.
		return e.fail(ctx, outcome, started, fmt.Errorf("update limits: %w", err))
	}

	outcome.Status = StatusCompleted
	outcome.Duration = e.now().Sub(started)

	entry := &LogEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		Timestamp:  e.now(),
		UsersReset: usersReset,
		Batches:    batches,
		Status:     StatusCompleted,
	}
	if kind == KindDaily {
		restored := e.anonLimit
		entry.AnonymousLimitReset = &restored
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		// The reset itself completed; a missing log entry surfaces on the
		// next health pass instead of failing the run retroactively.
		e.logger.Error("reset log write failed",
			Field{"kind", string(kind)}, Field{"error", err.Error()})
	}

	e.metrics.RecordReset(kind, StatusCompleted, usersReset, outcome.Duration)
	e.logger.Info("reset run completed",
		Field{"kind", string(kind)},
		Field{"users_reset", usersReset},
		Field{"batches", batches})

	return outcome
}

// resetUsers pages through the user collection, filters eligible records and
// commits the staged mutations in bounded batches. Batches commit
// sequentially; a failure in batch N leaves batches 1..N-1 committed.
func (e *Executor) resetUsers(ctx context.Context, kind Kind, at time.Time) (usersReset, batches int, err error) {
	ceiling := e.store.BatchLimit()
	staged := make([]string, 0, ceiling)

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		commitErr := e.store.ApplyResets(ctx, kind, staged, at)
		e.metrics.RecordBatchCommit(kind, len(staged), commitErr)
		if commitErr != nil {
			return fmt.Errorf("commit batch of %d: %w", len(staged), commitErr)
		}
		usersReset += len(staged)
		batches++
		staged = staged[:0]
		return nil
	}

	cursor := ""
	for {
		users, next, listErr := e.store.ListUsers(ctx, cursor, e.pageSize)
		if listErr != nil {
			return usersReset, batches, fmt.Errorf("list users: %w", listErr)
		}

		for _, u := range Eligible(users) {
			staged = append(staged, u.ID)
			if len(staged) == ceiling {
				if err := flush(); err != nil {
					return usersReset, batches, err
				}
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	if err := flush(); err != nil {
		return usersReset, batches, err
	}
	return usersReset, batches, nil
}

// limitsUpdate builds the shared-config mutation for a completed run: every
// kind stamps its own completion timestamp, the daily run additionally
// restores the anonymous quota ceiling.
func (e *Executor) limitsUpdate(kind Kind, at time.Time) *LimitsUpdate {
	update := &LimitsUpdate{}
	switch kind {
	case KindDaily:
		restored := e.anonLimit
		update.AnonymousLimit = &restored
		update.LastDailyReset = &at
	case KindWeekly:
		update.LastWeeklyReset = &at
	case KindMonthly:
		update.LastMonthlyReset = &at
	}
	return update
}

// fail finalizes a failed run. The failure is appended to the error log so
// that state stays introspectable, unless the run was cancelled by the job
// runtime's deadline, in which case no entry is written for this attempt and
// the health monitor detects the gap.
func (e *Executor) fail(ctx context.Context, outcome Outcome, started time.Time, err error) Outcome {
	outcome.Status = StatusFailed
	outcome.Err = err.Error()
	outcome.Duration = e.now().Sub(started)

	e.logger.Error("reset run failed",
		Field{"kind", string(outcome.Kind)},
		Field{"users_reset", outcome.UsersReset},
		Field{"error", err.Error()})
	e.metrics.RecordReset(outcome.Kind, StatusFailed, outcome.UsersReset, outcome.Duration)

	if ctx.Err() != nil {
		return outcome
	}

	entry := &LogEntry{
		ID:         uuid.NewString(),
		Kind:       outcome.Kind,
		Timestamp:  e.now(),
		UsersReset: outcome.UsersReset,
		Batches:    outcome.Batches,
		Status:     StatusFailed,
		Error:      err.Error(),
	}
	if logErr := e.store.AppendLog(ctx, entry); logErr != nil {
		e.logger.Error("failed-reset log write failed",
			Field{"kind", string(outcome.Kind)}, Field{"error", logErr.Error()})
	}

	return outcome
}
