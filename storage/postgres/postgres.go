// Package postgres provides a PostgreSQL implementation of the
// quotareset.Store interface. Reset batches commit as single set-based
// UPDATE statements inside a transaction, one per batch.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Storage implements quotareset.Store using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// BatchLimit caps the number of user mutations per transaction
	// (default: 1000)
	BatchLimit int

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BatchLimit:      1000,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 1000
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the subsystem's tables if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			usage_count        BIGINT,
			daily_usage        BIGINT NOT NULL DEFAULT 0,
			weekly_usage       BIGINT NOT NULL DEFAULT 0,
			monthly_usage      BIGINT NOT NULL DEFAULT 0,
			last_daily_reset   TIMESTAMPTZ,
			last_weekly_reset  TIMESTAMPTZ,
			last_monthly_reset TIMESTAMPTZ,
			is_pro             BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS quota_limits (
			id                 SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			reset_hour         INT NOT NULL DEFAULT 0,
			anonymous_limit    INT NOT NULL DEFAULT 0,
			last_reset         TIMESTAMPTZ,
			last_weekly_reset  TIMESTAMPTZ,
			last_monthly_reset TIMESTAMPTZ,
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS reset_logs (
			id                    TEXT PRIMARY KEY,
			partition             TEXT NOT NULL,
			kind                  TEXT NOT NULL,
			ts                    TIMESTAMPTZ NOT NULL,
			users_reset           INT NOT NULL,
			batches               INT NOT NULL,
			status                TEXT NOT NULL,
			anonymous_limit_reset INT,
			error                 TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS reset_logs_partition_ts ON reset_logs (partition, ts DESC);
		CREATE TABLE IF NOT EXISTS health_alerts (
			id        TEXT PRIMARY KEY,
			partition TEXT NOT NULL,
			ts        TIMESTAMPTZ NOT NULL,
			type      TEXT NOT NULL,
			severity  TEXT NOT NULL,
			message   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS health_status (
			id               SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			status           TEXT NOT NULL,
			checked_at       TIMESTAMPTZ NOT NULL,
			last_daily_reset TIMESTAMPTZ,
			next_daily       TIMESTAMPTZ NOT NULL,
			next_weekly      TIMESTAMPTZ NOT NULL,
			next_monthly     TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// BatchLimit implements quotareset.Store
func (s *Storage) BatchLimit() int {
	return s.config.BatchLimit
}

// Limits implements quotareset.Store
func (s *Storage) Limits(ctx context.Context) (*quotareset.Limits, error) {
	var limits quotareset.Limits
	var lastDaily, lastWeekly, lastMonthly *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT reset_hour, anonymous_limit, last_reset, last_weekly_reset, last_monthly_reset, updated_at
			FROM quota_limits WHERE id = 1`).
		Scan(&limits.ResetHour, &limits.AnonymousLimit, &lastDaily, &lastWeekly, &lastMonthly, &limits.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quotareset.ErrLimitsNotFound
		}
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}

	if lastDaily != nil {
		limits.LastDailyReset = *lastDaily
	}
	if lastWeekly != nil {
		limits.LastWeeklyReset = *lastWeekly
	}
	if lastMonthly != nil {
		limits.LastMonthlyReset = *lastMonthly
	}
	return &limits, nil
}

// UpdateLimits implements quotareset.Store with a partial upsert
func (s *Storage) UpdateLimits(ctx context.Context, update *quotareset.LimitsUpdate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quota_limits (id, anonymous_limit, last_reset, last_weekly_reset, last_monthly_reset, updated_at)
		VALUES (1, COALESCE($1, 0), $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			anonymous_limit    = COALESCE($1, quota_limits.anonymous_limit),
			last_reset         = COALESCE($2, quota_limits.last_reset),
			last_weekly_reset  = COALESCE($3, quota_limits.last_weekly_reset),
			last_monthly_reset = COALESCE($4, quota_limits.last_monthly_reset),
			updated_at         = NOW()`,
		update.AnonymousLimit, update.LastDailyReset, update.LastWeeklyReset, update.LastMonthlyReset)
	if err != nil {
		return fmt.Errorf("failed to update limits: %w", err)
	}
	return nil
}

// PutUser stores or replaces a user record
func (s *Storage) PutUser(ctx context.Context, u *quotareset.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, usage_count, daily_usage, weekly_usage, monthly_usage,
			last_daily_reset, last_weekly_reset, last_monthly_reset, is_pro)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			usage_count        = EXCLUDED.usage_count,
			daily_usage        = EXCLUDED.daily_usage,
			weekly_usage       = EXCLUDED.weekly_usage,
			monthly_usage      = EXCLUDED.monthly_usage,
			last_daily_reset   = EXCLUDED.last_daily_reset,
			last_weekly_reset  = EXCLUDED.last_weekly_reset,
			last_monthly_reset = EXCLUDED.last_monthly_reset,
			is_pro             = EXCLUDED.is_pro`,
		u.ID, u.UsageCount, u.DailyUsage, u.WeeklyUsage, u.MonthlyUsage,
		nullableTime(u.LastDailyReset), nullableTime(u.LastWeeklyReset),
		nullableTime(u.LastMonthlyReset), u.IsPro)
	if err != nil {
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

// ListUsers implements quotareset.Store with keyset pagination over user IDs
func (s *Storage) ListUsers(ctx context.Context, cursor string, limit int) ([]quotareset.User, string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, usage_count, daily_usage, weekly_usage, monthly_usage,
			last_daily_reset, last_weekly_reset, last_monthly_reset, is_pro
		FROM users
		WHERE id > $1
		ORDER BY id
		LIMIT $2`,
		cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]quotareset.User, 0, limit)
	for rows.Next() {
		var u quotareset.User
		var lastDaily, lastWeekly, lastMonthly *time.Time
		if err := rows.Scan(&u.ID, &u.UsageCount, &u.DailyUsage, &u.WeeklyUsage, &u.MonthlyUsage,
			&lastDaily, &lastWeekly, &lastMonthly, &u.IsPro); err != nil {
			return nil, "", fmt.Errorf("failed to scan user: %w", err)
		}
		if lastDaily != nil {
			u.LastDailyReset = *lastDaily
		}
		if lastWeekly != nil {
			u.LastWeeklyReset = *lastWeekly
		}
		if lastMonthly != nil {
			u.LastMonthlyReset = *lastMonthly
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to list users: %w", err)
	}

	next := ""
	if len(users) == limit {
		next = users[len(users)-1].ID
	}
	return users, next, nil
}

// ApplyResets implements quotareset.Store as one set-based UPDATE per batch
func (s *Storage) ApplyResets(ctx context.Context, kind quotareset.Kind, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	if len(userIDs) > s.config.BatchLimit {
		return fmt.Errorf("batch of %d exceeds configured ceiling of %d", len(userIDs), s.config.BatchLimit)
	}

	var query string
	switch kind {
	case quotareset.KindDaily:
		query = `UPDATE users SET daily_usage = 0, last_daily_reset = $1 WHERE id = ANY($2)`
	case quotareset.KindWeekly:
		query = `UPDATE users SET weekly_usage = 0, last_weekly_reset = $1 WHERE id = ANY($2)`
	case quotareset.KindMonthly:
		query = `UPDATE users SET monthly_usage = 0, last_monthly_reset = $1 WHERE id = ANY($2)`
	default:
		return quotareset.ErrInvalidKind
	}

	if _, err := s.pool.Exec(ctx, query, at, userIDs); err != nil {
		return fmt.Errorf("failed to commit reset batch: %w", err)
	}
	return nil
}

// AppendLog implements quotareset.Store
func (s *Storage) AppendLog(ctx context.Context, entry *quotareset.LogEntry) error {
	partition := string(entry.Kind)
	if entry.Status == quotareset.StatusFailed {
		partition = "errors"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO reset_logs (id, partition, kind, ts, users_reset, batches, status, anonymous_limit_reset, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, partition, string(entry.Kind), entry.Timestamp, entry.UsersReset,
		entry.Batches, string(entry.Status), entry.AnonymousLimitReset, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to append reset log: %w", err)
	}
	return nil
}

// LatestLog implements quotareset.Store
func (s *Storage) LatestLog(ctx context.Context, kind quotareset.Kind, since time.Time) (*quotareset.LogEntry, error) {
	var entry quotareset.LogEntry
	var kindStr, statusStr string

	err := s.pool.QueryRow(ctx, `
		SELECT id, kind, ts, users_reset, batches, status, anonymous_limit_reset, error
		FROM reset_logs
		WHERE partition = $1 AND ts >= $2
		ORDER BY ts DESC
		LIMIT 1`,
		string(kind), since).
		Scan(&entry.ID, &kindStr, &entry.Timestamp, &entry.UsersReset,
			&entry.Batches, &statusStr, &entry.AnonymousLimitReset, &entry.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No entry in the window is not an error
		}
		return nil, fmt.Errorf("failed to query reset log: %w", err)
	}

	entry.Kind = quotareset.Kind(kindStr)
	entry.Status = quotareset.Status(statusStr)
	return &entry, nil
}

// AppendAlert implements quotareset.Store
func (s *Storage) AppendAlert(ctx context.Context, alert *quotareset.Alert) error {
	partition := "warnings"
	if alert.Severity == quotareset.SeverityError {
		partition = "errors"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO health_alerts (id, partition, ts, type, severity, message)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		alert.ID, partition, alert.Timestamp, alert.Type, alert.Severity, alert.Message)
	if err != nil {
		return fmt.Errorf("failed to append health alert: %w", err)
	}
	return nil
}

// SetHealthStatus implements quotareset.Store
func (s *Storage) SetHealthStatus(ctx context.Context, status *quotareset.HealthStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO health_status (id, status, checked_at, last_daily_reset, next_daily, next_weekly, next_monthly)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status           = EXCLUDED.status,
			checked_at       = EXCLUDED.checked_at,
			last_daily_reset = EXCLUDED.last_daily_reset,
			next_daily       = EXCLUDED.next_daily,
			next_weekly      = EXCLUDED.next_weekly,
			next_monthly     = EXCLUDED.next_monthly`,
		status.Status, status.CheckedAt, status.LastDailyReset,
		status.NextDaily, status.NextWeekly, status.NextMonthly)
	if err != nil {
		return fmt.Errorf("failed to set health status: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
