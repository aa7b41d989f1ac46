// Package redis provides a Redis implementation of the quotareset.Store
// interface. User records are stored as hashes with a sorted-set index for
// ordered pagination; reset batches commit atomically via MULTI/EXEC pipelines.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Storage implements quotareset.Store using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "quotareset:")
	KeyPrefix string

	// BatchLimit caps the number of user mutations per pipeline commit
	// (default: 500)
	BatchLimit int

	// LogScanDepth bounds how many log entries LatestLog inspects from the
	// head of a partition list (default: 100)
	LogScanDepth int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:    "quotareset:",
		BatchLimit:   500,
		LogScanDepth: 100,
	}
}

// New creates a new Redis store adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	// Set defaults
	if config.KeyPrefix == "" {
		config.KeyPrefix = "quotareset:"
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 500
	}
	if config.LogScanDepth <= 0 {
		config.LogScanDepth = 100
	}

	return &Storage{client: client, config: config}, nil
}

// BatchLimit implements quotareset.Store
func (s *Storage) BatchLimit() int {
	return s.config.BatchLimit
}

// Limits implements quotareset.Store
func (s *Storage) Limits(ctx context.Context) (*quotareset.Limits, error) {
	data, err := s.client.HGetAll(ctx, s.limitsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}
	if len(data) == 0 {
		return nil, quotareset.ErrLimitsNotFound
	}

	return &quotareset.Limits{
		ResetHour:        parseInt(data["resetHour"]),
		AnonymousLimit:   parseInt(data["anonymousLimit"]),
		LastDailyReset:   parseTime(data["lastReset"]),
		LastWeeklyReset:  parseTime(data["lastWeeklyReset"]),
		LastMonthlyReset: parseTime(data["lastMonthlyReset"]),
		UpdatedAt:        parseTime(data["updatedAt"]),
	}, nil
}

// UpdateLimits implements quotareset.Store
func (s *Storage) UpdateLimits(ctx context.Context, update *quotareset.LimitsUpdate) error {
	fields := map[string]interface{}{
		"updatedAt": formatTime(time.Now().UTC()),
	}
	if update.AnonymousLimit != nil {
		fields["anonymousLimit"] = *update.AnonymousLimit
	}
	if update.LastDailyReset != nil {
		fields["lastReset"] = formatTime(*update.LastDailyReset)
	}
	if update.LastWeeklyReset != nil {
		fields["lastWeeklyReset"] = formatTime(*update.LastWeeklyReset)
	}
	if update.LastMonthlyReset != nil {
		fields["lastMonthlyReset"] = formatTime(*update.LastMonthlyReset)
	}

	if err := s.client.HSet(ctx, s.limitsKey(), fields).Err(); err != nil {
		return fmt.Errorf("failed to update limits: %w", err)
	}
	return nil
}

// PutUser stores or replaces a user record and indexes it for pagination
func (s *Storage) PutUser(ctx context.Context, u *quotareset.User) error {
	fields := map[string]interface{}{
		"dailyUsage":       u.DailyUsage,
		"weeklyUsage":      u.WeeklyUsage,
		"monthlyUsage":     u.MonthlyUsage,
		"lastDailyReset":   formatTime(u.LastDailyReset),
		"lastWeeklyReset":  formatTime(u.LastWeeklyReset),
		"lastMonthlyReset": formatTime(u.LastMonthlyReset),
		"isPro":            strconv.FormatBool(u.IsPro),
	}
	if u.UsageCount != nil {
		fields["usageCount"] = *u.UsageCount
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.userKey(u.ID), fields)
	if u.UsageCount == nil {
		pipe.HDel(ctx, s.userKey(u.ID), "usageCount")
	}
	pipe.ZAdd(ctx, s.usersIndexKey(), redis.Z{Score: 0, Member: u.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

// GetUser returns a user record, or nil if absent
func (s *Storage) GetUser(ctx context.Context, id string) (*quotareset.User, error) {
	data, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	u := userFromHash(id, data)
	return &u, nil
}

// ListUsers implements quotareset.Store using lexicographic ranges over the
// user index, so the scan is restartable from any cursor.
func (s *Storage) ListUsers(ctx context.Context, cursor string, limit int) ([]quotareset.User, string, error) {
	min := "-"
	if cursor != "" {
		min = "(" + cursor
	}

	ids, err := s.client.ZRangeByLex(ctx, s.usersIndexKey(), &redis.ZRangeBy{
		Min:   min,
		Max:   "+",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan user index: %w", err)
	}

	users := make([]quotareset.User, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
		if err != nil {
			return nil, "", fmt.Errorf("failed to load user %s: %w", id, err)
		}
		if len(data) == 0 {
			// Index entry without a hash: user deleted mid-scan.
			continue
		}
		users = append(users, userFromHash(id, data))
	}

	next := ""
	if limit > 0 && len(ids) == limit {
		next = ids[len(ids)-1]
	}
	return users, next, nil
}

// ApplyResets implements quotareset.Store with one MULTI/EXEC commit per batch
func (s *Storage) ApplyResets(ctx context.Context, kind quotareset.Kind, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	if len(userIDs) > s.config.BatchLimit {
		return fmt.Errorf("batch of %d exceeds configured ceiling of %d", len(userIDs), s.config.BatchLimit)
	}

	var usageField, stampField string
	switch kind {
	case quotareset.KindDaily:
		usageField, stampField = "dailyUsage", "lastDailyReset"
	case quotareset.KindWeekly:
		usageField, stampField = "weeklyUsage", "lastWeeklyReset"
	case quotareset.KindMonthly:
		usageField, stampField = "monthlyUsage", "lastMonthlyReset"
	default:
		return quotareset.ErrInvalidKind
	}

	pipe := s.client.TxPipeline()
	for _, id := range userIDs {
		pipe.HSet(ctx, s.userKey(id), usageField, 0, stampField, formatTime(at))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit reset batch: %w", err)
	}
	return nil
}

// AppendLog implements quotareset.Store. Entries are pushed to the head of a
// per-partition list, newest first.
func (s *Storage) AppendLog(ctx context.Context, entry *quotareset.LogEntry) error {
	partition := string(entry.Kind)
	if entry.Status == quotareset.StatusFailed {
		partition = "errors"
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode reset log: %w", err)
	}

	if err := s.client.LPush(ctx, s.logKey(partition), payload).Err(); err != nil {
		return fmt.Errorf("failed to append reset log: %w", err)
	}
	return nil
}

// LatestLog implements quotareset.Store. Lists are newest-first, so the scan
// inspects the head of the partition and stops at the first match.
func (s *Storage) LatestLog(ctx context.Context, kind quotareset.Kind, since time.Time) (*quotareset.LogEntry, error) {
	raw, err := s.client.LRange(ctx, s.logKey(string(kind)), 0, int64(s.config.LogScanDepth-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query reset log: %w", err)
	}

	for _, item := range raw {
		var entry quotareset.LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if !entry.Timestamp.Before(since) {
			return &entry, nil
		}
	}
	return nil, nil
}

// AppendAlert implements quotareset.Store, partitioning alerts by severity
func (s *Storage) AppendAlert(ctx context.Context, alert *quotareset.Alert) error {
	partition := "warnings"
	if alert.Severity == quotareset.SeverityError {
		partition = "errors"
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode health alert: %w", err)
	}

	if err := s.client.LPush(ctx, s.alertKey(partition), payload).Err(); err != nil {
		return fmt.Errorf("failed to append health alert: %w", err)
	}
	return nil
}

// SetHealthStatus implements quotareset.Store
func (s *Storage) SetHealthStatus(ctx context.Context, status *quotareset.HealthStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode health status: %w", err)
	}

	if err := s.client.Set(ctx, s.healthStatusKey(), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set health status: %w", err)
	}
	return nil
}

// Key helpers

func (s *Storage) userKey(id string) string {
	return s.config.KeyPrefix + "user:" + id
}

func (s *Storage) usersIndexKey() string {
	return s.config.KeyPrefix + "users"
}

func (s *Storage) limitsKey() string {
	return s.config.KeyPrefix + "limits"
}

func (s *Storage) logKey(partition string) string {
	return s.config.KeyPrefix + "reset_logs:" + partition
}

func (s *Storage) alertKey(partition string) string {
	return s.config.KeyPrefix + "health_alerts:" + partition
}

func (s *Storage) healthStatusKey() string {
	return s.config.KeyPrefix + "health_status"
}

func userFromHash(id string, data map[string]string) quotareset.User {
	u := quotareset.User{
		ID:               id,
		DailyUsage:       parseInt64(data["dailyUsage"]),
		WeeklyUsage:      parseInt64(data["weeklyUsage"]),
		MonthlyUsage:     parseInt64(data["monthlyUsage"]),
		LastDailyReset:   parseTime(data["lastDailyReset"]),
		LastWeeklyReset:  parseTime(data["lastWeeklyReset"]),
		LastMonthlyReset: parseTime(data["lastMonthlyReset"]),
		IsPro:            data["isPro"] == "true",
	}
	if raw, ok := data["usageCount"]; ok {
		count := parseInt64(raw)
		u.UsageCount = &count
	}
	return u
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
