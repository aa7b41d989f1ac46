// Package memory provides an in-memory implementation of the quotareset.Store
// interface. This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

const defaultBatchLimit = 500

// Log and alert partition names, mirroring the production store layout.
const (
	PartitionErrors   = "errors"
	PartitionWarnings = "warnings"
)

// Storage implements quotareset.Store using in-memory maps
type Storage struct {
	mu         sync.RWMutex
	users      map[string]*quotareset.User
	limits     *quotareset.Limits
	logs       map[string][]*quotareset.LogEntry
	alerts     map[string][]*quotareset.Alert
	health     *quotareset.HealthStatus
	batchLimit int
}

// New creates a new in-memory store adapter
func New() *Storage {
	return &Storage{
		users:      make(map[string]*quotareset.User),
		logs:       make(map[string][]*quotareset.LogEntry),
		alerts:     make(map[string][]*quotareset.Alert),
		batchLimit: defaultBatchLimit,
	}
}

// SetBatchLimit overrides the per-batch operation ceiling. Tests use a small
// ceiling to exercise multi-batch commits without thousands of records.
func (s *Storage) SetBatchLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.batchLimit = n
	}
}

// BatchLimit implements quotareset.Store
func (s *Storage) BatchLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchLimit
}

// Limits implements quotareset.Store
func (s *Storage) Limits(ctx context.Context) (*quotareset.Limits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.limits == nil {
		return nil, quotareset.ErrLimitsNotFound
	}

	// Return a copy to prevent external mutations
	limitsCopy := *s.limits
	return &limitsCopy, nil
}

// SetLimits seeds the limits singleton (useful for tests)
func (s *Storage) SetLimits(limits *quotareset.Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limitsCopy := *limits
	s.limits = &limitsCopy
}

// UpdateLimits implements quotareset.Store
func (s *Storage) UpdateLimits(ctx context.Context, update *quotareset.LimitsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits == nil {
		s.limits = &quotareset.Limits{}
	}
	if update.AnonymousLimit != nil {
		s.limits.AnonymousLimit = *update.AnonymousLimit
	}
	if update.LastDailyReset != nil {
		s.limits.LastDailyReset = *update.LastDailyReset
	}
	if update.LastWeeklyReset != nil {
		s.limits.LastWeeklyReset = *update.LastWeeklyReset
	}
	if update.LastMonthlyReset != nil {
		s.limits.LastMonthlyReset = *update.LastMonthlyReset
	}
	s.limits.UpdatedAt = time.Now().UTC()
	return nil
}

// PutUser stores or replaces a user record
func (s *Storage) PutUser(u *quotareset.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = cloneUser(u)
}

// GetUser returns a copy of a user record, or nil if absent
func (s *Storage) GetUser(id string) *quotareset.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

// ListUsers implements quotareset.Store with an ID-ordered cursor scan
func (s *Storage) ListUsers(ctx context.Context, cursor string, limit int) ([]quotareset.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		if cursor == "" || id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	page := make([]quotareset.User, 0, limit)
	for _, id := range ids[:limit] {
		page = append(page, *cloneUser(s.users[id]))
	}

	next := ""
	if len(ids) > limit && limit > 0 {
		next = ids[limit-1]
	}
	return page, next, nil
}

// ApplyResets implements quotareset.Store. Users deleted since the listing
// snapshot are skipped rather than failing the batch.
func (s *Storage) ApplyResets(ctx context.Context, kind quotareset.Kind, userIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range userIDs {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		switch kind {
		case quotareset.KindDaily:
			u.DailyUsage = 0
			u.LastDailyReset = at
		case quotareset.KindWeekly:
			u.WeeklyUsage = 0
			u.LastWeeklyReset = at
		case quotareset.KindMonthly:
			u.MonthlyUsage = 0
			u.LastMonthlyReset = at
		default:
			return quotareset.ErrInvalidKind
		}
	}
	return nil
}

// AppendLog implements quotareset.Store
func (s *Storage) AppendLog(ctx context.Context, entry *quotareset.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	partition := string(entry.Kind)
	if entry.Status == quotareset.StatusFailed {
		partition = PartitionErrors
	}
	s.logs[partition] = append(s.logs[partition], &entryCopy)
	return nil
}

// LatestLog implements quotareset.Store
func (s *Storage) LatestLog(ctx context.Context, kind quotareset.Kind, since time.Time) (*quotareset.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *quotareset.LogEntry
	for _, entry := range s.logs[string(kind)] {
		if entry.Timestamp.Before(since) {
			continue
		}
		if latest == nil || entry.Timestamp.After(latest.Timestamp) {
			latest = entry
		}
	}

	if latest == nil {
		return nil, nil
	}
	entryCopy := *latest
	return &entryCopy, nil
}

// Logs returns a copy of one log partition (useful for tests)
func (s *Storage) Logs(partition string) []*quotareset.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*quotareset.LogEntry, 0, len(s.logs[partition]))
	for _, entry := range s.logs[partition] {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	return entries
}

// AppendAlert implements quotareset.Store
func (s *Storage) AppendAlert(ctx context.Context, alert *quotareset.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alertCopy := *alert
	partition := PartitionWarnings
	if alert.Severity == quotareset.SeverityError {
		partition = PartitionErrors
	}
	s.alerts[partition] = append(s.alerts[partition], &alertCopy)
	return nil
}

// Alerts returns a copy of one alert partition (useful for tests)
func (s *Storage) Alerts(partition string) []*quotareset.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]*quotareset.Alert, 0, len(s.alerts[partition]))
	for _, alert := range s.alerts[partition] {
		alertCopy := *alert
		alerts = append(alerts, &alertCopy)
	}
	return alerts
}

// SetHealthStatus implements quotareset.Store
func (s *Storage) SetHealthStatus(ctx context.Context, status *quotareset.HealthStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statusCopy := *status
	s.health = &statusCopy
	return nil
}

// HealthStatus returns the latest published status, or nil
func (s *Storage) HealthStatus() *quotareset.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.health == nil {
		return nil
	}
	statusCopy := *s.health
	return &statusCopy
}

// Clear removes all data (useful for testing)
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*quotareset.User)
	s.limits = nil
	s.logs = make(map[string][]*quotareset.LogEntry)
	s.alerts = make(map[string][]*quotareset.Alert)
	s.health = nil
}

func cloneUser(u *quotareset.User) *quotareset.User {
	userCopy := *u
	if u.UsageCount != nil {
		count := *u.UsageCount
		userCopy.UsageCount = &count
	}
	return &userCopy
}
