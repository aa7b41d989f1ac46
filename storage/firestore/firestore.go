// Package firestore provides a Cloud Firestore implementation of the
// quotareset.Store interface. This implementation uses Google Cloud Firestore
// for production-grade persistence of users, quota config, reset logs and
// health records.
package firestore

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// maxBatchOps is the Firestore per-commit operation ceiling.
const maxBatchOps = 500

// Storage implements quotareset.Store using Google Cloud Firestore
type Storage struct {
	client           *firestore.Client
	usersCollection  string
	configCollection string
	systemCollection string
}

// Config holds Firestore storage configuration
type Config struct {
	// UsersCollection is the Firestore collection for user accounts
	// Default: "users"
	UsersCollection string

	// ConfigCollection is the Firestore collection holding the limits singleton
	// Default: "config"
	ConfigCollection string

	// SystemCollection is the Firestore collection for reset logs, health
	// alerts and the health status singleton
	// Default: "system"
	SystemCollection string
}

// New creates a new Firestore store adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	// Set defaults
	if config.UsersCollection == "" {
		config.UsersCollection = "users"
	}
	if config.ConfigCollection == "" {
		config.ConfigCollection = "config"
	}
	if config.SystemCollection == "" {
		config.SystemCollection = "system"
	}

	return &Storage{
		client:           client,
		usersCollection:  config.UsersCollection,
		configCollection: config.ConfigCollection,
		systemCollection: config.SystemCollection,
	}, nil
}

// BatchLimit implements quotareset.Store
func (s *Storage) BatchLimit() int {
	return maxBatchOps
}

// Limits implements quotareset.Store
func (s *Storage) Limits(ctx context.Context) (*quotareset.Limits, error) {
	snap, err := s.limitsDoc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, quotareset.ErrLimitsNotFound
		}
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}

	data := snap.Data()
	return &quotareset.Limits{
		ResetHour:        getInt(data, "resetHour"),
		AnonymousLimit:   getInt(data, "anonymousLimit"),
		LastDailyReset:   getTime(data, "lastReset"),
		LastWeeklyReset:  getTime(data, "lastWeeklyReset"),
		LastMonthlyReset: getTime(data, "lastMonthlyReset"),
		UpdatedAt:        getTime(data, "updatedAt"),
	}, nil
}

// UpdateLimits implements quotareset.Store
func (s *Storage) UpdateLimits(ctx context.Context, update *quotareset.LimitsUpdate) error {
	data := map[string]interface{}{
		"updatedAt": time.Now().UTC(),
	}
	if update.AnonymousLimit != nil {
		data["anonymousLimit"] = *update.AnonymousLimit
	}
	if update.LastDailyReset != nil {
		data["lastReset"] = *update.LastDailyReset
	}
	if update.LastWeeklyReset != nil {
		data["lastWeeklyReset"] = *update.LastWeeklyReset
	}
	if update.LastMonthlyReset != nil {
		data["lastMonthlyReset"] = *update.LastMonthlyReset
	}

	if _, err := s.limitsDoc().Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update limits: %w", err)
	}
	return nil
}

// ListUsers implements quotareset.Store with a document-ID ordered cursor scan
func (s *Storage) ListUsers(ctx context.Context, cursor string, limit int) ([]quotareset.User, string, error) {
	query := s.client.Collection(s.usersCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit)
	if cursor != "" {
		query = query.StartAfter(cursor)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	users := make([]quotareset.User, 0, limit)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to list users: %w", err)
		}
		users = append(users, userFromDoc(snap))
	}

	next := ""
	if len(users) == limit {
		next = users[len(users)-1].ID
	}
	return users, next, nil
}

// ApplyResets implements quotareset.Store with one atomic commit per batch.
// A user deleted between the listing snapshot and the commit fails the whole
// batch; the executor records that as a failed run.
func (s *Storage) ApplyResets(ctx context.Context, kind quotareset.Kind, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	if len(userIDs) > maxBatchOps {
		return fmt.Errorf("batch of %d exceeds firestore ceiling of %d", len(userIDs), maxBatchOps)
	}

	usageField, stampField, err := resetFields(kind)
	if err != nil {
		return err
	}

	err = s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, id := range userIDs {
			doc := s.client.Collection(s.usersCollection).Doc(id)
			if err := tx.Update(doc, []firestore.Update{
				{Path: usageField, Value: 0},
				{Path: stampField, Value: at},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit reset batch: %w", err)
	}
	return nil
}

// AppendLog implements quotareset.Store. Completed entries land in the
// partition matching their kind, failed entries in the errors partition.
func (s *Storage) AppendLog(ctx context.Context, entry *quotareset.LogEntry) error {
	partition := string(entry.Kind)
	if entry.Status == quotareset.StatusFailed {
		partition = "errors"
	}

	data := map[string]interface{}{
		"kind":       string(entry.Kind),
		"timestamp":  entry.Timestamp,
		"usersReset": entry.UsersReset,
		"batches":    entry.Batches,
		"status":     string(entry.Status),
	}
	if entry.AnonymousLimitReset != nil {
		data["anonymousLimitReset"] = *entry.AnonymousLimitReset
	}
	if entry.Error != "" {
		data["error"] = entry.Error
	}

	doc := s.resetLogs(partition).Doc(entry.ID)
	if _, err := doc.Create(ctx, data); err != nil {
		return fmt.Errorf("failed to append reset log: %w", err)
	}
	return nil
}

// LatestLog implements quotareset.Store
func (s *Storage) LatestLog(ctx context.Context, kind quotareset.Kind, since time.Time) (*quotareset.LogEntry, error) {
	query := s.resetLogs(string(kind)).
		Where("timestamp", ">=", since).
		OrderBy("timestamp", firestore.Desc).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil // No entry in the window is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reset log: %w", err)
	}

	data := snap.Data()
	entry := &quotareset.LogEntry{
		ID:         snap.Ref.ID,
		Kind:       kind,
		Timestamp:  getTime(data, "timestamp"),
		UsersReset: getInt(data, "usersReset"),
		Batches:    getInt(data, "batches"),
		Status:     quotareset.Status(getString(data, "status")),
		Error:      getString(data, "error"),
	}
	if v, ok := data["anonymousLimitReset"]; ok {
		limit := toInt(v)
		entry.AnonymousLimitReset = &limit
	}
	return entry, nil
}

// AppendAlert implements quotareset.Store, partitioning alerts by severity
func (s *Storage) AppendAlert(ctx context.Context, alert *quotareset.Alert) error {
	partition := "warnings"
	if alert.Severity == quotareset.SeverityError {
		partition = "errors"
	}

	doc := s.client.Collection(s.systemCollection).
		Doc("health_alerts").
		Collection(partition).
		Doc(alert.ID)

	_, err := doc.Create(ctx, map[string]interface{}{
		"timestamp": alert.Timestamp,
		"type":      alert.Type,
		"severity":  alert.Severity,
		"message":   alert.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to append health alert: %w", err)
	}
	return nil
}

// SetHealthStatus implements quotareset.Store
func (s *Storage) SetHealthStatus(ctx context.Context, st *quotareset.HealthStatus) error {
	data := map[string]interface{}{
		"status":      st.Status,
		"checkedAt":   st.CheckedAt,
		"nextDaily":   st.NextDaily,
		"nextWeekly":  st.NextWeekly,
		"nextMonthly": st.NextMonthly,
	}
	if st.LastDailyReset != nil {
		data["lastDailyReset"] = *st.LastDailyReset
	}

	doc := s.client.Collection(s.systemCollection).Doc("health_status")
	if _, err := doc.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set health status: %w", err)
	}
	return nil
}

func (s *Storage) limitsDoc() *firestore.DocumentRef {
	return s.client.Collection(s.configCollection).Doc("limits")
}

func (s *Storage) resetLogs(partition string) *firestore.CollectionRef {
	return s.client.Collection(s.systemCollection).
		Doc("reset_logs").
		Collection(partition)
}

// resetFields maps a reset kind to the user document fields it owns.
func resetFields(kind quotareset.Kind) (usageField, stampField string, err error) {
	switch kind {
	case quotareset.KindDaily:
		return "dailyUsage", "lastDailyReset", nil
	case quotareset.KindWeekly:
		return "weeklyUsage", "lastWeeklyReset", nil
	case quotareset.KindMonthly:
		return "monthlyUsage", "lastMonthlyReset", nil
	default:
		return "", "", quotareset.ErrInvalidKind
	}
}

func userFromDoc(snap *firestore.DocumentSnapshot) quotareset.User {
	data := snap.Data()
	u := quotareset.User{
		ID:               snap.Ref.ID,
		DailyUsage:       int64(getInt(data, "dailyUsage")),
		WeeklyUsage:      int64(getInt(data, "weeklyUsage")),
		MonthlyUsage:     int64(getInt(data, "monthlyUsage")),
		LastDailyReset:   getTime(data, "lastDailyReset"),
		LastWeeklyReset:  getTime(data, "lastWeeklyReset"),
		LastMonthlyReset: getTime(data, "lastMonthlyReset"),
		IsPro:            getBool(data, "isPro"),
	}

	// The presence of usageCount marks the record as provisioned for
	// tracking; absence must survive the round trip as a nil pointer.
	if v, ok := data["usageCount"]; ok {
		count := int64(toInt(v))
		u.UsageCount = &count
	}
	return u
}

// Helper functions for type conversion from Firestore data

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	return toInt(data[key])
}

func toInt(v interface{}) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	default:
		return 0
	}
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
