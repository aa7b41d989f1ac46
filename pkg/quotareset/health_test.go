package quotareset_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luminalens/quotareset/pkg/quotareset"
	"github.com/luminalens/quotareset/storage/memory"
)

func newTestMonitor(t *testing.T, store quotareset.Store) *quotareset.Monitor {
	t.Helper()
	monitor, err := quotareset.NewMonitor(store, quotareset.MonitorConfig{
		Now: fixedNow,
	})
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	return monitor
}

func appendDailyLog(t *testing.T, store *memory.Storage, age time.Duration) {
	t.Helper()
	err := store.AppendLog(context.Background(), &quotareset.LogEntry{
		ID:        "log-1",
		Kind:      quotareset.KindDaily,
		Timestamp: testClock.Add(-age),
		Status:    quotareset.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
}

func TestNewMonitor(t *testing.T) {
	if _, err := quotareset.NewMonitor(nil, quotareset.MonitorConfig{}); err != quotareset.ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCheck_RecentDailyReset(t *testing.T) {
	store := memory.New()
	appendDailyLog(t, store, 10*time.Hour)

	status := newTestMonitor(t, store).Check(context.Background())

	if status.Status != quotareset.HealthHealthy {
		t.Errorf("Expected healthy, got %s", status.Status)
	}
	if status.LastDailyReset == nil {
		t.Fatal("Expected LastDailyReset to be set")
	}
	if want := testClock.Add(-10 * time.Hour); !status.LastDailyReset.Equal(want) {
		t.Errorf("Expected LastDailyReset %v, got %v", want, status.LastDailyReset)
	}
	if len(store.Alerts(memory.PartitionWarnings)) != 0 || len(store.Alerts(memory.PartitionErrors)) != 0 {
		t.Error("Healthy check raised alerts")
	}

	published := store.HealthStatus()
	if published == nil || published.Status != quotareset.HealthHealthy {
		t.Errorf("Expected published healthy status, got %+v", published)
	}
}

func TestCheck_MissingDailyReset(t *testing.T) {
	store := memory.New()
	appendDailyLog(t, store, 26*time.Hour) // outside the 25h window

	status := newTestMonitor(t, store).Check(context.Background())

	if status.Status != quotareset.HealthWarning {
		t.Errorf("Expected warning, got %s", status.Status)
	}
	if status.LastDailyReset != nil {
		t.Errorf("Expected nil LastDailyReset, got %v", status.LastDailyReset)
	}

	warnings := store.Alerts(memory.PartitionWarnings)
	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning alert, got %d", len(warnings))
	}
	if warnings[0].Type != quotareset.AlertMissingDailyReset {
		t.Errorf("Expected %s alert, got %s", quotareset.AlertMissingDailyReset, warnings[0].Type)
	}
	if warnings[0].Severity != quotareset.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", warnings[0].Severity)
	}
}

func TestCheck_WindowBoundary(t *testing.T) {
	// 24h + 1h buffer: an entry 24h30m old is still inside the window.
	store := memory.New()
	appendDailyLog(t, store, 24*time.Hour+30*time.Minute)

	status := newTestMonitor(t, store).Check(context.Background())
	if status.Status != quotareset.HealthHealthy {
		t.Errorf("Expected healthy inside the buffered window, got %s", status.Status)
	}
}

func TestCheck_StoreFailure(t *testing.T) {
	store := memory.New()
	broken := &brokenLogStore{Storage: store}

	status := newTestMonitor(t, broken).Check(context.Background())

	if status.Status != quotareset.HealthWarning {
		t.Errorf("Expected warning on store failure, got %s", status.Status)
	}

	errAlerts := store.Alerts(memory.PartitionErrors)
	if len(errAlerts) != 1 {
		t.Fatalf("Expected 1 error alert, got %d", len(errAlerts))
	}
	if errAlerts[0].Type != quotareset.AlertHealthCheckFailure {
		t.Errorf("Expected %s alert, got %s", quotareset.AlertHealthCheckFailure, errAlerts[0].Type)
	}
}

func TestCheck_NextTriggerProjections(t *testing.T) {
	store := memory.New()
	appendDailyLog(t, store, time.Hour)

	status := newTestMonitor(t, store).Check(context.Background())

	// testClock is Sunday 2025-06-15 03:00 UTC.
	if want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC); !status.NextDaily.Equal(want) {
		t.Errorf("Expected NextDaily %v, got %v", want, status.NextDaily)
	}
	if want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC); !status.NextWeekly.Equal(want) {
		t.Errorf("Expected NextWeekly %v, got %v", want, status.NextWeekly)
	}
	if want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC); !status.NextMonthly.Equal(want) {
		t.Errorf("Expected NextMonthly %v, got %v", want, status.NextMonthly)
	}
}

// brokenLogStore fails the reset-log query while leaving the alert and status
// writes working, so the failure path itself stays observable.
type brokenLogStore struct {
	*memory.Storage
}

func (b *brokenLogStore) LatestLog(ctx context.Context, kind quotareset.Kind, since time.Time) (*quotareset.LogEntry, error) {
	return nil, errors.New("injected query failure")
}
