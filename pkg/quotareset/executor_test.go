package quotareset_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/luminalens/quotareset/pkg/quotareset"
	"github.com/luminalens/quotareset/storage/memory"
)

var testClock = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testClock }

func newTestExecutor(t *testing.T, store quotareset.Store) *quotareset.Executor {
	t.Helper()
	executor, err := quotareset.NewExecutor(store, quotareset.Config{
		Now: fixedNow,
	})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	return executor
}

func seedUsers(store *memory.Storage, provisioned, unprovisioned int) {
	for i := 0; i < provisioned; i++ {
		count := int64(5)
		store.PutUser(&quotareset.User{
			ID:           fmt.Sprintf("user-%04d", i),
			UsageCount:   &count,
			DailyUsage:   3,
			WeeklyUsage:  12,
			MonthlyUsage: 40,
		})
	}
	for i := 0; i < unprovisioned; i++ {
		store.PutUser(&quotareset.User{
			ID:           fmt.Sprintf("legacy-%04d", i),
			DailyUsage:   99,
			WeeklyUsage:  99,
			MonthlyUsage: 99,
		})
	}
}

func TestNewExecutor(t *testing.T) {
	if _, err := quotareset.NewExecutor(nil, quotareset.Config{}); err != quotareset.ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}

	executor, err := quotareset.NewExecutor(memory.New(), quotareset.Config{})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	if executor == nil {
		t.Fatal("Expected non-nil executor")
	}
}

func TestRun_DailyReset(t *testing.T) {
	store := memory.New()
	seedUsers(store, 3, 2)
	executor := newTestExecutor(t, store)

	outcome := executor.Run(context.Background(), quotareset.KindDaily)

	if !outcome.Completed() {
		t.Fatalf("Expected completed run, got %s (%s)", outcome.Status, outcome.Err)
	}
	if outcome.UsersReset != 3 {
		t.Errorf("Expected 3 users reset, got %d", outcome.UsersReset)
	}
	if outcome.Batches != 1 {
		t.Errorf("Expected 1 batch, got %d", outcome.Batches)
	}

	// Daily counters are zeroed and stamped; other periods stay untouched.
	u := store.GetUser("user-0000")
	if u.DailyUsage != 0 {
		t.Errorf("Expected DailyUsage 0, got %d", u.DailyUsage)
	}
	if !u.LastDailyReset.Equal(testClock) {
		t.Errorf("Expected LastDailyReset %v, got %v", testClock, u.LastDailyReset)
	}
	if u.WeeklyUsage != 12 || u.MonthlyUsage != 40 {
		t.Errorf("Weekly/monthly usage mutated: %d/%d", u.WeeklyUsage, u.MonthlyUsage)
	}
	if u.UsageCount == nil || *u.UsageCount != 5 {
		t.Errorf("UsageCount mutated: %v", u.UsageCount)
	}

	// Shared config gets the restored limit and the daily stamp.
	limits, err := store.Limits(context.Background())
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if limits.AnonymousLimit != 10 {
		t.Errorf("Expected AnonymousLimit 10, got %d", limits.AnonymousLimit)
	}
	if !limits.LastDailyReset.Equal(testClock) {
		t.Errorf("Expected LastDailyReset %v, got %v", testClock, limits.LastDailyReset)
	}
	if !limits.LastWeeklyReset.IsZero() || !limits.LastMonthlyReset.IsZero() {
		t.Error("Weekly/monthly stamps written by a daily run")
	}

	logs := store.Logs("daily")
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != quotareset.StatusCompleted || entry.UsersReset != 3 {
		t.Errorf("Unexpected log entry: %+v", entry)
	}
	if entry.AnonymousLimitReset == nil || *entry.AnonymousLimitReset != 10 {
		t.Errorf("Expected AnonymousLimitReset 10, got %v", entry.AnonymousLimitReset)
	}
	if entry.ID == "" {
		t.Error("Expected a generated log entry ID")
	}
}

func TestRun_UnprovisionedUsersUntouched(t *testing.T) {
	store := memory.New()
	seedUsers(store, 2, 1)
	before := store.GetUser("legacy-0000")

	executor := newTestExecutor(t, store)
	for _, kind := range quotareset.Kinds {
		if outcome := executor.Run(context.Background(), kind); !outcome.Completed() {
			t.Fatalf("%s run failed: %s", kind, outcome.Err)
		}
	}

	after := store.GetUser("legacy-0000")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Unprovisioned user mutated by resets:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRun_WeeklyStampsOnlyItsOwnField(t *testing.T) {
	store := memory.New()
	store.SetLimits(&quotareset.Limits{AnonymousLimit: 77})
	seedUsers(store, 1, 0)

	executor := newTestExecutor(t, store)
	outcome := executor.Run(context.Background(), quotareset.KindWeekly)
	if !outcome.Completed() {
		t.Fatalf("Weekly run failed: %s", outcome.Err)
	}

	u := store.GetUser("user-0000")
	if u.WeeklyUsage != 0 {
		t.Errorf("Expected WeeklyUsage 0, got %d", u.WeeklyUsage)
	}
	if u.DailyUsage != 3 || u.MonthlyUsage != 40 {
		t.Errorf("Daily/monthly usage mutated: %d/%d", u.DailyUsage, u.MonthlyUsage)
	}

	limits, _ := store.Limits(context.Background())
	if limits.AnonymousLimit != 77 {
		t.Errorf("Weekly run changed the anonymous limit: %d", limits.AnonymousLimit)
	}
	if !limits.LastWeeklyReset.Equal(testClock) {
		t.Errorf("Expected LastWeeklyReset %v, got %v", testClock, limits.LastWeeklyReset)
	}
	if !limits.LastDailyReset.IsZero() {
		t.Error("Weekly run stamped the daily field")
	}

	logs := store.Logs("weekly")
	if len(logs) != 1 {
		t.Fatalf("Expected 1 weekly log entry, got %d", len(logs))
	}
	if logs[0].AnonymousLimitReset != nil {
		t.Error("Weekly log entry carries an anonymous limit restore")
	}
}

func TestRun_BoundedBatches(t *testing.T) {
	store := memory.New()
	store.SetBatchLimit(500)
	seedUsers(store, 1200, 0)

	executor := newTestExecutor(t, store)
	outcome := executor.Run(context.Background(), quotareset.KindDaily)

	if !outcome.Completed() {
		t.Fatalf("Run failed: %s", outcome.Err)
	}
	if outcome.UsersReset != 1200 {
		t.Errorf("Expected 1200 users reset, got %d", outcome.UsersReset)
	}
	if outcome.Batches != 3 {
		t.Errorf("Expected 3 batches (500+500+200), got %d", outcome.Batches)
	}
}

func TestRun_IdempotentInEffect(t *testing.T) {
	store := memory.New()
	store.SetBatchLimit(10)
	seedUsers(store, 25, 0)
	executor := newTestExecutor(t, store)

	first := executor.Run(context.Background(), quotareset.KindMonthly)
	second := executor.Run(context.Background(), quotareset.KindMonthly)

	if !first.Completed() || !second.Completed() {
		t.Fatalf("Expected both runs completed: %s / %s", first.Status, second.Status)
	}
	if second.UsersReset != first.UsersReset {
		t.Errorf("Re-run reset a different user count: %d vs %d", second.UsersReset, first.UsersReset)
	}
	if u := store.GetUser("user-0000"); u.MonthlyUsage != 0 {
		t.Errorf("Expected MonthlyUsage 0 after re-run, got %d", u.MonthlyUsage)
	}

	// Idempotent in effect, not in observability: each run leaves its own entry.
	if logs := store.Logs("monthly"); len(logs) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(logs))
	}
}

func TestRun_InvalidKind(t *testing.T) {
	store := memory.New()
	executor := newTestExecutor(t, store)

	outcome := executor.Run(context.Background(), quotareset.Kind("hourly"))
	if outcome.Completed() {
		t.Fatal("Expected failed outcome for unknown kind")
	}
	if len(store.Logs(memory.PartitionErrors)) != 1 {
		t.Errorf("Expected 1 error log entry, got %d", len(store.Logs(memory.PartitionErrors)))
	}
}

func TestRun_MissingLimitsTolerated(t *testing.T) {
	store := memory.New()
	seedUsers(store, 1, 0)
	executor := newTestExecutor(t, store)

	outcome := executor.Run(context.Background(), quotareset.KindDaily)
	if !outcome.Completed() {
		t.Fatalf("Run failed on missing limits singleton: %s", outcome.Err)
	}

	limits, err := store.Limits(context.Background())
	if err != nil {
		t.Fatalf("Limits not created by the run: %v", err)
	}
	if limits.AnonymousLimit != 10 {
		t.Errorf("Expected default AnonymousLimit 10, got %d", limits.AnonymousLimit)
	}
}

func TestRun_BatchFailureKeepsCommittedBatches(t *testing.T) {
	store := memory.New()
	store.SetBatchLimit(10)
	seedUsers(store, 25, 0)

	flaky := &flakyStore{Storage: store, failApplyAfter: 1}
	executor := newTestExecutor(t, flaky)

	outcome := executor.Run(context.Background(), quotareset.KindDaily)
	if outcome.Completed() {
		t.Fatal("Expected failed outcome")
	}
	if outcome.UsersReset != 10 || outcome.Batches != 1 {
		t.Errorf("Expected 10 users in 1 committed batch, got %d in %d", outcome.UsersReset, outcome.Batches)
	}

	// The committed batch stays committed.
	if u := store.GetUser("user-0000"); u.DailyUsage != 0 {
		t.Errorf("First batch rolled back: DailyUsage %d", u.DailyUsage)
	}
	if u := store.GetUser("user-0020"); u.DailyUsage != 3 {
		t.Errorf("Unreached user mutated: DailyUsage %d", u.DailyUsage)
	}

	errs := store.Logs(memory.PartitionErrors)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error log entry, got %d", len(errs))
	}
	if errs[0].UsersReset != 10 || errs[0].Error == "" {
		t.Errorf("Unexpected error entry: %+v", errs[0])
	}
}

func TestRun_CancelledRunWritesNoLog(t *testing.T) {
	store := memory.New()
	seedUsers(store, 5, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flaky := &flakyStore{Storage: store, failApplyAfter: 0}
	executor := newTestExecutor(t, flaky)

	outcome := executor.Run(ctx, quotareset.KindDaily)
	if outcome.Completed() {
		t.Fatal("Expected failed outcome")
	}
	if len(store.Logs(memory.PartitionErrors)) != 0 {
		t.Error("Cancelled run wrote an error log entry")
	}
}

// flakyStore wraps the memory store and injects failures, mirroring how a
// backend outage surfaces mid-run.
type flakyStore struct {
	*memory.Storage
	failApplyAfter int // ApplyResets calls that succeed before failing
	failWeekly     bool
	applyCalls     int
}

func (f *flakyStore) ApplyResets(ctx context.Context, kind quotareset.Kind, userIDs []string, at time.Time) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.failWeekly && kind == quotareset.KindWeekly {
		return errors.New("injected weekly failure")
	}
	if f.failWeekly {
		return f.Storage.ApplyResets(ctx, kind, userIDs, at)
	}
	if f.applyCalls >= f.failApplyAfter {
		return errors.New("injected batch failure")
	}
	f.applyCalls++
	return f.Storage.ApplyResets(ctx, kind, userIDs, at)
}
