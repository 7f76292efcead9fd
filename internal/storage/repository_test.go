package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

func openTestPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultPoolConfig(filepath.Join(dir, "pulsearc.db"), "test-key-32-bytes-long-for-aes")
	cfg.MaxOpenConns = 1

	pool, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Migrate(MigrationsFS); err != nil {
		t.Fatalf("Migrate() err = %v", err)
	}
	return pool
}

func TestWbsRepositoryUpsertAndFind(t *testing.T) {
	pool := openTestPool(t)
	jobs := blocking.NewPool(2)
	repo := NewWbsRepository(pool, jobs)
	ctx := context.Background()

	element := domain.WbsElement{Code: "USC0063201.1.1", Description: "Test task", ProjectCode: "USC0063201", Active: true}
	if err := repo.Upsert(ctx, element); err != nil {
		t.Fatalf("Upsert() err = %v", err)
	}

	got, err := repo.FindByCode(ctx, element.Code)
	if err != nil {
		t.Fatalf("FindByCode() err = %v", err)
	}
	if got == nil || got.Description != "Test task" {
		t.Fatalf("FindByCode() = %+v, want Test task", got)
	}

	missing, err := repo.FindByCode(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("FindByCode() err = %v", err)
	}
	if missing != nil {
		t.Error("expected nil for a missing code")
	}
}

func TestOutboxRepositoryEnqueueListMarkDelivered(t *testing.T) {
	pool := openTestPool(t)
	jobs := blocking.NewPool(2)
	wbsRepo := NewWbsRepository(pool, jobs)
	outboxRepo := NewOutboxRepository(pool, jobs)
	ctx := context.Background()

	if err := wbsRepo.Upsert(ctx, domain.WbsElement{Code: "WBS1", ProjectCode: "P1", Active: true}); err != nil {
		t.Fatalf("wbs upsert err = %v", err)
	}

	entry := domain.TimeEntryOutbox{ID: "entry-1", BlockID: "block-1", WbsCode: "WBS1", Minutes: 30, Description: "work", CreatedAt: time.Now()}
	if err := outboxRepo.Enqueue(ctx, entry); err != nil {
		t.Fatalf("Enqueue() err = %v", err)
	}

	pending, err := outboxRepo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending() err = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() len = %d, want 1", len(pending))
	}

	if err := outboxRepo.MarkDelivered(ctx, entry.ID, time.Now()); err != nil {
		t.Fatalf("MarkDelivered() err = %v", err)
	}

	pending, err = outboxRepo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending() err = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPending() after delivery len = %d, want 0", len(pending))
	}
}

func TestCommandMetricsRepositoryStatsAndPercentiles(t *testing.T) {
	pool := openTestPool(t)
	jobs := blocking.NewPool(2)
	repo := NewCommandMetricsRepository(pool, jobs)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		success := i < 8
		var errType *string
		if !success {
			e := "TestError"
			errType = &e
		}
		metric := domain.CommandMetric{
			ID:             fmt.Sprintf("metric-%d", i),
			Command:        "stats::test",
			Implementation: "new",
			Timestamp:      1000 + int64(i),
			DurationMs:     uint64(100 + i*10),
			Success:        success,
			ErrorType:      errType,
		}
		if err := repo.RecordExecution(ctx, metric); err != nil {
			t.Fatalf("RecordExecution() err = %v", err)
		}
	}

	impl := "new"
	stats, err := repo.GetStats(ctx, "stats::test", &impl, 1000, 2000)
	if err != nil {
		t.Fatalf("GetStats() err = %v", err)
	}
	if stats.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", stats.TotalCount)
	}
	if stats.SuccessCount != 8 {
		t.Errorf("SuccessCount = %d, want 8", stats.SuccessCount)
	}
	if stats.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", stats.ErrorCount)
	}
	if stats.ErrorRate != 0.2 {
		t.Errorf("ErrorRate = %v, want 0.2", stats.ErrorRate)
	}
	// durations sorted: 100..190 step 10; nearest-rank p50 index = 10*50/100 = 5 -> 150
	if stats.P50LatencyMs != 150 {
		t.Errorf("P50LatencyMs = %d, want 150", stats.P50LatencyMs)
	}
}

func TestCommandMetricsRepositoryCleanupOldMetrics(t *testing.T) {
	pool := openTestPool(t)
	jobs := blocking.NewPool(2)
	repo := NewCommandMetricsRepository(pool, jobs)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		repo.RecordExecution(ctx, domain.CommandMetric{ID: fmt.Sprintf("old-%d", i), Command: "cleanup::test", Implementation: "new", Timestamp: 100 + int64(i), DurationMs: 100, Success: true})
	}
	for i := 0; i < 5; i++ {
		repo.RecordExecution(ctx, domain.CommandMetric{ID: fmt.Sprintf("recent-%d", i), Command: "cleanup::test", Implementation: "new", Timestamp: 1000 + int64(i), DurationMs: 100, Success: true})
	}

	deleted, err := repo.CleanupOldMetrics(ctx, 500)
	if err != nil {
		t.Fatalf("CleanupOldMetrics() err = %v", err)
	}
	if deleted != 5 {
		t.Errorf("CleanupOldMetrics() = %d, want 5", deleted)
	}

	recent, err := repo.GetRecentExecutions(ctx, "cleanup::test", 20)
	if err != nil {
		t.Fatalf("GetRecentExecutions() err = %v", err)
	}
	if len(recent) != 5 {
		t.Errorf("GetRecentExecutions() len = %d, want 5", len(recent))
	}
}

func TestCalendarEventRepositoryUpsertIsIdempotentPerUserAndEvent(t *testing.T) {
	pool := openTestPool(t)
	jobs := blocking.NewPool(2)
	repo := NewCalendarEventRepository(pool, jobs)
	ctx := context.Background()

	event := domain.CalendarEvent{
		ID: "row-1", GoogleEventID: "g-1", UserEmail: "user@example.com", Summary: "Standup",
		When: domain.TimeRange{StartTS: 1000, EndTS: 2000},
	}
	if err := repo.Upsert(ctx, event); err != nil {
		t.Fatalf("Upsert() err = %v", err)
	}

	event.Summary = "Standup (updated)"
	if err := repo.Upsert(ctx, event); err != nil {
		t.Fatalf("Upsert() second call err = %v", err)
	}

	res := repo.FindByGoogleEventID(ctx, "user@example.com", "g-1")
	val, found, err := res.Unwrap()
	if err != nil {
		t.Fatalf("FindByGoogleEventID() err = %v", err)
	}
	if !found {
		t.Fatal("expected event to be found")
	}
	if val.Summary != "Standup (updated)" {
		t.Errorf("Summary = %q, want updated summary", val.Summary)
	}
}
