package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsearc/agent-core/internal/domain"
)

type stubOutboxRepo struct {
	pending    []domain.TimeEntryOutbox
	delivered  []string
	failures   map[string]string
}

func (r *stubOutboxRepo) ListPending(ctx context.Context, limit int) ([]domain.TimeEntryOutbox, error) {
	return r.pending, nil
}

func (r *stubOutboxRepo) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	r.delivered = append(r.delivered, id)
	return nil
}

func (r *stubOutboxRepo) RecordFailure(ctx context.Context, id string, reason string) error {
	if r.failures == nil {
		r.failures = make(map[string]string)
	}
	r.failures[id] = reason
	return nil
}

type stubDeliverer struct {
	failIDs map[string]bool
}

func (d *stubDeliverer) Deliver(ctx context.Context, entry domain.TimeEntryOutbox) error {
	if d.failIDs[entry.ID] {
		return errors.New("downstream rejected entry")
	}
	return nil
}

func TestOutboxWorkerDeliversAndMarksSuccess(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.TimeEntryOutbox{{ID: "e1"}, {ID: "e2"}}}
	deliverer := &stubDeliverer{}
	worker := NewOutboxWorker(OutboxWorkerConfig{}, repo, deliverer)

	if err := worker.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() err = %v", err)
	}
	if len(repo.delivered) != 2 {
		t.Errorf("delivered = %v, want 2 entries", repo.delivered)
	}
}

func TestOutboxWorkerRecordsFailureWithoutMarkingDelivered(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.TimeEntryOutbox{{ID: "e1"}}}
	deliverer := &stubDeliverer{failIDs: map[string]bool{"e1": true}}
	worker := NewOutboxWorker(OutboxWorkerConfig{}, repo, deliverer)

	if err := worker.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() err = %v", err)
	}
	if len(repo.delivered) != 0 {
		t.Error("expected no delivered entries when delivery fails")
	}
	if repo.failures["e1"] == "" {
		t.Error("expected a recorded failure reason for e1")
	}
}

func TestOutboxWorkerNoOpWhenNothingPending(t *testing.T) {
	repo := &stubOutboxRepo{}
	worker := NewOutboxWorker(OutboxWorkerConfig{}, repo, &stubDeliverer{})

	if err := worker.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() err = %v", err)
	}
}
