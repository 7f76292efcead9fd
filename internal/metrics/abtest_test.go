package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsearc/agent-core/internal/domain"
)

type stubRecorder struct {
	recorded []domain.CommandMetric
	legacy   domain.CommandStats
	newImpl  domain.CommandStats
}

func (s *stubRecorder) RecordExecution(ctx context.Context, metric domain.CommandMetric) error {
	s.recorded = append(s.recorded, metric)
	return nil
}

func (s *stubRecorder) CompareImplementations(ctx context.Context, command string, startTS, endTS int64) (domain.CommandStats, domain.CommandStats, error) {
	return s.legacy, s.newImpl, nil
}

func TestABRecorderRecordPersistsSuccessAndFailure(t *testing.T) {
	repo := &stubRecorder{}
	rec := NewABRecorder(repo)

	if err := rec.Record(context.Background(), "classify_block", "new", 10*time.Millisecond, true, ""); err != nil {
		t.Fatalf("Record() err = %v", err)
	}
	if err := rec.Record(context.Background(), "classify_block", "legacy", 20*time.Millisecond, false, "timeout"); err != nil {
		t.Fatalf("Record() err = %v", err)
	}

	if len(repo.recorded) != 2 {
		t.Fatalf("recorded = %d entries, want 2", len(repo.recorded))
	}
	if repo.recorded[0].Success != true || repo.recorded[0].ErrorType != nil {
		t.Errorf("first metric = %+v, want success with no error type", repo.recorded[0])
	}
	if repo.recorded[1].Success || repo.recorded[1].ErrorType == nil || *repo.recorded[1].ErrorType != "timeout" {
		t.Errorf("second metric = %+v, want failure with error type timeout", repo.recorded[1])
	}
}

func TestABRecorderTimeRecordsSuccessfulRun(t *testing.T) {
	repo := &stubRecorder{}
	rec := NewABRecorder(repo)

	err := rec.Time(context.Background(), "sync_calendar", "new", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Time() err = %v", err)
	}
	if len(repo.recorded) != 1 || !repo.recorded[0].Success {
		t.Errorf("recorded = %+v, want a single successful entry", repo.recorded)
	}
}

func TestABRecorderTimePropagatesFunctionError(t *testing.T) {
	repo := &stubRecorder{}
	rec := NewABRecorder(repo)
	boom := errors.New("sync failed")

	err := rec.Time(context.Background(), "sync_calendar", "legacy", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Time() err = %v, want %v", err, boom)
	}
	if len(repo.recorded) != 1 || repo.recorded[0].Success {
		t.Errorf("recorded = %+v, want a single failed entry", repo.recorded)
	}
}

func TestABRecorderCompareReturnsBothImplementations(t *testing.T) {
	repo := &stubRecorder{
		legacy:  domain.CommandStats{Implementation: "legacy", TotalCount: 10},
		newImpl: domain.CommandStats{Implementation: "new", TotalCount: 20},
	}
	rec := NewABRecorder(repo)

	legacy, newImpl, err := rec.Compare(context.Background(), "classify_block", 0, 1000)
	if err != nil {
		t.Fatalf("Compare() err = %v", err)
	}
	if legacy.TotalCount != 10 || newImpl.TotalCount != 20 {
		t.Errorf("Compare() = %+v, %+v", legacy, newImpl)
	}
}
