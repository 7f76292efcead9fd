package wbscache

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsearc/agent-core/internal/domain"
)

type stubRepo struct {
	calls int
	elem  *domain.WbsElement
	err   error
}

func (s *stubRepo) FindByCode(ctx context.Context, code string) (*domain.WbsElement, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.elem, nil
}

func TestGetOrFetchNormalizesCodeAndQueriesRepoOnce(t *testing.T) {
	repo := &stubRepo{elem: &domain.WbsElement{Code: "USC0063201.1.1", Active: true}}
	c := New()

	if _, err := c.GetOrFetch(context.Background(), "usc0063201.1.1", repo); err != nil {
		t.Fatalf("GetOrFetch() err = %v", err)
	}
	if _, err := c.GetOrFetch(context.Background(), "USC0063201.1.1", repo); err != nil {
		t.Fatalf("GetOrFetch() err = %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("repo.calls = %d, want 1", repo.calls)
	}
}

func TestGetOrFetchCachesNegativeMiss(t *testing.T) {
	repo := &stubRepo{elem: nil}
	c := New()

	elem, err := c.GetOrFetch(context.Background(), "GHOST", repo)
	if err != nil || elem != nil {
		t.Fatalf("GetOrFetch() = %v, %v, want nil, nil", elem, err)
	}

	elem, err = c.GetOrFetch(context.Background(), "GHOST", repo)
	if err != nil || elem != nil {
		t.Fatalf("second GetOrFetch() = %v, %v, want nil, nil", elem, err)
	}
	if repo.calls != 1 {
		t.Errorf("repo.calls = %d, want 1 (negative hit should avoid second query)", repo.calls)
	}
}

func TestGetOrFetchNeverCachesTransientError(t *testing.T) {
	repo := &stubRepo{err: errors.New("database unavailable")}
	c := New()

	if _, err := c.GetOrFetch(context.Background(), "X", repo); err == nil {
		t.Fatal("expected error to propagate")
	}
	if _, err := c.GetOrFetch(context.Background(), "X", repo); err == nil {
		t.Fatal("expected error to propagate again, not be cached")
	}
	if repo.calls != 2 {
		t.Errorf("repo.calls = %d, want 2 (errors must not be cached)", repo.calls)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	repo := &stubRepo{elem: &domain.WbsElement{Code: "A", Active: true}}
	c := New()

	c.GetOrFetch(context.Background(), "A", repo)
	c.Invalidate("A")
	c.GetOrFetch(context.Background(), "A", repo)

	if repo.calls != 2 {
		t.Errorf("repo.calls = %d, want 2 after invalidate", repo.calls)
	}
}

func TestEmptyCodeIsInvalidInput(t *testing.T) {
	c := New()
	if _, err := c.GetOrFetch(context.Background(), "   ", &stubRepo{}); err == nil {
		t.Fatal("expected error for empty code")
	}
}
