package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestPerformanceMetricsCallLazyCreationAndReuse(t *testing.T) {
	p := New()
	a := p.Call("classify")
	b := p.Call("classify")
	if a != b {
		t.Fatal("expected the same CallMetrics instance for the same name")
	}

	a.Observe(50*time.Millisecond, nil)
	a.Observe(100*time.Millisecond, errors.New("boom"))

	snap := a.Snapshot()
	if snap.Total != 2 {
		t.Errorf("Total = %d, want 2", snap.Total)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
}

func TestPerformanceMetricsCacheHitMiss(t *testing.T) {
	p := New()
	c := p.Cache("wbs")
	c.Hit(time.Microsecond)
	c.Hit(time.Microsecond)
	c.Miss(time.Microsecond)

	snap := c.Snapshot()
	if snap.Hits != 2 || snap.Misses != 1 {
		t.Errorf("Snapshot = %+v, want Hits=2 Misses=1", snap)
	}
}

func TestPerformanceMetricsNamesListsRegisteredCategories(t *testing.T) {
	p := New()
	p.Call("a")
	p.Db("b")
	p.Fetch("c")
	p.Observer("d")
	p.Cache("e")

	calls, caches, dbs, fetches, observers := p.Names()
	if len(calls) != 1 || len(caches) != 1 || len(dbs) != 1 || len(fetches) != 1 || len(observers) != 1 {
		t.Errorf("Names() = %v %v %v %v %v, want one of each", calls, caches, dbs, fetches, observers)
	}
}

func TestFetchMetricsAccumulatesItemCounts(t *testing.T) {
	p := New()
	f := p.Fetch("calendar_sync")
	f.Observe(10*time.Millisecond, 3)
	f.Observe(20*time.Millisecond, 5)

	snap := f.Snapshot()
	if snap.Runs != 2 {
		t.Errorf("Runs = %d, want 2", snap.Runs)
	}
	if snap.ItemsSum != 8 {
		t.Errorf("ItemsSum = %d, want 8", snap.ItemsSum)
	}
}
