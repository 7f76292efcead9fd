// Package metrics aggregates in-process performance counters and ships
// them to a DogStatsD collector, alongside periodic host health samples
// and the legacy-vs-new command A/B recorder.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/histogram"
)

// histogram bounds tuned for the latency ranges each category actually
// sees: sub-millisecond cache hits up to multi-second LLM calls.
const (
	callMinMs     = 0.1
	callMaxMs     = 60_000
	cacheMinMs    = 0.001
	cacheMaxMs    = 50
	dbMinMs       = 0.05
	dbMaxMs       = 10_000
	fetchMinMs    = 1
	fetchMaxMs    = 120_000
	observerMinMs = 0.01
	observerMaxMs = 5_000
)

// CallMetrics tracks outbound calls (LLM classification requests, token
// refreshes) — count, error count, and a latency histogram.
type CallMetrics struct {
	total   atomic.Uint64
	errors  atomic.Uint64
	latency *histogram.Histogram
}

func newCallMetrics() *CallMetrics {
	return &CallMetrics{latency: histogram.New(callMinMs, callMaxMs)}
}

// Observe records one call's outcome and duration.
func (c *CallMetrics) Observe(d time.Duration, err error) {
	c.total.Add(1)
	if err != nil {
		c.errors.Add(1)
	}
	c.latency.Observe(float64(d.Milliseconds()))
}

// Snapshot is a point-in-time read of a CallMetrics instance.
type CallSnapshot struct {
	Total   uint64
	Errors  uint64
	Latency histogram.Snapshot
}

func (c *CallMetrics) Snapshot() CallSnapshot {
	return CallSnapshot{Total: c.total.Load(), Errors: c.errors.Load(), Latency: c.latency.Snapshot()}
}

// CacheMetrics tracks hit/miss counts and lookup latency for a cache.
type CacheMetrics struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	latency *histogram.Histogram
}

func newCacheMetrics() *CacheMetrics {
	return &CacheMetrics{latency: histogram.New(cacheMinMs, cacheMaxMs)}
}

func (c *CacheMetrics) Hit(d time.Duration) {
	c.hits.Add(1)
	c.latency.Observe(float64(d.Milliseconds()))
}

func (c *CacheMetrics) Miss(d time.Duration) {
	c.misses.Add(1)
	c.latency.Observe(float64(d.Milliseconds()))
}

type CacheSnapshot struct {
	Hits    uint64
	Misses  uint64
	Latency histogram.Snapshot
}

func (c *CacheMetrics) Snapshot() CacheSnapshot {
	return CacheSnapshot{Hits: c.hits.Load(), Misses: c.misses.Load(), Latency: c.latency.Snapshot()}
}

// DbMetrics tracks query counts and latency per storage repository.
type DbMetrics struct {
	queries atomic.Uint64
	errors  atomic.Uint64
	latency *histogram.Histogram
}

func newDbMetrics() *DbMetrics {
	return &DbMetrics{latency: histogram.New(dbMinMs, dbMaxMs)}
}

func (d *DbMetrics) Observe(dur time.Duration, err error) {
	d.queries.Add(1)
	if err != nil {
		d.errors.Add(1)
	}
	d.latency.Observe(float64(dur.Milliseconds()))
}

type DbSnapshot struct {
	Queries uint64
	Errors  uint64
	Latency histogram.Snapshot
}

func (d *DbMetrics) Snapshot() DbSnapshot {
	return DbSnapshot{Queries: d.queries.Load(), Errors: d.errors.Load(), Latency: d.latency.Snapshot()}
}

// FetchMetrics tracks calendar/outbox delivery fetch-and-sync cycles.
type FetchMetrics struct {
	runs     atomic.Uint64
	itemsSum atomic.Uint64
	latency  *histogram.Histogram
}

func newFetchMetrics() *FetchMetrics {
	return &FetchMetrics{latency: histogram.New(fetchMinMs, fetchMaxMs)}
}

func (f *FetchMetrics) Observe(d time.Duration, itemCount int) {
	f.runs.Add(1)
	f.itemsSum.Add(uint64(itemCount))
	f.latency.Observe(float64(d.Milliseconds()))
}

type FetchSnapshot struct {
	Runs      uint64
	ItemsSum  uint64
	Latency   histogram.Snapshot
}

func (f *FetchMetrics) Snapshot() FetchSnapshot {
	return FetchSnapshot{Runs: f.runs.Load(), ItemsSum: f.itemsSum.Load(), Latency: f.latency.Snapshot()}
}

// ObserverMetrics tracks OS-hook snapshot capture cadence and latency.
type ObserverMetrics struct {
	captures atomic.Uint64
	dropped  atomic.Uint64
	latency  *histogram.Histogram
}

func newObserverMetrics() *ObserverMetrics {
	return &ObserverMetrics{latency: histogram.New(observerMinMs, observerMaxMs)}
}

func (o *ObserverMetrics) Observe(d time.Duration, dropped bool) {
	o.captures.Add(1)
	if dropped {
		o.dropped.Add(1)
	}
	o.latency.Observe(float64(d.Milliseconds()))
}

type ObserverSnapshot struct {
	Captures uint64
	Dropped  uint64
	Latency  histogram.Snapshot
}

func (o *ObserverMetrics) Snapshot() ObserverSnapshot {
	return ObserverSnapshot{Captures: o.captures.Load(), Dropped: o.dropped.Load(), Latency: o.latency.Snapshot()}
}

// PerformanceMetrics is the process-wide aggregator: one named instance
// per category, created lazily on first use and reused afterward.
type PerformanceMetrics struct {
	mu        sync.RWMutex
	calls     map[string]*CallMetrics
	caches    map[string]*CacheMetrics
	dbs       map[string]*DbMetrics
	fetches   map[string]*FetchMetrics
	observers map[string]*ObserverMetrics
}

// New creates an empty PerformanceMetrics aggregator.
func New() *PerformanceMetrics {
	return &PerformanceMetrics{
		calls:     make(map[string]*CallMetrics),
		caches:     make(map[string]*CacheMetrics),
		dbs:       make(map[string]*DbMetrics),
		fetches:   make(map[string]*FetchMetrics),
		observers: make(map[string]*ObserverMetrics),
	}
}

func (p *PerformanceMetrics) Call(name string) *CallMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.calls[name]
	if !ok {
		m = newCallMetrics()
		p.calls[name] = m
	}
	return m
}

func (p *PerformanceMetrics) Cache(name string) *CacheMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.caches[name]
	if !ok {
		m = newCacheMetrics()
		p.caches[name] = m
	}
	return m
}

func (p *PerformanceMetrics) Db(name string) *DbMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.dbs[name]
	if !ok {
		m = newDbMetrics()
		p.dbs[name] = m
	}
	return m
}

func (p *PerformanceMetrics) Fetch(name string) *FetchMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.fetches[name]
	if !ok {
		m = newFetchMetrics()
		p.fetches[name] = m
	}
	return m
}

func (p *PerformanceMetrics) Observer(name string) *ObserverMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.observers[name]
	if !ok {
		m = newObserverMetrics()
		p.observers[name] = m
	}
	return m
}

// Names returns the registered metric names per category, for exporters
// that need to iterate the full set without racing registration.
func (p *PerformanceMetrics) Names() (calls, caches, dbs, fetches, observers []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for n := range p.calls {
		calls = append(calls, n)
	}
	for n := range p.caches {
		caches = append(caches, n)
	}
	for n := range p.dbs {
		dbs = append(dbs, n)
	}
	for n := range p.fetches {
		fetches = append(fetches, n)
	}
	for n := range p.observers {
		observers = append(observers, n)
	}
	return
}
