package metrics

import (
	"os"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// ExporterConfig configures the DogStatsD UDP client.
type ExporterConfig struct {
	// Addr is the collector's UDP address, e.g. "127.0.0.1:8125".
	Addr string
	// Namespace prefixes every metric name, e.g. "pulsearc.".
	Namespace string
	// Tags are attached to every metric in addition to the DD_ENV/DD_SERVICE
	// defaults read from the environment.
	Tags []string
}

// DogStatsDExporter ships PerformanceMetrics snapshots to a DogStatsD
// collector as gauges over non-blocking UDP.
type DogStatsDExporter struct {
	client *statsd.Client
}

// NewDogStatsDExporter dials the collector. The underlying socket is
// non-blocking: a slow or unreachable collector never stalls callers.
func NewDogStatsDExporter(cfg ExporterConfig) (*DogStatsDExporter, error) {
	tags := append([]string{}, cfg.Tags...)
	if env := os.Getenv("DD_ENV"); env != "" {
		tags = append(tags, "env:"+env)
	}
	if svc := os.Getenv("DD_SERVICE"); svc != "" {
		tags = append(tags, "service:"+svc)
	}

	client, err := statsd.New(cfg.Addr,
		statsd.WithNamespace(cfg.Namespace),
		statsd.WithTags(tags),
	)
	if err != nil {
		return nil, err
	}
	return &DogStatsDExporter{client: client}, nil
}

// Close flushes any buffered metrics and closes the socket.
func (e *DogStatsDExporter) Close() error {
	return e.client.Close()
}

// ExportPerformance publishes one gauge per registered metric: count,
// error count (where applicable), mean latency, and p95 latency.
func (e *DogStatsDExporter) ExportPerformance(p *PerformanceMetrics) error {
	calls, caches, dbs, fetches, observers := p.Names()

	for _, name := range calls {
		s := p.Call(name).Snapshot()
		tags := []string{"name:" + name}
		e.gauge("call.total", float64(s.Total), tags)
		e.gauge("call.errors", float64(s.Errors), tags)
		e.gauge("call.latency_ms.mean", s.Latency.Mean, tags)
		e.gauge("call.latency_ms.p95", p.Call(name).latency.Percentile(95), tags)
	}
	for _, name := range caches {
		s := p.Cache(name).Snapshot()
		tags := []string{"name:" + name}
		e.gauge("cache.hits", float64(s.Hits), tags)
		e.gauge("cache.misses", float64(s.Misses), tags)
		e.gauge("cache.latency_ms.mean", s.Latency.Mean, tags)
	}
	for _, name := range dbs {
		s := p.Db(name).Snapshot()
		tags := []string{"name:" + name}
		e.gauge("db.queries", float64(s.Queries), tags)
		e.gauge("db.errors", float64(s.Errors), tags)
		e.gauge("db.latency_ms.mean", s.Latency.Mean, tags)
	}
	for _, name := range fetches {
		s := p.Fetch(name).Snapshot()
		tags := []string{"name:" + name}
		e.gauge("fetch.runs", float64(s.Runs), tags)
		e.gauge("fetch.items_sum", float64(s.ItemsSum), tags)
		e.gauge("fetch.latency_ms.mean", s.Latency.Mean, tags)
	}
	for _, name := range observers {
		s := p.Observer(name).Snapshot()
		tags := []string{"name:" + name}
		e.gauge("observer.captures", float64(s.Captures), tags)
		e.gauge("observer.dropped", float64(s.Dropped), tags)
		e.gauge("observer.latency_ms.mean", s.Latency.Mean, tags)
	}
	return nil
}

func (e *DogStatsDExporter) gauge(name string, value float64, tags []string) {
	// DogStatsD client errors are transport-level (dropped UDP datagram) and
	// not actionable per call; callers care about the aggregate export, not
	// individual gauge failures.
	_ = e.client.Gauge(name, value, tags, 1)
}

// Timing reports a single duration as a DogStatsD timing metric.
func (e *DogStatsDExporter) Timing(name string, d time.Duration, tags []string) {
	_ = e.client.Timing(name, d, tags, 1)
}

// Count increments a DogStatsD counter by delta.
func (e *DogStatsDExporter) Count(name string, delta int64, tags []string) {
	_ = e.client.Count(name, delta, tags, 1)
}
