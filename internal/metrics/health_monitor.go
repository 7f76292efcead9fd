package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthMonitorConfig configures the host-stats sampling loop.
type HealthMonitorConfig struct {
	// Interval between samples. Defaults to 30s.
	Interval time.Duration
}

// HealthMonitor samples process/host CPU and memory usage on a ticker and
// republishes them as DogStatsD gauges, following the start/stop/ticker
// loop shape used for the upstream RPC endpoint health checker.
type HealthMonitor struct {
	interval time.Duration
	exporter *DogStatsDExporter

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
}

// NewHealthMonitor creates a monitor publishing samples through exporter.
func NewHealthMonitor(cfg HealthMonitorConfig, exporter *DogStatsDExporter) *HealthMonitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{interval: interval, exporter: exporter}
}

// Start begins the sampling loop in a background goroutine.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.stopCh = make(chan struct{})
	h.stopOnce = sync.Once{}
	h.running = true
	h.mu.Unlock()

	go h.loop(ctx)
}

// Stop halts the sampling loop. Safe to call multiple times.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.running = false
}

func (h *HealthMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sample(ctx)
		}
	}
}

func (h *HealthMonitor) sample(ctx context.Context) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuPercents) > 0 {
		h.exporter.gauge("host.cpu_percent", cpuPercents[0], nil)
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		h.exporter.gauge("host.mem_used_percent", vmem.UsedPercent, nil)
	}
}
