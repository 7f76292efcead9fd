// Package scheduler runs PulseArc's periodic background jobs (calendar
// sync, block classification, outbox delivery, retention cleanup) on
// cron-style schedules with explicit start/stop lifecycle management.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pulsearc/agent-core/infrastructure/logging"
	"github.com/pulsearc/agent-core/infrastructure/state"
)

// RunRecord is the outcome of a single Lifecycle run, persisted so a
// restarted agent (or a status/health check) can tell how a scheduled job
// last went without waiting for its next tick.
type RunRecord struct {
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// Job is a single scheduled unit of work. It receives a context bounded by
// the Lifecycle's per-run job timeout.
type Job func(ctx context.Context) error

// Lifecycle wraps a robfig/cron schedule around a Job with explicit
// Start/Stop semantics, generalizing the teacher's interval-based
// internal/marble.Worker to cron expressions and adding a per-run timeout
// and cancellation-token reset between runs.
type Lifecycle struct {
	name       string
	cronExpr   string
	jobTimeout time.Duration
	fn         Job
	logger     *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	runState *state.PersistentState
}

// NewLifecycle builds a Lifecycle that invokes fn on cronExpr (a 6-field
// seconds-resolution cron expression, e.g. "0 */15 * * * *" for every 15
// minutes), each run bounded by jobTimeout.
func NewLifecycle(name, cronExpr string, jobTimeout time.Duration, fn Job) *Lifecycle {
	runState, _ := state.NewPersistentState(state.Config{
		Backend:   state.NewMemoryBackend(5 * time.Minute),
		KeyPrefix: "scheduler_run:",
	})
	return &Lifecycle{
		name:       name,
		cronExpr:   cronExpr,
		jobTimeout: jobTimeout,
		fn:         fn,
		logger:     logging.New(name, "info", "json"),
		runState:   runState,
	}
}

// Start registers the job against the cron schedule and begins running it.
// Returns an error if the Lifecycle is already running.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("scheduler %s already running", l.name)
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(l.cronExpr, func() { l.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("scheduler %s: register cron job: %w", l.name, err)
	}

	c.Start()
	l.cron = c
	l.running = true
	l.logger.Info(ctx, "scheduler started", map[string]interface{}{"cron": l.cronExpr})
	return nil
}

// Stop halts the cron schedule and waits for any in-flight run to finish.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return fmt.Errorf("scheduler %s not running", l.name)
	}

	stopCtx := l.cron.Stop()
	<-stopCtx.Done()
	l.cron = nil
	l.running = false
	l.logger.Info(context.Background(), "scheduler stopped", nil)
	if l.runState != nil {
		_ = l.runState.Close(context.Background())
	}
	return nil
}

// LastRun returns the most recently recorded run outcome, if any run has
// completed yet.
func (l *Lifecycle) LastRun(ctx context.Context) (RunRecord, bool) {
	if l.runState == nil {
		return RunRecord{}, false
	}
	data, err := l.runState.Load(ctx, l.name)
	if err != nil {
		return RunRecord{}, false
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, false
	}
	return rec, true
}

func (l *Lifecycle) recordRun(ctx context.Context, started time.Time, runErr error) {
	if l.runState == nil {
		return
	}
	rec := RunRecord{StartedAt: started, Duration: time.Since(started), Success: runErr == nil}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := l.runState.Save(ctx, l.name, data); err != nil {
		l.logger.Warn(ctx, "failed to persist scheduler run record", map[string]interface{}{"error": err.Error()})
	}
}

// IsRunning reports whether the Lifecycle is currently scheduled.
func (l *Lifecycle) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// RunNow invokes the job immediately, outside the cron schedule, bounded by
// the same per-run job timeout. Used by tests and manual triggers.
func (l *Lifecycle) RunNow(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, l.jobTimeout)
	defer cancel()

	started := time.Now()
	err := l.fn(runCtx)
	l.recordRun(ctx, started, err)
	return err
}

func (l *Lifecycle) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, l.jobTimeout)
	defer cancel()

	started := time.Now()
	err := l.fn(runCtx)
	l.recordRun(ctx, started, err)
	if err != nil {
		l.logger.Error(ctx, "job failed", err, map[string]interface{}{"elapsed": time.Since(started).String()})
		return
	}
	l.logger.Debug(ctx, "job finished", map[string]interface{}{"elapsed": time.Since(started).String()})
}
