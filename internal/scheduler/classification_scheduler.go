package scheduler

import (
	"context"
	"time"
)

// ClassificationRunner executes one batch of pending-block classification
// work. Concrete wiring (fetch pending blocks, extract evidence, call the
// LLM, persist results) lives with the caller; the scheduler only owns the
// cadence.
type ClassificationRunner interface {
	RunBatch(ctx context.Context) error
}

// ClassificationSchedulerConfig configures a ClassificationScheduler.
type ClassificationSchedulerConfig struct {
	CronExpression string // default every 10 minutes
	JobTimeout     time.Duration
}

// DefaultClassificationSchedulerConfig mirrors the teacher's every-10-minute
// classification cadence.
func DefaultClassificationSchedulerConfig() ClassificationSchedulerConfig {
	return ClassificationSchedulerConfig{
		CronExpression: "0 */10 * * * *",
		JobTimeout:     10 * time.Minute,
	}
}

// ClassificationScheduler periodically invokes a ClassificationRunner to
// process pending ProposedBlocks.
type ClassificationScheduler struct {
	*Lifecycle
	runner ClassificationRunner
}

// NewClassificationScheduler builds a ClassificationScheduler bound to
// runner.
func NewClassificationScheduler(cfg ClassificationSchedulerConfig, runner ClassificationRunner) *ClassificationScheduler {
	if cfg.CronExpression == "" {
		cfg.CronExpression = DefaultClassificationSchedulerConfig().CronExpression
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultClassificationSchedulerConfig().JobTimeout
	}

	s := &ClassificationScheduler{runner: runner}
	s.Lifecycle = NewLifecycle("classification_scheduler", cfg.CronExpression, cfg.JobTimeout, runner.RunBatch)
	return s
}
