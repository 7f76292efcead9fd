package scheduler

import (
	"context"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/logging"
	"github.com/pulsearc/agent-core/internal/domain"
)

// OutboxRepository is the storage-layer dependency OutboxWorker polls and
// updates; satisfied structurally by *storage.OutboxRepository.
type OutboxRepository interface {
	ListPending(ctx context.Context, limit int) ([]domain.TimeEntryOutbox, error)
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	RecordFailure(ctx context.Context, id string, reason string) error
}

// TimeEntryDeliverer delivers a single queued time entry to the downstream
// timesheet system. Concrete upstream API wiring is out of scope; callers
// supply an implementation.
type TimeEntryDeliverer interface {
	Deliver(ctx context.Context, entry domain.TimeEntryOutbox) error
}

// OutboxWorkerConfig configures an OutboxWorker's schedule and batch size.
type OutboxWorkerConfig struct {
	CronExpression string // default every minute
	JobTimeout     time.Duration
	BatchSize      int
}

// DefaultOutboxWorkerConfig polls the outbox once a minute, 25 entries at a
// time, matching the transactional-outbox pattern's low-latency delivery
// goal without hammering the downstream system.
func DefaultOutboxWorkerConfig() OutboxWorkerConfig {
	return OutboxWorkerConfig{
		CronExpression: "0 * * * * *",
		JobTimeout:     2 * time.Minute,
		BatchSize:      25,
	}
}

// OutboxWorker drains pending TimeEntryOutbox rows to a TimeEntryDeliverer,
// marking each delivered or recording the failure reason for later retry.
type OutboxWorker struct {
	*Lifecycle
	repo      OutboxRepository
	deliverer TimeEntryDeliverer
	cfg       OutboxWorkerConfig
	logger    *logging.Logger
}

// NewOutboxWorker builds an OutboxWorker bound to repo and deliverer.
func NewOutboxWorker(cfg OutboxWorkerConfig, repo OutboxRepository, deliverer TimeEntryDeliverer) *OutboxWorker {
	def := DefaultOutboxWorkerConfig()
	if cfg.CronExpression == "" {
		cfg.CronExpression = def.CronExpression
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	w := &OutboxWorker{repo: repo, deliverer: deliverer, cfg: cfg, logger: logging.New("outbox_worker", "info", "json")}
	w.Lifecycle = NewLifecycle("outbox_worker", cfg.CronExpression, cfg.JobTimeout, w.drain)
	return w
}

func (w *OutboxWorker) drain(ctx context.Context) error {
	pending, err := w.repo.ListPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	delivered, failed := 0, 0
	for _, entry := range pending {
		if err := w.deliverer.Deliver(ctx, entry); err != nil {
			failed++
			w.logger.LogOutboxDelivery(ctx, entry.ID, "deliver", err)
			if recErr := w.repo.RecordFailure(ctx, entry.ID, err.Error()); recErr != nil {
				w.logger.Error(ctx, "failed to record outbox delivery failure", recErr, map[string]interface{}{"entry_id": entry.ID})
			}
			continue
		}
		delivered++
		w.logger.LogOutboxDelivery(ctx, entry.ID, "deliver", nil)
		if markErr := w.repo.MarkDelivered(ctx, entry.ID, time.Now()); markErr != nil {
			w.logger.Error(ctx, "failed to mark outbox entry delivered", markErr, map[string]interface{}{"entry_id": entry.ID})
		}
	}

	w.logger.Info(ctx, "outbox drain completed", map[string]interface{}{
		"pending": len(pending), "delivered": delivered, "failed": failed,
	})
	return nil
}
