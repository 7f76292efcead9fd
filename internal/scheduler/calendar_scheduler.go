package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/logging"
)

// CalendarSyncer fetches and persists the latest calendar events for a
// single user. Concrete Google Calendar API wiring is out of scope here;
// callers supply an implementation.
type CalendarSyncer interface {
	SyncUser(ctx context.Context, email string) (eventsSynced int, err error)
}

// CalendarSchedulerConfig configures a CalendarScheduler's schedule and
// per-run timeout.
type CalendarSchedulerConfig struct {
	CronExpression string        // 6-field seconds-resolution cron, default every 15 minutes
	UserEmails     []string
	JobTimeout     time.Duration
}

// DefaultCalendarSchedulerConfig mirrors the teacher's every-15-minute
// default calendar sync cadence.
func DefaultCalendarSchedulerConfig() CalendarSchedulerConfig {
	return CalendarSchedulerConfig{
		CronExpression: "0 */15 * * * *",
		JobTimeout:     5 * time.Minute,
	}
}

// CalendarScheduler periodically syncs calendar events for a configured set
// of users, logging only redacted email tags.
type CalendarScheduler struct {
	*Lifecycle
	syncer CalendarSyncer
	cfg    CalendarSchedulerConfig
	logger *logging.Logger
}

// NewCalendarScheduler builds a CalendarScheduler bound to syncer.
func NewCalendarScheduler(cfg CalendarSchedulerConfig, syncer CalendarSyncer) *CalendarScheduler {
	if cfg.CronExpression == "" {
		cfg.CronExpression = DefaultCalendarSchedulerConfig().CronExpression
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultCalendarSchedulerConfig().JobTimeout
	}

	s := &CalendarScheduler{syncer: syncer, cfg: cfg, logger: logging.New("calendar_scheduler", "info", "json")}
	s.Lifecycle = NewLifecycle("calendar_scheduler", cfg.CronExpression, cfg.JobTimeout, s.runSync)
	return s
}

func (s *CalendarScheduler) runSync(ctx context.Context) error {
	if len(s.cfg.UserEmails) == 0 {
		s.logger.Debug(ctx, "no user emails configured for calendar sync", nil)
		return nil
	}

	totalSynced, errors := 0, 0
	for _, email := range s.cfg.UserEmails {
		tag := RedactEmail(email)
		events, err := s.syncer.SyncUser(ctx, email)
		if err != nil {
			errors++
			s.logger.Warn(ctx, "calendar sync failed", map[string]interface{}{"user": tag, "error": err.Error()})
			continue
		}
		totalSynced += events
		s.logger.Debug(ctx, "calendar sync succeeded", map[string]interface{}{"user": tag, "events_synced": events})
	}

	s.logger.Info(ctx, "calendar sync batch completed", map[string]interface{}{
		"total_users": len(s.cfg.UserEmails), "total_synced": totalSynced, "errors": errors,
	})
	if errors > 0 {
		return fmt.Errorf("calendar sync: %d/%d users failed", errors, len(s.cfg.UserEmails))
	}
	return nil
}
