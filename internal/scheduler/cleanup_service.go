package scheduler

import (
	"context"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/logging"
)

// MetricsRetention is the storage-layer dependency CleanupService purges
// against; satisfied structurally by *storage.CommandMetricsRepository.
type MetricsRetention interface {
	CleanupOldMetrics(ctx context.Context, olderThanTS int64) (uint64, error)
}

// CleanupServiceConfig configures a CleanupService's schedule and
// retention window.
type CleanupServiceConfig struct {
	CronExpression string // default once a day
	JobTimeout     time.Duration
	Retention      time.Duration
}

// DefaultCleanupServiceConfig runs once a day, retaining 30 days of
// command-metric history for A/B comparisons.
func DefaultCleanupServiceConfig() CleanupServiceConfig {
	return CleanupServiceConfig{
		CronExpression: "0 0 3 * * *",
		JobTimeout:     5 * time.Minute,
		Retention:      30 * 24 * time.Hour,
	}
}

// CleanupService periodically purges command-metric rows older than the
// configured retention window.
type CleanupService struct {
	*Lifecycle
	metrics MetricsRetention
	cfg     CleanupServiceConfig
	logger  *logging.Logger
	now     func() time.Time
}

// NewCleanupService builds a CleanupService bound to metrics.
func NewCleanupService(cfg CleanupServiceConfig, metrics MetricsRetention) *CleanupService {
	def := DefaultCleanupServiceConfig()
	if cfg.CronExpression == "" {
		cfg.CronExpression = def.CronExpression
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	s := &CleanupService{metrics: metrics, cfg: cfg, logger: logging.New("cleanup_service", "info", "json"), now: time.Now}
	s.Lifecycle = NewLifecycle("cleanup_service", cfg.CronExpression, cfg.JobTimeout, s.cleanup)
	return s
}

func (s *CleanupService) cleanup(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.Retention).Unix()
	deleted, err := s.metrics.CleanupOldMetrics(ctx, cutoff)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "cleanup completed", map[string]interface{}{"deleted": deleted, "cutoff_ts": cutoff})
	return nil
}
