package storage

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

// CommandMetricsRepository tracks command execution metrics for migration
// validation: querying aggregate statistics, percentile latencies, and
// legacy-vs-new implementation comparisons.
type CommandMetricsRepository struct {
	pool *Pool
	jobs *blocking.Pool
}

func NewCommandMetricsRepository(pool *Pool, jobs *blocking.Pool) *CommandMetricsRepository {
	return &CommandMetricsRepository{pool: pool, jobs: jobs}
}

type commandMetricRow struct {
	ID             string         `db:"id"`
	Command        string         `db:"command"`
	Implementation string         `db:"implementation"`
	Timestamp      int64          `db:"timestamp"`
	DurationMs     int64          `db:"duration_ms"`
	Success        bool           `db:"success"`
	ErrorType      sql.NullString `db:"error_type"`
}

// RecordExecution inserts a single command metric row.
func (r *CommandMetricsRepository) RecordExecution(ctx context.Context, metric domain.CommandMetric) error {
	row := commandMetricRow{
		ID:             metric.ID,
		Command:        metric.Command,
		Implementation: metric.Implementation,
		Timestamp:      metric.Timestamp,
		DurationMs:     int64(metric.DurationMs),
		Success:        metric.Success,
	}
	if metric.ErrorType != nil {
		row.ErrorType = sql.NullString{String: *metric.ErrorType, Valid: true}
	}

	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.NamedExecContext(ctx, `
				INSERT INTO command_metrics (id, command, implementation, timestamp, duration_ms, success, error_type)
				VALUES (:id, :command, :implementation, :timestamp, :duration_ms, :success, :error_type)
			`, row)
			if err != nil {
				return apperrors.DatabaseError("command_metrics_record", err)
			}
			return nil
		})
	})
	return err
}

// GetRecentExecutions returns the most recent rows for a command, newest
// first, capped at limit.
func (r *CommandMetricsRepository) GetRecentExecutions(ctx context.Context, command string, limit int) ([]domain.CommandMetric, error) {
	rows, err := blocking.Run(ctx, r.jobs, func() ([]commandMetricRow, error) {
		var out []commandMetricRow
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, `
				SELECT id, command, implementation, timestamp, duration_ms, success, error_type
				FROM command_metrics WHERE command = ? ORDER BY timestamp DESC LIMIT ?`, command, limit)
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("command_metrics_recent", err)
	}

	metrics := make([]domain.CommandMetric, 0, len(rows))
	for _, row := range rows {
		metrics = append(metrics, fromCommandMetricRow(row))
	}
	return metrics, nil
}

// GetStats aggregates total/success/error counts, error rate, average
// latency, and nearest-rank P50/P95/P99 latencies for command (optionally
// filtered to a single implementation) within [startTS, endTS].
func (r *CommandMetricsRepository) GetStats(ctx context.Context, command string, implementation *string, startTS, endTS int64) (domain.CommandStats, error) {
	return blocking.Run(ctx, r.jobs, func() (domain.CommandStats, error) {
		var stats domain.CommandStats
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			var totalCount, successCount, errorCount sql.NullInt64
			var avgLatency sql.NullFloat64

			query := `SELECT COUNT(*) as total,
					SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as success_count,
					SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as error_count,
					AVG(duration_ms) as avg_latency
				FROM command_metrics WHERE command = ? `
			args := []interface{}{command}
			if implementation != nil {
				query += "AND implementation = ? "
				args = append(args, *implementation)
			}
			query += "AND timestamp >= ? AND timestamp <= ?"
			args = append(args, startTS, endTS)

			row := db.QueryRowxContext(ctx, query, args...)
			if err := row.Scan(&totalCount, &successCount, &errorCount, &avgLatency); err != nil {
				return apperrors.DatabaseError("command_metrics_get_stats", err)
			}

			total := uint64(totalCount.Int64)
			success := uint64(successCount.Int64)
			errs := uint64(errorCount.Int64)

			var errorRate float64
			if total > 0 {
				errorRate = float64(errs) / float64(total)
			}

			implName := "all"
			if implementation != nil {
				implName = *implementation
			}

			stats = domain.CommandStats{
				Command:        command,
				Implementation: implName,
				TotalCount:     total,
				SuccessCount:   success,
				ErrorCount:     errs,
				ErrorRate:      errorRate,
				AvgLatencyMs:   avgLatency.Float64,
			}

			if total == 0 {
				return nil
			}

			p50, p95, p99, err := calculatePercentiles(ctx, db, command, implementation, startTS, endTS)
			if err != nil {
				return err
			}
			stats.P50LatencyMs = p50
			stats.P95LatencyMs = p95
			stats.P99LatencyMs = p99
			return nil
		})
		return stats, err
	})
}

// calculatePercentiles replicates the nearest-rank indexing
// durations[len*p/100] against duration_ms sorted ascending — deliberately
// not an interpolated percentile.
func calculatePercentiles(ctx context.Context, db *sqlx.DB, command string, implementation *string, startTS, endTS int64) (p50, p95, p99 uint64, err error) {
	query := `SELECT duration_ms FROM command_metrics WHERE command = ? `
	args := []interface{}{command}
	if implementation != nil {
		query += "AND implementation = ? "
		args = append(args, *implementation)
	}
	query += "AND timestamp >= ? AND timestamp <= ? ORDER BY duration_ms"
	args = append(args, startTS, endTS)

	var durations []int64
	if err := db.SelectContext(ctx, &durations, query, args...); err != nil {
		return 0, 0, 0, apperrors.DatabaseError("command_metrics_percentiles", err)
	}
	if len(durations) == 0 {
		return 0, 0, 0, nil
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	nearestRank := func(p int) uint64 {
		idx := len(durations) * p / 100
		if idx >= len(durations) {
			idx = len(durations) - 1
		}
		return uint64(durations[idx])
	}

	return nearestRank(50), nearestRank(95), nearestRank(99), nil
}

// CompareImplementations fetches stats for the "legacy" and "new"
// implementations of command over the same window.
func (r *CommandMetricsRepository) CompareImplementations(ctx context.Context, command string, startTS, endTS int64) (legacy, newImpl domain.CommandStats, err error) {
	legacyName, newName := "legacy", "new"
	legacy, err = r.GetStats(ctx, command, &legacyName, startTS, endTS)
	if err != nil {
		return domain.CommandStats{}, domain.CommandStats{}, err
	}
	newImpl, err = r.GetStats(ctx, command, &newName, startTS, endTS)
	if err != nil {
		return domain.CommandStats{}, domain.CommandStats{}, err
	}
	return legacy, newImpl, nil
}

// CleanupOldMetrics deletes rows older than olderThanTS, returning the
// number of rows removed.
func (r *CommandMetricsRepository) CleanupOldMetrics(ctx context.Context, olderThanTS int64) (uint64, error) {
	return blocking.Run(ctx, r.jobs, func() (uint64, error) {
		var deleted int64
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			res, err := db.ExecContext(ctx, `DELETE FROM command_metrics WHERE timestamp < ?`, olderThanTS)
			if err != nil {
				return apperrors.DatabaseError("command_metrics_cleanup", err)
			}
			deleted, err = res.RowsAffected()
			if err != nil {
				return apperrors.DatabaseError("command_metrics_cleanup_rows_affected", err)
			}
			return nil
		})
		return uint64(deleted), err
	})
}

func fromCommandMetricRow(row commandMetricRow) domain.CommandMetric {
	m := domain.CommandMetric{
		ID:             row.ID,
		Command:        row.Command,
		Implementation: row.Implementation,
		Timestamp:      row.Timestamp,
		DurationMs:     uint64(row.DurationMs),
		Success:        row.Success,
	}
	if row.ErrorType.Valid {
		m.ErrorType = &row.ErrorType.String
	}
	return m
}
