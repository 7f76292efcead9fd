package storage

import (
	"database/sql"
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

// SnapshotRepository persists and retrieves ActivitySnapshot rows, the raw
// capture events evidence extraction groups into blocks.
type SnapshotRepository struct {
	pool *Pool
	jobs *blocking.Pool
}

func NewSnapshotRepository(pool *Pool, jobs *blocking.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, jobs: jobs}
}

type snapshotRow struct {
	ID          string         `db:"id"`
	CapturedAt  int64          `db:"captured_at"`
	AppName     string         `db:"app_name"`
	WindowTitle string         `db:"window_title"`
	BundleID    sql.NullString `db:"bundle_id"`
	URL         sql.NullString `db:"url"`
	FilePath    sql.NullString `db:"file_path"`
	IdleSeconds int64          `db:"idle_seconds"`
	KeywordsRaw sql.NullString `db:"keywords_raw"`
}

// Insert stores a single snapshot.
func (r *SnapshotRepository) Insert(ctx context.Context, snapshot domain.ActivitySnapshot) error {
	row := toSnapshotRow(snapshot)
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.NamedExecContext(ctx, `
				INSERT INTO snapshots (id, captured_at, app_name, window_title, bundle_id, url, file_path, idle_seconds, keywords_raw)
				VALUES (:id, :captured_at, :app_name, :window_title, :bundle_id, :url, :file_path, :idle_seconds, :keywords_raw)
			`, row)
			if err != nil {
				return apperrors.DatabaseError("snapshot_insert", err)
			}
			return nil
		})
	})
	return err
}

// FindByIDs returns the snapshots matching ids, in no particular order;
// missing IDs are silently skipped rather than treated as an error, since a
// block's snapshot_ids can outlive a cleanup sweep.
func (r *SnapshotRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.ActivitySnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, captured_at, app_name, window_title, bundle_id, url, file_path, idle_seconds, keywords_raw
		FROM snapshots WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to build snapshot IN query", err)
	}

	rows, err := blocking.Run(ctx, r.jobs, func() ([]snapshotRow, error) {
		var out []snapshotRow
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, db.Rebind(query), args...)
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("snapshot_find_by_ids", err)
	}

	snapshots := make([]domain.ActivitySnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, fromSnapshotRow(row))
	}
	return snapshots, nil
}

// FindInTimeRange returns snapshots captured within [start, end).
func (r *SnapshotRepository) FindInTimeRange(ctx context.Context, start, end time.Time) ([]domain.ActivitySnapshot, error) {
	rows, err := blocking.Run(ctx, r.jobs, func() ([]snapshotRow, error) {
		var out []snapshotRow
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, `
				SELECT id, captured_at, app_name, window_title, bundle_id, url, file_path, idle_seconds, keywords_raw
				FROM snapshots WHERE captured_at >= ? AND captured_at < ? ORDER BY captured_at`, start.Unix(), end.Unix())
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("snapshot_find_in_range", err)
	}

	snapshots := make([]domain.ActivitySnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, fromSnapshotRow(row))
	}
	return snapshots, nil
}

func toSnapshotRow(s domain.ActivitySnapshot) snapshotRow {
	row := snapshotRow{
		ID:          s.ID,
		CapturedAt:  s.CapturedAt.Unix(),
		AppName:     s.Context.AppName,
		WindowTitle: s.Context.WindowTitle,
		IdleSeconds: s.IdleSeconds,
	}
	if s.Context.BundleID != "" {
		row.BundleID = sql.NullString{String: s.Context.BundleID, Valid: true}
	}
	if s.Context.URL != "" {
		row.URL = sql.NullString{String: s.Context.URL, Valid: true}
	}
	if s.Context.FilePath != "" {
		row.FilePath = sql.NullString{String: s.Context.FilePath, Valid: true}
	}
	if s.KeywordsRaw != "" {
		row.KeywordsRaw = sql.NullString{String: s.KeywordsRaw, Valid: true}
	}
	return row
}

func fromSnapshotRow(row snapshotRow) domain.ActivitySnapshot {
	s := domain.ActivitySnapshot{
		ID:         row.ID,
		CapturedAt: time.Unix(row.CapturedAt, 0).UTC(),
		Context: domain.ActivityContext{
			AppName:     row.AppName,
			WindowTitle: row.WindowTitle,
		},
		IdleSeconds: row.IdleSeconds,
	}
	if row.BundleID.Valid {
		s.Context.BundleID = row.BundleID.String
	}
	if row.URL.Valid {
		s.Context.URL = row.URL.String
	}
	if row.FilePath.Valid {
		s.Context.FilePath = row.FilePath.String
	}
	if row.KeywordsRaw.Valid {
		s.KeywordsRaw = row.KeywordsRaw.String
	}
	return s
}
