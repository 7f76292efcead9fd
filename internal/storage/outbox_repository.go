package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

// OutboxRepository implements the transactional outbox pattern for time
// entries awaiting delivery to the downstream timesheet system.
type OutboxRepository struct {
	pool *Pool
	jobs *blocking.Pool
}

func NewOutboxRepository(pool *Pool, jobs *blocking.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool, jobs: jobs}
}

type outboxRow struct {
	ID          string         `db:"id"`
	BlockID     string         `db:"block_id"`
	WbsCode     string         `db:"wbs_code"`
	Minutes     int64          `db:"minutes"`
	Description string         `db:"description"`
	CreatedAt   int64          `db:"created_at"`
	Attempts    int            `db:"attempts"`
	LastError   sql.NullString `db:"last_error"`
	DeliveredAt sql.NullInt64  `db:"delivered_at"`
}

// Enqueue inserts a new outbox entry.
func (r *OutboxRepository) Enqueue(ctx context.Context, entry domain.TimeEntryOutbox) error {
	row := toOutboxRow(entry)
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.NamedExecContext(ctx, `
				INSERT INTO outbox_entries (id, block_id, wbs_code, minutes, description, created_at, attempts, last_error, delivered_at)
				VALUES (:id, :block_id, :wbs_code, :minutes, :description, :created_at, :attempts, :last_error, :delivered_at)
			`, row)
			if err != nil {
				return apperrors.DatabaseError("outbox_enqueue", err)
			}
			return nil
		})
	})
	return err
}

// ListPending returns undelivered entries in FIFO order, capped at limit.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]domain.TimeEntryOutbox, error) {
	rows, err := blocking.Run(ctx, r.jobs, func() ([]outboxRow, error) {
		var out []outboxRow
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, `
				SELECT id, block_id, wbs_code, minutes, description, created_at, attempts, last_error, delivered_at
				FROM outbox_entries WHERE delivered_at IS NULL ORDER BY created_at LIMIT ?`, limit)
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("outbox_list_pending", err)
	}

	entries := make([]domain.TimeEntryOutbox, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, fromOutboxRow(row))
	}
	return entries, nil
}

// MarkDelivered stamps an entry as successfully delivered.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.ExecContext(ctx, `UPDATE outbox_entries SET delivered_at = ? WHERE id = ?`, deliveredAt.Unix(), id)
			if err != nil {
				return apperrors.DatabaseError("outbox_mark_delivered", err)
			}
			return nil
		})
	})
	return err
}

// RecordFailure increments the attempt counter and stores the failure
// reason; the batch driving this stays isolated per item, so one failing
// entry never blocks the rest of the outbox.
func (r *OutboxRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.ExecContext(ctx, `UPDATE outbox_entries SET attempts = attempts + 1, last_error = ? WHERE id = ?`, reason, id)
			if err != nil {
				return apperrors.DatabaseError("outbox_record_failure", err)
			}
			return nil
		})
	})
	return err
}

func toOutboxRow(e domain.TimeEntryOutbox) outboxRow {
	row := outboxRow{
		ID:          e.ID,
		BlockID:     e.BlockID,
		WbsCode:     e.WbsCode,
		Minutes:     e.Minutes,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Unix(),
		Attempts:    e.Attempts,
	}
	if e.LastError != nil {
		row.LastError = sql.NullString{String: *e.LastError, Valid: true}
	}
	if e.DeliveredAt != nil {
		row.DeliveredAt = sql.NullInt64{Int64: e.DeliveredAt.Unix(), Valid: true}
	}
	return row
}

func fromOutboxRow(row outboxRow) domain.TimeEntryOutbox {
	e := domain.TimeEntryOutbox{
		ID:          row.ID,
		BlockID:     row.BlockID,
		WbsCode:     row.WbsCode,
		Minutes:     row.Minutes,
		Description: row.Description,
		CreatedAt:   time.Unix(row.CreatedAt, 0).UTC(),
		Attempts:    row.Attempts,
	}
	if row.LastError.Valid {
		e.LastError = &row.LastError.String
	}
	if row.DeliveredAt.Valid {
		t := time.Unix(row.DeliveredAt.Int64, 0).UTC()
		e.DeliveredAt = &t
	}
	return e
}
