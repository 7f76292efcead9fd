package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

// WbsRepository persists WBS elements synced from the upstream project
// system; internal/wbscache.Repository is satisfied structurally by this
// type's FindByCode method.
type WbsRepository struct {
	pool *Pool
	jobs *blocking.Pool
}

func NewWbsRepository(pool *Pool, jobs *blocking.Pool) *WbsRepository {
	return &WbsRepository{pool: pool, jobs: jobs}
}

// FindByCode satisfies wbscache.Repository: nil, nil on a miss.
func (r *WbsRepository) FindByCode(ctx context.Context, code string) (*domain.WbsElement, error) {
	res, err := blocking.Run(ctx, r.jobs, func() (Result[domain.WbsElement], error) {
		var element domain.WbsElement
		var result Result[domain.WbsElement]
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			err := db.GetContext(ctx, &element, `SELECT code, description, project_code, active FROM wbs_elements WHERE code = ?`, code)
			if err == sql.ErrNoRows {
				result = None[domain.WbsElement]()
				return nil
			}
			if err != nil {
				result = Err[domain.WbsElement](apperrors.DatabaseError("wbs_find_by_code", err))
				return nil
			}
			result = Ok(element)
			return nil
		})
		if err != nil {
			return Err[domain.WbsElement](err), nil
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	val, found, resErr := res.Unwrap()
	if resErr != nil {
		return nil, resErr
	}
	if !found {
		return nil, nil
	}
	return &val, nil
}

// Upsert inserts or replaces a WBS element row.
func (r *WbsRepository) Upsert(ctx context.Context, element domain.WbsElement) error {
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.NamedExecContext(ctx, `
				INSERT INTO wbs_elements (code, description, project_code, active)
				VALUES (:code, :description, :project_code, :active)
				ON CONFLICT(code) DO UPDATE SET
					description = excluded.description,
					project_code = excluded.project_code,
					active = excluded.active
			`, element)
			if err != nil {
				return apperrors.DatabaseError("wbs_upsert", err)
			}
			return nil
		})
	})
	return err
}

// ListActiveByProject returns all active elements for a project code.
func (r *WbsRepository) ListActiveByProject(ctx context.Context, projectCode string) ([]domain.WbsElement, error) {
	elements, err := blocking.Run(ctx, r.jobs, func() ([]domain.WbsElement, error) {
		var out []domain.WbsElement
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, `SELECT code, description, project_code, active FROM wbs_elements WHERE project_code = ? AND active = 1 ORDER BY code`, projectCode)
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("wbs_list_active_by_project", err)
	}
	return elements, nil
}
