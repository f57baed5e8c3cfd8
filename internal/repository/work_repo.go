package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
)

type WorkRepo struct {
	pool *pgxpool.Pool
}

func NewWorkRepo(pool *pgxpool.Pool) *WorkRepo {
	return &WorkRepo{pool: pool}
}

// Create inserts a work inside the caller's transaction. works.quotation_id is unique, so a
// second submission for the same quotation fails with models.ErrConflict.
func (r *WorkRepo) Create(ctx context.Context, tx pgx.Tx, w *models.Work) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO works (id, quotation_id, editor_id, final_files, comments, penalty_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, w.ID, w.QuotationID, w.EditorID, w.FinalFiles, w.Comments, w.PenaltyCents, w.CreatedAt).Scan(&w.CreatedAt)
	return MapError(err, "work")
}

func (r *WorkRepo) LatestByEditor(ctx context.Context, editorID uuid.UUID, limit int) ([]*models.Work, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, editor_id, final_files, comments, penalty_cents, created_at
		FROM works WHERE editor_id = $1 ORDER BY created_at DESC LIMIT $2
	`, editorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Work
	for rows.Next() {
		var w models.Work
		if err := rows.Scan(&w.ID, &w.QuotationID, &w.EditorID, &w.FinalFiles, &w.Comments, &w.PenaltyCents, &w.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}
