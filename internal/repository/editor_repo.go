package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
)

const editorColumns = `user_id, category, score, streak, is_suspended, suspended_until, last_withdrawn_date, ratings,
	created_at, updated_at`

type EditorRepo struct {
	pool *pgxpool.Pool
}

func NewEditorRepo(pool *pgxpool.Pool) *EditorRepo {
	return &EditorRepo{pool: pool}
}

func scanEditor(row rowScanner) (*models.Editor, error) {
	var e models.Editor
	if err := row.Scan(&e.UserID, &e.Category, &e.Score, &e.Streak, &e.IsSuspended, &e.SuspendedUntil, &e.LastWithdrawnDate,
		&e.Ratings, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert creates the editor profile for userID or updates its category.
func (r *EditorRepo) Upsert(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error) {
	e, err := scanEditor(r.pool.QueryRow(ctx, `
		INSERT INTO editors (user_id, category) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET category = EXCLUDED.category, updated_at = now()
		RETURNING `+editorColumns, userID, category))
	if err != nil {
		return nil, MapError(err, "editor")
	}
	return e, nil
}

func (r *EditorRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Editor, error) {
	e, err := scanEditor(r.pool.QueryRow(ctx, `SELECT `+editorColumns+` FROM editors WHERE user_id = $1`, id))
	if err != nil {
		return nil, MapError(err, "editor")
	}
	return e, nil
}

func (r *EditorRepo) ClearLapsedSuspension(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE editors SET is_suspended = false, suspended_until = NULL, updated_at = now()
		WHERE user_id = $1 AND is_suspended AND suspended_until IS NOT NULL AND suspended_until < $2
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EditorRepo) SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, until *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE editors SET is_suspended = $2, suspended_until = $3, updated_at = now() WHERE user_id = $1
	`, id, suspended, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return MapError(pgx.ErrNoRows, "editor")
	}
	return nil
}

func (r *EditorRepo) StampWithdrawal(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE editors SET last_withdrawn_date = $2, updated_at = now() WHERE user_id = $1`, id, at)
	return err
}

func (r *EditorRepo) UpdateScore(ctx context.Context, id uuid.UUID, prevScore, prevStreak, score, streak int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE editors SET score = $4, streak = $5, updated_at = now()
		WHERE user_id = $1 AND score = $2 AND streak = $3
	`, id, prevScore, prevStreak, score, streak)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
