package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
)

const quotationColumns = `id, user_id, title, description, theme, estimated_budget_cents, advance_amount_cents,
	balance_amount_cents, due_date, output_type, status, editor_id, works_id, penalty_cents, is_advance_paid,
	is_fully_paid, is_payment_in_progress, payment_claimed_at, reopen_count, created_at, updated_at`

type QuotationRepo struct {
	pool *pgxpool.Pool
}

func NewQuotationRepo(pool *pgxpool.Pool) *QuotationRepo {
	return &QuotationRepo{pool: pool}
}

func scanQuotation(row rowScanner) (*models.Quotation, error) {
	var q models.Quotation
	err := row.Scan(&q.ID, &q.UserID, &q.Title, &q.Description, &q.Theme, &q.EstimatedBudgetCents, &q.AdvanceAmountCents,
		&q.BalanceAmountCents, &q.DueDate, &q.OutputType, &q.Status, &q.EditorID, &q.WorksID, &q.PenaltyCents, &q.IsAdvancePaid,
		&q.IsFullyPaid, &q.IsPaymentInProgress, &q.PaymentClaimedAt, &q.ReopenCount, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func collectQuotations(rows pgx.Rows) ([]*models.Quotation, error) {
	defer rows.Close()
	var list []*models.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

func (r *QuotationRepo) Create(ctx context.Context, q *models.Quotation) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO quotations (id, user_id, title, description, theme, estimated_budget_cents, advance_amount_cents,
			balance_amount_cents, due_date, output_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, q.ID, q.UserID, q.Title, q.Description, q.Theme, q.EstimatedBudgetCents, q.AdvanceAmountCents,
		q.BalanceAmountCents, q.DueDate, q.OutputType, q.Status).Scan(&q.CreatedAt, &q.UpdatedAt)
	return MapError(err, "quotation")
}

func (r *QuotationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id))
	if err != nil {
		return nil, MapError(err, "quotation")
	}
	return q, nil
}

// DeletePublished removes a published quotation; its bids go with it (ON DELETE CASCADE).
func (r *QuotationRepo) DeletePublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1 AND status = 'published'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuotationRepo) MarkAccepted(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE quotations SET status = 'accepted', editor_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'published'
	`, id, editorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuotationRepo) Reopen(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE quotations SET status = 'published', editor_id = NULL, reopen_count = reopen_count + 1, updated_at = now()
		WHERE id = $1 AND status = 'accepted' AND editor_id = $2
			AND NOT is_fully_paid AND NOT is_payment_in_progress
	`, id, editorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuotationRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id, worksID uuid.UUID, penaltyCents int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE quotations SET status = 'completed', works_id = $2, penalty_cents = $3, updated_at = now()
		WHERE id = $1 AND status = 'accepted'
	`, id, worksID, penaltyCents)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionStatus moves the quotation from one status to another. Moving to expired or
// cancelled also clears the editor. A quotation that is paid or being paid never moves.
func (r *QuotationRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE quotations
		SET status = $3::text,
			editor_id = CASE WHEN $3::text IN ('expired', 'cancelled') THEN NULL ELSE editor_id END,
			updated_at = now()
		WHERE id = $1 AND status = $2 AND NOT is_fully_paid AND NOT is_payment_in_progress
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuotationRepo) ListOverdue(ctx context.Context, status string, dueBefore time.Time) ([]*models.Quotation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quotationColumns+`
		FROM quotations WHERE status = $1 AND due_date < $2 ORDER BY due_date
	`, status, dueBefore)
	if err != nil {
		return nil, err
	}
	return collectQuotations(rows)
}

func (r *QuotationRepo) MarkAdvancePaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET is_advance_paid = true, updated_at = now()
		WHERE id = $1 AND is_advance_paid = false
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimPayment takes the settlement claim on a completed quotation. Only one caller can flip
// is_payment_in_progress while the quotation is not fully paid.
func (r *QuotationRepo) ClaimPayment(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET is_payment_in_progress = true, payment_claimed_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'completed' AND is_payment_in_progress = false AND is_fully_paid = false
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuotationRepo) CompletePayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE quotations
		SET is_fully_paid = true, is_payment_in_progress = false, payment_claimed_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *QuotationRepo) ReleasePaymentClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quotations SET is_payment_in_progress = false, payment_claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND is_fully_paid = false
	`, id)
	return err
}

func (r *QuotationRepo) ListStalePaymentClaims(ctx context.Context, claimedBefore time.Time) ([]*models.Quotation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quotationColumns+`
		FROM quotations WHERE is_payment_in_progress = true AND payment_claimed_at < $1
	`, claimedBefore)
	if err != nil {
		return nil, err
	}
	return collectQuotations(rows)
}
