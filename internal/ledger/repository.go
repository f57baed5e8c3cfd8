package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/repository"
)

const adminTxColumns = `id, flow, amount_cents, transaction_type, user_id, editor_id, quotation_id,
	commission_cents, payment_id, description, created_at`

// Repository is the append-only platform ledger in admin_transactions.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a ledger line inside the caller's transaction. The partial unique indexes on
// admin_transactions turn a second user_payment or editor_payout for the same quotation, or a
// second welcome bonus for the same user, into models.ErrConflict.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, t *models.AdminTransaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO admin_transactions (id, flow, amount_cents, transaction_type, user_id, editor_id,
			quotation_id, commission_cents, payment_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, t.ID, t.Flow, t.AmountCents, t.TransactionType, t.UserID, t.EditorID,
		t.QuotationID, t.CommissionCents, t.PaymentID, t.Description).Scan(&t.CreatedAt)
	return repository.MapError(err, "admin transaction")
}

// HasLine reports whether the quotation already has a line of the given type.
func (r *Repository) HasLine(ctx context.Context, quotationID uuid.UUID, transactionType string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM admin_transactions WHERE quotation_id = $1 AND transaction_type = $2)
	`, quotationID, transactionType).Scan(&ok)
	return ok, err
}

func (r *Repository) HasWelcomeBonus(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM admin_transactions WHERE user_id = $1 AND transaction_type = 'welcome_bonus')
	`, userID).Scan(&ok)
	return ok, err
}

// UnpairedPayments returns user_payment lines that have no editor_payout for their quotation.
func (r *Repository) UnpairedPayments(ctx context.Context) ([]*models.AdminTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+adminTxColumns+`
		FROM admin_transactions p
		WHERE p.transaction_type = 'user_payment'
		  AND NOT EXISTS (
			SELECT 1 FROM admin_transactions o
			WHERE o.transaction_type = 'editor_payout' AND o.quotation_id = p.quotation_id
		  )
		ORDER BY p.created_at
	`)
	if err != nil {
		return nil, err
	}
	return collectAdminTxs(rows)
}

// List returns one page of ledger lines, newest first, and the total number of lines.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*models.AdminTransaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_transactions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin transactions: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+adminTxColumns+`
		FROM admin_transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectAdminTxs(rows)
	return out, total, err
}

// Summary aggregates the whole ledger.
func (r *Repository) Summary(ctx context.Context) (*models.FinancialSummary, error) {
	var s models.FinancialSummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE flow = 'credit'), 0),
			COALESCE(SUM(commission_cents) FILTER (WHERE transaction_type = 'user_payment'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE flow = 'debit'), 0)
		FROM admin_transactions
	`).Scan(&s.TotalRevenueCents, &s.TotalPlatformFeeCents, &s.TotalPayoutsCents)
	if err != nil {
		return nil, err
	}
	s.NetProfitCents = s.TotalRevenueCents - s.TotalPayoutsCents
	return &s, nil
}

func collectAdminTxs(rows pgx.Rows) ([]*models.AdminTransaction, error) {
	defer rows.Close()
	var out []*models.AdminTransaction
	for rows.Next() {
		var t models.AdminTransaction
		if err := rows.Scan(&t.ID, &t.Flow, &t.AmountCents, &t.TransactionType, &t.UserID, &t.EditorID,
			&t.QuotationID, &t.CommissionCents, &t.PaymentID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
