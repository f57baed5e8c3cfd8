package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
)

const bidColumns = `id, quotation_id, editor_id, bid_amount_cents, notes, status, due_date, created_at, updated_at`

var bidOrder = map[string]string{
	models.BidSortAmountAsc:  "bid_amount_cents ASC, created_at ASC",
	models.BidSortAmountDesc: "bid_amount_cents DESC, created_at ASC",
	models.BidSortNewest:     "created_at DESC",
}

type BidRepo struct {
	pool *pgxpool.Pool
}

func NewBidRepo(pool *pgxpool.Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

func scanBid(row rowScanner) (*models.Bid, error) {
	var b models.Bid
	if err := row.Scan(&b.ID, &b.QuotationID, &b.EditorID, &b.BidAmountCents, &b.Notes, &b.Status, &b.DueDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a bid. The partial unique index on (quotation_id, editor_id) for pending and
// accepted bids makes a concurrent duplicate fail with models.ErrConflict.
func (r *BidRepo) Create(ctx context.Context, b *models.Bid) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bids (id, quotation_id, editor_id, bid_amount_cents, notes, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, b.ID, b.QuotationID, b.EditorID, b.BidAmountCents, b.Notes, b.Status, b.DueDate).Scan(&b.CreatedAt, &b.UpdatedAt)
	return MapError(err, "bid")
}

func (r *BidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	b, err := scanBid(r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		return nil, MapError(err, "bid")
	}
	return b, nil
}

func (r *BidRepo) HasActiveBid(ctx context.Context, quotationID, editorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bids
			WHERE quotation_id = $1 AND editor_id = $2 AND status IN ('pending', 'accepted')
		)
	`, quotationID, editorID).Scan(&ok)
	return ok, err
}

// UpdateTerms changes amount and notes of a pending bid owned by editorID. It returns nil, nil
// when no such bid exists any more.
func (r *BidRepo) UpdateTerms(ctx context.Context, id, editorID uuid.UUID, amountCents int64, notes string) (*models.Bid, error) {
	b, err := scanBid(r.pool.QueryRow(ctx, `
		UPDATE bids SET bid_amount_cents = $3, notes = $4, updated_at = now()
		WHERE id = $1 AND editor_id = $2 AND status = 'pending'
		RETURNING `+bidColumns, id, editorID, amountCents, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *BidRepo) DeletePending(ctx context.Context, id, editorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1 AND editor_id = $2 AND status = 'pending'`, id, editorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BidRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `UPDATE bids SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BidRepo) TransitionForQuotation(ctx context.Context, tx pgx.Tx, quotationID, exceptID uuid.UUID, from, to string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bids SET status = $4, updated_at = now()
		WHERE quotation_id = $1 AND id <> $2 AND status = $3
	`, quotationID, exceptID, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BidRepo) ListByQuotation(ctx context.Context, quotationID uuid.UUID, sort string) ([]*models.Bid, error) {
	order, ok := bidOrder[sort]
	if !ok {
		order = bidOrder[models.BidSortAmountAsc]
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE quotation_id = $1 ORDER BY `+order, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
