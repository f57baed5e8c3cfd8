package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutmarket/backend/internal/models"
)

const walletColumns = `id, user_id, balance_cents, currency, created_at, updated_at`

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.Currency, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate returns the user's wallet, inserting an empty one if none exists yet.
func (r *WalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, bool, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `
		INSERT INTO wallets (id, user_id, balance_cents, currency) VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+walletColumns, uuid.New(), userID, models.DefaultCurrency))
	if err == nil {
		return w, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	w, err = scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return nil, false, MapError(err, "wallet")
	}
	return w, false, nil
}

// Credit adds amountCents to the balance in one statement, opening the wallet if needed.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		INSERT INTO wallets (id, user_id, balance_cents, currency) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
			SET balance_cents = wallets.balance_cents + EXCLUDED.balance_cents, updated_at = now()
		RETURNING `+walletColumns, uuid.New(), userID, amountCents, models.DefaultCurrency))
	if err != nil {
		return nil, MapError(err, "wallet")
	}
	return w, nil
}

// Debit subtracts amountCents only if the balance covers it. A user without a wallet gets
// models.ErrNotFound.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets SET balance_cents = balance_cents - $2, updated_at = now()
		WHERE user_id = $1 AND balance_cents >= $2
		RETURNING `+walletColumns, userID, amountCents))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: wallet for user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: balance below %d", models.ErrInsufficientFunds, amountCents)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CreateTx appends a wallet transaction line. A second credit_from_work for the same quotation
// fails with models.ErrConflict.
func (r *WalletRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error {
	meta := t.Metadata
	if len(meta) == 0 {
		meta = []byte(`{}`)
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, user_id, wallet_id, type, amount_cents, description, quotation_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.UserID, t.WalletID, t.Type, t.AmountCents, t.Description, t.QuotationID, meta).Scan(&t.CreatedAt)
	return MapError(err, "wallet transaction")
}

func (r *WalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, wallet_id, type, amount_cents, description, quotation_id, metadata, created_at
		FROM wallet_transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []*models.WalletTransaction{}
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.WalletID, &t.Type, &t.AmountCents, &t.Description, &t.QuotationID, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, &t)
	}
	return list, total, rows.Err()
}

func (r *WalletRepo) HasWorkCredit(ctx context.Context, quotationID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE quotation_id = $1 AND type = 'credit_from_work')
	`, quotationID).Scan(&ok)
	return ok, err
}
