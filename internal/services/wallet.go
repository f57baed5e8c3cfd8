package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cutmarket/backend/internal/models"
)

// WalletService keeps each user's cash balance and its transaction history. Every balance change
// is an atomic increment in storage paired with one wallet_transactions line in the same
// database transaction.
type WalletService struct {
	Pool    TxBeginner
	Wallets WalletRepo
	Logger  *slog.Logger
}

// NewWalletService returns a new WalletService.
func NewWalletService(pool TxBeginner, wallets WalletRepo, logger *slog.Logger) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{Pool: pool, Wallets: wallets, Logger: logger}
}

// GetOrCreate returns the user's wallet, opening it with a zero balance on first access.
// created reports whether this call opened it.
func (s *WalletService) GetOrCreate(ctx context.Context, userID uuid.UUID) (w *models.Wallet, created bool, err error) {
	return s.Wallets.GetOrCreate(ctx, userID)
}

// AddMoney credits amountCents to the user's wallet.
func (s *WalletService) AddMoney(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	var w *models.Wallet
	err := inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		var err error
		w, err = s.Credit(ctx, tx, userID, amountCents, models.WalletTxCredit, "wallet top-up", nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// WithdrawMoney debits amountCents from the user's wallet. The balance check and the decrement
// are one conditional update, so concurrent withdrawals can never overdraw.
func (s *WalletService) WithdrawMoney(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	var w *models.Wallet
	err := inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		var err error
		w, err = s.Wallets.Debit(ctx, tx, userID, amountCents)
		if err != nil {
			return err
		}
		return s.Wallets.CreateTx(ctx, tx, &models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      userID,
			WalletID:    w.ID,
			Type:        models.WalletTxDebit,
			AmountCents: amountCents,
			Description: "wallet withdrawal",
		})
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("wallet debited", "user_id", userID, "amount_cents", amountCents, "balance_cents", w.BalanceCents)
	return w, nil
}

// CreditFromWork credits an editor's share of a settled quotation. Call within the settlement
// transaction.
func (s *WalletService) CreditFromWork(ctx context.Context, tx pgx.Tx, editorID uuid.UUID, amountCents int64, quotationID uuid.UUID) (*models.Wallet, error) {
	meta, _ := json.Marshal(map[string]string{"quotation_id": quotationID.String()})
	return s.Credit(ctx, tx, editorID, amountCents, models.WalletTxCreditFromWork, "payment for completed work", &quotationID, meta)
}

// Credit increments the balance and appends a transaction line of the given type. Call within
// a transaction.
func (s *WalletService) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountCents int64, txType, description string, quotationID *uuid.UUID, metadata json.RawMessage) (*models.Wallet, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	w, err := s.Wallets.Credit(ctx, tx, userID, amountCents)
	if err != nil {
		return nil, err
	}
	if err := s.Wallets.CreateTx(ctx, tx, &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		WalletID:    w.ID,
		Type:        txType,
		AmountCents: amountCents,
		Description: description,
		QuotationID: quotationID,
		Metadata:    metadata,
	}); err != nil {
		return nil, err
	}
	s.Logger.Info("wallet credited", "user_id", userID, "type", txType, "amount_cents", amountCents, "balance_cents", w.BalanceCents)
	return w, nil
}

// Transactions returns one page of the user's wallet history, newest first, and the total count.
func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.WalletTransaction, int, error) {
	page, limit = models.NormalizePage(page, limit)
	return s.Wallets.ListTransactions(ctx, userID, limit, (page-1)*limit)
}
