package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

type WalletService interface {
	AddMoney(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.Wallet, error)
	WithdrawMoney(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.WalletTransaction, int, error)
}

// WalletOpener creates the wallet on first access, crediting the welcome bonus.
type WalletOpener interface {
	OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

// WalletHandler serves the wallet routes for both users and editors.
type WalletHandler struct {
	Wallets   WalletService
	Opener    WalletOpener
	Validator PayloadValidator
	Logger    *slog.Logger
}

type walletAmountRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// Get handles GET .../wallet.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	wallet, err := h.Opener.OpenWallet(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.Logger, "get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Transactions handles GET .../wallet/transactions?page&limit.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, limit := pageParams(r)
	txs, total, err := h.Wallets.Transactions(r.Context(), p.UserID, page, limit)
	if err != nil {
		writeError(w, h.Logger, "list wallet transactions", err)
		return
	}
	if txs == nil {
		txs = []*models.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, pageResponse[*models.WalletTransaction]{Items: txs, Page: page, Limit: limit, Total: total})
}

// Add handles POST .../wallet/add.
func (h *WalletHandler) Add(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req walletAmountRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaWalletAmount, &req) {
		return
	}
	wallet, err := h.Wallets.AddMoney(r.Context(), p.UserID, req.AmountCents)
	if err != nil {
		writeError(w, h.Logger, "add money", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Withdraw handles POST .../wallet/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req walletAmountRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaWalletAmount, &req) {
		return
	}
	wallet, err := h.Wallets.WithdrawMoney(r.Context(), p.UserID, req.AmountCents)
	if err != nil {
		writeError(w, h.Logger, "withdraw money", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
