package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is the currency new wallets are opened in.
const DefaultCurrency = "INR"

// Wallet transaction type enums.
const (
	WalletTxCredit         = "credit"
	WalletTxDebit          = "debit"
	WalletTxCreditFromWork = "credit_from_work"
	WalletTxWithdrawal     = "withdrawal"
	WalletTxRefund         = "refund"
	WalletTxCompensation   = "compensation"
)

type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WalletTransaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Type        string          `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	Description string          `json:"description"`
	QuotationID *uuid.UUID      `json:"quotation_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SignedAmount returns the balance delta the transaction represents for its wallet.
func (t *WalletTransaction) SignedAmount() int64 {
	switch t.Type {
	case WalletTxDebit, WalletTxWithdrawal:
		return -t.AmountCents
	}
	return t.AmountCents
}
