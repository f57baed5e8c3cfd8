package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform ledger flow enums.
const (
	FlowCredit = "credit"
	FlowDebit  = "debit"
)

// Platform ledger transaction_type enums.
const (
	AdminTxUserPayment   = "user_payment"
	AdminTxEditorPayout  = "editor_payout"
	AdminTxWithdrawalFee = "withdrawal_fee"
	AdminTxRefund        = "refund"
	AdminTxWelcomeBonus  = "welcome_bonus"
)

// CommissionPercent is the platform cut of every client payment.
const CommissionPercent = 10

// WelcomeBonusCents is the one-time credit a new user's wallet receives (100 units).
const WelcomeBonusCents int64 = 100_00

type AdminTransaction struct {
	ID              uuid.UUID  `json:"id"`
	Flow            string     `json:"flow"`
	AmountCents     int64      `json:"amount_cents"`
	TransactionType string     `json:"transaction_type"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	EditorID        *uuid.UUID `json:"editor_id,omitempty"`
	QuotationID     *uuid.UUID `json:"quotation_id,omitempty"`
	CommissionCents int64      `json:"commission_cents"`
	PaymentID       string     `json:"payment_id,omitempty"`
	Description     string     `json:"description"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SplitCommission returns the platform commission and the editor share of a payment.
func SplitCommission(amountCents int64) (commission, editorShare int64) {
	commission = amountCents * CommissionPercent / 100
	return commission, amountCents - commission
}

// FinancialSummary aggregates the platform ledger.
type FinancialSummary struct {
	TotalRevenueCents     int64 `json:"total_revenue_cents"`
	TotalPlatformFeeCents int64 `json:"total_platform_fee_cents"`
	TotalPayoutsCents     int64 `json:"total_payouts_cents"`
	NetProfitCents        int64 `json:"net_profit_cents"`
}
