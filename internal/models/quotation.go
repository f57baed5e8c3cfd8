package models

import (
	"time"

	"github.com/google/uuid"
)

// Quotation status enums.
const (
	QuotationStatusPublished = "published"
	QuotationStatusAccepted  = "accepted"
	QuotationStatusCompleted = "completed"
	QuotationStatusExpired   = "expired"
	QuotationStatusCancelled = "cancelled"
)

// Output types a client can request.
const (
	OutputTypeVideo     = "video"
	OutputTypeImage     = "image"
	OutputTypeAudio     = "audio"
	OutputTypeAnimation = "animation"
)

// AdvancePercent is the share of the estimated budget paid up front; the rest is the balance.
const AdvancePercent = 40

type Quotation struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Theme                string     `json:"theme"`
	EstimatedBudgetCents int64      `json:"estimated_budget_cents"`
	AdvanceAmountCents   int64      `json:"advance_amount_cents"`
	BalanceAmountCents   int64      `json:"balance_amount_cents"`
	DueDate              time.Time  `json:"due_date"`
	OutputType           string     `json:"output_type"`
	Status               string     `json:"status"`
	EditorID             *uuid.UUID `json:"editor_id,omitempty"`
	WorksID              *uuid.UUID `json:"works_id,omitempty"`
	PenaltyCents         int64      `json:"penalty_cents"`
	IsAdvancePaid        bool       `json:"is_advance_paid"`
	IsFullyPaid          bool       `json:"is_fully_paid"`
	IsPaymentInProgress  bool       `json:"is_payment_in_progress"`
	PaymentClaimedAt     *time.Time `json:"-"`
	ReopenCount          int        `json:"reopen_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SplitBudget returns the advance and balance parts of a budget. They always sum to budget.
func SplitBudget(budgetCents int64) (advance, balance int64) {
	advance = budgetCents * AdvancePercent / 100
	return advance, budgetCents - advance
}

// IsTerminal reports whether no further status transition is possible.
func (q *Quotation) IsTerminal() bool {
	switch q.Status {
	case QuotationStatusCompleted, QuotationStatusExpired, QuotationStatusCancelled:
		return true
	}
	return false
}
