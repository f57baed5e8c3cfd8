package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid status enums.
const (
	BidStatusPending   = "pending"
	BidStatusAccepted  = "accepted"
	BidStatusRejected  = "rejected"
	BidStatusExpired   = "expired"
	BidStatusWithdrawn = "withdrawn"
)

// Bid listing orders.
const (
	BidSortAmountAsc  = "amount_asc"
	BidSortAmountDesc = "amount_desc"
	BidSortNewest     = "newest"
)

type Bid struct {
	ID             uuid.UUID `json:"id"`
	QuotationID    uuid.UUID `json:"quotation_id"`
	EditorID       uuid.UUID `json:"editor_id"`
	BidAmountCents int64     `json:"bid_amount_cents"`
	Notes          string    `json:"notes"`
	Status         string    `json:"status"`
	DueDate        time.Time `json:"due_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
