package models

import (
	"time"

	"github.com/google/uuid"
)

// Work is the final delivery an editor submits for an accepted quotation.
type Work struct {
	ID           uuid.UUID `json:"id"`
	QuotationID  uuid.UUID `json:"quotation_id"`
	EditorID     uuid.UUID `json:"editor_id"`
	FinalFiles   []string  `json:"final_files"`
	Comments     string    `json:"comments"`
	PenaltyCents int64     `json:"penalty_cents"`
	CreatedAt    time.Time `json:"created_at"`
}
