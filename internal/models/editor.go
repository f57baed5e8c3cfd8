package models

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalCooldown is how long an editor must wait between two withdrawals from accepted work.
const WithdrawalCooldown = 30 * 24 * time.Hour

type Editor struct {
	UserID            uuid.UUID  `json:"user_id"`
	Category          string     `json:"category"`
	Score             int        `json:"score"`
	Streak            int        `json:"streak"`
	IsSuspended       bool       `json:"is_suspended"`
	SuspendedUntil    *time.Time `json:"suspended_until,omitempty"`
	LastWithdrawnDate *time.Time `json:"last_withdrawn_date,omitempty"`
	Ratings           []int32    `json:"ratings"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SuspensionLapsed reports whether a suspended editor's suspension has run out at now.
func (e *Editor) SuspensionLapsed(now time.Time) bool {
	return e.IsSuspended && e.SuspendedUntil != nil && now.After(*e.SuspendedUntil)
}

// InWithdrawalCooldown reports whether the editor withdrew from accepted work too recently.
func (e *Editor) InWithdrawalCooldown(now time.Time) bool {
	return e.LastWithdrawnDate != nil && now.Sub(*e.LastWithdrawnDate) < WithdrawalCooldown
}
