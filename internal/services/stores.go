package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cutmarket/backend/internal/events"
	"github.com/cutmarket/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher receives domain events after the mutation that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// QuotationRepo persists quotations. Every status change is a compare-and-swap on the current
// status; the bool result reports whether this caller won it.
type QuotationRepo interface {
	Create(ctx context.Context, q *models.Quotation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quotation, error)
	DeletePublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	MarkAccepted(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID) (bool, error)
	Reopen(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id, worksID uuid.UUID, penaltyCents int64) (bool, error)
	TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
	ListOverdue(ctx context.Context, status string, dueBefore time.Time) ([]*models.Quotation, error)

	MarkAdvancePaid(ctx context.Context, id uuid.UUID) (bool, error)
	ClaimPayment(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CompletePayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ReleasePaymentClaim(ctx context.Context, id uuid.UUID) error
	ListStalePaymentClaims(ctx context.Context, claimedBefore time.Time) ([]*models.Quotation, error)
}

// BidRepo persists bids.
type BidRepo interface {
	Create(ctx context.Context, b *models.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	HasActiveBid(ctx context.Context, quotationID, editorID uuid.UUID) (bool, error)
	UpdateTerms(ctx context.Context, id, editorID uuid.UUID, amountCents int64, notes string) (*models.Bid, error)
	DeletePending(ctx context.Context, id, editorID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
	// TransitionForQuotation moves every bid of the quotation in status from to status to,
	// skipping exceptID (uuid.Nil skips none). Returns the number of bids moved.
	TransitionForQuotation(ctx context.Context, tx pgx.Tx, quotationID, exceptID uuid.UUID, from, to string) (int64, error)
	ListByQuotation(ctx context.Context, quotationID uuid.UUID, sort string) ([]*models.Bid, error)
}

// EditorRepo persists editor marketplace attributes.
type EditorRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Editor, error)
	ClearLapsedSuspension(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, until *time.Time) error
	StampWithdrawal(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	// UpdateScore writes score and streak only if they still hold the previous values.
	UpdateScore(ctx context.Context, id uuid.UUID, prevScore, prevStreak, score, streak int) (bool, error)
}

// WorkRepo persists submitted works.
type WorkRepo interface {
	Create(ctx context.Context, tx pgx.Tx, w *models.Work) error
	LatestByEditor(ctx context.Context, editorID uuid.UUID, limit int) ([]*models.Work, error)
}

// WalletRepo persists wallets and their transaction lines. Balance changes are atomic
// increments in storage.
type WalletRepo interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, bool, error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error)
	// Debit fails with ErrInsufficientFunds when the balance is lower than amountCents.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error)
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, int, error)
	HasWorkCredit(ctx context.Context, quotationID uuid.UUID) (bool, error)
}

// LedgerWriter is the part of the platform ledger the settlement flow writes to.
type LedgerWriter interface {
	Append(ctx context.Context, tx pgx.Tx, t *models.AdminTransaction) error
	HasLine(ctx context.Context, quotationID uuid.UUID, transactionType string) (bool, error)
	HasWelcomeBonus(ctx context.Context, userID uuid.UUID) (bool, error)
	UnpairedPayments(ctx context.Context) ([]*models.AdminTransaction, error)
}
