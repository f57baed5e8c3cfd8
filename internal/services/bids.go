package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cutmarket/backend/internal/events"
	"github.com/cutmarket/backend/internal/models"
)

// BidEngine owns the bid lifecycle of a quotation: creation, terms updates, acceptance and
// withdrawal of accepted work.
type BidEngine struct {
	Pool       TxBeginner
	Quotations QuotationRepo
	Bids       BidRepo
	Editors    EditorRepo
	Events     Publisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewBidEngine returns a new BidEngine. pub may be nil.
func NewBidEngine(pool TxBeginner, quotations QuotationRepo, bids BidRepo, editors EditorRepo, pub Publisher, logger *slog.Logger) *BidEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &BidEngine{
		Pool:       pool,
		Quotations: quotations,
		Bids:       bids,
		Editors:    editors,
		Events:     pub,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateBid places a pending bid for editorID on a published quotation. The bid inherits the
// quotation's due date.
func (e *BidEngine) CreateBid(ctx context.Context, editorID, quotationID uuid.UUID, amountCents int64, notes string) (*models.Bid, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", models.ErrInvalidArgument)
	}
	q, err := e.Quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuotationStatusPublished {
		return nil, fmt.Errorf("%w: quotation is %s", models.ErrInvalidState, q.Status)
	}
	dup, err := e.Bids.HasActiveBid(ctx, quotationID, editorID)
	if err != nil {
		return nil, fmt.Errorf("check existing bid: %w", err)
	}
	if dup {
		return nil, fmt.Errorf("%w: editor already bid on this quotation", models.ErrConflict)
	}
	if err := e.ensureNotSuspended(ctx, editorID); err != nil {
		return nil, err
	}

	now := e.Now()
	b := &models.Bid{
		ID:             uuid.New(),
		QuotationID:    quotationID,
		EditorID:       editorID,
		BidAmountCents: amountCents,
		Notes:          notes,
		Status:         models.BidStatusPending,
		DueDate:        q.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Bids.Create(ctx, b); err != nil {
		return nil, err
	}
	e.Logger.Info("bid created", "bid_id", b.ID, "quotation_id", quotationID, "editor_id", editorID, "amount_cents", amountCents)
	e.publish(ctx, events.Event{Kind: events.KindBidCreated, QuotationID: quotationID, BidID: &b.ID, UserID: &q.UserID, EditorID: &editorID, AmountCents: amountCents})
	return b, nil
}

// ensureNotSuspended rejects suspended editors, healing a suspension whose end date has passed.
func (e *BidEngine) ensureNotSuspended(ctx context.Context, editorID uuid.UUID) error {
	ed, err := e.Editors.GetByID(ctx, editorID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: user %s has no editor profile", models.ErrForbidden, editorID)
	}
	if err != nil {
		return fmt.Errorf("load editor: %w", err)
	}
	if !ed.IsSuspended {
		return nil
	}
	now := e.Now()
	if !ed.SuspensionLapsed(now) {
		return fmt.Errorf("%w: editor is suspended", models.ErrForbidden)
	}
	if _, err := e.Editors.ClearLapsedSuspension(ctx, editorID, now); err != nil {
		return fmt.Errorf("clear suspension: %w", err)
	}
	e.Logger.Info("editor suspension lapsed", "editor_id", editorID)
	return nil
}

// UpdateBid changes the amount and notes of the editor's own pending bid.
func (e *BidEngine) UpdateBid(ctx context.Context, bidID, editorID uuid.UUID, amountCents int64, notes string) (*models.Bid, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", models.ErrInvalidArgument)
	}
	b, err := e.ownedBid(ctx, bidID, editorID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BidStatusPending {
		return nil, fmt.Errorf("%w: bid is %s", models.ErrInvalidState, b.Status)
	}
	updated, err := e.Bids.UpdateTerms(ctx, bidID, editorID, amountCents, notes)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: bid is no longer pending", models.ErrInvalidState)
	}
	return updated, nil
}

// DeleteBid removes the editor's own pending bid.
func (e *BidEngine) DeleteBid(ctx context.Context, bidID, editorID uuid.UUID) error {
	b, err := e.ownedBid(ctx, bidID, editorID)
	if err != nil {
		return err
	}
	if b.Status != models.BidStatusPending {
		return fmt.Errorf("%w: bid is %s", models.ErrInvalidState, b.Status)
	}
	ok, err := e.Bids.DeletePending(ctx, bidID, editorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: bid is no longer pending", models.ErrInvalidState)
	}
	return nil
}

// AcceptBid awards the quotation to the bid's editor. The quotation moves Published to Accepted
// with a compare-and-swap before any bid is touched, so of two concurrent acceptances exactly
// one wins and the other fails with ErrInvalidState. The winning bid becomes accepted and every
// other pending bid is rejected in the same transaction.
func (e *BidEngine) AcceptBid(ctx context.Context, bidID, clientID uuid.UUID) (*models.Bid, error) {
	b, err := e.Bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	q, err := e.Quotations.GetByID(ctx, b.QuotationID)
	if err != nil {
		return nil, err
	}
	if q.UserID != clientID {
		return nil, fmt.Errorf("%w: quotation belongs to another user", models.ErrForbidden)
	}
	if q.Status != models.QuotationStatusPublished {
		return nil, fmt.Errorf("%w: quotation is %s", models.ErrInvalidState, q.Status)
	}
	if b.Status != models.BidStatusPending {
		return nil, fmt.Errorf("%w: bid is %s", models.ErrInvalidState, b.Status)
	}

	var rejected int64
	err = inTx(ctx, e.Pool, func(tx pgx.Tx) error {
		ok, err := e.Quotations.MarkAccepted(ctx, tx, q.ID, b.EditorID)
		if err != nil {
			return fmt.Errorf("accept quotation: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quotation was accepted concurrently", models.ErrInvalidState)
		}
		ok, err = e.Bids.TransitionStatus(ctx, tx, b.ID, models.BidStatusPending, models.BidStatusAccepted)
		if err != nil {
			return fmt.Errorf("accept bid: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: bid is no longer pending", models.ErrInvalidState)
		}
		rejected, err = e.Bids.TransitionForQuotation(ctx, tx, q.ID, b.ID, models.BidStatusPending, models.BidStatusRejected)
		if err != nil {
			return fmt.Errorf("reject sibling bids: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.Status = models.BidStatusAccepted
	e.Logger.Info("bid accepted", "bid_id", b.ID, "quotation_id", q.ID, "editor_id", b.EditorID, "rejected", rejected)
	e.publish(ctx, events.Event{Kind: events.KindBidAccepted, QuotationID: q.ID, BidID: &b.ID, UserID: &q.UserID, EditorID: &b.EditorID, AmountCents: b.BidAmountCents})
	return b, nil
}

// WithdrawFromWork lets the editor of an accepted bid walk away. The quotation is reopened for
// bidding: it goes back to Published with no editor and its reopen count incremented, the bid
// becomes withdrawn and the bids rejected at acceptance are pending again. An editor may
// withdraw at most once per cooldown period.
func (e *BidEngine) WithdrawFromWork(ctx context.Context, bidID, editorID uuid.UUID) (*models.Bid, error) {
	b, err := e.ownedBid(ctx, bidID, editorID)
	if err != nil {
		return nil, err
	}
	ed, err := e.Editors.GetByID(ctx, editorID)
	if err != nil {
		return nil, fmt.Errorf("load editor: %w", err)
	}
	now := e.Now()
	if ed.InWithdrawalCooldown(now) {
		return nil, fmt.Errorf("%w: editor withdrew on %s and must wait %s between withdrawals",
			models.ErrConflict, ed.LastWithdrawnDate.Format(time.RFC3339), models.WithdrawalCooldown)
	}
	if b.Status != models.BidStatusAccepted {
		return nil, fmt.Errorf("%w: bid is %s", models.ErrInvalidState, b.Status)
	}

	var restored int64
	err = inTx(ctx, e.Pool, func(tx pgx.Tx) error {
		ok, err := e.Quotations.Reopen(ctx, tx, b.QuotationID, editorID)
		if err != nil {
			return fmt.Errorf("reopen quotation: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quotation is no longer accepted by this editor or payment has started", models.ErrInvalidState)
		}
		ok, err = e.Bids.TransitionStatus(ctx, tx, b.ID, models.BidStatusAccepted, models.BidStatusWithdrawn)
		if err != nil {
			return fmt.Errorf("withdraw bid: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: bid is no longer accepted", models.ErrInvalidState)
		}
		restored, err = e.Bids.TransitionForQuotation(ctx, tx, b.QuotationID, b.ID, models.BidStatusRejected, models.BidStatusPending)
		if err != nil {
			return fmt.Errorf("restore sibling bids: %w", err)
		}
		return e.Editors.StampWithdrawal(ctx, tx, editorID, now)
	})
	if err != nil {
		return nil, err
	}

	b.Status = models.BidStatusWithdrawn
	e.Logger.Info("editor withdrew from work", "bid_id", b.ID, "quotation_id", b.QuotationID, "editor_id", editorID, "restored", restored)
	e.publish(ctx, events.Event{Kind: events.KindBidWithdrawn, QuotationID: b.QuotationID, BidID: &b.ID, EditorID: &editorID})
	return b, nil
}

// ListBids returns the bids on the client's quotation. sort defaults to lowest amount first.
func (e *BidEngine) ListBids(ctx context.Context, quotationID, clientID uuid.UUID, sort string) ([]*models.Bid, error) {
	switch sort {
	case "":
		sort = models.BidSortAmountAsc
	case models.BidSortAmountAsc, models.BidSortAmountDesc, models.BidSortNewest:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", models.ErrInvalidArgument, sort)
	}
	q, err := e.Quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.UserID != clientID {
		return nil, fmt.Errorf("%w: quotation belongs to another user", models.ErrForbidden)
	}
	return e.Bids.ListByQuotation(ctx, quotationID, sort)
}

func (e *BidEngine) ownedBid(ctx context.Context, bidID, editorID uuid.UUID) (*models.Bid, error) {
	b, err := e.Bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.EditorID != editorID {
		return nil, fmt.Errorf("%w: bid belongs to another editor", models.ErrForbidden)
	}
	return b, nil
}

func (e *BidEngine) publish(ctx context.Context, ev events.Event) {
	if e.Events == nil {
		return
	}
	ev.OccurredAt = e.Now()
	e.Events.Publish(ctx, ev)
}
