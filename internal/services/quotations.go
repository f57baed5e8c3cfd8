package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cutmarket/backend/internal/events"
	"github.com/cutmarket/backend/internal/models"
)

// DefaultAcceptedOverdueAfter is how long past its due date an accepted quotation without work
// may stay open before the expiry sweep closes it.
const DefaultAcceptedOverdueAfter = 72 * time.Hour

// quotationTransitions lists the allowed status moves. Accepted back to Published is the reopen
// after an editor withdraws.
var quotationTransitions = map[string][]string{
	models.QuotationStatusPublished: {models.QuotationStatusAccepted, models.QuotationStatusCancelled, models.QuotationStatusExpired},
	models.QuotationStatusAccepted:  {models.QuotationStatusCompleted, models.QuotationStatusExpired, models.QuotationStatusPublished},
}

// CanTransition reports whether a quotation may move from status from to status to.
func CanTransition(from, to string) bool {
	for _, s := range quotationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Scorer credits an editor for a completed work.
type Scorer interface {
	ApplyCompletion(ctx context.Context, editorID uuid.UUID) (*ScoreUpdate, error)
}

// CreateQuotationInput is what a client supplies to publish a quotation.
type CreateQuotationInput struct {
	Title                string
	Description          string
	Theme                string
	EstimatedBudgetCents int64
	DueDate              time.Time
	OutputType           string
}

// QuotationService drives the quotation lifecycle.
type QuotationService struct {
	Pool                 TxBeginner
	Quotations           QuotationRepo
	Bids                 BidRepo
	Works                WorkRepo
	Scores               Scorer
	Events               Publisher
	Logger               *slog.Logger
	Now                  func() time.Time
	AcceptedOverdueAfter time.Duration
}

// NewQuotationService returns a new QuotationService. scores and pub may be nil.
func NewQuotationService(pool TxBeginner, quotations QuotationRepo, bids BidRepo, works WorkRepo, scores Scorer, pub Publisher, logger *slog.Logger) *QuotationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotationService{
		Pool:                 pool,
		Quotations:           quotations,
		Bids:                 bids,
		Works:                works,
		Scores:               scores,
		Events:               pub,
		Logger:               logger,
		Now:                  func() time.Time { return time.Now().UTC() },
		AcceptedOverdueAfter: DefaultAcceptedOverdueAfter,
	}
}

// Create publishes a new quotation for clientID with its budget split into advance and balance.
func (s *QuotationService) Create(ctx context.Context, clientID uuid.UUID, in CreateQuotationInput) (*models.Quotation, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidArgument)
	}
	if in.EstimatedBudgetCents <= 0 {
		return nil, fmt.Errorf("%w: estimated budget must be positive", models.ErrInvalidArgument)
	}
	now := s.Now()
	if !in.DueDate.After(now) {
		return nil, fmt.Errorf("%w: due date must be in the future", models.ErrInvalidArgument)
	}
	switch in.OutputType {
	case models.OutputTypeVideo, models.OutputTypeImage, models.OutputTypeAudio, models.OutputTypeAnimation:
	default:
		return nil, fmt.Errorf("%w: unknown output type %q", models.ErrInvalidArgument, in.OutputType)
	}

	advance, balance := models.SplitBudget(in.EstimatedBudgetCents)
	q := &models.Quotation{
		ID:                   uuid.New(),
		UserID:               clientID,
		Title:                strings.TrimSpace(in.Title),
		Description:          in.Description,
		Theme:                in.Theme,
		EstimatedBudgetCents: in.EstimatedBudgetCents,
		AdvanceAmountCents:   advance,
		BalanceAmountCents:   balance,
		DueDate:              in.DueDate.UTC(),
		OutputType:           in.OutputType,
		Status:               models.QuotationStatusPublished,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.Quotations.Create(ctx, q); err != nil {
		return nil, err
	}
	s.Logger.Info("quotation published", "quotation_id", q.ID, "user_id", clientID, "budget_cents", q.EstimatedBudgetCents)
	s.publish(ctx, events.Event{Kind: events.KindQuotationCreated, QuotationID: q.ID, UserID: &clientID, AmountCents: q.EstimatedBudgetCents})
	return q, nil
}

// Get returns a quotation by id.
func (s *QuotationService) Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	return s.Quotations.GetByID(ctx, id)
}

// Delete removes the client's published quotation together with its pending bids.
func (s *QuotationService) Delete(ctx context.Context, id, clientID uuid.UUID) error {
	q, err := s.owned(ctx, id, clientID)
	if err != nil {
		return err
	}
	if q.Status != models.QuotationStatusPublished {
		return fmt.Errorf("%w: only published quotations can be deleted, this one is %s", models.ErrInvalidState, q.Status)
	}
	return inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		ok, err := s.Quotations.DeletePublished(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("delete quotation: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quotation is no longer published", models.ErrInvalidState)
		}
		return nil
	})
}

// Cancel closes the client's published quotation and expires its pending bids.
func (s *QuotationService) Cancel(ctx context.Context, id, clientID uuid.UUID) (*models.Quotation, error) {
	q, err := s.owned(ctx, id, clientID)
	if err != nil {
		return nil, err
	}
	if q.IsTerminal() {
		return nil, fmt.Errorf("%w: quotation is already %s", models.ErrInvalidState, q.Status)
	}
	if !CanTransition(q.Status, models.QuotationStatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s quotation", models.ErrInvalidState, q.Status)
	}
	err = inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		ok, err := s.Quotations.TransitionStatus(ctx, tx, id, models.QuotationStatusPublished, models.QuotationStatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel quotation: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quotation is no longer published", models.ErrInvalidState)
		}
		_, err = s.Bids.TransitionForQuotation(ctx, tx, id, uuid.Nil, models.BidStatusPending, models.BidStatusExpired)
		return err
	})
	if err != nil {
		return nil, err
	}
	q.Status = models.QuotationStatusCancelled
	s.Logger.Info("quotation cancelled", "quotation_id", id)
	return q, nil
}

// SubmitWork records the assigned editor's final delivery and completes the quotation. The work
// row and the Accepted to Completed compare-and-swap commit together, so only one submission
// per quotation can succeed; a repeat fails with ErrInvalidState. The editor's score is then
// updated on a best-effort basis.
func (s *QuotationService) SubmitWork(ctx context.Context, editorID, quotationID uuid.UUID, finalFiles []string, comments string) (*models.Work, error) {
	if len(finalFiles) == 0 {
		return nil, fmt.Errorf("%w: at least one final file is required", models.ErrInvalidArgument)
	}
	q, err := s.Quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuotationStatusAccepted {
		return nil, fmt.Errorf("%w: quotation is %s", models.ErrInvalidState, q.Status)
	}
	if q.EditorID == nil || *q.EditorID != editorID {
		return nil, fmt.Errorf("%w: quotation is assigned to another editor", models.ErrForbidden)
	}

	now := s.Now()
	w := &models.Work{
		ID:           uuid.New(),
		QuotationID:  quotationID,
		EditorID:     editorID,
		FinalFiles:   finalFiles,
		Comments:     comments,
		PenaltyCents: CalculatePenalty(q.DueDate, now, q.EstimatedBudgetCents),
		CreatedAt:    now,
	}
	err = inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Works.Create(ctx, tx, w); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return fmt.Errorf("%w: work already submitted", models.ErrInvalidState)
			}
			return fmt.Errorf("create work: %w", err)
		}
		ok, err := s.Quotations.MarkCompleted(ctx, tx, quotationID, w.ID, w.PenaltyCents)
		if err != nil {
			return fmt.Errorf("complete quotation: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quotation is no longer accepted", models.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("work submitted", "quotation_id", quotationID, "work_id", w.ID, "editor_id", editorID, "penalty_cents", w.PenaltyCents)

	if s.Scores != nil {
		if _, err := s.Scores.ApplyCompletion(ctx, editorID); err != nil {
			s.Logger.Error("score update failed", "editor_id", editorID, "quotation_id", quotationID, "error", err)
		}
	}
	s.publish(ctx, events.Event{Kind: events.KindWorkSubmitted, QuotationID: quotationID, UserID: &q.UserID, EditorID: &editorID, AmountCents: w.PenaltyCents})
	return w, nil
}

// ExpireOverdue closes quotations whose deadline has passed: published ones once the due date
// is behind now, accepted ones without work once they are AcceptedOverdueAfter late. It returns
// how many quotations were expired. A quotation that changes status concurrently is skipped.
func (s *QuotationService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	published, err := s.Quotations.ListOverdue(ctx, models.QuotationStatusPublished, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue published: %w", err)
	}
	for _, q := range published {
		ok, err := s.expire(ctx, q, models.QuotationStatusPublished, models.BidStatusPending)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	accepted, err := s.Quotations.ListOverdue(ctx, models.QuotationStatusAccepted, now.Add(-s.AcceptedOverdueAfter))
	if err != nil {
		return expired, fmt.Errorf("list overdue accepted: %w", err)
	}
	for _, q := range accepted {
		ok, err := s.expire(ctx, q, models.QuotationStatusAccepted, models.BidStatusAccepted)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (s *QuotationService) expire(ctx context.Context, q *models.Quotation, from, bidStatus string) (bool, error) {
	var ok bool
	err := inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		var err error
		ok, err = s.Quotations.TransitionStatus(ctx, tx, q.ID, from, models.QuotationStatusExpired)
		if err != nil || !ok {
			return err
		}
		_, err = s.Bids.TransitionForQuotation(ctx, tx, q.ID, uuid.Nil, bidStatus, models.BidStatusExpired)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("expire quotation %s: %w", q.ID, err)
	}
	if ok {
		s.Logger.Info("quotation expired", "quotation_id", q.ID, "from", from)
		s.publish(ctx, events.Event{Kind: events.KindQuotationExpired, QuotationID: q.ID, UserID: &q.UserID, EditorID: q.EditorID})
	}
	return ok, nil
}

func (s *QuotationService) owned(ctx context.Context, id, clientID uuid.UUID) (*models.Quotation, error) {
	q, err := s.Quotations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != clientID {
		return nil, fmt.Errorf("%w: quotation belongs to another user", models.ErrForbidden)
	}
	return q, nil
}

func (s *QuotationService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	ev.OccurredAt = s.Now()
	s.Events.Publish(ctx, ev)
}
