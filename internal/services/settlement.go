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

// Payment stages reported by the gateway.
const (
	PaymentStageAdvance = "advance"
	PaymentStageBalance = "balance"
)

// DefaultStaleClaimAfter is how long a payment claim may stay open before reconciliation
// resolves it.
const DefaultStaleClaimAfter = 15 * time.Minute

// PaymentResult describes what a payment confirmation did.
type PaymentResult struct {
	QuotationID uuid.UUID `json:"quotation_id"`
	Stage       string    `json:"stage"`
	Settled     bool      `json:"settled"`
	Duplicate   bool      `json:"duplicate"`
}

// ReconcileReport summarises one reconciliation pass over the ledgers.
type ReconcileReport struct {
	MissingPayouts int `json:"missing_payouts"`
	Repaired       int `json:"repaired"`
	ReleasedClaims int `json:"released_claims"`
	Finalized      int `json:"finalized"`
}

// SettlementService moves money when a quotation is paid: the client payment and the editor
// payout go to the platform ledger and the editor's share to their wallet.
type SettlementService struct {
	Pool            TxBeginner
	Quotations      QuotationRepo
	Wallets         *WalletService
	Ledger          LedgerWriter
	Events          Publisher
	Logger          *slog.Logger
	Now             func() time.Time
	StaleClaimAfter time.Duration
}

// NewSettlementService returns a new SettlementService. pub may be nil.
func NewSettlementService(pool TxBeginner, quotations QuotationRepo, wallets *WalletService, ledger LedgerWriter, pub Publisher, logger *slog.Logger) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{
		Pool:            pool,
		Quotations:      quotations,
		Wallets:         wallets,
		Ledger:          ledger,
		Events:          pub,
		Logger:          logger,
		Now:             func() time.Time { return time.Now().UTC() },
		StaleClaimAfter: DefaultStaleClaimAfter,
	}
}

// ConfirmPayment applies a gateway payment confirmation. The advance stage only flags an accepted
// or completed quotation. The balance stage settles a completed one: the caller that wins the
// payment-in-progress claim records the payment and marks the quotation fully paid in one
// transaction, every other caller is a no-op. A failed settlement releases the claim and returns
// the error so the delivery can be retried.
func (s *SettlementService) ConfirmPayment(ctx context.Context, quotationID uuid.UUID, paymentID, stage string) (*PaymentResult, error) {
	q, err := s.Quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuotationStatusAccepted && q.Status != models.QuotationStatusCompleted {
		return nil, fmt.Errorf("%w: cannot take payment for a %s quotation", models.ErrInvalidState, q.Status)
	}
	res := &PaymentResult{QuotationID: quotationID, Stage: stage}

	switch stage {
	case PaymentStageAdvance:
		changed, err := s.Quotations.MarkAdvancePaid(ctx, quotationID)
		if err != nil {
			return nil, fmt.Errorf("mark advance paid: %w", err)
		}
		res.Duplicate = !changed
		s.Logger.Info("advance payment confirmed", "quotation_id", quotationID, "payment_id", paymentID, "duplicate", res.Duplicate)
		return res, nil
	case PaymentStageBalance:
		if q.Status != models.QuotationStatusCompleted {
			return nil, fmt.Errorf("%w: balance is due once the work is submitted, quotation is %s", models.ErrInvalidState, q.Status)
		}
	default:
		return nil, fmt.Errorf("%w: unknown payment stage %q", models.ErrInvalidArgument, stage)
	}

	if q.IsFullyPaid {
		res.Duplicate = true
		return res, nil
	}
	claimed, err := s.Quotations.ClaimPayment(ctx, quotationID, s.Now())
	if err != nil {
		return nil, fmt.Errorf("claim payment: %w", err)
	}
	if !claimed {
		s.Logger.Info("duplicate balance payment ignored", "quotation_id", quotationID, "payment_id", paymentID)
		res.Duplicate = true
		return res, nil
	}

	q, err = s.settleClaimed(ctx, quotationID, paymentID)
	if err != nil {
		if rerr := s.Quotations.ReleasePaymentClaim(ctx, quotationID); rerr != nil {
			s.Logger.Error("release payment claim failed", "quotation_id", quotationID, "error", rerr)
		}
		return nil, fmt.Errorf("settle quotation %s: %w", quotationID, err)
	}

	res.Settled = true
	s.Logger.Info("quotation settled", "quotation_id", quotationID, "payment_id", paymentID, "amount_cents", q.EstimatedBudgetCents)
	if s.Events != nil {
		s.Events.Publish(ctx, events.Event{Kind: events.KindPaymentSettled, QuotationID: quotationID, UserID: &q.UserID, EditorID: q.EditorID, AmountCents: q.EstimatedBudgetCents, OccurredAt: s.Now()})
	}
	return res, nil
}

// settleClaimed runs under the payment claim and works from a fresh read of the quotation.
func (s *SettlementService) settleClaimed(ctx context.Context, quotationID uuid.UUID, paymentID string) (*models.Quotation, error) {
	q, err := s.Quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuotationStatusCompleted {
		return nil, fmt.Errorf("%w: quotation moved to %s", models.ErrInvalidState, q.Status)
	}
	err = inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.RecordUserPayment(ctx, tx, q, paymentID); err != nil {
			return err
		}
		return s.Quotations.CompletePayment(ctx, tx, quotationID)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// RecordUserPayment writes the settlement of a paid quotation: the client payment line with
// the platform commission, the editor's wallet credit, and the matching payout line. Call within
// a transaction.
func (s *SettlementService) RecordUserPayment(ctx context.Context, tx pgx.Tx, q *models.Quotation, paymentID string) error {
	if q.EditorID == nil {
		return fmt.Errorf("%w: quotation %s has no editor", models.ErrInvalidState, q.ID)
	}
	editorID := *q.EditorID
	commission, share := models.SplitCommission(q.EstimatedBudgetCents)

	if err := s.Ledger.Append(ctx, tx, &models.AdminTransaction{
		ID:              uuid.New(),
		Flow:            models.FlowCredit,
		AmountCents:     q.EstimatedBudgetCents,
		TransactionType: models.AdminTxUserPayment,
		UserID:          &q.UserID,
		EditorID:        &editorID,
		QuotationID:     &q.ID,
		CommissionCents: commission,
		PaymentID:       paymentID,
		Description:     "client payment for " + q.Title,
	}); err != nil {
		return fmt.Errorf("append user payment: %w", err)
	}
	if _, err := s.Wallets.CreditFromWork(ctx, tx, editorID, share, q.ID); err != nil {
		return fmt.Errorf("credit editor: %w", err)
	}
	return s.appendPayout(ctx, tx, q.ID, editorID, share)
}

func (s *SettlementService) appendPayout(ctx context.Context, tx pgx.Tx, quotationID, editorID uuid.UUID, share int64) error {
	if err := s.Ledger.Append(ctx, tx, &models.AdminTransaction{
		ID:              uuid.New(),
		Flow:            models.FlowDebit,
		AmountCents:     share,
		TransactionType: models.AdminTxEditorPayout,
		EditorID:        &editorID,
		QuotationID:     &quotationID,
		Description:     "editor payout",
	}); err != nil {
		return fmt.Errorf("append editor payout: %w", err)
	}
	return nil
}

// OpenWallet returns the user's wallet. A user without a welcome bonus line is credited first,
// whichever call opened the wallet. A failed credit is logged and tried again on the next open.
func (s *SettlementService) OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, _, err := s.Wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	credited, err := s.Ledger.HasWelcomeBonus(ctx, userID)
	if err != nil {
		s.Logger.Error("check welcome bonus failed", "user_id", userID, "error", err)
		return w, nil
	}
	if credited {
		return w, nil
	}
	if err := s.CreditWelcomeBonus(ctx, userID); err != nil {
		s.Logger.Error("welcome bonus failed", "user_id", userID, "error", err)
		return w, nil
	}
	w, _, err = s.Wallets.GetOrCreate(ctx, userID)
	return w, err
}

// CreditWelcomeBonus gives a new user the one-time bonus, paid by the platform. A second call
// for the same user is a no-op.
func (s *SettlementService) CreditWelcomeBonus(ctx context.Context, userID uuid.UUID) error {
	err := inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Ledger.Append(ctx, tx, &models.AdminTransaction{
			ID:              uuid.New(),
			Flow:            models.FlowDebit,
			AmountCents:     models.WelcomeBonusCents,
			TransactionType: models.AdminTxWelcomeBonus,
			UserID:          &userID,
			Description:     "welcome bonus",
		}); err != nil {
			return err
		}
		_, err := s.Wallets.Credit(ctx, tx, userID, models.WelcomeBonusCents, models.WalletTxCredit, "welcome bonus", nil, nil)
		return err
	})
	if errors.Is(err, models.ErrConflict) {
		s.Logger.Info("welcome bonus already credited", "user_id", userID)
		return nil
	}
	return err
}

// Reconcile repairs what an interrupted settlement can leave behind. Payment lines without a
// payout get the editor credit (when missing) and the payout line. Payment claims older than
// StaleClaimAfter are finalized when the payment line exists and released otherwise.
func (s *SettlementService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	rep := &ReconcileReport{}

	unpaired, err := s.Ledger.UnpairedPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unpaired payments: %w", err)
	}
	for _, p := range unpaired {
		rep.MissingPayouts++
		if p.QuotationID == nil || p.EditorID == nil {
			s.Logger.Warn("unpaired payment without quotation or editor", "admin_transaction_id", p.ID)
			continue
		}
		if err := s.repairPayout(ctx, p); err != nil {
			s.Logger.Error("repair payout failed", "quotation_id", *p.QuotationID, "error", err)
			continue
		}
		rep.Repaired++
	}

	stale, err := s.Quotations.ListStalePaymentClaims(ctx, s.Now().Add(-s.StaleClaimAfter))
	if err != nil {
		return rep, fmt.Errorf("list stale payment claims: %w", err)
	}
	for _, q := range stale {
		paid, err := s.Ledger.HasLine(ctx, q.ID, models.AdminTxUserPayment)
		if err != nil {
			return rep, fmt.Errorf("check payment line: %w", err)
		}
		if paid {
			if err := inTx(ctx, s.Pool, func(tx pgx.Tx) error { return s.Quotations.CompletePayment(ctx, tx, q.ID) }); err != nil {
				return rep, fmt.Errorf("finalize payment: %w", err)
			}
			rep.Finalized++
			continue
		}
		if err := s.Quotations.ReleasePaymentClaim(ctx, q.ID); err != nil {
			return rep, fmt.Errorf("release payment claim: %w", err)
		}
		rep.ReleasedClaims++
	}

	if rep.MissingPayouts > 0 || rep.ReleasedClaims > 0 || rep.Finalized > 0 {
		s.Logger.Warn("ledger reconciled", "missing_payouts", rep.MissingPayouts, "repaired", rep.Repaired,
			"released_claims", rep.ReleasedClaims, "finalized", rep.Finalized)
	}
	return rep, nil
}

func (s *SettlementService) repairPayout(ctx context.Context, p *models.AdminTransaction) error {
	quotationID, editorID := *p.QuotationID, *p.EditorID
	share := p.AmountCents - p.CommissionCents
	credited, err := s.Wallets.Wallets.HasWorkCredit(ctx, quotationID)
	if err != nil {
		return err
	}
	return inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if !credited {
			if _, err := s.Wallets.CreditFromWork(ctx, tx, editorID, share, quotationID); err != nil {
				return err
			}
		}
		return s.appendPayout(ctx, tx, quotationID, editorID, share)
	})
}
