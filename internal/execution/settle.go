// Package execution holds the river job definitions and workers.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

// SettlePaymentArgs is enqueued by the payment webhook. Duplicate deliveries of the same
// gateway notification collapse into one job.
type SettlePaymentArgs struct {
	QuotationID uuid.UUID `json:"quotation_id"`
	PaymentID   string    `json:"payment_id"`
	Stage       string    `json:"stage"`
}

func (SettlePaymentArgs) Kind() string { return "settle_payment" }

func (SettlePaymentArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// PaymentConfirmer is the settlement operation the worker drives.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, quotationID uuid.UUID, paymentID, stage string) (*services.PaymentResult, error)
}

type SettlePaymentWorker struct {
	river.WorkerDefaults[SettlePaymentArgs]
	settlement PaymentConfirmer
	log        *slog.Logger
}

func NewSettlePaymentWorker(settlement PaymentConfirmer, log *slog.Logger) *SettlePaymentWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SettlePaymentWorker{settlement: settlement, log: log}
}

func (w *SettlePaymentWorker) Work(ctx context.Context, job *river.Job[SettlePaymentArgs]) error {
	args := job.Args
	res, err := w.settlement.ConfirmPayment(ctx, args.QuotationID, args.PaymentID, args.Stage)
	if err != nil {
		if permanent(err) {
			w.log.Warn("payment settlement cancelled", "quotation_id", args.QuotationID, "payment_id", args.PaymentID, "stage", args.Stage, "error", err)
			return river.JobCancel(err)
		}
		return fmt.Errorf("settle payment %s: %w", args.PaymentID, err)
	}
	w.log.Info("payment settled",
		"quotation_id", args.QuotationID, "payment_id", args.PaymentID, "stage", args.Stage,
		"settled", res.Settled, "duplicate", res.Duplicate)
	return nil
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, models.ErrInvalidState) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidArgument)
}
