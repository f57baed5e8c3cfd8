package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/cutmarket/backend/internal/execution"
	"github.com/cutmarket/backend/internal/handlers"
	"github.com/cutmarket/backend/internal/ledger"
	"github.com/cutmarket/backend/internal/middleware"
	"github.com/cutmarket/backend/internal/router"
	"github.com/cutmarket/backend/internal/services"
)

type routeDeps struct {
	verifier      middleware.TokenVerifier
	webhookSecret string
	quotations    *services.QuotationService
	bids          *services.BidEngine
	wallets       *services.WalletService
	settlement    *services.SettlementService
	editors       *services.EditorService
	ledger        ledger.Service
	queue         handlers.SettlementEnqueuer
	validator     *services.Validator
	logger        *slog.Logger
}

// buildRouter wires the services into the HTTP handlers.
func buildRouter(d routeDeps) http.Handler {
	return router.New(router.Deps{
		Verifier:      d.verifier,
		WebhookSecret: d.webhookSecret,
		Quotations:    &handlers.QuotationHandler{Quotations: d.quotations, Bids: d.bids, Validator: d.validator, Logger: d.logger},
		Bids:          &handlers.BidHandler{Bids: d.bids, Validator: d.validator, Logger: d.logger},
		Works:         &handlers.WorkHandler{Works: d.quotations, Validator: d.validator, Logger: d.logger},
		Wallets:       &handlers.WalletHandler{Wallets: d.wallets, Opener: d.settlement, Validator: d.validator, Logger: d.logger},
		Editors:       &handlers.EditorHandler{Editors: d.editors, Validator: d.validator, Logger: d.logger},
		Admin:         &handlers.AdminHandler{Ledger: d.ledger, Reconciler: d.settlement, Logger: d.logger},
		Payments:      &handlers.PaymentHandler{Queue: d.queue, Validator: d.validator, Logger: d.logger},
	})
}

// settlementQueue enqueues webhook payments as river jobs.
type settlementQueue struct {
	client *river.Client[pgx.Tx]
}

func (q *settlementQueue) EnqueueSettlement(ctx context.Context, req handlers.SettlementRequest) error {
	_, err := q.client.Insert(ctx, execution.SettlePaymentArgs{
		QuotationID: req.QuotationID,
		PaymentID:   req.PaymentID,
		Stage:       req.Stage,
	}, nil)
	return err
}
