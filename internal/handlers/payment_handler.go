package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/services"
)

// SettlementRequest is one gateway payment notification.
type SettlementRequest struct {
	QuotationID uuid.UUID `json:"quotation_id"`
	PaymentID   string    `json:"payment_id"`
	Stage       string    `json:"stage"`
}

// SettlementEnqueuer queues a confirmed payment for settlement.
type SettlementEnqueuer interface {
	EnqueueSettlement(ctx context.Context, req SettlementRequest) error
}

// PaymentHandler receives gateway webhooks. The secret is checked by middleware.WebhookSecret.
type PaymentHandler struct {
	Queue     SettlementEnqueuer
	Validator PayloadValidator
	Logger    *slog.Logger
}

// Webhook handles POST /api/payments/webhook and answers 202 once the job is queued.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaPaymentWebhook, &req) {
		return
	}
	if err := h.Queue.EnqueueSettlement(r.Context(), req); err != nil {
		h.Logger.Error("enqueue settlement", "quotation_id", req.QuotationID, "payment_id", req.PaymentID, "error", err)
		http.Error(w, `{"error":"failed to queue payment"}`, http.StatusInternalServerError)
		return
	}
	h.Logger.Info("payment webhook queued", "quotation_id", req.QuotationID, "payment_id", req.PaymentID, "stage", req.Stage)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
