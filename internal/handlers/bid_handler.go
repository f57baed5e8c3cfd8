package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

// BidService is the editor-facing subset of services.BidEngine.
type BidService interface {
	CreateBid(ctx context.Context, editorID, quotationID uuid.UUID, amountCents int64, notes string) (*models.Bid, error)
	UpdateBid(ctx context.Context, bidID, editorID uuid.UUID, amountCents int64, notes string) (*models.Bid, error)
	DeleteBid(ctx context.Context, bidID, editorID uuid.UUID) error
	WithdrawFromWork(ctx context.Context, bidID, editorID uuid.UUID) (*models.Bid, error)
}

// BidHandler serves /api/editor/bids.
type BidHandler struct {
	Bids      BidService
	Validator PayloadValidator
	Logger    *slog.Logger
}

type createBidRequest struct {
	QuotationID    uuid.UUID `json:"quotation_id"`
	BidAmountCents int64     `json:"bid_amount_cents"`
	Notes          string    `json:"notes"`
}

type updateBidRequest struct {
	BidAmountCents int64  `json:"bid_amount_cents"`
	Notes          string `json:"notes"`
}

// Create handles POST /api/editor/bids.
func (h *BidHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createBidRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaCreateBid, &req) {
		return
	}
	bid, err := h.Bids.CreateBid(r.Context(), p.UserID, req.QuotationID, req.BidAmountCents, req.Notes)
	if err != nil {
		writeError(w, h.Logger, "create bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// Update handles PATCH /api/editor/bids/{id}.
func (h *BidHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req updateBidRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaUpdateBid, &req) {
		return
	}
	bid, err := h.Bids.UpdateBid(r.Context(), id, p.UserID, req.BidAmountCents, req.Notes)
	if err != nil {
		writeError(w, h.Logger, "update bid", err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// Delete handles DELETE /api/editor/bids/{id}.
func (h *BidHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Bids.DeleteBid(r.Context(), id, p.UserID); err != nil {
		writeError(w, h.Logger, "delete bid", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Withdraw handles POST /api/editor/bids/{id}/withdraw.
func (h *BidHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	bid, err := h.Bids.WithdrawFromWork(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, h.Logger, "withdraw from work", err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
