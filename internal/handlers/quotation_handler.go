package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

// QuotationService is the subset of services.QuotationService used here.
type QuotationService interface {
	Create(ctx context.Context, clientID uuid.UUID, in services.CreateQuotationInput) (*models.Quotation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error)
	Delete(ctx context.Context, id, clientID uuid.UUID) error
	Cancel(ctx context.Context, id, clientID uuid.UUID) (*models.Quotation, error)
}

// BidDecider lets a client read and accept bids on their quotation.
type BidDecider interface {
	ListBids(ctx context.Context, quotationID, clientID uuid.UUID, sort string) ([]*models.Bid, error)
	AcceptBid(ctx context.Context, bidID, clientID uuid.UUID) (*models.Bid, error)
}

// QuotationHandler serves /api/user/quotations.
type QuotationHandler struct {
	Quotations QuotationService
	Bids       BidDecider
	Validator  PayloadValidator
	Logger     *slog.Logger
}

type createQuotationRequest struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Theme                string    `json:"theme"`
	EstimatedBudgetCents int64     `json:"estimated_budget_cents"`
	DueDate              time.Time `json:"due_date"`
	OutputType           string    `json:"output_type"`
}

// Create handles POST /api/user/quotations.
func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createQuotationRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaCreateQuotation, &req) {
		return
	}
	q, err := h.Quotations.Create(r.Context(), p.UserID, services.CreateQuotationInput{
		Title:                req.Title,
		Description:          req.Description,
		Theme:                req.Theme,
		EstimatedBudgetCents: req.EstimatedBudgetCents,
		DueDate:              req.DueDate,
		OutputType:           req.OutputType,
	})
	if err != nil {
		writeError(w, h.Logger, "create quotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// Get handles GET /api/user/quotations/{id}. Only the owner may read it.
func (h *QuotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.Quotations.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "get quotation", err)
		return
	}
	if q.UserID != p.UserID {
		writeError(w, h.Logger, "get quotation", fmt.Errorf("%w: not your quotation", models.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Delete handles DELETE /api/user/quotations/{id}.
func (h *QuotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Quotations.Delete(r.Context(), id, p.UserID); err != nil {
		writeError(w, h.Logger, "delete quotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /api/user/quotations/{id}/cancel.
func (h *QuotationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.Quotations.Cancel(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, h.Logger, "cancel quotation", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListBids handles GET /api/user/quotations/{id}/bids?sort=.
func (h *QuotationHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	bids, err := h.Bids.ListBids(r.Context(), id, p.UserID, r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, h.Logger, "list bids", err)
		return
	}
	if bids == nil {
		bids = []*models.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

// AcceptBid handles POST /api/user/quotations/{id}/bids/{bidId}/accept.
func (h *QuotationHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	quotationID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	bidID, ok := urlUUID(w, r, "bidId")
	if !ok {
		return
	}

	// The bid must belong to the quotation in the path; ListBids also enforces ownership.
	bids, err := h.Bids.ListBids(r.Context(), quotationID, p.UserID, "")
	if err != nil {
		writeError(w, h.Logger, "accept bid", err)
		return
	}
	found := false
	for _, b := range bids {
		if b.ID == bidID {
			found = true
			break
		}
	}
	if !found {
		writeError(w, h.Logger, "accept bid", fmt.Errorf("%w: bid %s on quotation %s", models.ErrNotFound, bidID, quotationID))
		return
	}

	bid, err := h.Bids.AcceptBid(r.Context(), bidID, p.UserID)
	if err != nil {
		writeError(w, h.Logger, "accept bid", err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
