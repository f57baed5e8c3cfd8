package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

type WorkSubmitter interface {
	SubmitWork(ctx context.Context, editorID, quotationID uuid.UUID, finalFiles []string, comments string) (*models.Work, error)
}

// WorkHandler serves POST /api/editor/works.
type WorkHandler struct {
	Works     WorkSubmitter
	Validator PayloadValidator
	Logger    *slog.Logger
}

type submitWorkRequest struct {
	QuotationID uuid.UUID `json:"quotation_id"`
	FinalFiles  []string  `json:"final_files"`
	Comments    string    `json:"comments"`
}

func (h *WorkHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req submitWorkRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaSubmitWork, &req) {
		return
	}
	work, err := h.Works.SubmitWork(r.Context(), p.UserID, req.QuotationID, req.FinalFiles, req.Comments)
	if err != nil {
		writeError(w, h.Logger, "submit work", err)
		return
	}
	writeJSON(w, http.StatusCreated, work)
}
