package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cutmarket/backend/internal/ledger"
	"github.com/cutmarket/backend/internal/services"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (*services.ReconcileReport, error)
}

// AdminHandler serves /api/admin/wallet.
type AdminHandler struct {
	Ledger     ledger.Service
	Reconciler Reconciler
	Logger     *slog.Logger
}

// GetLedger handles GET /api/admin/wallet/ledger?page&limit.
func (h *AdminHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	out, err := h.Ledger.GetLedger(r.Context(), page, limit)
	if err != nil {
		writeError(w, h.Logger, "get ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSummary handles GET /api/admin/wallet/summary.
func (h *AdminHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.GetFinancialSummary(r.Context())
	if err != nil {
		writeError(w, h.Logger, "get financial summary", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Reconcile handles GET /api/admin/wallet/reconcile.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reconciler.Reconcile(r.Context())
	if err != nil {
		writeError(w, h.Logger, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
