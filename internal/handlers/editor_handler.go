package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

type EditorService interface {
	Register(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Editor, error)
	Suspend(ctx context.Context, editorID uuid.UUID, until *time.Time) error
	Unsuspend(ctx context.Context, editorID uuid.UUID) error
}

// EditorHandler serves the editor's own profile and the admin suspension routes.
type EditorHandler struct {
	Editors   EditorService
	Validator PayloadValidator
	Logger    *slog.Logger
}

type registerEditorRequest struct {
	Category string `json:"category"`
}

type suspendEditorRequest struct {
	Until *time.Time `json:"until"`
}

// Register handles POST /api/editor/profile.
func (h *EditorHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req registerEditorRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaRegisterEditor, &req) {
		return
	}
	e, err := h.Editors.Register(r.Context(), p.UserID, req.Category)
	if err != nil {
		writeError(w, h.Logger, "register editor", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Profile handles GET /api/editor/profile.
func (h *EditorHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	e, err := h.Editors.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.Logger, "get editor profile", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Suspend handles POST /api/admin/editors/{editorId}/suspend. No until means indefinitely.
func (h *EditorHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "editorId")
	if !ok {
		return
	}
	var req suspendEditorRequest
	if !decodeValidated(w, r, h.Validator, services.SchemaSuspendEditor, &req) {
		return
	}
	if err := h.Editors.Suspend(r.Context(), id, req.Until); err != nil {
		writeError(w, h.Logger, "suspend editor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unsuspend handles POST /api/admin/editors/{editorId}/unsuspend.
func (h *EditorHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "editorId")
	if !ok {
		return
	}
	if err := h.Editors.Unsuspend(r.Context(), id); err != nil {
		writeError(w, h.Logger, "unsuspend editor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
