package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/models"
)

// EditorProfileRepo is the part of the editor store the profile and admin endpoints use.
type EditorProfileRepo interface {
	Upsert(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Editor, error)
	SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, until *time.Time) error
}

// EditorService registers editor profiles and applies admin suspensions.
type EditorService struct {
	Editors EditorProfileRepo
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewEditorService(editors EditorProfileRepo, logger *slog.Logger) *EditorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EditorService{Editors: editors, Logger: logger, Now: func() time.Time { return time.Now().UTC() }}
}

// Register creates or updates the caller's editor profile.
func (s *EditorService) Register(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", models.ErrInvalidArgument)
	}
	return s.Editors.Upsert(ctx, userID, category)
}

func (s *EditorService) Get(ctx context.Context, userID uuid.UUID) (*models.Editor, error) {
	return s.Editors.GetByID(ctx, userID)
}

// Suspend blocks the editor from bidding until the given time, or indefinitely when until is nil.
func (s *EditorService) Suspend(ctx context.Context, editorID uuid.UUID, until *time.Time) error {
	if until != nil && !until.After(s.Now()) {
		return fmt.Errorf("%w: suspension end must be in the future", models.ErrInvalidArgument)
	}
	if err := s.Editors.SetSuspension(ctx, editorID, true, until); err != nil {
		return err
	}
	s.Logger.Info("editor suspended", "editor_id", editorID, "until", until)
	return nil
}

func (s *EditorService) Unsuspend(ctx context.Context, editorID uuid.UUID) error {
	if err := s.Editors.SetSuspension(ctx, editorID, false, nil); err != nil {
		return err
	}
	s.Logger.Info("editor unsuspended", "editor_id", editorID)
	return nil
}
