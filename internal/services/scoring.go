package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutmarket/backend/internal/models"
)

const (
	scoreBaseIncrement = 10
	streakWindow       = 7 * 24 * time.Hour
	scoreUpdateRetries = 3
)

var (
	streakStep    = decimal.RequireFromString("0.1")
	maxMultiplier = decimal.NewFromInt(3)
)

// ScoreUpdate is the outcome of crediting one completed work to an editor.
type ScoreUpdate struct {
	Score     int `json:"score"`
	Streak    int `json:"streak"`
	Increment int `json:"increment"`
}

// StreakMultiplier returns min(3, 1 + streak*0.1).
func StreakMultiplier(streak int) decimal.Decimal {
	m := decimal.NewFromInt(1).Add(streakStep.Mul(decimal.NewFromInt(int64(streak))))
	if m.GreaterThan(maxMultiplier) {
		return maxMultiplier
	}
	return m
}

// NextScore computes the new score and streak given the editor's current values and their two
// most recent completed works, newest first. The multiplier is taken from the streak held
// before this completion.
func NextScore(score, streak int, recent []*models.Work) ScoreUpdate {
	if len(recent) >= 2 && recent[0].CreatedAt.Sub(recent[1].CreatedAt) < streakWindow {
		inc := int(StreakMultiplier(streak).Mul(decimal.NewFromInt(scoreBaseIncrement)).Round(0).IntPart())
		return ScoreUpdate{Score: score + inc, Streak: streak + 1, Increment: inc}
	}
	return ScoreUpdate{Score: score + scoreBaseIncrement, Streak: 1, Increment: scoreBaseIncrement}
}

// ScoreEngine credits editors for completed work.
type ScoreEngine struct {
	Editors EditorRepo
	Works   WorkRepo
	Logger  *slog.Logger
}

// NewScoreEngine returns a new ScoreEngine.
func NewScoreEngine(editors EditorRepo, works WorkRepo, logger *slog.Logger) *ScoreEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreEngine{Editors: editors, Works: works, Logger: logger}
}

// ApplyCompletion recomputes score and streak for the editor after a work was persisted.
// Score and streak are written together with a compare-and-swap, retried if another
// completion for the same editor raced this one.
func (s *ScoreEngine) ApplyCompletion(ctx context.Context, editorID uuid.UUID) (*ScoreUpdate, error) {
	for attempt := 0; attempt < scoreUpdateRetries; attempt++ {
		ed, err := s.Editors.GetByID(ctx, editorID)
		if err != nil {
			return nil, fmt.Errorf("load editor: %w", err)
		}
		recent, err := s.Works.LatestByEditor(ctx, editorID, 2)
		if err != nil {
			return nil, fmt.Errorf("load recent works: %w", err)
		}
		next := NextScore(ed.Score, ed.Streak, recent)
		ok, err := s.Editors.UpdateScore(ctx, editorID, ed.Score, ed.Streak, next.Score, next.Streak)
		if err != nil {
			return nil, fmt.Errorf("update score: %w", err)
		}
		if ok {
			s.Logger.Info("editor score updated", "editor_id", editorID, "score", next.Score, "streak", next.Streak, "increment", next.Increment)
			return &next, nil
		}
	}
	return nil, fmt.Errorf("%w: editor %s score changed concurrently", models.ErrConflict, editorID)
}
