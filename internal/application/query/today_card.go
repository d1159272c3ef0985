package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// TODAY CARD QUERY
// Picks the next card for the currently open day of a level's live cycle.
// Runs in a write transaction because first access creates the cycle.
// ══════════════════════════════════════════════════════════════════════════════

// TodayCardQuery contains the parameters for open-day card selection.
type TodayCardQuery struct {
	LearnerID string
	Level     string
}

// Validate validates the query.
func (q TodayCardQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("today_card: learner_id is required")
	}
	if _, err := catalog.ParseLevelTag(q.Level); err != nil {
		return fmt.Errorf("today_card: %w", err)
	}
	return nil
}

// TodayCardHandler handles the TodayCardQuery.
type TodayCardHandler struct {
	store study.Store
	now   func() time.Time
}

// NewTodayCardHandler creates a new TodayCardHandler.
func NewTodayCardHandler(store study.Store) *TodayCardHandler {
	return &TodayCardHandler{
		store: store,
		now:   time.Now,
	}
}

// Handle executes the today card query.
func (h *TodayCardHandler) Handle(ctx context.Context, q TodayCardQuery) (*CardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("today_card: validation failed: %w", err)
	}
	level, err := catalog.ParseLevelTag(q.Level)
	if err != nil {
		return nil, fmt.Errorf("today_card: %w", err)
	}

	var card *study.Card
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		card, err = study.SelectTodayCard(ctx, tx, q.LearnerID, level, h.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("today_card: %w", err)
	}
	return toCardDTO(card), nil
}
