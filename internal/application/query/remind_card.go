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
// REMIND CARD QUERY
// Resurfaces an error-prone card studied within the trailing 7-day window,
// most-missed first. Independent of the primary due-review queue.
// ══════════════════════════════════════════════════════════════════════════════

// RemindCardQuery contains the parameters for remind-card selection.
type RemindCardQuery struct {
	LearnerID string
	Level     string
}

// Validate validates the query.
func (q RemindCardQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("remind_card: learner_id is required")
	}
	if _, err := catalog.ParseLevelTag(q.Level); err != nil {
		return fmt.Errorf("remind_card: %w", err)
	}
	return nil
}

// RemindCardHandler handles the RemindCardQuery.
type RemindCardHandler struct {
	store study.Store
	now   func() time.Time
}

// NewRemindCardHandler creates a new RemindCardHandler.
func NewRemindCardHandler(store study.Store) *RemindCardHandler {
	return &RemindCardHandler{
		store: store,
		now:   time.Now,
	}
}

// Handle executes the remind card query.
func (h *RemindCardHandler) Handle(ctx context.Context, q RemindCardQuery) (*CardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("remind_card: validation failed: %w", err)
	}
	level, err := catalog.ParseLevelTag(q.Level)
	if err != nil {
		return nil, fmt.Errorf("remind_card: %w", err)
	}

	var card *study.Card
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		card, err = study.SelectRemindCard(ctx, tx, q.LearnerID, level, h.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remind_card: %w", err)
	}
	return toCardDTO(card), nil
}
