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
// NEXT CARD QUERY
// Picks the next card across the whole catalog: the earliest due review first,
// the lowest-numbered unseen item second. Level and day narrow the pool.
// ══════════════════════════════════════════════════════════════════════════════

// NextCardQuery contains the parameters for general card selection.
type NextCardQuery struct {
	LearnerID string

	// Level optionally narrows selection to one level tag.
	Level string

	// Day optionally narrows selection to one curriculum day.
	Day *int
}

// Validate validates the query.
func (q NextCardQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("next_card: learner_id is required")
	}
	if q.Level != "" {
		if _, err := catalog.ParseLevelTag(q.Level); err != nil {
			return fmt.Errorf("next_card: %w", err)
		}
	}
	if q.Day != nil && (*q.Day < 1 || *q.Day > study.TotalDays) {
		return fmt.Errorf("next_card: day must be between 1 and %d", study.TotalDays)
	}
	return nil
}

// NextCardHandler handles the NextCardQuery.
type NextCardHandler struct {
	store study.Store
	now   func() time.Time
}

// NewNextCardHandler creates a new NextCardHandler.
func NewNextCardHandler(store study.Store) *NextCardHandler {
	return &NextCardHandler{
		store: store,
		now:   time.Now,
	}
}

// Handle executes the next card query.
func (h *NextCardHandler) Handle(ctx context.Context, q NextCardQuery) (*CardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("next_card: validation failed: %w", err)
	}

	f := study.CardFilter{Day: q.Day}
	if q.Level != "" {
		level, err := catalog.ParseLevelTag(q.Level)
		if err != nil {
			return nil, fmt.Errorf("next_card: %w", err)
		}
		f.Level = &level
	}

	var card *study.Card
	err := h.store.ReadTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		card, err = study.SelectCard(ctx, tx, q.LearnerID, f, h.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("next_card: %w", err)
	}
	return toCardDTO(card), nil
}
