package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE DAY COMMAND
// Closes the currently open day of a level's live cycle. Completion requires
// every item of that day to have a progress row; completing the 30th day
// moves the whole cycle to completed_pending_confirm.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteDayCommand contains the data to complete the open day.
type CompleteDayCommand struct {
	LearnerID string
	Level     string
}

// Validate validates the command.
func (c CompleteDayCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("complete_day: learner_id is required")
	}
	if _, err := catalog.ParseLevelTag(c.Level); err != nil {
		return fmt.Errorf("complete_day: %w", err)
	}
	return nil
}

// CompleteDayResult contains the result of completing a day.
type CompleteDayResult struct {
	LearnerID   string
	Level       catalog.LevelTag
	CycleNo     int
	Day         int
	Status      study.DayStatus
	CompletedAt time.Time

	// CycleStatus reflects the cycle after completion; it flips to
	// completed_pending_confirm when this was the final day.
	CycleStatus study.CycleStatus
}

// CompleteDayHandler handles the CompleteDayCommand.
type CompleteDayHandler struct {
	store study.Store
	cache study.StatusCache
	log   *logger.Logger
	now   func() time.Time
}

// NewCompleteDayHandler creates a new CompleteDayHandler.
func NewCompleteDayHandler(store study.Store, cache study.StatusCache, log *logger.Logger) *CompleteDayHandler {
	if cache == nil {
		cache = study.NopStatusCache{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &CompleteDayHandler{
		store: store,
		cache: cache,
		log:   log.With(logger.Component("complete_day")),
		now:   time.Now,
	}
}

// Handle executes the complete day command.
func (h *CompleteDayHandler) Handle(ctx context.Context, cmd CompleteDayCommand) (*CompleteDayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_day: validation failed: %w", err)
	}
	level, err := catalog.ParseLevelTag(cmd.Level)
	if err != nil {
		return nil, fmt.Errorf("complete_day: %w", err)
	}

	now := h.now()
	var (
		cycle *study.Cycle
		day   *study.DayRow
	)
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		cycle, day, err = study.CompleteDay(ctx, tx, cmd.LearnerID, level, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete_day: %w", err)
	}

	h.cache.Invalidate(ctx, cmd.LearnerID, level)

	h.log.Info("day completed",
		logger.LearnerID(cmd.LearnerID),
		logger.LevelTag(string(level)),
		logger.CycleNo(cycle.CycleNo),
		logger.DayNo(day.Day),
		logger.String("cycle_status", string(cycle.Status)))

	return &CompleteDayResult{
		LearnerID:   cmd.LearnerID,
		Level:       level,
		CycleNo:     cycle.CycleNo,
		Day:         day.Day,
		Status:      day.Status,
		CompletedAt: *day.CompletedAt,
		CycleStatus: cycle.Status,
	}, nil
}
