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
// OPEN DAY COMMAND
// Unlocks the next curriculum day of a level's live cycle. Days open strictly
// in order and only one day may be open at a time.
// ══════════════════════════════════════════════════════════════════════════════

// OpenDayCommand contains the data to open a curriculum day.
type OpenDayCommand struct {
	LearnerID string

	// Level is the level tag: "600", "800" or "900".
	Level string

	// Day is the day to open, 1..30. It must equal the first still-locked
	// day of the cycle.
	Day int
}

// Validate validates the command.
func (c OpenDayCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("open_day: learner_id is required")
	}
	if _, err := catalog.ParseLevelTag(c.Level); err != nil {
		return fmt.Errorf("open_day: %w", err)
	}
	if c.Day < 1 || c.Day > study.TotalDays {
		return fmt.Errorf("open_day: day must be between 1 and %d", study.TotalDays)
	}
	return nil
}

// OpenDayResult contains the result of opening a day.
type OpenDayResult struct {
	LearnerID string
	Level     catalog.LevelTag
	CycleNo   int
	Day       int
	Status    study.DayStatus
	OpenedAt  time.Time
}

// OpenDayHandler handles the OpenDayCommand.
type OpenDayHandler struct {
	store study.Store
	cache study.StatusCache
	log   *logger.Logger
	now   func() time.Time
}

// NewOpenDayHandler creates a new OpenDayHandler.
func NewOpenDayHandler(store study.Store, cache study.StatusCache, log *logger.Logger) *OpenDayHandler {
	if cache == nil {
		cache = study.NopStatusCache{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &OpenDayHandler{
		store: store,
		cache: cache,
		log:   log.With(logger.Component("open_day")),
		now:   time.Now,
	}
}

// Handle executes the open day command.
func (h *OpenDayHandler) Handle(ctx context.Context, cmd OpenDayCommand) (*OpenDayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("open_day: validation failed: %w", err)
	}
	level, err := catalog.ParseLevelTag(cmd.Level)
	if err != nil {
		return nil, fmt.Errorf("open_day: %w", err)
	}

	now := h.now()
	var (
		cycle *study.Cycle
		day   *study.DayRow
	)
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		cycle, day, err = study.OpenDay(ctx, tx, cmd.LearnerID, level, cmd.Day, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open_day: %w", err)
	}

	h.cache.Invalidate(ctx, cmd.LearnerID, level)

	h.log.Info("day opened",
		logger.LearnerID(cmd.LearnerID),
		logger.LevelTag(string(level)),
		logger.CycleNo(cycle.CycleNo),
		logger.DayNo(day.Day))

	return &OpenDayResult{
		LearnerID: cmd.LearnerID,
		Level:     level,
		CycleNo:   cycle.CycleNo,
		Day:       day.Day,
		Status:    day.Status,
		OpenedAt:  *day.OpenedAt,
	}, nil
}
