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
// CONFIRM CYCLE COMMAND
// Acknowledges a fully-completed cycle and starts the next one. The confirmed
// cycle becomes immutable; the new cycle begins with 30 locked days and a
// clean progress slate.
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmCycleCommand contains the data to confirm a completed cycle.
type ConfirmCycleCommand struct {
	LearnerID string
	Level     string
}

// Validate validates the command.
func (c ConfirmCycleCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("confirm_cycle: learner_id is required")
	}
	if _, err := catalog.ParseLevelTag(c.Level); err != nil {
		return fmt.Errorf("confirm_cycle: %w", err)
	}
	return nil
}

// ConfirmCycleResult describes the freshly-started cycle.
type ConfirmCycleResult struct {
	LearnerID string
	Level     catalog.LevelTag
	CycleNo   int
	StartedAt time.Time
}

// ConfirmCycleHandler handles the ConfirmCycleCommand.
type ConfirmCycleHandler struct {
	store study.Store
	cache study.StatusCache
	log   *logger.Logger
	now   func() time.Time
}

// NewConfirmCycleHandler creates a new ConfirmCycleHandler.
func NewConfirmCycleHandler(store study.Store, cache study.StatusCache, log *logger.Logger) *ConfirmCycleHandler {
	if cache == nil {
		cache = study.NopStatusCache{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &ConfirmCycleHandler{
		store: store,
		cache: cache,
		log:   log.With(logger.Component("confirm_cycle")),
		now:   time.Now,
	}
}

// Handle executes the confirm cycle command.
func (h *ConfirmCycleHandler) Handle(ctx context.Context, cmd ConfirmCycleCommand) (*ConfirmCycleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("confirm_cycle: validation failed: %w", err)
	}
	level, err := catalog.ParseLevelTag(cmd.Level)
	if err != nil {
		return nil, fmt.Errorf("confirm_cycle: %w", err)
	}

	var next *study.Cycle
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		next, err = study.ConfirmCycle(ctx, tx, cmd.LearnerID, level, h.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("confirm_cycle: %w", err)
	}

	h.cache.Invalidate(ctx, cmd.LearnerID, level)

	h.log.Info("cycle confirmed",
		logger.LearnerID(cmd.LearnerID),
		logger.LevelTag(string(level)),
		logger.CycleNo(next.CycleNo))

	return &ConfirmCycleResult{
		LearnerID: cmd.LearnerID,
		Level:     level,
		CycleNo:   next.CycleNo,
		StartedAt: next.StartedAt,
	}, nil
}
