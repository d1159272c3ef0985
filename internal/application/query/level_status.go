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
// LEVEL STATUS QUERY
// Dashboard view of one or all levels: live cycle number, open day, completed
// day count. Served read-through from the status cache; a cache miss falls
// back to the store and repopulates the cache.
// ══════════════════════════════════════════════════════════════════════════════

// LevelStatusQuery contains the parameters for the level dashboard.
type LevelStatusQuery struct {
	LearnerID string

	// Level narrows the dashboard to one level; empty returns all levels.
	Level string
}

// Validate validates the query.
func (q LevelStatusQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("level_status: learner_id is required")
	}
	if q.Level != "" {
		if _, err := catalog.ParseLevelTag(q.Level); err != nil {
			return fmt.Errorf("level_status: %w", err)
		}
	}
	return nil
}

// LevelStatusResult is the dashboard payload.
type LevelStatusResult struct {
	Levels []*study.LevelStatus `json:"levels"`
}

// LevelStatusHandler handles the LevelStatusQuery.
type LevelStatusHandler struct {
	store study.Store
	cache study.StatusCache
	now   func() time.Time
}

// NewLevelStatusHandler creates a new LevelStatusHandler.
func NewLevelStatusHandler(store study.Store, cache study.StatusCache) *LevelStatusHandler {
	if cache == nil {
		cache = study.NopStatusCache{}
	}
	return &LevelStatusHandler{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// Handle executes the level status query.
func (h *LevelStatusHandler) Handle(ctx context.Context, q LevelStatusQuery) (*LevelStatusResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("level_status: validation failed: %w", err)
	}

	levels := catalog.Levels()
	if q.Level != "" {
		level, err := catalog.ParseLevelTag(q.Level)
		if err != nil {
			return nil, fmt.Errorf("level_status: %w", err)
		}
		levels = []catalog.LevelTag{level}
	}

	result := &LevelStatusResult{Levels: make([]*study.LevelStatus, 0, len(levels))}
	for _, level := range levels {
		status, err := h.levelStatus(ctx, q.LearnerID, level)
		if err != nil {
			return nil, fmt.Errorf("level_status: %w", err)
		}
		result.Levels = append(result.Levels, status)
	}
	return result, nil
}

func (h *LevelStatusHandler) levelStatus(ctx context.Context, learnerID string, level catalog.LevelTag) (*study.LevelStatus, error) {
	if status, ok := h.cache.Get(ctx, learnerID, level); ok {
		return status, nil
	}

	var status *study.LevelStatus
	err := h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		status, err = study.BuildLevelStatus(ctx, tx, learnerID, level, h.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	h.cache.Set(ctx, learnerID, status)
	return status, nil
}
