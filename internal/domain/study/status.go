package study

import (
	"context"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
)

// LevelStatus is the dashboard view of one level's live cycle.
type LevelStatus struct {
	Level            catalog.LevelTag `json:"level"`
	CycleNo          int              `json:"cycleNo"`
	CycleStatus      CycleStatus      `json:"cycleStatus"`
	OpenDay          *int             `json:"openDay,omitempty"`
	NextLockedDay    *int             `json:"nextLockedDay,omitempty"`
	CompletedDays    int              `json:"completedDayCount"`
	TotalDays        int              `json:"totalDays"`
	ProgressPercent  int              `json:"progressPercent"`
	RemindWindowDays int              `json:"remindWindowDays"`
}

// StatusCache is a read-through cache for LevelStatus snapshots.
// Implementations absorb their own failures: a broken cache reports a miss
// and the caller falls through to the store.
type StatusCache interface {
	Get(ctx context.Context, learnerID string, level catalog.LevelTag) (*LevelStatus, bool)
	Set(ctx context.Context, learnerID string, status *LevelStatus)
	Invalidate(ctx context.Context, learnerID string, level catalog.LevelTag)
}

// NopStatusCache is a StatusCache that caches nothing.
type NopStatusCache struct{}

func (NopStatusCache) Get(context.Context, string, catalog.LevelTag) (*LevelStatus, bool) {
	return nil, false
}
func (NopStatusCache) Set(context.Context, string, *LevelStatus) {}

func (NopStatusCache) Invalidate(context.Context, string, catalog.LevelTag) {}

// BuildLevelStatus assembles the status of a level's live cycle, creating the
// cycle on first access.
func BuildLevelStatus(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*LevelStatus, error) {
	c, err := ResolveLiveCycle(ctx, tx, learnerID, level, now)
	if err != nil {
		return nil, err
	}

	status := &LevelStatus{
		Level:            level,
		CycleNo:          c.CycleNo,
		CycleStatus:      c.Status,
		TotalDays:        TotalDays,
		RemindWindowDays: RemindWindowDays,
	}

	if open, err := tx.GetOpenDay(ctx, c.ID); err == nil {
		day := open.Day
		status.OpenDay = &day
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	if locked, err := tx.FirstLockedDay(ctx, c.ID); err == nil {
		day := locked.Day
		status.NextLockedDay = &day
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	completed, err := tx.CountCompletedDays(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	status.CompletedDays = completed
	status.ProgressPercent = completed * 100 / TotalDays

	return status, nil
}
