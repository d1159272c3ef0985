package study

import (
	"context"
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
)

// Domain services for the cycle/day state machine. All functions operate on
// an open StoreTx and never commit themselves; callers own the transaction.

// ResolveLiveCycle returns the live cycle for (learner, level), creating
// cycle 1 if none exists, and guarantees its 30 day rows exist. Idempotent:
// repeated calls return the same cycle identity.
func ResolveLiveCycle(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*Cycle, error) {
	if _, err := tx.GetLearner(ctx, learnerID); err != nil {
		return nil, err
	}

	c, err := tx.GetLiveCycle(ctx, learnerID, level)
	if shared.IsNotFound(err) {
		c = NewCycle(learnerID, level, 1, now)
		if err := tx.CreateCycle(ctx, c); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := EnsureDayRows(ctx, tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureDayRows creates any missing day rows 1..TotalDays for a cycle, all
// locked. Runs before every day-state query so callers never observe a
// partially initialized cycle.
func EnsureDayRows(ctx context.Context, tx StoreTx, c *Cycle) error {
	existing, err := tx.ListDayRows(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(existing) >= TotalDays {
		return nil
	}

	have := make(map[int]bool, len(existing))
	for _, d := range existing {
		have[d.Day] = true
	}

	var missing []*DayRow
	for _, d := range NewDayRows(c.ID) {
		if !have[d.Day] {
			missing = append(missing, d)
		}
	}
	return tx.CreateDayRows(ctx, missing)
}

// OpenDay unlocks day `day` of the live cycle. Days open strictly in order:
// the requested day must be the lowest-numbered locked day, the cycle must be
// active, and no other day may be open. Violations are reported as distinct
// failures, never silently corrected.
func OpenDay(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, day int, now time.Time) (*Cycle, *DayRow, error) {
	if day < 1 || day > TotalDays {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidInput,
			fmt.Sprintf("day %d outside 1..%d", day, TotalDays))
	}

	c, err := ResolveLiveCycle(ctx, tx, learnerID, level, now)
	if err != nil {
		return nil, nil, err
	}
	if c.Status != CycleActive {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidState,
			fmt.Sprintf("cycle %d is %s, not active", c.CycleNo, c.Status))
	}

	d, err := tx.GetDayRow(ctx, c.ID, day)
	if err != nil {
		return nil, nil, err
	}
	if d.Status == DayCompleted {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidState,
			fmt.Sprintf("day %d is already completed", day))
	}
	if d.Status == DayOpen {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidState,
			fmt.Sprintf("day %d is already open", day))
	}

	if open, err := tx.GetOpenDay(ctx, c.ID); err == nil {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidState,
			fmt.Sprintf("day %d is still open", open.Day))
	} else if !shared.IsNotFound(err) {
		return nil, nil, err
	}

	first, err := tx.FirstLockedDay(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	if first.Day != day {
		return nil, nil, shared.NewDomainError("cycle", "OpenDay", shared.ErrInvalidState,
			fmt.Sprintf("day %d must be opened before day %d", first.Day, day))
	}

	d.Status = DayOpen
	d.OpenedAt = &now
	if err := tx.UpdateDayRow(ctx, d); err != nil {
		return nil, nil, err
	}
	return c, d, nil
}

// CompleteDay closes the currently open day. Every item of (level, day) must
// already have a progress row for the learner's live cycle. Completing the
// 30th day moves the cycle to completed_pending_confirm.
func CompleteDay(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*Cycle, *DayRow, error) {
	c, err := ResolveLiveCycle(ctx, tx, learnerID, level, now)
	if err != nil {
		return nil, nil, err
	}

	open, err := tx.GetOpenDay(ctx, c.ID)
	if shared.IsNotFound(err) {
		return nil, nil, shared.NewDomainError("cycle", "CompleteDay", shared.ErrNotFound, "no open day")
	}
	if err != nil {
		return nil, nil, err
	}

	remaining, err := tx.CountItemsWithoutProgress(ctx, learnerID, level, open.Day, c.CycleNo)
	if err != nil {
		return nil, nil, err
	}
	if remaining > 0 {
		return nil, nil, shared.NewDomainError("cycle", "CompleteDay", shared.ErrInvalidState,
			fmt.Sprintf("day %d has %d unstudied items", open.Day, remaining))
	}

	open.Status = DayCompleted
	open.CompletedAt = &now
	if err := tx.UpdateDayRow(ctx, open); err != nil {
		return nil, nil, err
	}

	completed, err := tx.CountCompletedDays(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	if completed >= TotalDays && c.Status == CycleActive {
		c.Status = CyclePendingConfirm
		c.CompletedAt = &now
		if err := tx.UpdateCycle(ctx, c); err != nil {
			return nil, nil, err
		}
	}
	return c, open, nil
}

// ConfirmCycle seals a completed cycle and starts the next one. The old cycle
// becomes immutable; the new cycle carries cycle_no+1 with 30 fresh locked
// days, so the learner re-walks the level for long-term reinforcement.
func ConfirmCycle(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*Cycle, error) {
	if _, err := tx.GetLearner(ctx, learnerID); err != nil {
		return nil, err
	}

	c, err := tx.GetLiveCycle(ctx, learnerID, level)
	if shared.IsNotFound(err) {
		return nil, shared.NewDomainError("cycle", "ConfirmCycle", shared.ErrNotFound, "no live cycle")
	}
	if err != nil {
		return nil, err
	}
	if c.Status != CyclePendingConfirm {
		return nil, shared.NewDomainError("cycle", "ConfirmCycle", shared.ErrInvalidState,
			fmt.Sprintf("cycle %d is %s, not %s", c.CycleNo, c.Status, CyclePendingConfirm))
	}

	c.Status = CycleConfirmed
	if err := tx.UpdateCycle(ctx, c); err != nil {
		return nil, err
	}

	next := NewCycle(learnerID, level, c.CycleNo+1, now)
	if err := tx.CreateCycle(ctx, next); err != nil {
		return nil, err
	}
	if err := EnsureDayRows(ctx, tx, next); err != nil {
		return nil, err
	}
	return next, nil
}
