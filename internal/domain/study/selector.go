package study

import (
	"context"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// Card selection policy. First matching rule wins:
//
//  1. due review - earliest due date, ties broken by smallest progress row ID;
//  2. new item - smallest catalog ID without a progress row;
//  3. nothing - NotFound.

// SelectCard picks the next card for a learner across the whole catalog,
// optionally narrowed by level and day.
func SelectCard(ctx context.Context, tx StoreTx, learnerID string, f CardFilter, today time.Time) (*Card, error) {
	if _, err := tx.GetLearner(ctx, learnerID); err != nil {
		return nil, err
	}
	return selectByPriority(ctx, tx, learnerID, f, AnyCycle, today)
}

// SelectTodayCard picks the next card for the open day of a level's live
// cycle. The open day supplies the day filter; without an open day there is
// nothing to study.
func SelectTodayCard(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*Card, error) {
	c, err := ResolveLiveCycle(ctx, tx, learnerID, level, now)
	if err != nil {
		return nil, err
	}

	open, err := tx.GetOpenDay(ctx, c.ID)
	if shared.IsNotFound(err) {
		return nil, shared.NewDomainError("card", "SelectTodayCard", shared.ErrNotFound, "no open day")
	}
	if err != nil {
		return nil, err
	}

	f := CardFilter{Level: &level, Day: &open.Day}
	return selectByPriority(ctx, tx, learnerID, f, c.CycleNo, now)
}

// SelectRemindCard resurfaces a recently-studied, error-prone card from the
// trailing remind window, independent of the primary due-review queue.
func SelectRemindCard(ctx context.Context, tx StoreTx, learnerID string, level catalog.LevelTag, now time.Time) (*Card, error) {
	c, err := ResolveLiveCycle(ctx, tx, learnerID, level, now)
	if err != nil {
		return nil, err
	}

	p, err := tx.RemindCandidate(ctx, learnerID, level, c.CycleNo,
		timeutil.WindowStart(now, RemindWindowDays), now)
	if shared.IsNotFound(err) {
		return nil, shared.NewDomainError("card", "SelectRemindCard", shared.ErrNotFound, "no remind cards")
	}
	if err != nil {
		return nil, err
	}

	item, err := tx.GetItem(ctx, p.ItemID)
	if err != nil {
		return nil, err
	}
	return &Card{Item: item, Progress: p}, nil
}

func selectByPriority(ctx context.Context, tx StoreTx, learnerID string, f CardFilter, cycleNo int, today time.Time) (*Card, error) {
	p, err := tx.FirstDueProgress(ctx, learnerID, today, f, cycleNo)
	if err == nil {
		item, err := tx.GetItem(ctx, p.ItemID)
		if err != nil {
			return nil, err
		}
		return &Card{Item: item, Progress: p}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	item, err := tx.FirstUnseenItem(ctx, learnerID, f, cycleNo)
	if err == nil {
		return &Card{Item: item}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	return nil, shared.NewDomainError("card", "SelectCard", shared.ErrNotFound, "no cards")
}
