package study

import (
	"context"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/leitner"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// RecordReview applies one graded response: it resolves the item's level to
// its live cycle (creating the cycle on first contact), loads or seeds the
// progress row, reschedules it through the Leitner scheduler, and appends the
// immutable study-log entry. The caller owns the transaction, so a crash
// mid-sequence leaves no partial state.
func RecordReview(ctx context.Context, tx StoreTx, learnerID string, itemID int64, grade leitner.Grade, now time.Time) (*Progress, *StudyLogEntry, error) {
	if _, err := tx.GetLearner(ctx, learnerID); err != nil {
		return nil, nil, err
	}
	item, err := tx.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	cycleNo := UntaggedCycleNo
	if item.HasLevel() {
		c, err := ResolveLiveCycle(ctx, tx, learnerID, item.Level, now)
		if err != nil {
			return nil, nil, err
		}
		cycleNo = c.CycleNo
	}

	p, err := tx.GetProgress(ctx, learnerID, itemID, cycleNo)
	created := false
	if shared.IsNotFound(err) {
		p = NewProgress(learnerID, itemID, cycleNo, now)
		created = true
	} else if err != nil {
		return nil, nil, err
	}

	out := leitner.NextState(p.Level, grade, timeutil.DateOf(now))
	p.Apply(out, now)

	if created {
		if err := tx.CreateProgress(ctx, p); err != nil {
			return nil, nil, err
		}
	} else {
		if err := tx.UpdateProgress(ctx, p); err != nil {
			return nil, nil, err
		}
	}

	entry := &StudyLogEntry{
		LearnerID: learnerID,
		ItemID:    itemID,
		Level:     item.Level,
		CycleNo:   cycleNo,
		Grade:     grade,
		StudiedAt: now,
	}
	if err := tx.AppendStudyLog(ctx, entry); err != nil {
		return nil, nil, err
	}

	return p, entry, nil
}
