package study_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/learner"
	"github.com/vocahub/voca-study-hub/internal/domain/leitner"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/internal/infrastructure/persistence/memory"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, timeutil.SeoulTZ)

func newTestStore(t *testing.T) (*memory.Store, *learner.Learner) {
	t.Helper()

	s := memory.NewStore()
	l, err := learner.New("mina", "correct horse battery", testNow)
	require.NoError(t, err)

	err = s.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
		return tx.CreateLearner(ctx, l)
	})
	require.NoError(t, err)
	return s, l
}

// seedItems creates count items for one level, one per day starting at day 1,
// and returns their IDs in catalog order.
func seedItems(t *testing.T, s *memory.Store, level catalog.LevelTag, count int) []int64 {
	t.Helper()

	ids := make([]int64, 0, count)
	err := s.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
		for i := 0; i < count; i++ {
			item := &catalog.Item{
				Level:     level,
				Day:       i + 1,
				Word:      "word",
				Meaning:   "meaning",
				CreatedAt: testNow,
			}
			if err := tx.CreateItem(ctx, item); err != nil {
				return err
			}
			ids = append(ids, item.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func inTx(t *testing.T, s *memory.Store, fn func(ctx context.Context, tx study.StoreTx) error) error {
	t.Helper()
	return s.InTx(context.Background(), fn)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cycle lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestResolveLiveCycle_GetOrCreateIsIdempotent(t *testing.T) {
	s, l := newTestStore(t)

	var first, second *study.Cycle
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		first, err = study.ResolveLiveCycle(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		second, err = study.ResolveLiveCycle(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	}))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, first.CycleNo)
	assert.Equal(t, study.CycleActive, first.Status)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		rows, err := tx.ListDayRows(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, rows, study.TotalDays)
		for _, d := range rows {
			assert.Equal(t, study.DayLocked, d.Status)
		}
		return nil
	}))
}

func TestOpenDay_EnforcesStrictOrder(t *testing.T) {
	s, l := newTestStore(t)
	seedItems(t, s, catalog.Level600, 2)

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 2, testNow)
		return err
	})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidState(err), "skipping day 1 must be an ordering violation, got %v", err)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, d, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow)
		require.NoError(t, err)
		assert.Equal(t, study.DayOpen, d.Status)
		require.NotNil(t, d.OpenedAt)
		return nil
	}))

	// Day 1 is open, so no other day may open until it completes.
	err = inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 2, testNow)
		return err
	})
	assert.True(t, shared.IsInvalidState(err))
}

func TestOpenDay_RejectsOutOfRangeDay(t *testing.T) {
	s, l := newTestStore(t)

	for _, day := range []int{0, -1, study.TotalDays + 1} {
		err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, day, testNow)
			return err
		})
		assert.True(t, shared.IsInvalidInput(err), "day %d", day)
	}
}

func TestOpenDay_ConcurrentOpensYieldOneOpenDay(t *testing.T) {
	s, l := newTestStore(t)

	// Race opens of different days; strict ordering allows only day 1.
	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []int
	)
	for i := 0; i < attempts; i++ {
		day := i%study.TotalDays + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
				_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, day, testNow)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded = append(succeeded, day)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{1}, succeeded)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		c, err := tx.GetLiveCycle(ctx, l.ID, catalog.Level600)
		require.NoError(t, err)
		rows, err := tx.ListDayRows(ctx, c.ID)
		require.NoError(t, err)
		open := 0
		for _, d := range rows {
			if d.Status == study.DayOpen {
				open++
			}
		}
		assert.Equal(t, 1, open)
		return nil
	}))
}

func TestCompleteDay_RequiresOpenDayAndFullCoverage(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.CompleteDay(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	})
	assert.True(t, shared.IsNotFound(err), "completing with no open day, got %v", err)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow)
		return err
	}))

	// The day's item is still unreviewed, so completion must refuse.
	err = inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.CompleteDay(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	})
	assert.True(t, shared.IsInvalidState(err))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, d, err := study.CompleteDay(ctx, tx, l.ID, catalog.Level600, testNow)
		require.NoError(t, err)
		assert.Equal(t, study.DayCompleted, d.Status)
		require.NotNil(t, d.CompletedAt)
		return nil
	}))
}

// runFullCycle opens, reviews, and completes all 30 days of the live cycle.
func runFullCycle(t *testing.T, s *memory.Store, l *learner.Learner, itemIDs []int64) *study.Cycle {
	t.Helper()
	require.Len(t, itemIDs, study.TotalDays)

	var c *study.Cycle
	for day := 1; day <= study.TotalDays; day++ {
		require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, day, testNow)
			return err
		}))
		require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.RecordReview(ctx, tx, l.ID, itemIDs[day-1], leitner.GradeGood, testNow)
			return err
		}))
		require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
			var err error
			c, _, err = study.CompleteDay(ctx, tx, l.ID, catalog.Level600, testNow)
			return err
		}))
	}
	return c
}

func TestCycle_ThirtyCompletedDaysPendThenConfirm(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, study.TotalDays)

	c := runFullCycle(t, s, l, ids)
	assert.Equal(t, study.CyclePendingConfirm, c.Status)
	require.NotNil(t, c.CompletedAt)

	// A pending cycle accepts no further day operations.
	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow)
		return err
	})
	assert.True(t, shared.IsInvalidState(err))

	var next *study.Cycle
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		next, err = study.ConfirmCycle(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	}))
	assert.Equal(t, 2, next.CycleNo)
	assert.Equal(t, study.CycleActive, next.Status)
	assert.NotEqual(t, c.ID, next.ID)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		rows, err := tx.ListDayRows(ctx, next.ID)
		require.NoError(t, err)
		require.Len(t, rows, study.TotalDays)
		for _, d := range rows {
			assert.Equal(t, study.DayLocked, d.Status)
		}
		return nil
	}))

	// Confirming again targets the new active cycle and must refuse.
	err = inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := study.ConfirmCycle(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	})
	assert.True(t, shared.IsInvalidState(err))
}

func TestCycle_ProgressIsScopedPerCycle(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, study.TotalDays)

	runFullCycle(t, s, l, ids)
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := study.ConfirmCycle(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	}))

	// In cycle 2 every item is unseen again: day 1's item comes back through
	// the new-item path with no progress attached.
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectTodayCard(ctx, tx, l.ID, catalog.Level600, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[0], card.Item.ID)
		assert.Nil(t, card.Progress)
		return nil
	}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Review grading
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordReview_CorrectAdvancesAndSchedules(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	var p *study.Progress
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		p, _, err = study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow)
		return err
	}))

	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 1, p.CorrectStreak)
	assert.Equal(t, 0, p.WrongCount)
	assert.False(t, p.Mastered)
	assert.True(t, timeutil.SameDate(timeutil.AddDays(testNow, 3), p.NextDue))
}

func TestRecordReview_AgainResetsToLevelOneDueToday(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow)
		return err
	}))

	var p *study.Progress
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		p, _, err = study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeAgain, testNow)
		return err
	}))

	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 0, p.CorrectStreak)
	assert.Equal(t, 1, p.WrongCount)
	assert.True(t, timeutil.SameDate(testNow, p.NextDue))
	assert.True(t, p.IsDue(testNow), "a reset row is due immediately")
}

func TestRecordReview_MasteryAtMaxLevel(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	var p *study.Progress
	now := testNow
	for i := 0; i < leitner.MaxLevel+1; i++ {
		require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
			var err error
			p, _, err = study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradePerfect, now)
			return err
		}))
		now = p.NextDue
	}

	assert.Equal(t, leitner.MaxLevel, p.Level)
	assert.True(t, p.Mastered)
	assert.False(t, p.IsDue(now), "mastered rows leave the review queue")
}

func TestRecordReview_UnknownItemIsNotFound(t *testing.T) {
	s, l := newTestStore(t)

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, 999, leitner.GradeGood, testNow)
		return err
	})
	assert.True(t, shared.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Card selection
// ─────────────────────────────────────────────────────────────────────────────

func TestSelectCard_DueReviewBeatsUnseen(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 3)

	// Review item 2 and knock it back to due-today.
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[1], leitner.GradeAgain, testNow)
		return err
	}))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectCard(ctx, tx, l.ID, study.CardFilter{}, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[1], card.Item.ID, "the due review outranks unseen item %d", ids[0])
		require.NotNil(t, card.Progress)
		return nil
	}))
}

func TestSelectCard_UnseenFallbackPicksSmallestID(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 3)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectCard(ctx, tx, l.ID, study.CardFilter{}, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[0], card.Item.ID)
		assert.Nil(t, card.Progress)
		return nil
	}))

	// Schedule item 1 into the future; the fallback moves to item 2.
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectCard(ctx, tx, l.ID, study.CardFilter{}, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[1], card.Item.ID)
		return nil
	}))
}

func TestSelectCard_ExhaustedIsNotFound(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow)
		return err
	}))

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := study.SelectCard(ctx, tx, l.ID, study.CardFilter{}, testNow)
		return err
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestSelectTodayCard_RequiresOpenDay(t *testing.T) {
	s, l := newTestStore(t)
	seedItems(t, s, catalog.Level600, 1)

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := study.SelectTodayCard(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestSelectTodayCard_ScopedToOpenDay(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 2) // day 1 and day 2

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectTodayCard(ctx, tx, l.ID, catalog.Level600, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[0], card.Item.ID)
		assert.Equal(t, 1, card.Item.Day)
		return nil
	}))
}

func TestSelectRemindCard_OrdersByWrongCountThenDue(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 3)

	// Item 1: one correct answer, due in 3 days.
	// Item 2: two misses, due today.
	// Item 3: one miss, due today.
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		if _, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if _, _, err := study.RecordReview(ctx, tx, l.ID, ids[1], leitner.GradeAgain, testNow); err != nil {
				return err
			}
		}
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[2], leitner.GradeAgain, testNow)
		return err
	}))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		card, err := study.SelectRemindCard(ctx, tx, l.ID, catalog.Level600, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[1], card.Item.ID, "highest wrong count wins")
		return nil
	}))
}

func TestSelectRemindCard_IgnoresReviewsOutsideWindow(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	old := timeutil.AddDays(testNow, -(study.RemindWindowDays + 2))
	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeAgain, old)
		return err
	}))

	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := study.SelectRemindCard(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	})
	assert.True(t, shared.IsNotFound(err), "stale study-log entries fall outside the remind window")
}

// ─────────────────────────────────────────────────────────────────────────────
// Level status
// ─────────────────────────────────────────────────────────────────────────────

func TestBuildLevelStatus(t *testing.T) {
	s, l := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 2)

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		if _, _, err := study.OpenDay(ctx, tx, l.ID, catalog.Level600, 1, testNow); err != nil {
			return err
		}
		if _, _, err := study.RecordReview(ctx, tx, l.ID, ids[0], leitner.GradeGood, testNow); err != nil {
			return err
		}
		_, _, err := study.CompleteDay(ctx, tx, l.ID, catalog.Level600, testNow)
		return err
	}))

	require.NoError(t, inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		st, err := study.BuildLevelStatus(ctx, tx, l.ID, catalog.Level600, testNow)
		require.NoError(t, err)
		assert.Equal(t, catalog.Level600, st.Level)
		assert.Equal(t, 1, st.CycleNo)
		assert.Equal(t, study.CycleActive, st.CycleStatus)
		assert.Nil(t, st.OpenDay)
		require.NotNil(t, st.NextLockedDay)
		assert.Equal(t, 2, *st.NextLockedDay)
		assert.Equal(t, 1, st.CompletedDays)
		assert.Equal(t, study.TotalDays, st.TotalDays)
		assert.Equal(t, 3, st.ProgressPercent)
		return nil
	}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Unknown learners
// ─────────────────────────────────────────────────────────────────────────────

func TestUnknownLearner_IsRejectedByEveryOperation(t *testing.T) {
	s, _ := newTestStore(t)
	ids := seedItems(t, s, catalog.Level600, 1)

	ops := map[string]func(ctx context.Context, tx study.StoreTx) error{
		"select": func(ctx context.Context, tx study.StoreTx) error {
			_, err := study.SelectCard(ctx, tx, "ghost", study.CardFilter{}, testNow)
			return err
		},
		"today": func(ctx context.Context, tx study.StoreTx) error {
			_, err := study.SelectTodayCard(ctx, tx, "ghost", catalog.Level600, testNow)
			return err
		},
		"remind": func(ctx context.Context, tx study.StoreTx) error {
			_, err := study.SelectRemindCard(ctx, tx, "ghost", catalog.Level600, testNow)
			return err
		},
		"open": func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.OpenDay(ctx, tx, "ghost", catalog.Level600, 1, testNow)
			return err
		},
		"complete": func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.CompleteDay(ctx, tx, "ghost", catalog.Level600, testNow)
			return err
		},
		"confirm": func(ctx context.Context, tx study.StoreTx) error {
			_, err := study.ConfirmCycle(ctx, tx, "ghost", catalog.Level600, testNow)
			return err
		},
		"status": func(ctx context.Context, tx study.StoreTx) error {
			_, err := study.BuildLevelStatus(ctx, tx, "ghost", catalog.Level600, testNow)
			return err
		},
		"review": func(ctx context.Context, tx study.StoreTx) error {
			_, _, err := study.RecordReview(ctx, tx, "ghost", ids[0], leitner.GradeGood, testNow)
			return err
		},
	}
	for name, op := range ops {
		err := inTx(t, s, op)
		assert.True(t, shared.IsNotFound(err), "operation %s", name)
	}

	// None of the rejected operations may have created a cycle.
	err := inTx(t, s, func(ctx context.Context, tx study.StoreTx) error {
		_, err := tx.GetLiveCycle(ctx, "ghost", catalog.Level600)
		return err
	})
	assert.True(t, shared.IsNotFound(err))
}
