package command_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocahub/voca-study-hub/internal/application/command"
	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/internal/infrastructure/persistence/memory"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// recordingCache captures invalidations so tests can assert cached level
// dashboards are dropped after a mutation.
type recordingCache struct {
	invalidated []catalog.LevelTag
}

func (c *recordingCache) Get(context.Context, string, catalog.LevelTag) (*study.LevelStatus, bool) {
	return nil, false
}

func (c *recordingCache) Set(context.Context, string, *study.LevelStatus) {}

func (c *recordingCache) Invalidate(_ context.Context, _ string, level catalog.LevelTag) {
	c.invalidated = append(c.invalidated, level)
}

func registerLearner(t *testing.T, s *memory.Store, username string) string {
	t.Helper()
	h := command.NewRegisterLearnerHandler(s, nil)
	result, err := h.Handle(context.Background(), command.RegisterLearnerCommand{
		Username: username,
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return result.LearnerID
}

func seedLevelItems(t *testing.T, s *memory.Store, level catalog.LevelTag, days int) []int64 {
	t.Helper()
	var ids []int64
	err := s.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
		for day := 1; day <= days; day++ {
			item := &catalog.Item{
				Level:   level,
				Day:     day,
				Topic:   "business",
				Word:    fmt.Sprintf("word-%s-%02d", level, day),
				Meaning: "meaning",
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

func TestRegisterLearner_DuplicateUsername(t *testing.T) {
	s := memory.NewStore()
	h := command.NewRegisterLearnerHandler(s, nil)

	cmd := command.RegisterLearnerCommand{Username: "mina", Password: "correct horse battery"}
	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), cmd)
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestRegisterLearner_RejectsShortPassword(t *testing.T) {
	cmd := command.RegisterLearnerCommand{Username: "mina", Password: "short"}
	assert.Error(t, cmd.Validate())
}

func TestRecordReview_GoodAdvancesAndInvalidatesCache(t *testing.T) {
	s := memory.NewStore()
	learnerID := registerLearner(t, s, "mina")
	ids := seedLevelItems(t, s, catalog.Level600, 1)
	cache := &recordingCache{}
	h := command.NewRecordReviewHandler(s, cache, nil)

	result, err := h.Handle(context.Background(), command.RecordReviewCommand{
		LearnerID: learnerID,
		ItemID:    ids[0],
		Grade:     "good",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Level)
	assert.Equal(t, 1, result.CorrectStreak)
	assert.Equal(t, 0, result.WrongCount)
	assert.False(t, result.Mastered)
	wantDue := timeutil.AddDays(timeutil.DateOf(result.ReviewedAt), 3)
	assert.True(t, timeutil.SameDate(wantDue, result.NextDue))

	assert.Equal(t, []catalog.LevelTag{catalog.Level600}, cache.invalidated)
}

func TestRecordReview_AgainIsDueToday(t *testing.T) {
	s := memory.NewStore()
	learnerID := registerLearner(t, s, "mina")
	ids := seedLevelItems(t, s, catalog.Level600, 1)
	h := command.NewRecordReviewHandler(s, nil, nil)

	result, err := h.Handle(context.Background(), command.RecordReviewCommand{
		LearnerID: learnerID,
		ItemID:    ids[0],
		Grade:     "again",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Level)
	assert.Equal(t, 1, result.WrongCount)
	assert.True(t, timeutil.SameDate(result.ReviewedAt, result.NextDue))
}

func TestRecordReview_UnknownGradeFailsValidation(t *testing.T) {
	s := memory.NewStore()
	h := command.NewRecordReviewHandler(s, nil, nil)

	_, err := h.Handle(context.Background(), command.RecordReviewCommand{
		LearnerID: "someone",
		ItemID:    1,
		Grade:     "meh",
	})
	assert.Error(t, err)
}

func TestDayFlow_OpenReviewComplete(t *testing.T) {
	s := memory.NewStore()
	learnerID := registerLearner(t, s, "mina")
	ids := seedLevelItems(t, s, catalog.Level800, 2)
	cache := &recordingCache{}

	open := command.NewOpenDayHandler(s, cache, nil)
	openResult, err := open.Handle(context.Background(), command.OpenDayCommand{
		LearnerID: learnerID,
		Level:     "800",
		Day:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, openResult.CycleNo)
	assert.Equal(t, 1, openResult.Day)

	// Day 1 holds a single item; one review covers it.
	review := command.NewRecordReviewHandler(s, cache, nil)
	_, err = review.Handle(context.Background(), command.RecordReviewCommand{
		LearnerID: learnerID,
		ItemID:    ids[0],
		Grade:     "perfect",
	})
	require.NoError(t, err)

	complete := command.NewCompleteDayHandler(s, cache, nil)
	completeResult, err := complete.Handle(context.Background(), command.CompleteDayCommand{
		LearnerID: learnerID,
		Level:     "800",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, completeResult.Day)
	assert.Equal(t, study.CycleActive, completeResult.CycleStatus)
	assert.Len(t, cache.invalidated, 3)
}

func TestCompleteDay_WithoutOpenDayFails(t *testing.T) {
	s := memory.NewStore()
	learnerID := registerLearner(t, s, "mina")
	seedLevelItems(t, s, catalog.Level800, 1)

	h := command.NewCompleteDayHandler(s, nil, nil)
	_, err := h.Handle(context.Background(), command.CompleteDayCommand{
		LearnerID: learnerID,
		Level:     "800",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestConfirmCycle_RequiresPendingCycle(t *testing.T) {
	s := memory.NewStore()
	learnerID := registerLearner(t, s, "mina")
	seedLevelItems(t, s, catalog.Level900, 1)

	// Opening a day creates an active cycle, which is not confirmable.
	open := command.NewOpenDayHandler(s, nil, nil)
	_, err := open.Handle(context.Background(), command.OpenDayCommand{
		LearnerID: learnerID,
		Level:     "900",
		Day:       1,
	})
	require.NoError(t, err)

	confirm := command.NewConfirmCycleHandler(s, nil, nil)
	_, err = confirm.Handle(context.Background(), command.ConfirmCycleCommand{
		LearnerID: learnerID,
		Level:     "900",
	})
	assert.True(t, shared.IsInvalidState(err))
}
