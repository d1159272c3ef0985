package leitner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

func TestIntervalDays_AllLevelsPositive(t *testing.T) {
	for level := -3; level <= 10; level++ {
		clamped := ClampLevel(level)
		assert.GreaterOrEqual(t, clamped, 1)
		assert.LessOrEqual(t, clamped, MaxLevel)
		assert.Positive(t, IntervalDays(level), "level %d", level)
	}
}

func TestIntervalDays_Table(t *testing.T) {
	expected := map[int]int{1: 1, 2: 3, 3: 7, 4: 15, 5: 30}
	for level, days := range expected {
		assert.Equal(t, days, IntervalDays(level))
	}
}

func TestParseGrade(t *testing.T) {
	for _, s := range []string{"perfect", "good", "again"} {
		g, err := ParseGrade(s)
		assert.NoError(t, err)
		assert.Equal(t, Grade(s), g)
	}

	_, err := ParseGrade("hard")
	assert.Error(t, err)
}

func TestNextState_Again(t *testing.T) {
	today := timeutil.Date(2025, 3, 10)

	out := NextState(3, GradeAgain, today)
	assert.Equal(t, 1, out.Level)
	assert.True(t, out.NextDue.Equal(today), "again must be due immediately")
	assert.False(t, out.Mastered)
	assert.False(t, out.Grade.Correct())
}

func TestNextState_Good(t *testing.T) {
	today := timeutil.Date(2025, 3, 10)

	out := NextState(3, GradeGood, today)
	assert.Equal(t, 4, out.Level)
	assert.True(t, out.NextDue.Equal(timeutil.AddDays(today, 15)))
	assert.False(t, out.Mastered)
	assert.True(t, out.Grade.Correct())
}

func TestNextState_PerfectAtMaxLevel(t *testing.T) {
	today := timeutil.Date(2025, 3, 10)

	out := NextState(5, GradePerfect, today)
	assert.Equal(t, 5, out.Level, "level is clamped at MaxLevel")
	assert.True(t, out.NextDue.Equal(timeutil.AddDays(today, 30)))
	assert.True(t, out.Mastered)
}

func TestNextState_GoodAndPerfectScheduleIdentically(t *testing.T) {
	today := timeutil.Date(2025, 3, 10)

	for level := 1; level <= MaxLevel; level++ {
		good := NextState(level, GradeGood, today)
		perfect := NextState(level, GradePerfect, today)
		assert.Equal(t, good.Level, perfect.Level)
		assert.True(t, good.NextDue.Equal(perfect.NextDue))
		assert.Equal(t, good.Mastered, perfect.Mastered)
	}
}

func TestNextState_OutOfRangeLevelCorrected(t *testing.T) {
	today := timeutil.Date(2025, 3, 10)

	out := NextState(-7, GradeGood, today)
	assert.Equal(t, 2, out.Level)

	out = NextState(42, GradeGood, today)
	assert.Equal(t, MaxLevel, out.Level)
	assert.True(t, out.Mastered)
}
