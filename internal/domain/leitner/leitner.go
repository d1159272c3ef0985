// Package leitner implements the Leitner-box spaced-repetition scheduler.
// It is pure and deterministic: mastery levels map to fixed review intervals,
// and a single grade moves a card between boxes. The package has no
// dependencies beyond the standard library.
package leitner

import (
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// MaxLevel is the highest mastery level. A card at MaxLevel is mastered.
const MaxLevel = 5

// intervalDays maps a mastery level to the review interval in days.
// Interval lengths are fixed constants of this domain, not configuration.
var intervalDays = map[int]int{
	1: 1,
	2: 3,
	3: 7,
	4: 15,
	5: 30,
}

// Grade is a learner's self-assessment of one review.
type Grade string

const (
	GradePerfect Grade = "perfect"
	GradeGood    Grade = "good"
	GradeAgain   Grade = "again"
)

// ParseGrade validates a wire-level grade value.
func ParseGrade(s string) (Grade, error) {
	switch Grade(s) {
	case GradePerfect, GradeGood, GradeAgain:
		return Grade(s), nil
	default:
		return "", shared.NewDomainError("leitner", "ParseGrade", shared.ErrInvalidInput,
			fmt.Sprintf("unrecognized grade %q", s))
	}
}

// Correct reports whether the grade counts as a correct answer.
func (g Grade) Correct() bool {
	return g == GradePerfect || g == GradeGood
}

// ClampLevel corrects an out-of-range mastery level instead of rejecting it.
func ClampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// IntervalDays returns the review interval for a mastery level, in days.
// The level is clamped on read, so the result is always positive.
func IntervalDays(level int) int {
	return intervalDays[ClampLevel(level)]
}

// Outcome is the scheduling result of grading one card.
type Outcome struct {
	// Level is the new mastery level, already clamped to [1, MaxLevel].
	Level int

	// NextDue is the calendar date the card is due again.
	NextDue time.Time

	// Mastered reports whether the card reached MaxLevel.
	Mastered bool

	// Grade is the grade that produced this outcome.
	Grade Grade
}

// NextState computes the next mastery level and due date for a card.
//
// Grade "again" drops the card to level 1 and makes it due today. Any correct
// grade promotes it one level (capped at MaxLevel) and schedules it one
// interval out. "good" and "perfect" currently receive identical scheduling
// treatment; the grade is carried on the outcome so a future split stays here.
func NextState(currentLevel int, grade Grade, today time.Time) Outcome {
	today = timeutil.DateOf(today)

	if grade == GradeAgain {
		return Outcome{
			Level:   1,
			NextDue: today,
			Grade:   grade,
		}
	}

	level := ClampLevel(ClampLevel(currentLevel) + 1)
	return Outcome{
		Level:    level,
		NextDue:  timeutil.AddDays(today, IntervalDays(level)),
		Mastered: level >= MaxLevel,
		Grade:    grade,
	}
}
