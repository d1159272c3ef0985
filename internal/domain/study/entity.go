// Package study owns the progression engine: per-learner review progress,
// the immutable study log, and the cycle/day state machine that gates a
// learner's path through each level's 30-day curriculum.
package study

import (
	"time"

	"github.com/google/uuid"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/leitner"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

const (
	// TotalDays is the number of curriculum days in one cycle.
	TotalDays = 30

	// RemindWindowDays is the trailing lookback for the remind queue.
	RemindWindowDays = 7

	// UntaggedCycleNo scopes progress on items without a level tag. Such
	// items live outside any cycle, so their progress is keyed to cycle 1
	// forever.
	UntaggedCycleNo = 1
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is the Leitner state of one (learner, item, cycle). Created lazily
// on first review, mutated only by RecordReview, never deleted.
type Progress struct {
	// ID is the serial row identity; due-review ties break on it so
	// selection stays deterministic.
	ID int64

	LearnerID string
	ItemID    int64
	CycleNo   int

	// Level is the Leitner mastery level, clamped to [1, leitner.MaxLevel].
	Level int

	// NextDue is the next review date, or timeutil.NoDueDate when the row
	// was created but never scheduled.
	NextDue time.Time

	// Mastered is set once Level reaches leitner.MaxLevel.
	Mastered bool

	CorrectStreak int
	WrongCount    int

	LastReviewedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProgress seeds a fresh progress row at level 1 with no due date.
func NewProgress(learnerID string, itemID int64, cycleNo int, now time.Time) *Progress {
	return &Progress{
		LearnerID: learnerID,
		ItemID:    itemID,
		CycleNo:   cycleNo,
		Level:     1,
		NextDue:   timeutil.NoDueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply folds a scheduling outcome into the row.
func (p *Progress) Apply(out leitner.Outcome, now time.Time) {
	p.Level = out.Level
	p.NextDue = out.NextDue
	p.Mastered = out.Mastered
	if out.Grade.Correct() {
		p.CorrectStreak++
	} else {
		p.CorrectStreak = 0
		p.WrongCount++
	}
	p.LastReviewedAt = &now
	p.UpdatedAt = now
}

// IsDue reports whether the row is due on the given date. Rows that were
// never scheduled are not due; they surface through the new-item path.
func (p *Progress) IsDue(today time.Time) bool {
	return !p.Mastered && timeutil.IsDue(p.NextDue, today)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY LOG
// ══════════════════════════════════════════════════════════════════════════════

// StudyLogEntry is an immutable append-only record of one grading event.
type StudyLogEntry struct {
	ID        int64
	LearnerID string
	ItemID    int64

	// Level is denormalized from the item at review time, empty for
	// untagged items.
	Level   catalog.LevelTag
	CycleNo int

	Grade     leitner.Grade
	StudiedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// CycleStatus is the lifecycle state of one 30-day pass through a level.
type CycleStatus string

const (
	// CycleActive - days are being opened and completed.
	CycleActive CycleStatus = "active"

	// CyclePendingConfirm - all 30 days are completed and the cycle waits
	// for the learner to confirm a restart.
	CyclePendingConfirm CycleStatus = "completed_pending_confirm"

	// CycleConfirmed - terminal. A confirmed cycle is immutable and
	// superseded by a new cycle row with cycle_no+1.
	CycleConfirmed CycleStatus = "completed_confirmed"
)

// Live reports whether the status counts toward the one-live-cycle invariant.
func (s CycleStatus) Live() bool {
	return s == CycleActive || s == CyclePendingConfirm
}

// Cycle is one pass through a level's curriculum for one learner. At most one
// cycle per (learner, level) is live at any time.
type Cycle struct {
	ID        string
	LearnerID string
	Level     catalog.LevelTag
	CycleNo   int
	Status    CycleStatus

	StartedAt   time.Time
	CompletedAt *time.Time
}

// NewCycle creates an active cycle with the given number.
func NewCycle(learnerID string, level catalog.LevelTag, cycleNo int, now time.Time) *Cycle {
	return &Cycle{
		ID:        uuid.NewString(),
		LearnerID: learnerID,
		Level:     level,
		CycleNo:   cycleNo,
		Status:    CycleActive,
		StartedAt: now,
	}
}

// DayStatus is the unlock state of one curriculum day.
type DayStatus string

const (
	DayLocked    DayStatus = "locked"
	DayOpen      DayStatus = "open"
	DayCompleted DayStatus = "completed"
)

// DayRow tracks one day (1..30) of one cycle. At most one row per cycle is
// open at any time, and days unlock strictly in order.
type DayRow struct {
	ID      string
	CycleID string
	Day     int
	Status  DayStatus

	OpenedAt    *time.Time
	CompletedAt *time.Time
}

// NewDayRows creates the full locked set of days 1..TotalDays for a cycle.
func NewDayRows(cycleID string) []*DayRow {
	rows := make([]*DayRow, 0, TotalDays)
	for day := 1; day <= TotalDays; day++ {
		rows = append(rows, &DayRow{
			ID:      uuid.NewString(),
			CycleID: cycleID,
			Day:     day,
			Status:  DayLocked,
		})
	}
	return rows
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTION
// ══════════════════════════════════════════════════════════════════════════════

// CardFilter narrows card selection to a level and/or day.
type CardFilter struct {
	Level *catalog.LevelTag
	Day   *int
}

// Card is one selected item, with progress attached when the learner has
// already seen it.
type Card struct {
	Item     *catalog.Item
	Progress *Progress
}
