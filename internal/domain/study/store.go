package study

import (
	"context"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/learner"
)

// Store is the transactional boundary the engine runs against. Every public
// operation executes inside exactly one InTx or ReadTx call: either all reads
// and writes commit, or none do.
//
// Implementations must give each transaction a consistent snapshot and report
// write conflicts as shared.ErrConflict, so two concurrent OpenDay calls for
// the same learner and level can never both succeed.
type Store interface {
	// InTx runs fn inside one atomic read-write transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error

	// ReadTx runs fn inside one read-only transaction. Idempotent writes
	// performed by get-or-create steps still go through InTx.
	ReadTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
}

// StoreTx is the per-transaction repository surface. Lookups that find
// nothing return an error matching shared.ErrNotFound; writes that violate a
// uniqueness constraint return one matching shared.ErrAlreadyExists or
// shared.ErrConflict.
//
// The interface is implemented by the infrastructure layer; the domain has no
// knowledge of the actual storage mechanism.
type StoreTx interface {
	// Learner operations

	// CreateLearner persists a new learner.
	CreateLearner(ctx context.Context, l *learner.Learner) error

	// GetLearner returns a learner by ID.
	GetLearner(ctx context.Context, id string) (*learner.Learner, error)

	// GetLearnerByUsername returns a learner by username.
	GetLearnerByUsername(ctx context.Context, username string) (*learner.Learner, error)

	// Catalog operations

	// CreateItem persists a catalog item (import path only).
	CreateItem(ctx context.Context, item *catalog.Item) error

	// GetItem returns a catalog item by ID.
	GetItem(ctx context.Context, id int64) (*catalog.Item, error)

	// FirstUnseenItem returns the smallest-ID item matching the filter that
	// has no progress row for the learner. cycleNo scopes the progress
	// check to one cycle; pass AnyCycle to check across all cycles.
	FirstUnseenItem(ctx context.Context, learnerID string, f CardFilter, cycleNo int) (*catalog.Item, error)

	// CountItemsWithoutProgress counts items of (level, day) that have no
	// progress row for (learner, cycle). Zero means the day is fully
	// progressed and may be completed.
	CountItemsWithoutProgress(ctx context.Context, learnerID string, level catalog.LevelTag, day, cycleNo int) (int, error)

	// Progress operations

	// GetProgress returns the progress row for (learner, item, cycle).
	GetProgress(ctx context.Context, learnerID string, itemID int64, cycleNo int) (*Progress, error)

	// CreateProgress persists a new progress row and assigns its ID.
	CreateProgress(ctx context.Context, p *Progress) error

	// UpdateProgress persists changes to an existing progress row.
	UpdateProgress(ctx context.Context, p *Progress) error

	// FirstDueProgress returns the unmastered progress row with the
	// earliest due date on or before today, ties broken by smallest row ID.
	// The filter restricts by item level/day; cycleNo as in FirstUnseenItem.
	FirstDueProgress(ctx context.Context, learnerID string, today time.Time, f CardFilter, cycleNo int) (*Progress, error)

	// RemindCandidate returns the top remind-queue row: restricted to items
	// with a study-log entry since the window start, not mastered, and
	// (never scheduled OR due OR wrong at least once); ordered by wrong
	// count descending, then due date ascending with unscheduled first.
	RemindCandidate(ctx context.Context, learnerID string, level catalog.LevelTag, cycleNo int, windowStart, today time.Time) (*Progress, error)

	// Study log operations

	// AppendStudyLog appends one immutable grading record.
	AppendStudyLog(ctx context.Context, e *StudyLogEntry) error

	// Cycle operations

	// GetLiveCycle returns the cycle in {active, completed_pending_confirm}
	// for (learner, level).
	GetLiveCycle(ctx context.Context, learnerID string, level catalog.LevelTag) (*Cycle, error)

	// CreateCycle persists a new cycle. Fails if another live cycle exists
	// for the same learner and level.
	CreateCycle(ctx context.Context, c *Cycle) error

	// UpdateCycle persists a cycle status transition.
	UpdateCycle(ctx context.Context, c *Cycle) error

	// Day row operations

	// ListDayRows returns all day rows of a cycle ordered by day number.
	ListDayRows(ctx context.Context, cycleID string) ([]*DayRow, error)

	// CreateDayRows persists day rows in bulk, all or nothing.
	CreateDayRows(ctx context.Context, rows []*DayRow) error

	// GetDayRow returns one day of a cycle.
	GetDayRow(ctx context.Context, cycleID string, day int) (*DayRow, error)

	// GetOpenDay returns the single open day of a cycle.
	GetOpenDay(ctx context.Context, cycleID string) (*DayRow, error)

	// FirstLockedDay returns the lowest-numbered day still locked.
	FirstLockedDay(ctx context.Context, cycleID string) (*DayRow, error)

	// CountCompletedDays counts completed days of a cycle.
	CountCompletedDays(ctx context.Context, cycleID string) (int, error)

	// UpdateDayRow persists a day status transition.
	UpdateDayRow(ctx context.Context, d *DayRow) error
}

// AnyCycle disables cycle scoping in selection queries.
const AnyCycle = 0
