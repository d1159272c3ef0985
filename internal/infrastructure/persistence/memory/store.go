// Package memory implements an in-memory study.Store for tests. Transactions
// are serialized behind a mutex and applied copy-on-write: a transaction works
// on a cloned index and the clone replaces the committed state only on commit,
// so a failed transaction leaves no partial state - the same contract the
// Postgres store provides.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/learner"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// Store is an in-memory study.Store.
type Store struct {
	mu   sync.Mutex
	data *data
}

// data is the committed state. Stored values are never mutated in place:
// every write replaces the value with a fresh copy, so cloning only needs new
// map headers.
type data struct {
	learners       map[string]*learner.Learner
	learnerByName  map[string]string
	items          map[int64]*catalog.Item
	progress       map[int64]*study.Progress
	logs           []*study.StudyLogEntry
	cycles         map[string]*study.Cycle
	days           map[string]*study.DayRow
	nextItemID     int64
	nextProgressID int64
	nextLogID      int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: &data{
			learners:       make(map[string]*learner.Learner),
			learnerByName:  make(map[string]string),
			items:          make(map[int64]*catalog.Item),
			progress:       make(map[int64]*study.Progress),
			cycles:         make(map[string]*study.Cycle),
			days:           make(map[string]*study.DayRow),
			nextItemID:     1,
			nextProgressID: 1,
			nextLogID:      1,
		},
	}
}

func (d *data) clone() *data {
	c := &data{
		learners:       make(map[string]*learner.Learner, len(d.learners)),
		learnerByName:  make(map[string]string, len(d.learnerByName)),
		items:          make(map[int64]*catalog.Item, len(d.items)),
		progress:       make(map[int64]*study.Progress, len(d.progress)),
		logs:           make([]*study.StudyLogEntry, len(d.logs)),
		cycles:         make(map[string]*study.Cycle, len(d.cycles)),
		days:           make(map[string]*study.DayRow, len(d.days)),
		nextItemID:     d.nextItemID,
		nextProgressID: d.nextProgressID,
		nextLogID:      d.nextLogID,
	}
	for k, v := range d.learners {
		c.learners[k] = v
	}
	for k, v := range d.learnerByName {
		c.learnerByName[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.progress {
		c.progress[k] = v
	}
	copy(c.logs, d.logs)
	for k, v := range d.cycles {
		c.cycles[k] = v
	}
	for k, v := range d.days {
		c.days[k] = v
	}
	return c
}

// InTx runs fn against a clone of the committed state and commits the clone
// on success.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx study.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// ReadTx runs fn against a clone and always discards it.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx study.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, &tx{data: s.data.clone()})
}

var _ study.Store = (*Store)(nil)

// tx implements study.StoreTx over a working copy.
type tx struct {
	data *data
}

func notFound(op, msg string) error {
	return shared.NewDomainError("store", op, shared.ErrNotFound, msg)
}

// ─────────────────────────────────────────────────────────────────────────────
// Learners
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) CreateLearner(ctx context.Context, l *learner.Learner) error {
	if _, taken := t.data.learnerByName[l.Username]; taken {
		return shared.NewDomainError("store", "CreateLearner", shared.ErrAlreadyExists, "username already taken")
	}
	cp := *l
	t.data.learners[l.ID] = &cp
	t.data.learnerByName[l.Username] = l.ID
	return nil
}

func (t *tx) GetLearner(ctx context.Context, id string) (*learner.Learner, error) {
	l, ok := t.data.learners[id]
	if !ok {
		return nil, notFound("GetLearner", "learner not found")
	}
	cp := *l
	return &cp, nil
}

func (t *tx) GetLearnerByUsername(ctx context.Context, username string) (*learner.Learner, error) {
	id, ok := t.data.learnerByName[username]
	if !ok {
		return nil, notFound("GetLearnerByUsername", "learner not found")
	}
	return t.GetLearner(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) CreateItem(ctx context.Context, item *catalog.Item) error {
	if item.ID == 0 {
		item.ID = t.data.nextItemID
		t.data.nextItemID++
	} else if item.ID >= t.data.nextItemID {
		t.data.nextItemID = item.ID + 1
	}
	cp := *item
	t.data.items[item.ID] = &cp
	return nil
}

func (t *tx) GetItem(ctx context.Context, id int64) (*catalog.Item, error) {
	item, ok := t.data.items[id]
	if !ok {
		return nil, notFound("GetItem", "item not found")
	}
	cp := *item
	return &cp, nil
}

func (t *tx) matchesFilter(item *catalog.Item, f study.CardFilter) bool {
	if f.Level != nil && item.Level != *f.Level {
		return false
	}
	if f.Day != nil && item.Day != *f.Day {
		return false
	}
	return true
}

// seen reports whether the learner has a progress row for the item, scoped to
// one cycle when cycleNo > 0.
func (t *tx) seen(learnerID string, itemID int64, cycleNo int) bool {
	for _, p := range t.data.progress {
		if p.LearnerID != learnerID || p.ItemID != itemID {
			continue
		}
		if cycleNo != study.AnyCycle && p.CycleNo != cycleNo {
			continue
		}
		return true
	}
	return false
}

func (t *tx) FirstUnseenItem(ctx context.Context, learnerID string, f study.CardFilter, cycleNo int) (*catalog.Item, error) {
	ids := make([]int64, 0, len(t.data.items))
	for id := range t.data.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		item := t.data.items[id]
		if !t.matchesFilter(item, f) {
			continue
		}
		if t.seen(learnerID, id, cycleNo) {
			continue
		}
		cp := *item
		return &cp, nil
	}
	return nil, notFound("FirstUnseenItem", "no unseen items")
}

func (t *tx) CountItemsWithoutProgress(ctx context.Context, learnerID string, level catalog.LevelTag, day, cycleNo int) (int, error) {
	count := 0
	for id, item := range t.data.items {
		if item.Level != level || item.Day != day {
			continue
		}
		if !t.seen(learnerID, id, cycleNo) {
			count++
		}
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) GetProgress(ctx context.Context, learnerID string, itemID int64, cycleNo int) (*study.Progress, error) {
	for _, p := range t.data.progress {
		if p.LearnerID == learnerID && p.ItemID == itemID && p.CycleNo == cycleNo {
			cp := *p
			return &cp, nil
		}
	}
	return nil, notFound("GetProgress", "progress not found")
}

func (t *tx) CreateProgress(ctx context.Context, p *study.Progress) error {
	p.ID = t.data.nextProgressID
	t.data.nextProgressID++
	cp := *p
	t.data.progress[p.ID] = &cp
	return nil
}

func (t *tx) UpdateProgress(ctx context.Context, p *study.Progress) error {
	if _, ok := t.data.progress[p.ID]; !ok {
		return notFound("UpdateProgress", "progress not found")
	}
	cp := *p
	t.data.progress[p.ID] = &cp
	return nil
}

func (t *tx) FirstDueProgress(ctx context.Context, learnerID string, today time.Time, f study.CardFilter, cycleNo int) (*study.Progress, error) {
	var candidates []*study.Progress
	for _, p := range t.data.progress {
		if p.LearnerID != learnerID || !p.IsDue(today) {
			continue
		}
		if cycleNo != study.AnyCycle && p.CycleNo != cycleNo {
			continue
		}
		item, ok := t.data.items[p.ItemID]
		if !ok || !t.matchesFilter(item, f) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, notFound("FirstDueProgress", "no due reviews")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ad, bd := timeutil.DateOf(a.NextDue), timeutil.DateOf(b.NextDue)
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		return a.ID < b.ID
	})
	cp := *candidates[0]
	return &cp, nil
}

func (t *tx) RemindCandidate(ctx context.Context, learnerID string, level catalog.LevelTag, cycleNo int, windowStart, today time.Time) (*study.Progress, error) {
	studied := make(map[int64]bool)
	for _, e := range t.data.logs {
		if e.LearnerID == learnerID && e.Level == level && e.CycleNo == cycleNo && !e.StudiedAt.Before(windowStart) {
			studied[e.ItemID] = true
		}
	}

	var candidates []*study.Progress
	for _, p := range t.data.progress {
		if p.LearnerID != learnerID || p.CycleNo != cycleNo || !studied[p.ItemID] {
			continue
		}
		if p.Mastered {
			continue
		}
		if !timeutil.HasDueDate(p.NextDue) || timeutil.IsDue(p.NextDue, today) || p.WrongCount > 0 {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, notFound("RemindCandidate", "no remind candidates")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.WrongCount != b.WrongCount {
			return a.WrongCount > b.WrongCount
		}
		ak, bk := timeutil.DueSortKey(a.NextDue), timeutil.DueSortKey(b.NextDue)
		if !ak.Equal(bk) {
			return ak.Before(bk)
		}
		return a.ID < b.ID
	})
	cp := *candidates[0]
	return &cp, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Study log
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) AppendStudyLog(ctx context.Context, e *study.StudyLogEntry) error {
	e.ID = t.data.nextLogID
	t.data.nextLogID++
	cp := *e
	t.data.logs = append(t.data.logs, &cp)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Cycles
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) GetLiveCycle(ctx context.Context, learnerID string, level catalog.LevelTag) (*study.Cycle, error) {
	for _, c := range t.data.cycles {
		if c.LearnerID == learnerID && c.Level == level && c.Status.Live() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, notFound("GetLiveCycle", "no live cycle")
}

func (t *tx) CreateCycle(ctx context.Context, c *study.Cycle) error {
	for _, existing := range t.data.cycles {
		if existing.LearnerID == c.LearnerID && existing.Level == c.Level && existing.Status.Live() && c.Status.Live() {
			return shared.NewDomainError("store", "CreateCycle", shared.ErrAlreadyExists, "live cycle already exists")
		}
	}
	cp := *c
	t.data.cycles[c.ID] = &cp
	return nil
}

func (t *tx) UpdateCycle(ctx context.Context, c *study.Cycle) error {
	if _, ok := t.data.cycles[c.ID]; !ok {
		return notFound("UpdateCycle", "cycle not found")
	}
	cp := *c
	t.data.cycles[c.ID] = &cp
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Day rows
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) ListDayRows(ctx context.Context, cycleID string) ([]*study.DayRow, error) {
	var rows []*study.DayRow
	for _, d := range t.data.days {
		if d.CycleID == cycleID {
			cp := *d
			rows = append(rows, &cp)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	return rows, nil
}

func (t *tx) CreateDayRows(ctx context.Context, rows []*study.DayRow) error {
	for _, d := range rows {
		for _, existing := range t.data.days {
			if existing.CycleID == d.CycleID && existing.Day == d.Day {
				return shared.NewDomainError("store", "CreateDayRows", shared.ErrAlreadyExists, "day row already exists")
			}
		}
		cp := *d
		t.data.days[d.ID] = &cp
	}
	return nil
}

func (t *tx) GetDayRow(ctx context.Context, cycleID string, day int) (*study.DayRow, error) {
	for _, d := range t.data.days {
		if d.CycleID == cycleID && d.Day == day {
			cp := *d
			return &cp, nil
		}
	}
	return nil, notFound("GetDayRow", "day row not found")
}

func (t *tx) GetOpenDay(ctx context.Context, cycleID string) (*study.DayRow, error) {
	for _, d := range t.data.days {
		if d.CycleID == cycleID && d.Status == study.DayOpen {
			cp := *d
			return &cp, nil
		}
	}
	return nil, notFound("GetOpenDay", "no open day")
}

func (t *tx) FirstLockedDay(ctx context.Context, cycleID string) (*study.DayRow, error) {
	var first *study.DayRow
	for _, d := range t.data.days {
		if d.CycleID == cycleID && d.Status == study.DayLocked {
			if first == nil || d.Day < first.Day {
				first = d
			}
		}
	}
	if first == nil {
		return nil, notFound("FirstLockedDay", "no locked days")
	}
	cp := *first
	return &cp, nil
}

func (t *tx) CountCompletedDays(ctx context.Context, cycleID string) (int, error) {
	count := 0
	for _, d := range t.data.days {
		if d.CycleID == cycleID && d.Status == study.DayCompleted {
			count++
		}
	}
	return count, nil
}

func (t *tx) UpdateDayRow(ctx context.Context, d *study.DayRow) error {
	if _, ok := t.data.days[d.ID]; !ok {
		return notFound("UpdateDayRow", "day row not found")
	}
	cp := *d
	t.data.days[d.ID] = &cp
	return nil
}

var _ study.StoreTx = (*tx)(nil)
