package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/learner"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// Store implements study.Store on top of a PostgreSQL connection pool.
type Store struct {
	conn *Connection
}

// NewStore creates a new PostgreSQL-backed study store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// InTx runs fn inside one serializable read-write transaction. Serialization
// failures come back as shared.ErrConflict; retrying the whole transaction is
// the caller's responsibility.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx study.StoreTx) error) error {
	err := s.conn.WithTx(ctx, SerializableTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &storeTx{q: tx})
	})
	if IsSerializationFailure(err) {
		return shared.WrapError("store", "InTx", shared.ErrConflict, "transaction conflict", err)
	}
	return err
}

// ReadTx runs fn inside one read-only transaction.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx study.StoreTx) error) error {
	return s.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &storeTx{q: tx})
	})
}

var _ study.Store = (*Store)(nil)

// storeTx implements study.StoreTx over one pgx transaction.
type storeTx struct {
	q Querier
}

func notFound(op, msg string) error {
	return shared.NewDomainError("store", op, shared.ErrNotFound, msg)
}

// levelParam converts an optional level filter for SQL.
func levelParam(level *catalog.LevelTag) *string {
	if level == nil {
		return nil
	}
	s := string(*level)
	return &s
}

// dueParam converts a due date for storage: the sentinel becomes NULL.
func dueParam(due time.Time) interface{} {
	if !timeutil.HasDueDate(due) {
		return nil
	}
	return timeutil.DateOf(due)
}

// dueValue converts a scanned due column back: NULL becomes the sentinel.
func dueValue(due *time.Time) time.Time {
	if due == nil {
		return timeutil.NoDueDate
	}
	return *due
}

// ─────────────────────────────────────────────────────────────────────────────
// Learners
// ─────────────────────────────────────────────────────────────────────────────

func (t *storeTx) CreateLearner(ctx context.Context, l *learner.Learner) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO learners (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, l.ID, l.Username, l.PasswordHash, l.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("store", "CreateLearner", shared.ErrAlreadyExists, "username already taken")
	}
	return err
}

const learnerColumns = "id, username, password_hash, created_at"

func (t *storeTx) scanLearner(row pgx.Row, op string) (*learner.Learner, error) {
	var l learner.Learner
	err := row.Scan(&l.ID, &l.Username, &l.PasswordHash, &l.CreatedAt)
	if IsNoRows(err) {
		return nil, notFound(op, "learner not found")
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *storeTx) GetLearner(ctx context.Context, id string) (*learner.Learner, error) {
	row := t.q.QueryRow(ctx, "SELECT "+learnerColumns+" FROM learners WHERE id = $1", id)
	return t.scanLearner(row, "GetLearner")
}

func (t *storeTx) GetLearnerByUsername(ctx context.Context, username string) (*learner.Learner, error) {
	row := t.q.QueryRow(ctx, "SELECT "+learnerColumns+" FROM learners WHERE username = $1", username)
	return t.scanLearner(row, "GetLearnerByUsername")
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

const itemColumns = "id, level, day, topic, word, meaning, example_en, example_kr, created_at"

func (t *storeTx) scanItem(row pgx.Row, op, missing string) (*catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(
		&item.ID, &item.Level, &item.Day, &item.Topic,
		&item.Word, &item.Meaning, &item.ExampleEN, &item.ExampleKR,
		&item.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, notFound(op, missing)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *storeTx) CreateItem(ctx context.Context, item *catalog.Item) error {
	if item.ID != 0 {
		_, err := t.q.Exec(ctx, `
			INSERT INTO items (id, level, day, topic, word, meaning, example_en, example_kr, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, item.ID, item.Level, item.Day, item.Topic, item.Word, item.Meaning, item.ExampleEN, item.ExampleKR, item.CreatedAt)
		return err
	}
	return t.q.QueryRow(ctx, `
		INSERT INTO items (level, day, topic, word, meaning, example_en, example_kr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, item.Level, item.Day, item.Topic, item.Word, item.Meaning, item.ExampleEN, item.ExampleKR, item.CreatedAt).Scan(&item.ID)
}

func (t *storeTx) GetItem(ctx context.Context, id int64) (*catalog.Item, error) {
	row := t.q.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id)
	return t.scanItem(row, "GetItem", "item not found")
}

func (t *storeTx) FirstUnseenItem(ctx context.Context, learnerID string, f study.CardFilter, cycleNo int) (*catalog.Item, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM items i
		WHERE ($2::varchar IS NULL OR i.level = $2)
		  AND ($3::int IS NULL OR i.day = $3)
		  AND NOT EXISTS (
			SELECT 1 FROM progress p
			WHERE p.learner_id = $1 AND p.item_id = i.id
			  AND ($4 = 0 OR p.cycle_no = $4)
		  )
		ORDER BY i.id
		LIMIT 1
	`, learnerID, levelParam(f.Level), f.Day, cycleNo)
	return t.scanItem(row, "FirstUnseenItem", "no unseen items")
}

func (t *storeTx) CountItemsWithoutProgress(ctx context.Context, learnerID string, level catalog.LevelTag, day, cycleNo int) (int, error) {
	var count int
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM items i
		WHERE i.level = $2 AND i.day = $3
		  AND NOT EXISTS (
			SELECT 1 FROM progress p
			WHERE p.learner_id = $1 AND p.item_id = i.id
			  AND ($4 = 0 OR p.cycle_no = $4)
		  )
	`, learnerID, level, day, cycleNo).Scan(&count)
	return count, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

const progressColumns = `id, learner_id, item_id, cycle_no, level, next_due,
	mastered, correct_streak, wrong_count, last_reviewed_at, created_at, updated_at`

func (t *storeTx) scanProgress(row pgx.Row, op, missing string) (*study.Progress, error) {
	var (
		p   study.Progress
		due *time.Time
	)
	err := row.Scan(
		&p.ID, &p.LearnerID, &p.ItemID, &p.CycleNo, &p.Level, &due,
		&p.Mastered, &p.CorrectStreak, &p.WrongCount, &p.LastReviewedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, notFound(op, missing)
	}
	if err != nil {
		return nil, err
	}
	p.NextDue = dueValue(due)
	return &p, nil
}

func (t *storeTx) GetProgress(ctx context.Context, learnerID string, itemID int64, cycleNo int) (*study.Progress, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+progressColumns+` FROM progress
		WHERE learner_id = $1 AND item_id = $2 AND cycle_no = $3
	`, learnerID, itemID, cycleNo)
	return t.scanProgress(row, "GetProgress", "progress not found")
}

func (t *storeTx) CreateProgress(ctx context.Context, p *study.Progress) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO progress (learner_id, item_id, cycle_no, level, next_due,
			mastered, correct_streak, wrong_count, last_reviewed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, p.LearnerID, p.ItemID, p.CycleNo, p.Level, dueParam(p.NextDue),
		p.Mastered, p.CorrectStreak, p.WrongCount, p.LastReviewedAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("store", "CreateProgress", shared.ErrConflict, "progress row already exists")
	}
	return err
}

func (t *storeTx) UpdateProgress(ctx context.Context, p *study.Progress) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE progress
		SET level = $2, next_due = $3, mastered = $4, correct_streak = $5,
			wrong_count = $6, last_reviewed_at = $7, updated_at = $8
		WHERE id = $1
	`, p.ID, p.Level, dueParam(p.NextDue), p.Mastered, p.CorrectStreak,
		p.WrongCount, p.LastReviewedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("UpdateProgress", "progress not found")
	}
	return nil
}

func (t *storeTx) FirstDueProgress(ctx context.Context, learnerID string, today time.Time, f study.CardFilter, cycleNo int) (*study.Progress, error) {
	row := t.q.QueryRow(ctx, `
		SELECT p.id, p.learner_id, p.item_id, p.cycle_no, p.level, p.next_due,
			p.mastered, p.correct_streak, p.wrong_count, p.last_reviewed_at,
			p.created_at, p.updated_at
		FROM progress p
		JOIN items i ON i.id = p.item_id
		WHERE p.learner_id = $1
		  AND NOT p.mastered
		  AND p.next_due IS NOT NULL AND p.next_due <= $2
		  AND ($3 = 0 OR p.cycle_no = $3)
		  AND ($4::varchar IS NULL OR i.level = $4)
		  AND ($5::int IS NULL OR i.day = $5)
		ORDER BY p.next_due, p.id
		LIMIT 1
	`, learnerID, timeutil.DateOf(today), cycleNo, levelParam(f.Level), f.Day)
	return t.scanProgress(row, "FirstDueProgress", "no due reviews")
}

func (t *storeTx) RemindCandidate(ctx context.Context, learnerID string, level catalog.LevelTag, cycleNo int, windowStart, today time.Time) (*study.Progress, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+progressColumns+` FROM progress p
		WHERE p.learner_id = $1
		  AND p.cycle_no = $2
		  AND NOT p.mastered
		  AND p.item_id IN (
			SELECT l.item_id FROM study_logs l
			WHERE l.learner_id = $1 AND l.level = $3 AND l.cycle_no = $2
			  AND l.studied_at >= $4
		  )
		  AND (p.next_due IS NULL OR p.next_due <= $5 OR p.wrong_count > 0)
		ORDER BY p.wrong_count DESC, p.next_due ASC NULLS FIRST, p.id
		LIMIT 1
	`, learnerID, cycleNo, level, windowStart, timeutil.DateOf(today))
	return t.scanProgress(row, "RemindCandidate", "no remind candidates")
}

// ─────────────────────────────────────────────────────────────────────────────
// Study log
// ─────────────────────────────────────────────────────────────────────────────

func (t *storeTx) AppendStudyLog(ctx context.Context, e *study.StudyLogEntry) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO study_logs (learner_id, item_id, level, cycle_no, grade, studied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, e.LearnerID, e.ItemID, e.Level, e.CycleNo, e.Grade, e.StudiedAt).Scan(&e.ID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cycles
// ─────────────────────────────────────────────────────────────────────────────

const cycleColumns = "id, learner_id, level, cycle_no, status, started_at, completed_at"

func (t *storeTx) scanCycle(row pgx.Row, op, missing string) (*study.Cycle, error) {
	var c study.Cycle
	err := row.Scan(&c.ID, &c.LearnerID, &c.Level, &c.CycleNo, &c.Status, &c.StartedAt, &c.CompletedAt)
	if IsNoRows(err) {
		return nil, notFound(op, missing)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *storeTx) GetLiveCycle(ctx context.Context, learnerID string, level catalog.LevelTag) (*study.Cycle, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+cycleColumns+` FROM cycles
		WHERE learner_id = $1 AND level = $2
		  AND status IN ('active', 'completed_pending_confirm')
	`, learnerID, level)
	return t.scanCycle(row, "GetLiveCycle", "no live cycle")
}

func (t *storeTx) CreateCycle(ctx context.Context, c *study.Cycle) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO cycles (id, learner_id, level, cycle_no, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.LearnerID, c.Level, c.CycleNo, c.Status, c.StartedAt, c.CompletedAt)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("store", "CreateCycle", shared.ErrAlreadyExists, "live cycle already exists")
	}
	return err
}

func (t *storeTx) UpdateCycle(ctx context.Context, c *study.Cycle) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE cycles SET status = $2, completed_at = $3 WHERE id = $1
	`, c.ID, c.Status, c.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("UpdateCycle", "cycle not found")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Day rows
// ─────────────────────────────────────────────────────────────────────────────

const dayColumns = "id, cycle_id, day, status, opened_at, completed_at"

func (t *storeTx) scanDayRow(row pgx.Row, op, missing string) (*study.DayRow, error) {
	var d study.DayRow
	err := row.Scan(&d.ID, &d.CycleID, &d.Day, &d.Status, &d.OpenedAt, &d.CompletedAt)
	if IsNoRows(err) {
		return nil, notFound(op, missing)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *storeTx) ListDayRows(ctx context.Context, cycleID string) ([]*study.DayRow, error) {
	rows, err := t.q.Query(ctx, `
		SELECT `+dayColumns+` FROM day_rows WHERE cycle_id = $1 ORDER BY day
	`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*study.DayRow
	for rows.Next() {
		var d study.DayRow
		if err := rows.Scan(&d.ID, &d.CycleID, &d.Day, &d.Status, &d.OpenedAt, &d.CompletedAt); err != nil {
			return nil, err
		}
		result = append(result, &d)
	}
	return result, rows.Err()
}

func (t *storeTx) CreateDayRows(ctx context.Context, dayRows []*study.DayRow) error {
	for _, d := range dayRows {
		_, err := t.q.Exec(ctx, `
			INSERT INTO day_rows (id, cycle_id, day, status, opened_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, d.ID, d.CycleID, d.Day, d.Status, d.OpenedAt, d.CompletedAt)
		if IsUniqueViolation(err) {
			return shared.NewDomainError("store", "CreateDayRows", shared.ErrAlreadyExists, "day row already exists")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) GetDayRow(ctx context.Context, cycleID string, day int) (*study.DayRow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+dayColumns+` FROM day_rows WHERE cycle_id = $1 AND day = $2
	`, cycleID, day)
	return t.scanDayRow(row, "GetDayRow", "day row not found")
}

func (t *storeTx) GetOpenDay(ctx context.Context, cycleID string) (*study.DayRow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+dayColumns+` FROM day_rows WHERE cycle_id = $1 AND status = 'open'
	`, cycleID)
	return t.scanDayRow(row, "GetOpenDay", "no open day")
}

func (t *storeTx) FirstLockedDay(ctx context.Context, cycleID string) (*study.DayRow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+dayColumns+` FROM day_rows
		WHERE cycle_id = $1 AND status = 'locked'
		ORDER BY day
		LIMIT 1
	`, cycleID)
	return t.scanDayRow(row, "FirstLockedDay", "no locked days")
}

func (t *storeTx) CountCompletedDays(ctx context.Context, cycleID string) (int, error) {
	var count int
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM day_rows WHERE cycle_id = $1 AND status = 'completed'
	`, cycleID).Scan(&count)
	return count, err
}

func (t *storeTx) UpdateDayRow(ctx context.Context, d *study.DayRow) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE day_rows SET status = $2, opened_at = $3, completed_at = $4 WHERE id = $1
	`, d.ID, d.Status, d.OpenedAt, d.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("UpdateDayRow", "day row not found")
	}
	return nil
}

var _ study.StoreTx = (*storeTx)(nil)
