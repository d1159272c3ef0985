package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_learners_and_items",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progress_and_study_logs",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_cycles_and_day_rows",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE learners (
	id            UUID PRIMARY KEY,
	username      VARCHAR(50) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE items (
	id         BIGSERIAL PRIMARY KEY,
	level      VARCHAR(3) NOT NULL DEFAULT '',
	day        INTEGER NOT NULL DEFAULT 0,
	topic      TEXT NOT NULL DEFAULT '',
	word       TEXT NOT NULL,
	meaning    TEXT NOT NULL,
	example_en TEXT NOT NULL DEFAULT '',
	example_kr TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_items_level_day ON items (level, day);
`

const migration001Down = `
DROP TABLE IF EXISTS items;
DROP TABLE IF EXISTS learners;
`

const migration002Up = `
CREATE TABLE progress (
	id               BIGSERIAL PRIMARY KEY,
	learner_id       UUID NOT NULL REFERENCES learners (id) ON DELETE CASCADE,
	item_id          BIGINT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
	cycle_no         INTEGER NOT NULL DEFAULT 1,
	level            INTEGER NOT NULL DEFAULT 1,
	next_due         DATE,
	mastered         BOOLEAN NOT NULL DEFAULT FALSE,
	correct_streak   INTEGER NOT NULL DEFAULT 0,
	wrong_count      INTEGER NOT NULL DEFAULT 0,
	last_reviewed_at TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	UNIQUE (learner_id, item_id, cycle_no)
);

CREATE INDEX idx_progress_due ON progress (learner_id, next_due) WHERE NOT mastered;

CREATE TABLE study_logs (
	id         BIGSERIAL PRIMARY KEY,
	learner_id UUID NOT NULL REFERENCES learners (id) ON DELETE CASCADE,
	item_id    BIGINT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
	level      VARCHAR(3) NOT NULL DEFAULT '',
	cycle_no   INTEGER NOT NULL DEFAULT 1,
	grade      VARCHAR(10) NOT NULL,
	studied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_study_logs_window ON study_logs (learner_id, level, cycle_no, studied_at);
`

const migration002Down = `
DROP TABLE IF EXISTS study_logs;
DROP TABLE IF EXISTS progress;
`

const migration003Up = `
CREATE TABLE cycles (
	id           UUID PRIMARY KEY,
	learner_id   UUID NOT NULL REFERENCES learners (id) ON DELETE CASCADE,
	level        VARCHAR(3) NOT NULL,
	cycle_no     INTEGER NOT NULL,
	status       VARCHAR(30) NOT NULL DEFAULT 'active',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ,

	UNIQUE (learner_id, level, cycle_no)
);

-- One live cycle per (learner, level).
CREATE UNIQUE INDEX uq_cycles_live ON cycles (learner_id, level)
	WHERE status IN ('active', 'completed_pending_confirm');

CREATE TABLE day_rows (
	id           UUID PRIMARY KEY,
	cycle_id     UUID NOT NULL REFERENCES cycles (id) ON DELETE CASCADE,
	day          INTEGER NOT NULL CHECK (day BETWEEN 1 AND 30),
	status       VARCHAR(10) NOT NULL DEFAULT 'locked',
	opened_at    TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,

	UNIQUE (cycle_id, day)
);

-- One open day per cycle.
CREATE UNIQUE INDEX uq_day_rows_open ON day_rows (cycle_id)
	WHERE status = 'open';
`

const migration003Down = `
DROP TABLE IF EXISTS day_rows;
DROP TABLE IF EXISTS cycles;
`
