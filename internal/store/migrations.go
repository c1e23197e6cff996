package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	started_at         DATETIME NOT NULL,
	finished_at        DATETIME,
	status             TEXT NOT NULL DEFAULT 'running',
	message_id         TEXT NOT NULL DEFAULT '',
	newsletter_subject TEXT NOT NULL DEFAULT '',
	article_count      INTEGER NOT NULL DEFAULT 0,
	recipients         TEXT NOT NULL DEFAULT '',
	error              TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS articles (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	title    TEXT NOT NULL,
	summary  TEXT NOT NULL DEFAULT '',
	link     TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS processed_messages (
	message_id   TEXT PRIMARY KEY,
	processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE runs ADD COLUMN summary TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_runs_message_id ON runs(message_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
