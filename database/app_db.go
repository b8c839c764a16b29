package database

import "context"

// Portable DDL: runs unchanged on postgres and sqlite.
const appSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	key        TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS blasts (
	id            TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	template_name TEXT,
	total         INTEGER NOT NULL DEFAULT 0,
	sent          INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	results       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blasts_created_at ON blasts (created_at);
`

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, appSchema)
	return err
}
