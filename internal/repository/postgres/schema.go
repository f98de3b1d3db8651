package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
    id         BIGSERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id),
    title      TEXT NOT NULL,
    date       TIMESTAMPTZ NOT NULL,
    status     TEXT NOT NULL DEFAULT 'not-started',
    important  BOOLEAN NOT NULL DEFAULT FALSE,
    notes      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);

CREATE TABLE IF NOT EXISTS task_links (
    task_id  BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    position INT NOT NULL,
    id       TEXT NOT NULL,
    title    TEXT NOT NULL DEFAULT '',
    url      TEXT NOT NULL,
    PRIMARY KEY (task_id, position)
);

CREATE TABLE IF NOT EXISTS task_attachments (
    task_id  BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    position INT NOT NULL,
    id       TEXT NOT NULL,
    type     TEXT NOT NULL,
    name     TEXT NOT NULL DEFAULT '',
    url      TEXT NOT NULL,
    PRIMARY KEY (task_id, position)
);
`

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
