package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Courier store.
var Migrations = migrate.NewGroup("courier")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_courier_hooks",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_hooks (
    id                 TEXT PRIMARY KEY,
    project_id         TEXT NOT NULL DEFAULT '',
    name               TEXT NOT NULL DEFAULT '',
    endpoint           TEXT NOT NULL DEFAULT '',
    active             BOOLEAN NOT NULL DEFAULT TRUE,
    auth_mode          TEXT NOT NULL DEFAULT 'no_auth',
    format             TEXT NOT NULL DEFAULT 'json',
    subset_fields      TEXT[] NOT NULL DEFAULT '{}',
    payload_template   TEXT NOT NULL DEFAULT '',
    email_notification BOOLEAN NOT NULL DEFAULT FALSE,
    custom_headers     JSONB NOT NULL DEFAULT '{}',
    username           TEXT NOT NULL DEFAULT '',
    password           TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_courier_hooks_project ON courier_hooks (project_id);
CREATE INDEX IF NOT EXISTS idx_courier_hooks_project_active ON courier_hooks (project_id) WHERE active;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_hooks`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_courier_hook_logs",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_hook_logs (
    id              TEXT PRIMARY KEY,
    hook_id         TEXT NOT NULL REFERENCES courier_hooks (id) ON DELETE CASCADE,
    submission_id   BIGINT NOT NULL,
    tries           INT NOT NULL DEFAULT 0,
    state           TEXT NOT NULL DEFAULT 'pending',
    status_code     INT NOT NULL DEFAULT 0,
    message         TEXT NOT NULL DEFAULT '',
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_courier_hook_logs_pair ON courier_hook_logs (hook_id, submission_id);
CREATE INDEX IF NOT EXISTS idx_courier_hook_logs_due ON courier_hook_logs (next_attempt_at) WHERE state = 'pending';
CREATE INDEX IF NOT EXISTS idx_courier_hook_logs_processing ON courier_hook_logs (updated_at) WHERE state = 'processing';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_hook_logs`)
				return err
			},
		},
	)
}
