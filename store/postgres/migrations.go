package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the portcullis store
// (PostgreSQL).
var Migrations = migrate.NewGroup("portcullis")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_permissions (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    module          TEXT NOT NULL,
    actions         JSONB NOT NULL DEFAULT '[]',
    resource_type   TEXT NOT NULL DEFAULT '',
    resource_id     TEXT NOT NULL DEFAULT '',
    condition       TEXT NOT NULL DEFAULT '',
    is_system       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_portcullis_permissions_module ON portcullis_permissions (module);
CREATE INDEX IF NOT EXISTS idx_portcullis_permissions_actions ON portcullis_permissions USING GIN (actions);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_roles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    level           INTEGER NOT NULL DEFAULT 0,
    is_system       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_portcullis_roles_level ON portcullis_roles (level DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_roles`)
				return err
			},
		},
		&migrate.Migration{
			// permission_id carries no foreign key: deleting a permission
			// leaves dangling references that evaluation skips.
			Name:    "create_role_permissions",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_role_permissions (
    role_id         TEXT NOT NULL REFERENCES portcullis_roles(id) ON DELETE CASCADE,
    permission_id   TEXT NOT NULL,

    PRIMARY KEY (role_id, permission_id)
);

CREATE INDEX IF NOT EXISTS idx_portcullis_role_perms_perm ON portcullis_role_permissions (permission_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_role_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_user_permissions",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_user_permissions (
    user_id                 TEXT PRIMARY KEY,
    role_id                 TEXT,
    custom_permissions      JSONB NOT NULL DEFAULT '[]',
    restricted_permissions  JSONB NOT NULL DEFAULT '[]',
    resource_permissions    JSONB NOT NULL DEFAULT '[]',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_portcullis_user_perms_role ON portcullis_user_permissions (role_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_user_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_actors",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_actors (
    id              TEXT PRIMARY KEY,
    display_name    TEXT NOT NULL DEFAULT '',
    email           TEXT NOT NULL DEFAULT '',
    role_name       TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_portcullis_actors_role ON portcullis_actors (role_name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_actors`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_decision_logs",
			Version: "20260301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS portcullis_decision_logs (
    id              TEXT PRIMARY KEY,
    actor_id        TEXT NOT NULL,
    module          TEXT NOT NULL,
    action          TEXT NOT NULL,
    resource_type   TEXT NOT NULL DEFAULT '',
    resource_id     TEXT NOT NULL DEFAULT '',
    granted         BOOLEAN NOT NULL,
    reason          TEXT NOT NULL,
    detail          TEXT NOT NULL DEFAULT '',
    eval_time_ns    BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_portcullis_dlog_actor ON portcullis_decision_logs (actor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_portcullis_dlog_reason ON portcullis_decision_logs (reason);
CREATE INDEX IF NOT EXISTS idx_portcullis_dlog_created ON portcullis_decision_logs (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS portcullis_decision_logs`)
				return err
			},
		},
	)
}
