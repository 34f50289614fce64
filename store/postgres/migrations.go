package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the "pg" executor used by Migrate.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the Patron store.
var Migrations = migrate.NewGroup("patron")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_patron_profiles",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_profiles (
    id                    TEXT PRIMARY KEY,
    username              TEXT,
    display_name          TEXT NOT NULL DEFAULT '',
    bio                   TEXT NOT NULL DEFAULT '',
    avatar_url            TEXT NOT NULL DEFAULT '',
    banner_url            TEXT NOT NULL DEFAULT '',
    date_of_birth         TIMESTAMPTZ,
    is_age_verified       BOOLEAN NOT NULL DEFAULT FALSE,
    is_creator_verified   BOOLEAN NOT NULL DEFAULT FALSE,
    subscription_price    BIGINT NOT NULL DEFAULT 0,
    subscription_currency TEXT NOT NULL DEFAULT 'usd',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS patron_profiles_username_key ON patron_profiles (lower(username));
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_profiles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_roles",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_roles (
    profile_id TEXT NOT NULL REFERENCES patron_profiles (id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (profile_id, role)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_posts",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_posts (
    id           TEXT PRIMARY KEY,
    creator_id   TEXT NOT NULL,
    content      TEXT NOT NULL DEFAULT '',
    media        JSONB NOT NULL DEFAULT '[]',
    visibility   TEXT NOT NULL,
    ppv_price    BIGINT NOT NULL DEFAULT 0,
    ppv_currency TEXT NOT NULL DEFAULT 'usd',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK ((visibility = 'pay_per_view') = (ppv_price > 0))
);

CREATE INDEX IF NOT EXISTS patron_posts_creator_idx ON patron_posts (creator_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_posts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_subscriptions",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_subscriptions (
    id                   TEXT PRIMARY KEY,
    fan_id               TEXT NOT NULL,
    creator_id           TEXT NOT NULL,
    status               TEXT NOT NULL,
    current_period_start TIMESTAMPTZ NOT NULL,
    current_period_end   TIMESTAMPTZ NOT NULL,
    canceled_at          TIMESTAMPTZ,
    provider_ref         TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS patron_subscriptions_active_key
    ON patron_subscriptions (fan_id, creator_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS patron_subscriptions_creator_idx ON patron_subscriptions (creator_id, status);
CREATE INDEX IF NOT EXISTS patron_subscriptions_period_idx
    ON patron_subscriptions (current_period_end) WHERE status = 'active';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_purchases",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_purchases (
    id          TEXT PRIMARY KEY,
    fan_id      TEXT NOT NULL,
    post_id     TEXT NOT NULL,
    creator_id  TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    currency    TEXT NOT NULL,
    payment_ref TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (fan_id, post_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_purchases`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_tips",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_tips (
    id          TEXT PRIMARY KEY,
    fan_id      TEXT NOT NULL,
    creator_id  TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    currency    TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    payment_ref TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS patron_tips_creator_idx ON patron_tips (creator_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_tips`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_transactions",
			Version: "20260101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_transactions (
    id          TEXT PRIMARY KEY,
    creator_id  TEXT NOT NULL,
    fan_id      TEXT,
    type        TEXT NOT NULL,
    gross       BIGINT NOT NULL,
    fee         BIGINT NOT NULL,
    net         BIGINT NOT NULL,
    currency    TEXT NOT NULL,
    fee_rate    INT NOT NULL,
    source_id   TEXT,
    payment_ref TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (net + fee = gross)
);

CREATE INDEX IF NOT EXISTS patron_transactions_creator_idx ON patron_transactions (creator_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_settings",
			Version: "20260101000008",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_settings (
    singleton              BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
    fee_rate               INT NOT NULL,
    min_subscription_price BIGINT NOT NULL,
    max_subscription_price BIGINT NOT NULL,
    currency               TEXT NOT NULL,
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_by             TEXT
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_settings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_reports",
			Version: "20260101000009",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_reports (
    id               TEXT PRIMARY KEY,
    reporter_id      TEXT NOT NULL,
    reported_user_id TEXT,
    reported_post_id TEXT,
    reason           TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'pending',
    admin_notes      TEXT NOT NULL DEFAULT '',
    reviewed_by      TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS patron_reports_status_idx ON patron_reports (status, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_reports`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_notifications",
			Version: "20260101000010",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_notifications (
    id           TEXT PRIMARY KEY,
    recipient_id TEXT NOT NULL,
    type         TEXT NOT NULL,
    title        TEXT NOT NULL,
    message      TEXT NOT NULL DEFAULT '',
    related_id   TEXT,
    read         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS patron_notifications_recipient_idx
    ON patron_notifications (recipient_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_notifications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_conversations",
			Version: "20260101000011",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_conversations (
    id              TEXT PRIMARY KEY,
    participant_a   TEXT NOT NULL,
    participant_b   TEXT NOT NULL,
    last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (participant_a, participant_b),
    CHECK (participant_a < participant_b)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_conversations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_patron_messages",
			Version: "20260101000012",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS patron_messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES patron_conversations (id) ON DELETE CASCADE,
    sender_id       TEXT NOT NULL,
    content         TEXT NOT NULL,
    read            BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS patron_messages_conversation_idx ON patron_messages (conversation_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS patron_messages`)
				return err
			},
		},
	)
}
