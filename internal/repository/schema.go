package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema - DDL хранилища. Идемпотентна, применяется через Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id                  UUID PRIMARY KEY,
	tenant_id           TEXT NOT NULL,
	whatsapp_phone      TEXT,
	instagram_id        TEXT,
	messenger_id        TEXT,
	display_name        TEXT NOT NULL,
	email               TEXT,
	status              TEXT NOT NULL DEFAULT 'active',
	crm_stage           TEXT,
	crm_partner_id      TEXT,
	crm_lead_id         TEXT,
	notes               TEXT,
	attributes          JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_interaction_at TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS contacts_tenant_whatsapp_active_uq
	ON contacts (tenant_id, whatsapp_phone)
	WHERE status = 'active' AND whatsapp_phone IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS contacts_tenant_instagram_active_uq
	ON contacts (tenant_id, instagram_id)
	WHERE status = 'active' AND instagram_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS contacts_tenant_messenger_active_uq
	ON contacts (tenant_id, messenger_id)
	WHERE status = 'active' AND messenger_id IS NOT NULL;

DROP INDEX IF EXISTS contacts_tenant_crm_partner_active_uq;

CREATE TABLE IF NOT EXISTS conversations (
	id              UUID PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	channel         TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT 'direct',
	participants    UUID[] NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'active',
	last_message_id UUID,
	version         BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS conversations_participants_gin
	ON conversations USING GIN (participants);

CREATE INDEX IF NOT EXISTS conversations_tenant_channel_status_idx
	ON conversations (tenant_id, channel, status);

CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	conversation_id UUID NOT NULL REFERENCES conversations (id) ON DELETE RESTRICT,
	tenant_id       TEXT NOT NULL,
	sender_id       UUID NOT NULL,
	sender_kind     TEXT NOT NULL DEFAULT 'contact',
	content         TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT 'text',
	direction       TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	external_id     TEXT,
	timestamp       TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS messages_conversation_timestamp_idx
	ON messages (conversation_id, timestamp DESC);

CREATE INDEX IF NOT EXISTS messages_tenant_sender_idx
	ON messages (tenant_id, sender_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	event_time  TIMESTAMPTZ NOT NULL,
	tenant_id   TEXT NOT NULL,
	actor_id    UUID,
	actor_kind  TEXT NOT NULL,
	subject_id  UUID,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL DEFAULT '{}'::jsonb
);
`

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
