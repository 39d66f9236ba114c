package storage

import (
	"context"
	"fmt"
)

// Schema is the DDL for the dispatch queue tables. Applied by integration
// tests and by the worker's --init-schema flag.
const Schema = `
CREATE TABLE IF NOT EXISTS mail_requests (
	request_id       TEXT PRIMARY KEY,
	subject          TEXT NOT NULL,
	from_addr        TEXT NOT NULL,
	reply_to         TEXT NOT NULL,
	return_path      TEXT NOT NULL,
	charset          TEXT NOT NULL,
	body             TEXT NOT NULL,
	status           TEXT NOT NULL CHECK (status IN ('UNSENT', 'SENT', 'FAILED')),
	requested_at     TIMESTAMPTZ NOT NULL,
	sent_at          TIMESTAMPTZ,
	pattern_id       TEXT,
	owner_process_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_mail_requests_dispatch
	ON mail_requests (status, owner_process_id, pattern_id);

CREATE TABLE IF NOT EXISTS recipients (
	request_id TEXT NOT NULL REFERENCES mail_requests (request_id),
	serial     INTEGER NOT NULL,
	kind       TEXT NOT NULL CHECK (kind IN ('TO', 'CC', 'BCC')),
	address    TEXT NOT NULL,
	PRIMARY KEY (request_id, serial)
);

CREATE TABLE IF NOT EXISTS attachments (
	request_id   TEXT NOT NULL REFERENCES mail_requests (request_id),
	serial       INTEGER NOT NULL,
	filename     TEXT NOT NULL,
	content_type TEXT NOT NULL,
	bytes        BYTEA NOT NULL,
	PRIMARY KEY (request_id, serial)
);

CREATE TABLE IF NOT EXISTS templates (
	template_id TEXT NOT NULL,
	lang        TEXT NOT NULL,
	subject     TEXT NOT NULL,
	body        TEXT NOT NULL,
	charset     TEXT NOT NULL,
	PRIMARY KEY (template_id, lang)
);

CREATE TABLE IF NOT EXISTS id_sequences (
	scope      TEXT PRIMARY KEY,
	last_value BIGINT NOT NULL
);
`

// ApplySchema creates the dispatch queue tables if they do not exist.
func ApplySchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
