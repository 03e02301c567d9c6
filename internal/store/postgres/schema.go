package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlChatSettings = `
CREATE TABLE IF NOT EXISTS chat_settings (
    chat_id        BIGINT  PRIMARY KEY,
    primary_lang   TEXT    NOT NULL DEFAULT 'ru',
    secondary_lang TEXT    NOT NULL DEFAULT 'en',
    mode           TEXT    NOT NULL DEFAULT 'auto',
    voice_gender   TEXT    NOT NULL DEFAULT 'male'
);
`

const ddlDictionary = `
CREATE TABLE IF NOT EXISTS dictionary (
    chat_id     BIGINT NOT NULL,
    source_term TEXT   NOT NULL,
    target_term TEXT   NOT NULL,
    PRIMARY KEY (chat_id, source_term)
);
`

const ddlPendingResults = `
CREATE TABLE IF NOT EXISTS pending_results (
    chat_id    BIGINT       NOT NULL,
    message_id BIGINT       NOT NULL,
    payload    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (chat_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_pending_results_created_at
    ON pending_results (created_at);
`

// Migrate creates all required tables and indexes if they do not exist.
// It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlChatSettings, ddlDictionary, ddlPendingResults} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	return nil
}
