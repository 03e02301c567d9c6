// Package postgres provides the PostgreSQL-backed implementation of the
// persistence contracts in internal/store. It holds a single [pgxpool.Pool]
// and is safe for concurrent use.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hitromudr/tg-translator/internal/store"
)

// Compile-time assertion that Store satisfies the full persistence contract.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store].
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn, verifies
// connectivity, and runs [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetSettings implements [store.SettingsStore.GetSettings]. A chat without a
// stored record receives [store.DefaultSettings].
func (s *Store) GetSettings(ctx context.Context, chatID int64) (store.ChatSettings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT primary_lang, secondary_lang, mode, voice_gender
		FROM chat_settings WHERE chat_id = $1`, chatID)

	cs := store.ChatSettings{ChatID: chatID}
	err := row.Scan(&cs.Primary, &cs.Secondary, &cs.Mode, &cs.VoiceGender)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.DefaultSettings(chatID), nil
	}
	if err != nil {
		return store.ChatSettings{}, fmt.Errorf("postgres store: get settings: %w", err)
	}
	return cs, nil
}

// SetSettings implements [store.SettingsStore.SetSettings].
func (s *Store) SetSettings(ctx context.Context, cs store.ChatSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_settings (chat_id, primary_lang, secondary_lang, mode, voice_gender)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			primary_lang = EXCLUDED.primary_lang,
			secondary_lang = EXCLUDED.secondary_lang,
			mode = EXCLUDED.mode,
			voice_gender = EXCLUDED.voice_gender`,
		cs.ChatID, cs.Primary, cs.Secondary, cs.Mode, cs.VoiceGender)
	if err != nil {
		return fmt.Errorf("postgres store: set settings: %w", err)
	}
	return nil
}

// GetDictionary implements [store.DictionaryStore.GetDictionary].
func (s *Store) GetDictionary(ctx context.Context, chatID int64) ([]store.DictionaryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_term, target_term FROM dictionary WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get dictionary: %w", err)
	}
	defer rows.Close()

	var entries []store.DictionaryEntry
	for rows.Next() {
		var e store.DictionaryEntry
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("postgres store: scan dictionary row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate dictionary: %w", err)
	}
	return entries, nil
}

// UpsertEntry implements [store.DictionaryStore.UpsertEntry]. The source term
// is lowered so the (chat_id, source_term) key is case-insensitive.
func (s *Store) UpsertEntry(ctx context.Context, chatID int64, e store.DictionaryEntry) error {
	source := strings.ToLower(strings.TrimSpace(e.Source))
	target := strings.TrimSpace(e.Target)
	if source == "" || target == "" {
		return fmt.Errorf("postgres store: upsert entry: empty source or target")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dictionary (chat_id, source_term, target_term)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, source_term) DO UPDATE SET
			target_term = EXCLUDED.target_term`,
		chatID, source, target)
	if err != nil {
		return fmt.Errorf("postgres store: upsert entry: %w", err)
	}
	return nil
}

// RemoveEntry implements [store.DictionaryStore.RemoveEntry].
func (s *Store) RemoveEntry(ctx context.Context, chatID int64, source string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM dictionary WHERE chat_id = $1 AND source_term = $2`,
		chatID, strings.ToLower(strings.TrimSpace(source)))
	if err != nil {
		return fmt.Errorf("postgres store: remove entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Put implements [store.PendingStore.Put].
func (s *Store) Put(ctx context.Context, chatID int64, messageID int, payload string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_results (chat_id, message_id, payload, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chat_id, message_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		chatID, messageID, payload)
	if err != nil {
		return fmt.Errorf("postgres store: put pending: %w", err)
	}
	return nil
}

// TakeOnce implements [store.PendingStore.TakeOnce]. The DELETE ... RETURNING
// statement makes read-and-consume a single atomic operation: of two
// concurrent takes for the same key, exactly one sees the payload.
func (s *Store) TakeOnce(ctx context.Context, chatID int64, messageID int) (string, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM pending_results
		WHERE chat_id = $1 AND message_id = $2
		RETURNING payload`, chatID, messageID)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: take pending: %w", err)
	}
	return payload, nil
}

// Purge implements [store.PendingStore.Purge].
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pending_results WHERE created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("postgres store: purge pending: %w", err)
	}
	return tag.RowsAffected(), nil
}
