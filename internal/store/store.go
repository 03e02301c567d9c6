// Package store defines the persistence contracts for per-chat configuration,
// the user dictionary, and the ephemeral pending-result cache, together with a
// thread-safe in-memory implementation used in tests and single-process setups.
// The production implementation backed by PostgreSQL lives in store/postgres.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist. For
// [PendingStore.TakeOnce] it also covers the consumed-already case: a second
// take of the same key behaves exactly like a miss.
var ErrNotFound = errors.New("store: not found")

// Mode is the per-chat processing mode.
type Mode string

const (
	// ModeAuto translates every inbound message immediately.
	ModeAuto Mode = "auto"

	// ModeInteractive replies with a minimal placeholder and defers the real
	// work until the user presses the attached button.
	ModeInteractive Mode = "interactive"

	// ModeOff drops inbound messages without processing.
	ModeOff Mode = "off"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeAuto || m == ModeInteractive || m == ModeOff
}

// ChatSettings holds the per-chat configuration record. A chat that has never
// been configured gets [DefaultSettings].
type ChatSettings struct {
	ChatID      int64
	Primary     string // primary language code, e.g. "ru"
	Secondary   string // secondary language code, e.g. "en"
	Mode        Mode
	VoiceGender string // "male" or "female"
}

// DefaultSettings returns the settings applied to a chat on first interaction.
func DefaultSettings(chatID int64) ChatSettings {
	return ChatSettings{
		ChatID:      chatID,
		Primary:     "ru",
		Secondary:   "en",
		Mode:        ModeAuto,
		VoiceGender: "male",
	}
}

// DictionaryEntry is one user-defined term replacement. Source is stored
// lowercase so lookups are case-insensitive; Target keeps its original casing.
type DictionaryEntry struct {
	Source string
	Target string
}

// SettingsStore persists per-chat configuration.
type SettingsStore interface {
	// GetSettings returns the chat's settings, or [DefaultSettings] when the
	// chat has no stored record yet.
	GetSettings(ctx context.Context, chatID int64) (ChatSettings, error)

	// SetSettings upserts the full settings record.
	SetSettings(ctx context.Context, s ChatSettings) error
}

// DictionaryStore persists per-chat term replacements. At most one entry
// exists per (chat, lowercase source term).
type DictionaryStore interface {
	// GetDictionary returns all entries for the chat, unordered.
	GetDictionary(ctx context.Context, chatID int64) ([]DictionaryEntry, error)

	// UpsertEntry adds or replaces the entry keyed by the lowercased source.
	UpsertEntry(ctx context.Context, chatID int64, e DictionaryEntry) error

	// RemoveEntry deletes the entry; returns [ErrNotFound] if absent.
	RemoveEntry(ctx context.Context, chatID int64, source string) error
}

// PendingStore is the ephemeral one-time-read cache backing interactive mode.
type PendingStore interface {
	// Put stores payload under (chatID, messageID), replacing any previous row.
	Put(ctx context.Context, chatID int64, messageID int, payload string) error

	// TakeOnce atomically reads and deletes the payload. A second call for the
	// same key returns [ErrNotFound].
	TakeOnce(ctx context.Context, chatID int64, messageID int) (string, error)

	// Purge removes rows older than the retention window and reports how many
	// were removed.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Store bundles the three persistence contracts the pipelines consume.
type Store interface {
	SettingsStore
	DictionaryStore
	PendingStore
}
