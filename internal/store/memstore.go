package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

type pendingKey struct {
	chatID    int64
	messageID int
}

type pendingRow struct {
	payload   string
	createdAt time.Time
}

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for tests and single-process deployments without Postgres.
type MemStore struct {
	mu       sync.Mutex
	settings map[int64]ChatSettings
	dicts    map[int64]map[string]DictionaryEntry
	pending  map[pendingKey]pendingRow

	now func() time.Time // test seam
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		settings: make(map[int64]ChatSettings),
		dicts:    make(map[int64]map[string]DictionaryEntry),
		pending:  make(map[pendingKey]pendingRow),
		now:      time.Now,
	}
}

// GetSettings implements [SettingsStore.GetSettings].
func (s *MemStore) GetSettings(ctx context.Context, chatID int64) (ChatSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.settings[chatID]; ok {
		return cs, nil
	}
	return DefaultSettings(chatID), nil
}

// SetSettings implements [SettingsStore.SetSettings].
func (s *MemStore) SetSettings(ctx context.Context, cs ChatSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[cs.ChatID] = cs
	return nil
}

// GetDictionary implements [DictionaryStore.GetDictionary].
func (s *MemStore) GetDictionary(ctx context.Context, chatID int64) ([]DictionaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]DictionaryEntry, 0, len(s.dicts[chatID]))
	for _, e := range s.dicts[chatID] {
		entries = append(entries, e)
	}
	return entries, nil
}

// UpsertEntry implements [DictionaryStore.UpsertEntry].
func (s *MemStore) UpsertEntry(ctx context.Context, chatID int64, e DictionaryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dicts[chatID] == nil {
		s.dicts[chatID] = make(map[string]DictionaryEntry)
	}
	e.Source = strings.ToLower(strings.TrimSpace(e.Source))
	e.Target = strings.TrimSpace(e.Target)
	s.dicts[chatID][e.Source] = e
	return nil
}

// RemoveEntry implements [DictionaryStore.RemoveEntry].
func (s *MemStore) RemoveEntry(ctx context.Context, chatID int64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(source))
	if _, ok := s.dicts[chatID][key]; !ok {
		return ErrNotFound
	}
	delete(s.dicts[chatID], key)
	return nil
}

// Put implements [PendingStore.Put].
func (s *MemStore) Put(ctx context.Context, chatID int64, messageID int, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[pendingKey{chatID, messageID}] = pendingRow{
		payload:   payload,
		createdAt: s.now(),
	}
	return nil
}

// TakeOnce implements [PendingStore.TakeOnce]. Read and delete happen under a
// single lock acquisition, so two concurrent takes cannot both succeed.
func (s *MemStore) TakeOnce(ctx context.Context, chatID int64, messageID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey{chatID, messageID}
	row, ok := s.pending[key]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.pending, key)
	return row.payload, nil
}

// Purge implements [PendingStore.Purge].
func (s *MemStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var removed int64
	for key, row := range s.pending {
		if row.createdAt.Before(cutoff) {
			delete(s.pending, key)
			removed++
		}
	}
	return removed, nil
}
