package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemStore_SettingsDefaults(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	cs, err := s.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if cs.Primary != "ru" || cs.Secondary != "en" || cs.Mode != ModeAuto {
		t.Fatalf("unexpected defaults: %+v", cs)
	}

	cs.Primary, cs.Secondary = "de", "fr"
	cs.Mode = ModeInteractive
	if err := s.SetSettings(ctx, cs); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	got, err := s.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Primary != "de" || got.Mode != ModeInteractive {
		t.Fatalf("settings not persisted: %+v", got)
	}
}

func TestMemStore_DictionaryCaseInsensitiveKey(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.UpsertEntry(ctx, 1, DictionaryEntry{Source: "Апдейт", Target: "update"}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	// Re-adding with different casing must replace, not duplicate.
	if err := s.UpsertEntry(ctx, 1, DictionaryEntry{Source: "апдейт", Target: "Update"}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	entries, err := s.GetDictionary(ctx, 1)
	if err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Target != "Update" {
		t.Fatalf("target = %q, want replacement to win", entries[0].Target)
	}

	if err := s.RemoveEntry(ctx, 1, "АПДЕЙТ"); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if err := s.RemoveEntry(ctx, 1, "апдейт"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_TakeOnceConsumesExactlyOnce(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Put(ctx, 7, 100, "payload"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.TakeOnce(ctx, 7, 100)
	if err != nil {
		t.Fatalf("first TakeOnce: %v", err)
	}
	if got != "payload" {
		t.Fatalf("payload = %q", got)
	}

	if _, err := s.TakeOnce(ctx, 7, 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second TakeOnce err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_TakeOnceConcurrent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Put(ctx, 7, 100, "payload"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan string, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if payload, err := s.TakeOnce(ctx, 7, 100); err == nil {
				wins <- payload
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("successful takes = %d, want exactly 1", count)
	}
}

func TestMemStore_PurgeRemovesOnlyExpired(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Put(ctx, 1, 1, "old"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.now = func() time.Time { return base.Add(23 * time.Hour) }
	if err := s.Put(ctx, 1, 2, "fresh"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.now = func() time.Time { return base.Add(25 * time.Hour) }
	removed, err := s.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := s.TakeOnce(ctx, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatal("expired row should be gone")
	}
	if _, err := s.TakeOnce(ctx, 1, 2); err != nil {
		t.Fatalf("fresh row should survive: %v", err)
	}
}
