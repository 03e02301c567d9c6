package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitromudr/tg-translator/internal/resilience"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/pkg/provider/translate"
	translatemock "github.com/hitromudr/tg-translator/pkg/provider/translate/mock"
)

func newGroup(providers map[string]translate.Provider, order ...string) *resilience.FallbackGroup[translate.Provider] {
	fg := resilience.NewFallbackGroup[translate.Provider](resilience.FallbackConfig{})
	for _, name := range order {
		fg.AddTier(name, providers[name])
	}
	return fg
}

func seedStore(t *testing.T, chatID int64, settings store.ChatSettings, entries ...store.DictionaryEntry) *store.MemStore {
	t.Helper()
	st := store.NewMemStore()
	settings.ChatID = chatID
	if err := st.SetSettings(context.Background(), settings); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	for _, e := range entries {
		if err := st.UpsertEntry(context.Background(), chatID, e); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
	return st
}

func TestTranslateMessage_CyrillicPrimaryNoProbes(t *testing.T) {
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, text, source, target string) (string, error) {
			if source != "ru" || target != "en" {
				t.Errorf("direction %s->%s, want ru->en", source, target)
			}
			return "hello update", nil
		},
	}
	st := seedStore(t, 1,
		store.ChatSettings{Primary: "ru", Secondary: "en", Mode: store.ModeAuto},
		store.DictionaryEntry{Source: "апдейт", Target: "update"})
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": prov}, "llm"))

	res, err := p.TranslateMessage(context.Background(), 1, "привет апдейт")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello update" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Fallback {
		t.Fatal("primary tier result must not be marked as fallback")
	}

	// One translation call, dictionary already applied, no probe.
	calls := prov.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	if calls[0].Text != "привет update" {
		t.Fatalf("provider got %q, want dictionary-substituted text", calls[0].Text)
	}
}

func TestTranslateMessage_ProbeReuse(t *testing.T) {
	// Primary "fr" forces a probe. The probe translates en->fr; its output is
	// reused because the dictionary leaves the text untouched.
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, text, source, target string) (string, error) {
			return "bonjour tout le monde ici", nil
		},
	}
	st := seedStore(t, 2, store.ChatSettings{Primary: "fr", Secondary: "en", Mode: store.ModeAuto})
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": prov}, "llm"))

	res, err := p.TranslateMessage(context.Background(), 2, "hello everyone out there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "bonjour tout le monde ici" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Tier != TierProbe {
		t.Fatalf("tier = %q, want %q", res.Tier, TierProbe)
	}
	if res.Source != "en" || res.Target != "fr" {
		t.Fatalf("direction %s->%s, want en->fr", res.Source, res.Target)
	}
	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider called %d times, want 1 (probe only)", got)
	}
}

func TestTranslateMessage_DictionaryChangeDisablesProbeReuse(t *testing.T) {
	var texts []string
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, text, source, target string) (string, error) {
			texts = append(texts, text)
			return "traduit: " + text, nil
		},
	}
	st := seedStore(t, 3,
		store.ChatSettings{Primary: "fr", Secondary: "en", Mode: store.ModeAuto},
		store.DictionaryEntry{Source: "boss", Target: "Michel"})
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": prov}, "llm"))

	res, err := p.TranslateMessage(context.Background(), 3, "tell the boss everything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tier == TierProbe {
		t.Fatal("probe result must not be reused when the dictionary changed the text")
	}
	if len(texts) != 2 {
		t.Fatalf("provider called %d times, want 2 (probe + real)", len(texts))
	}
	if texts[1] != "tell the Michel everything" {
		t.Fatalf("second call got %q, want substituted text", texts[1])
	}
}

func TestTranslateMessage_FallbackTagging(t *testing.T) {
	primary := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "", errors.New("rate limited")
		},
	}
	secondary := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, text, _, _ string) (string, error) {
			return "hi there", nil
		},
	}
	st := seedStore(t, 4, store.ChatSettings{Primary: "ru", Secondary: "en", Mode: store.ModeAuto})
	p := NewPipeline(st, newGroup(map[string]translate.Provider{
		"llm": primary, "googleweb": secondary,
	}, "llm", "googleweb"))

	res, err := p.TranslateMessage(context.Background(), 4, "привет")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tier != "googleweb" || !res.Fallback {
		t.Fatalf("tier = %q fallback = %v, want googleweb/true", res.Tier, res.Fallback)
	}
}

func TestTranslateMessage_AllTiersFail(t *testing.T) {
	failing := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "", errors.New("down")
		},
	}
	st := seedStore(t, 5, store.ChatSettings{Primary: "ru", Secondary: "en", Mode: store.ModeAuto})
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": failing}, "llm"))

	_, err := p.TranslateMessage(context.Background(), 5, "привет")
	if !errors.Is(err, resilience.ErrAllProvidersExhausted) {
		t.Fatalf("err = %v, want ErrAllProvidersExhausted", err)
	}
}

func TestTranslateMessage_EmptyText(t *testing.T) {
	st := store.NewMemStore()
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": &translatemock.Provider{}}, "llm"))
	if _, err := p.TranslateMessage(context.Background(), 6, "   "); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestTranslatePair_BypassesSettings(t *testing.T) {
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, text, source, target string) (string, error) {
			if source != "de" || target != "ja" {
				t.Errorf("direction %s->%s, want de->ja", source, target)
			}
			return strings.ToUpper(text), nil
		},
	}
	st := store.NewMemStore()
	p := NewPipeline(st, newGroup(map[string]translate.Provider{"llm": prov}, "llm"))

	res, err := p.TranslatePair(context.Background(), "hallo", "de", "ja")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "HALLO" {
		t.Fatalf("text = %q", res.Text)
	}
}
