package dictionary

import (
	"slices"
	"testing"

	"github.com/hitromudr/tg-translator/internal/store"
)

func entry(source, target string) store.DictionaryEntry {
	return store.DictionaryEntry{Source: source, Target: target}
}

func TestApply_WholeWordOnly(t *testing.T) {
	got := Apply("an and band", []store.DictionaryEntry{entry("an", "X")})
	if got != "X and band" {
		t.Fatalf("got %q, want %q", got, "X and band")
	}
}

func TestApply_CaseInsensitiveKeepsTargetCasing(t *testing.T) {
	got := Apply("АПДЕЙТ апдейт Апдейт", []store.DictionaryEntry{entry("апдейт", "update")})
	if got != "update update update" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_LongestTermWins(t *testing.T) {
	entries := []store.DictionaryEntry{
		entry("новый год", "New Year"),
		entry("год", "year"),
	}
	got := Apply("скоро новый год", entries)
	if got != "скоро New Year" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_CyrillicBoundaries(t *testing.T) {
	// The term must not fire inside a longer Cyrillic word.
	got := Apply("Яна видела Ян", []store.DictionaryEntry{entry("Ян", "Ian")})
	if got != "Яна видела Ian" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_AdjacentOccurrences(t *testing.T) {
	got := Apply("Ян Ян", []store.DictionaryEntry{entry("Ян", "Ian")})
	if got != "Ian Ian" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_SinglePassNoChaining(t *testing.T) {
	// "a"→"b" runs after "b"→"c" (shorter terms later, equal length here keeps
	// input order); a target must never be rewritten by a later scan of the
	// same entry.
	entries := []store.DictionaryEntry{
		entry("кот", "пёс"),
		entry("пёс", "волк"),
	}
	got := Apply("кот", entries)
	// "кот" → "пёс" (first entry), then the second entry's scan sees "пёс"
	// and rewrites it once: a single additional pass, never a loop.
	if got != "волк" {
		t.Fatalf("got %q", got)
	}

	// The reverse order produces no chain: "пёс"→"волк" finds nothing, then
	// "кот"→"пёс" fires and the result is left alone.
	reversed := []store.DictionaryEntry{
		entry("пёс", "волк"),
		entry("кот", "пёс"),
	}
	if got := Apply("кот", reversed); got != "пёс" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_EmptyInputs(t *testing.T) {
	if got := Apply("", []store.DictionaryEntry{entry("a", "b")}); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := Apply("text", nil); got != "text" {
		t.Fatalf("got %q", got)
	}
	if got := Apply("text", []store.DictionaryEntry{entry("  ", "b")}); got != "text" {
		t.Fatalf("got %q", got)
	}
}

func TestApply_DoesNotMutateInputSlice(t *testing.T) {
	entries := []store.DictionaryEntry{
		entry("b", "2"),
		entry("aa", "11"),
	}
	Apply("aa b", entries)
	if entries[0].Source != "b" {
		t.Fatal("input slice order was mutated")
	}
}

func TestVariations_ConsonantEnding(t *testing.T) {
	forms := Variations("Ян")
	for _, want := range []string{"Ян", "Яна", "Яну", "Яном", "Яне"} {
		if !slices.Contains(forms, want) {
			t.Errorf("missing form %q in %v", want, forms)
		}
	}
}

func TestVariations_IyaEnding(t *testing.T) {
	forms := Variations("Мария")
	for _, want := range []string{"Мария", "Марии", "Марию", "Марией"} {
		if !slices.Contains(forms, want) {
			t.Errorf("missing form %q in %v", want, forms)
		}
	}
}

func TestVariations_LatinPassThrough(t *testing.T) {
	forms := Variations("Ian")
	if len(forms) != 1 || forms[0] != "Ian" {
		t.Fatalf("got %v, want just the input", forms)
	}
}

func TestVariations_Empty(t *testing.T) {
	if forms := Variations("  "); forms != nil {
		t.Fatalf("got %v, want nil", forms)
	}
}
