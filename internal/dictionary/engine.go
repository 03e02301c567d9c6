// Package dictionary implements the user-dictionary rewrite stage: a pure,
// single-pass substitution of chat-specific terms applied to a message before
// it is handed to a translation provider.
package dictionary

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hitromudr/tg-translator/internal/store"
)

// Apply rewrites text using the chat's dictionary entries and returns the
// substituted text. Entries are tried longest source first so that a short
// term never shadows a longer overlapping phrase. Matching is case-insensitive
// and whole-word (unicode-aware, so Cyrillic terms get proper boundaries —
// regexp `\b` only understands ASCII word characters); the stored target
// casing is inserted verbatim.
//
// Apply is deliberately single-pass per term: a replacement is never
// re-scanned, which rules out runaway substitution chains when one entry's
// target matches another entry's source.
func Apply(text string, entries []store.DictionaryEntry) string {
	if text == "" || len(entries) == 0 {
		return text
	}

	sorted := make([]store.DictionaryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Source) > len(sorted[j].Source)
	})

	result := text
	for _, e := range sorted {
		source := strings.TrimSpace(e.Source)
		if source == "" {
			continue
		}
		result = replaceWholeWord(result, source, e.Target)
	}
	return result
}

// replaceWholeWord replaces every case-insensitive whole-word occurrence of
// term in text with replacement. A match is a whole word when the runes
// immediately before and after it are absent or neither letters nor digits.
func replaceWholeWord(text, term, replacement string) string {
	runes := []rune(text)
	termRunes := []rune(strings.ToLower(term))
	if len(termRunes) == 0 || len(termRunes) > len(runes) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); {
		if matchesAt(runes, termRunes, i) && boundaryAt(runes, i, i+len(termRunes)) {
			b.WriteString(replacement)
			i += len(termRunes)
			continue
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

// matchesAt reports whether the lowered term occurs at rune offset i.
func matchesAt(runes, term []rune, i int) bool {
	if i+len(term) > len(runes) {
		return false
	}
	for j, tr := range term {
		if unicode.ToLower(runes[i+j]) != tr {
			return false
		}
	}
	return true
}

// boundaryAt reports whether [start, end) sits on word boundaries.
func boundaryAt(runes []rune, start, end int) bool {
	if start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if end < len(runes) && isWordRune(runes[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
