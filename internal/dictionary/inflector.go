package dictionary

import (
	"strings"
	"unicode"
)

// Variations generates probable Russian case forms for a word assumed to be in
// the nominative case, so that a single /dict add covers the inflected forms a
// name takes in running text. The rules are heuristic and favour names; for
// words in other scripts the returned set contains just the word itself.
func Variations(word string) []string {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil
	}

	seen := map[string]bool{word: true}
	add := func(forms ...string) {
		for _, f := range forms {
			seen[f] = true
		}
	}

	runes := []rune(word)
	last := runes[len(runes)-1]
	base := string(runes[:len(runes)-1])

	switch {
	// Masculine ending in a consonant (Ян, Иван): Яна, Яну, Яном, Яне.
	case strings.ContainsRune("бвгджзклмнпрстфхцчшщ", unicode.ToLower(last)):
		add(word+"а", word+"у", word+"ом", word+"е")

	// Masculine ending in й (Дмитрий, Андрей): Дмитрия, Дмитрию, Дмитрием, Дмитрии.
	case unicode.ToLower(last) == 'й':
		add(base+"я", base+"ю", base+"ем", base+"е", base+"и")

	// Ending in а (Анна, Никита): Анны, Анне, Анну, Анной.
	case unicode.ToLower(last) == 'а':
		add(base+"ы", base+"е", base+"у", base+"ой")

	// Ending in я (Мария, Илья).
	case unicode.ToLower(last) == 'я':
		if len(runes) > 2 && unicode.ToLower(runes[len(runes)-2]) == 'и' {
			// -ия names (Мария): Марии, Марию, Марией.
			add(base+"и", base+"ю", base+"ей")
		} else {
			// Plain -я (Илья, Таня): Ильи, Илье, Илью, Ильей.
			add(base+"и", base+"е", base+"ю", base+"ей", base+"ёй")
		}

	// Ending in ь — masculine (Игорь) and feminine (Любовь) forms both added.
	case unicode.ToLower(last) == 'ь':
		add(base+"я", base+"ю", base+"ем", base+"е")
		add(base+"и", word+"ю")
	}

	out := make([]string, 0, len(seen))
	out = append(out, word)
	for f := range seen {
		if f != word {
			out = append(out, f)
		}
	}
	return out
}
