// Package lang holds the language code table used for translation direction
// decisions and settings validation: canonical codes, human-readable names,
// convenience aliases, and the set of languages written in Cyrillic script.
package lang

import (
	"sort"
	"strings"
	"unicode"
)

// supported maps canonical language codes to English display names. The table
// mirrors the languages the translation backends accept; it is intentionally a
// static list so that settings validation works offline.
var supported = map[string]string{
	"af": "afrikaans", "ar": "arabic", "az": "azerbaijani",
	"be": "belarusian", "bg": "bulgarian", "bn": "bengali", "bs": "bosnian",
	"ca": "catalan", "cs": "czech", "cy": "welsh",
	"da": "danish", "de": "german", "el": "greek", "en": "english",
	"eo": "esperanto", "es": "spanish", "et": "estonian", "eu": "basque",
	"fa": "persian", "fi": "finnish", "fr": "french",
	"ga": "irish", "gl": "galician", "he": "hebrew", "hi": "hindi",
	"hr": "croatian", "hu": "hungarian", "hy": "armenian",
	"id": "indonesian", "is": "icelandic", "it": "italian",
	"ja": "japanese", "ka": "georgian", "kk": "kazakh", "km": "khmer",
	"ko": "korean", "ky": "kyrgyz",
	"la": "latin", "lt": "lithuanian", "lv": "latvian",
	"mk": "macedonian", "mn": "mongolian", "ms": "malay", "mt": "maltese",
	"nl": "dutch", "no": "norwegian",
	"pl": "polish", "pt": "portuguese", "ro": "romanian", "ru": "russian",
	"sk": "slovak", "sl": "slovenian", "sq": "albanian", "sr": "serbian",
	"sv": "swedish", "sw": "swahili",
	"tg": "tajik", "th": "thai", "tr": "turkish",
	"uk": "ukrainian", "ur": "urdu", "uz": "uzbek",
	"vi": "vietnamese", "zh-CN": "chinese (simplified)", "zh-TW": "chinese (traditional)",
}

// aliases maps common non-canonical inputs to canonical codes.
// Kept for user convenience in /lang commands ("jp" instead of "ja" etc.).
var aliases = map[string]string{
	"cn": "zh-CN",
	"ua": "uk",
	"cz": "cs",
	"jp": "ja",
	"kr": "ko",
	"rs": "sr",
	"by": "be",
}

// cyrillicLangs lists languages whose standard orthography is Cyrillic. Used
// by the direction resolver's script heuristic.
var cyrillicLangs = map[string]bool{
	"ru": true, "uk": true, "be": true, "sr": true, "bg": true,
	"mk": true, "kk": true, "ky": true, "tg": true, "mn": true,
}

// Normalize resolves input (a code, alias, or English name, any case) to a
// canonical language code. It returns "" when the input is not recognised.
func Normalize(input string) string {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return ""
	}
	if canon, ok := aliases[in]; ok {
		return canon
	}
	for code := range supported {
		if strings.ToLower(code) == in {
			return code
		}
	}
	for code, name := range supported {
		if name == in {
			return code
		}
	}
	return ""
}

// IsSupported reports whether input resolves to a known language.
func IsSupported(input string) bool {
	return Normalize(input) != ""
}

// Name returns the English display name for a canonical code, or the code
// itself when unknown. Used to build LLM translation prompts.
func Name(code string) string {
	if name, ok := supported[code]; ok {
		return name
	}
	return code
}

// List returns "name: code" lines sorted by name, for the /lang list command
// and the sidecar /languages endpoint.
func List() []string {
	lines := make([]string, 0, len(supported))
	for code, name := range supported {
		lines = append(lines, name+": "+code)
	}
	sort.Strings(lines)
	return lines
}

// UsesCyrillic reports whether the language's standard script is Cyrillic.
func UsesCyrillic(code string) bool {
	return cyrillicLangs[strings.ToLower(code)]
}

// ContainsCyrillic reports whether text contains at least one Cyrillic rune.
func ContainsCyrillic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
