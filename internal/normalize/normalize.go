// Package normalize cleans up metadata values read from book files.
package normalize

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic maps ISO 639-2/B codes, which language.Parse rejects, to
// their ISO 639-1 equivalents.
var bibliographic = map[string]string{
	"alb": "sq", "arm": "hy", "baq": "eu", "bur": "my", "chi": "zh",
	"cze": "cs", "dut": "nl", "fre": "fr", "geo": "ka", "ger": "de",
	"gre": "el", "ice": "is", "mac": "mk", "mao": "mi", "may": "ms",
	"per": "fa", "rum": "ro", "slo": "sk", "tib": "bo", "wel": "cy",
}

// extraNames covers names books use that are not English display names.
var extraNames = map[string]string{
	"farsi": "fa", "filipino": "tl", "mandarin": "zh", "cantonese": "zh",
}

var namesOnce = sync.OnceValue(func() map[string]string {
	namer := display.English.Languages()
	names := make(map[string]string, len(extraNames)+256)
	for _, tag := range display.Supported.Tags() {
		base, _ := tag.Base()
		if name := namer.Name(base); name != "" {
			names[strings.ToLower(name)] = base.String()
		}
	}
	for name, code := range extraNames {
		names[name] = code
	}
	return names
})

// LanguageCode converts a language as found in book metadata to its ISO
// 639-1 code, or the shortest code the language has. It accepts
//   - ISO 639-1 and 639-2 codes: "en", "eng", "ger"
//   - locale tags: "en-US", "en_GB"
//   - English language names: "English", "GERMAN"
//
// Unrecognized values give "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "\x00", "")))
	if s == "" {
		return ""
	}
	if code, ok := bibliographic[s]; ok {
		return code
	}
	if tag, err := language.Parse(strings.ReplaceAll(s, "_", "-")); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	return namesOnce()[s]
}

// Language returns the English display name of raw, or "".
func Language(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(base)
}

// BookLanguage is the value stored on a book: the language code when raw is
// recognized, else raw trimmed and lower-cased so facets still group it.
func BookLanguage(raw string) string {
	if code := LanguageCode(raw); code != "" {
		return code
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
