package bookfile

import (
	"embed"
	"io/fs"
	"strings"
)

const resourceRoot = "resources/"

//go:embed resources
var resources embed.FS

// HelpFile returns the built-in help book for locale, falling back from
// "lang_COUNTRY" to "lang" and finally to English.
func HelpFile(locale string) File {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "-", "_")
	lang, _, _ := strings.Cut(locale, "_")

	for _, candidate := range []string{locale, lang} {
		if candidate == "" {
			continue
		}
		f := ResourceFile("help/MiniHelp." + candidate + ".fb2")
		if _, err := fs.Stat(resources, resourceRoot+f.Path); err == nil {
			return f
		}
	}
	return ResourceFile("help/MiniHelp.en.fb2")
}
