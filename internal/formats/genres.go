package formats

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// genreGroups names the top level tag of FB2 genre code prefixes.
var genreGroups = map[string]string{
	"sf":         "Science Fiction",
	"det":        "Detective",
	"thriller":   "Thriller",
	"prose":      "Prose",
	"love":       "Romance",
	"adv":        "Adventure",
	"adventure":  "Adventure",
	"child":      "Children",
	"children":   "Children",
	"poetry":     "Poetry",
	"dramaturgy": "Drama",
	"antique":    "Antique",
	"sci":        "Science",
	"science":    "Science",
	"comp":       "Computers",
	"computers":  "Computers",
	"ref":        "Reference",
	"reference":  "Reference",
	"nonf":       "Nonfiction",
	"nonfiction": "Nonfiction",
	"religion":   "Religion",
	"humor":      "Humor",
	"home":       "Home",
}

// genreTag maps an FB2 genre code such as "sf_fantasy" to a tag path
// ("Science Fiction" / "Fantasy"). Unknown groups become a single title-cased tag.
func genreTag(code string) *domain.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	title := cases.Title(language.English)

	group, rest, _ := strings.Cut(code, "_")
	name, ok := genreGroups[group]
	if !ok {
		return domain.NewTag(title.String(strings.ReplaceAll(code, "_", " ")))
	}
	if rest == "" {
		return domain.NewTag(name)
	}
	return domain.NewTag(name, title.String(strings.ReplaceAll(rest, "_", " ")))
}
