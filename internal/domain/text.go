package domain

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// cases.Caser is stateful and not safe for concurrent use.
var folderPool = sync.Pool{
	New: func() any {
		c := cases.Fold()
		return &c
	},
}

// Fold normalizes s for case-insensitive comparison: NFKC, then Unicode case folding.
func Fold(s string) string {
	c, _ := folderPool.Get().(*cases.Caser)
	defer folderPool.Put(c)
	return c.String(norm.NFKC.String(strings.TrimSpace(s)))
}

// ContainsFold reports whether pattern occurs in s, ignoring case.
func ContainsFold(s, pattern string) bool {
	return strings.Contains(Fold(s), Fold(pattern))
}

// HasPrefixFold reports whether s begins with prefix, ignoring case.
func HasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(Fold(s), Fold(prefix))
}

// TitleLetter returns the first letter of the book's folded sort title, or "" when there is none.
func TitleLetter(b *Book) string {
	r, _ := utf8.DecodeRuneInString(b.SortTitle())
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}

// GroupTitlesByLetter reports whether books are numerous enough, and share
// first letters often enough, for a by-letter title view to help.
func GroupTitlesByLetter(books []*Book) bool {
	if len(books) <= 10 {
		return false
	}
	letters := make(map[string]struct{})
	for _, b := range books {
		if l := TitleLetter(b); l != "" {
			letters[l] = struct{}{}
		}
	}
	return len(letters) > 1 && len(books) > len(letters)*5/4
}
