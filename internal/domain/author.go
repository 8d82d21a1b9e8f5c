package domain

import "strings"

// Author is a book author as read from metadata.
type Author struct {
	DisplayName string `json:"display_name"`
	SortKey     string `json:"sort_key"`
}

// UnknownAuthor stands in for books that list no author, so grouping by author is total.
var UnknownAuthor = Author{}

// NewAuthor creates an author, deriving the sort key from the last name when sortKey is empty.
func NewAuthor(displayName, sortKey string) Author {
	displayName = strings.Join(strings.Fields(displayName), " ")
	if sortKey == "" {
		sortKey = defaultSortKey(displayName)
	}
	return Author{DisplayName: displayName, SortKey: Fold(sortKey)}
}

// IsUnknown reports whether a is the UnknownAuthor sentinel.
func (a Author) IsUnknown() bool {
	return a == UnknownAuthor
}

// Compare orders authors by sort key, then display name.
func (a Author) Compare(b Author) int {
	if c := strings.Compare(a.SortKey, b.SortKey); c != 0 {
		return c
	}
	return strings.Compare(a.DisplayName, b.DisplayName)
}

func (a Author) String() string {
	if a.IsUnknown() {
		return "<unknown author>"
	}
	return a.DisplayName
}

func defaultSortKey(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return name
	}
	last := fields[len(fields)-1]
	return last + " " + strings.Join(fields[:len(fields)-1], " ")
}
