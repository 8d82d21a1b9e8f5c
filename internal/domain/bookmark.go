package domain

import (
	"slices"
	"time"
)

// Position is a location inside a book's text model.
type Position struct {
	Paragraph int `json:"paragraph" validate:"gte=0"`
	Element   int `json:"element" validate:"gte=0"`
	Char      int `json:"char" validate:"gte=0"`
}

// Bookmark is a saved position. Invisible bookmarks are maintained by the
// reader itself (for example the last position of each opened text model).
type Bookmark struct {
	ID         int64      `json:"id"`
	UID        string     `json:"uid"`
	BookID     string     `json:"book_id"`
	BookTitle  string     `json:"book_title"`
	Text       string     `json:"text"`
	Style      int        `json:"style"`
	Position   Position   `json:"position"`
	Visible    bool       `json:"visible"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	AccessedAt *time.Time `json:"accessed_at,omitempty"`
}

// Latest returns the most recent of the creation, modification and access times.
func (b *Bookmark) Latest() time.Time {
	latest := b.CreatedAt
	for _, t := range []*time.Time{b.ModifiedAt, b.AccessedAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}

// SortBookmarksByTime orders bookmarks most recent first.
func SortBookmarksByTime(list []*Bookmark) {
	slices.SortStableFunc(list, func(a, b *Bookmark) int {
		return b.Latest().Compare(a.Latest())
	})
}
