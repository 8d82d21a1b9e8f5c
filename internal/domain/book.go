// Package domain contains the book model shared by the index, the scanner and the trees.
package domain

import (
	"slices"
	"strings"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
)

// Book is a book file together with the metadata read from it.
//
// ID is empty until the book has been persisted. Within the library index a
// Book is identified by File; two Book values for the same File describe the
// same book at possibly different staleness.
type Book struct {
	ID          string        `json:"id,omitempty"`
	File        bookfile.File `json:"file"`
	Title       string        `json:"title"`
	Authors     []Author      `json:"authors,omitempty"`
	Tags        []*Tag        `json:"tags,omitempty"`
	Series      *SeriesInfo   `json:"series,omitempty"`
	Encoding    string        `json:"encoding,omitempty"`
	Language    string        `json:"language,omitempty"`
	Description string        `json:"description,omitempty"`
	Fingerprint Fingerprint   `json:"fingerprint"`

	saved   bool
	visited map[string]struct{}
}

// NewBook creates an unsaved book for file.
func NewBook(file bookfile.File) *Book {
	return &Book{File: file}
}

// IsSaved reports whether the persisted record matches the in-memory state.
func (b *Book) IsSaved() bool {
	return b.saved && b.ID != ""
}

// MarkSaved records that the book was just written to or read from the store.
func (b *Book) MarkSaved() {
	b.saved = true
}

// MarkChanged forces the next non-forced save to write.
func (b *Book) MarkChanged() {
	b.saved = false
}

// Equal reports whether b and o describe the same file.
func (b *Book) Equal(o *Book) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.File == o.File
}

// AddAuthor appends a unless an equal author is already listed.
func (b *Book) AddAuthor(a Author) {
	if a.IsUnknown() || slices.Contains(b.Authors, a) {
		return
	}
	b.Authors = append(b.Authors, a)
	b.saved = false
}

// AddTag appends t unless a tag with the same path is already present.
func (b *Book) AddTag(t *Tag) {
	if t.IsUnknown() || b.HasTag(t) {
		return
	}
	b.Tags = append(b.Tags, t)
	b.saved = false
}

// HasTag reports whether t is one of the book's own tags (ancestors excluded).
func (b *Book) HasTag(t *Tag) bool {
	return slices.ContainsFunc(b.Tags, t.Equal)
}

// HasTagOrAncestor reports whether t is a tag of the book or the ancestor of one.
func (b *Book) HasTagOrAncestor(t *Tag) bool {
	key := t.Key()
	for _, own := range b.Tags {
		for _, a := range own.Ancestors() {
			if a.Key() == key {
				return true
			}
		}
	}
	return false
}

// HasAuthor reports whether a is one of the book's authors.
func (b *Book) HasAuthor(a Author) bool {
	if a.IsUnknown() {
		return len(b.Authors) == 0
	}
	return slices.Contains(b.Authors, a)
}

// SetSeries sets or clears the series.
func (b *Book) SetSeries(title, index string) {
	s := NewSeriesInfo(title, index)
	if !b.Series.Equal(s) {
		b.Series = s
		b.saved = false
	}
}

// UpdateFrom merges the metadata of o into b in place and reports whether
// anything changed. The receiver keeps its identity so holders of the
// pointer observe the update.
func (b *Book) UpdateFrom(o *Book) bool {
	if o == nil || b == o {
		return false
	}
	changed := false

	if b.ID == "" && o.ID != "" {
		b.ID = o.ID
		changed = true
	}
	if b.Title != o.Title {
		b.Title = o.Title
		changed = true
	}
	if b.Encoding != o.Encoding {
		b.Encoding = o.Encoding
		changed = true
	}
	if b.Language != o.Language {
		b.Language = o.Language
		changed = true
	}
	if b.Description != o.Description {
		b.Description = o.Description
		changed = true
	}
	if !slices.Equal(b.Authors, o.Authors) {
		b.Authors = slices.Clone(o.Authors)
		changed = true
	}
	if !slices.EqualFunc(b.Tags, o.Tags, func(x, y *Tag) bool { return x.Equal(y) }) {
		b.Tags = slices.Clone(o.Tags)
		changed = true
	}
	if !b.Series.Equal(o.Series) {
		b.Series = cloneSeries(o.Series)
		changed = true
	}
	if b.Fingerprint != o.Fingerprint {
		b.Fingerprint = o.Fingerprint
		changed = true
	}

	if changed {
		b.saved = false
	}
	return changed
}

// Matches reports whether pattern occurs, ignoring case, in the title, the
// series title, an author name, a tag name or the file name.
func (b *Book) Matches(pattern string) bool {
	if ContainsFold(b.Title, pattern) {
		return true
	}
	if b.Series != nil && ContainsFold(b.Series.Title, pattern) {
		return true
	}
	for _, a := range b.Authors {
		if ContainsFold(a.DisplayName, pattern) {
			return true
		}
	}
	for _, t := range b.Tags {
		if ContainsFold(t.Name, pattern) {
			return true
		}
	}
	return ContainsFold(b.File.Name(), pattern)
}

// SortTitle is the title used for ordering, falling back to the file name.
func (b *Book) SortTitle() string {
	if strings.TrimSpace(b.Title) != "" {
		return Fold(b.Title)
	}
	return Fold(b.File.Name())
}

// Snapshot returns a self-contained copy safe to hand to other goroutines.
// Visited hyperlinks are not copied.
func (b *Book) Snapshot() *Book {
	if b == nil {
		return nil
	}
	return &Book{
		ID:          b.ID,
		File:        b.File,
		Title:       b.Title,
		Authors:     slices.Clone(b.Authors),
		Tags:        slices.Clone(b.Tags),
		Series:      cloneSeries(b.Series),
		Encoding:    b.Encoding,
		Language:    b.Language,
		Description: b.Description,
		Fingerprint: b.Fingerprint,
		saved:       b.saved,
	}
}

// VisitedLoaded reports whether the visited hyperlink set has been loaded.
func (b *Book) VisitedLoaded() bool {
	return b.visited != nil
}

// SetVisited replaces the visited hyperlink set.
func (b *Book) SetVisited(ids []string) {
	b.visited = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		b.visited[id] = struct{}{}
	}
}

// IsVisited reports whether the hyperlink was followed.
func (b *Book) IsVisited(linkID string) bool {
	_, ok := b.visited[linkID]
	return ok
}

// MarkVisited records the hyperlink and reports whether it was new.
func (b *Book) MarkVisited(linkID string) bool {
	if b.visited == nil {
		b.visited = make(map[string]struct{})
	}
	if _, ok := b.visited[linkID]; ok {
		return false
	}
	b.visited[linkID] = struct{}{}
	return true
}

func cloneSeries(s *SeriesInfo) *SeriesInfo {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
