// Package search provides full-text search over the library using Bleve.
// The index is kept in sync by listening to book events and answers queries
// with book ids that the library resolves back to books.
package search

import (
	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// SearchDocument is the indexed form of one book.
//
// Author, series and tag names are denormalized into the document so one
// query covers every field a reader may remember.
type SearchDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	SortTitle   string   `json:"sort_title"`
	Authors     []string `json:"author,omitempty"`
	Series      string   `json:"series,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TagPaths    []string `json:"tag_paths,omitempty"` // every tag key with its ancestors, folded
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	File        string   `json:"file"`
}

// NewDocument converts a book. It returns nil for a book without an id.
func NewDocument(b *domain.Book) *SearchDocument {
	if b == nil || b.ID == "" {
		return nil
	}
	doc := &SearchDocument{
		ID:          b.ID,
		Title:       b.Title,
		SortTitle:   b.SortTitle(),
		Description: b.Description,
		Language:    domain.Fold(b.Language),
		File:        b.File.Identity(),
	}
	if doc.Title == "" {
		doc.Title = b.File.Name()
	}
	for _, a := range b.Authors {
		doc.Authors = append(doc.Authors, a.DisplayName)
	}
	if b.Series != nil {
		doc.Series = b.Series.Title
	}

	seen := make(map[string]bool)
	for _, t := range b.Tags {
		doc.Tags = append(doc.Tags, t.Name)
		for _, a := range t.Ancestors() {
			key := domain.Fold(a.Key())
			if !seen[key] {
				seen[key] = true
				doc.TagPaths = append(doc.TagPaths, key)
			}
		}
	}
	return doc
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *SearchDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"title":      d.Title,
		"sort_title": d.SortTitle,
		"file":       d.File,
	}
	if len(d.Authors) > 0 {
		m["author"] = d.Authors
	}
	if d.Series != "" {
		m["series"] = d.Series
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if len(d.TagPaths) > 0 {
		m["tag_paths"] = d.TagPaths
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	return m
}
