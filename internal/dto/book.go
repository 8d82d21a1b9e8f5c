// Package dto provides Data Transfer Objects for API responses and SSE events.
//
// DTOs flatten the domain model so clients can render a book without a second
// request: tags become slash-separated keys and the file becomes one identity string.
package dto

import (
	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// BookAuthor is the client-facing representation of an author.
type BookAuthor struct {
	Name    string `json:"name"`
	SortKey string `json:"sort_key"`
}

// BookSeries is the client-facing representation of a book's series membership.
type BookSeries struct {
	Title string `json:"title"`
	Index string `json:"index,omitempty"`
}

// Book is the client-facing representation of a book.
//
// The list fields (Favorite, Position, BookmarkCount) are only set by
// Enricher; SSE events carry the plain conversion.
type Book struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	SortTitle   string       `json:"sort_title"`
	File        string       `json:"file"`
	Authors     []BookAuthor `json:"authors"`
	Tags        []string     `json:"tags"`
	Series      *BookSeries  `json:"series,omitempty"`
	Language    string       `json:"language,omitempty"`
	Encoding    string       `json:"encoding,omitempty"`
	Description string       `json:"description,omitempty"`

	Favorite      bool             `json:"favorite,omitempty"`
	Position      *domain.Position `json:"position,omitempty"`
	BookmarkCount int              `json:"bookmark_count,omitempty"`
}

// FromBook converts a domain book. A nil book yields nil.
func FromBook(b *domain.Book) *Book {
	if b == nil {
		return nil
	}
	out := &Book{
		ID:          b.ID,
		Title:       b.Title,
		SortTitle:   b.SortTitle(),
		File:        b.File.Identity(),
		Authors:     make([]BookAuthor, 0, len(b.Authors)),
		Tags:        make([]string, 0, len(b.Tags)),
		Language:    b.Language,
		Encoding:    b.Encoding,
		Description: b.Description,
	}
	for _, a := range b.Authors {
		out.Authors = append(out.Authors, BookAuthor{Name: a.DisplayName, SortKey: a.SortKey})
	}
	for _, t := range b.Tags {
		out.Tags = append(out.Tags, t.Key())
	}
	if b.Series != nil {
		out.Series = &BookSeries{Title: b.Series.Title, Index: b.Series.Index}
	}
	return out
}

// FromBooks converts a list, keeping order.
func FromBooks(books []*domain.Book) []*Book {
	out := make([]*Book, 0, len(books))
	for _, b := range books {
		out = append(out, FromBook(b))
	}
	return out
}
