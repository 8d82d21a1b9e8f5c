package dto

import (
	"context"
	"fmt"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Store fetches the list state shown next to a book.
// *library.Library implements it.
type Store interface {
	IsFavorite(ctx context.Context, book *domain.Book) bool
	StoredPosition(ctx context.Context, book *domain.Book) (*domain.Position, error)
	Bookmarks(ctx context.Context, book *domain.Book) ([]*domain.Bookmark, error)
}

// Enricher fills the favorite, position and bookmark fields of a Book.
type Enricher struct {
	store Store
}

// NewEnricher creates a new enricher.
func NewEnricher(store Store) *Enricher {
	return &Enricher{store: store}
}

// EnrichBook converts book and adds favorite state, reading position and
// visible bookmark count. Books without an ID have no list state.
func (e *Enricher) EnrichBook(ctx context.Context, book *domain.Book) (*Book, error) {
	out := FromBook(book)
	if out == nil || book.ID == "" {
		return out, nil
	}

	out.Favorite = e.store.IsFavorite(ctx, book)

	pos, err := e.store.StoredPosition(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	out.Position = pos

	bookmarks, err := e.store.Bookmarks(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	out.BookmarkCount = len(bookmarks)
	return out, nil
}

// EnrichBooks enriches each book. The first failure aborts the batch.
func (e *Enricher) EnrichBooks(ctx context.Context, books []*domain.Book) ([]*Book, error) {
	out := make([]*Book, 0, len(books))
	for _, b := range books {
		d, err := e.EnrichBook(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
