package library

import (
	"context"
	"slices"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/events"
)

// MaxRecentBooks bounds the recent list.
const MaxRecentBooks = 12

// RecentBooks returns the recently opened books, most recent first. Books
// that can no longer be resolved are skipped.
func (l *Library) RecentBooks(ctx context.Context) []*domain.Book {
	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		l.logger.Warn("failed to load recent books", "error", err)
		return nil
	}
	return l.resolve(ctx, ids)
}

// RecentBook returns the index-th recent book, or nil.
func (l *Library) RecentBook(ctx context.Context, index int) *domain.Book {
	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil || index < 0 || index >= len(ids) {
		return nil
	}
	return l.GetByID(ctx, ids[index])
}

// AddToRecentList moves book to the front of the recent list, keeping at
// most MaxRecentBooks entries.
func (l *Library) AddToRecentList(ctx context.Context, book *domain.Book) error {
	if book == nil || book.ID == "" {
		return nil
	}

	l.listsMu.Lock()
	defer l.listsMu.Unlock()

	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return id == book.ID })
	ids = slices.Insert(ids, 0, book.ID)
	if len(ids) > MaxRecentBooks {
		ids = ids[:MaxRecentBooks]
	}
	return l.store.SaveRecentBookIDs(ctx, ids)
}

func (l *Library) removeFromRecent(ctx context.Context, id string) {
	l.listsMu.Lock()
	defer l.listsMu.Unlock()

	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		l.logger.Warn("failed to load recent books", "error", err)
		return
	}
	if !slices.Contains(ids, id) {
		return
	}
	ids = slices.DeleteFunc(ids, func(r string) bool { return r == id })
	if err := l.store.SaveRecentBookIDs(ctx, ids); err != nil {
		l.logger.Warn("failed to save recent books", "error", err)
	}
}

// Favorites returns the favorite books.
func (l *Library) Favorites(ctx context.Context) []*domain.Book {
	ids, err := l.store.LoadFavoriteIDs(ctx)
	if err != nil {
		l.logger.Warn("failed to load favorites", "error", err)
		return nil
	}
	return l.resolve(ctx, ids)
}

// HasFavorites reports whether any book is a favorite.
func (l *Library) HasFavorites(ctx context.Context) bool {
	has, err := l.store.HasFavorites(ctx)
	if err != nil {
		l.logger.Warn("failed to check favorites", "error", err)
		return false
	}
	return has
}

// IsFavorite reports whether book is a favorite.
func (l *Library) IsFavorite(ctx context.Context, book *domain.Book) bool {
	if book == nil || book.ID == "" {
		return false
	}
	fav, err := l.store.IsFavorite(ctx, book.ID)
	if err != nil {
		l.logger.Warn("failed to check favorite", "book_id", book.ID, "error", err)
		return false
	}
	return fav
}

// SetFavorite adds book to or removes it from the favorites and fires Updated.
func (l *Library) SetFavorite(ctx context.Context, book *domain.Book, favorite bool) error {
	if book == nil || book.ID == "" {
		return nil
	}
	var err error
	if favorite {
		err = l.store.AddToFavorites(ctx, book.ID)
	} else {
		err = l.store.RemoveFromFavorites(ctx, book.ID)
	}
	if err != nil {
		return err
	}

	l.mu.Lock()
	indexed := l.byFile[book.File]
	var snapshot *domain.Book
	if indexed != nil {
		snapshot = indexed.Snapshot()
	}
	l.mu.Unlock()
	if snapshot == nil {
		snapshot = book
	}
	l.bus.PublishBook(events.BookUpdated, snapshot)
	return nil
}

// AllBookmarks returns every visible bookmark.
func (l *Library) AllBookmarks(ctx context.Context) ([]*domain.Bookmark, error) {
	return l.store.LoadAllVisibleBookmarks(ctx)
}

// Bookmarks returns the visible bookmarks of book.
func (l *Library) Bookmarks(ctx context.Context, book *domain.Book) ([]*domain.Bookmark, error) {
	if book == nil || book.ID == "" {
		return nil, nil
	}
	return l.store.LoadBookmarks(ctx, book.ID, true)
}

// InvisibleBookmarks returns the reader-maintained bookmarks of book, most recent first.
func (l *Library) InvisibleBookmarks(ctx context.Context, book *domain.Book) ([]*domain.Bookmark, error) {
	if book == nil || book.ID == "" {
		return nil, nil
	}
	list, err := l.store.LoadBookmarks(ctx, book.ID, false)
	if err != nil {
		return nil, err
	}
	domain.SortBookmarksByTime(list)
	return list, nil
}

// SaveBookmark inserts or updates bm and sets its id.
func (l *Library) SaveBookmark(ctx context.Context, bm *domain.Bookmark) error {
	id, err := l.store.SaveBookmark(ctx, bm)
	if err != nil {
		return err
	}
	bm.ID = id
	return nil
}

// DeleteBookmark deletes bm. A bookmark that was never saved is ignored.
func (l *Library) DeleteBookmark(ctx context.Context, bm *domain.Bookmark) error {
	if bm == nil || bm.ID <= 0 {
		return nil
	}
	return l.store.DeleteBookmark(ctx, bm.ID)
}

// StoredPosition returns the last stored reading position of book, or nil.
func (l *Library) StoredPosition(ctx context.Context, book *domain.Book) (*domain.Position, error) {
	if book == nil || book.ID == "" {
		return nil, nil
	}
	return l.store.StoredPosition(ctx, book.ID)
}

// StorePosition stores the reading position of a saved book.
func (l *Library) StorePosition(ctx context.Context, book *domain.Book, pos domain.Position) error {
	if book == nil || book.ID == "" {
		return nil
	}
	return l.store.StorePosition(ctx, book.ID, pos)
}

// IsHyperlinkVisited reports whether linkID was followed in book.
func (l *Library) IsHyperlinkVisited(ctx context.Context, book *domain.Book, linkID string) bool {
	l.ensureVisited(ctx, book)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexedLocked(book).IsVisited(linkID)
}

// MarkHyperlinkAsVisited records that linkID was followed in book. For a
// saved book the visit is persisted.
func (l *Library) MarkHyperlinkAsVisited(ctx context.Context, book *domain.Book, linkID string) error {
	l.ensureVisited(ctx, book)

	l.mu.Lock()
	added := l.indexedLocked(book).MarkVisited(linkID)
	l.mu.Unlock()

	if !added || book.ID == "" {
		return nil
	}
	return l.store.AddVisitedHyperlink(ctx, book.ID, linkID)
}

// ensureVisited loads the visited hyperlinks of book on first use. The set
// lives on the indexed object, so every copy of the book shares it.
func (l *Library) ensureVisited(ctx context.Context, book *domain.Book) {
	l.mu.Lock()
	loaded := l.indexedLocked(book).VisitedLoaded()
	l.mu.Unlock()
	if loaded {
		return
	}

	var ids []string
	if book.ID != "" {
		var err error
		if ids, err = l.store.LoadVisitedHyperlinks(ctx, book.ID); err != nil {
			l.logger.Warn("failed to load visited hyperlinks", "book_id", book.ID, "error", err)
		}
	}

	l.mu.Lock()
	if target := l.indexedLocked(book); !target.VisitedLoaded() {
		target.SetVisited(ids)
	}
	l.mu.Unlock()
}

// resolve maps ids to books, skipping unresolvable ones.
func (l *Library) resolve(ctx context.Context, ids []string) []*domain.Book {
	out := make([]*domain.Book, 0, len(ids))
	for _, id := range ids {
		if b := l.GetByID(ctx, id); b != nil {
			out = append(out, b)
		}
	}
	return out
}
