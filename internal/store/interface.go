// Package store defines the persistence contracts of the engine and implements
// the fingerprint store on BadgerDB. Book records live in store/sqlite.
package store

import (
	"context"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// FileRecord is the persisted fingerprint of one file.
type FileRecord struct {
	Fingerprint domain.Fingerprint `json:"fp"`
	// Parent is the file id of the containing archive for archive entries.
	Parent string `json:"parent,omitempty"`
}

// FingerprintStore persists file fingerprints keyed by file id.
type FingerprintStore interface {
	LoadFingerprints(ctx context.Context) (map[string]FileRecord, error)
	SaveFingerprints(ctx context.Context, upserts map[string]FileRecord, deletes []string) error
}

// BookStore persists book records and the per-book user state around them.
//
// Books are keyed by the fingerprint file id of their file. LoadBook* return
// ErrNotFound for unknown keys; returned books are marked saved.
type BookStore interface {
	LoadBook(ctx context.Context, id string) (*domain.Book, error)
	LoadBookByFile(ctx context.Context, fileID string) (*domain.Book, error)
	// LoadBooks returns every book whose existing flag equals existing, keyed by file id.
	LoadBooks(ctx context.Context, existing bool) (map[string]*domain.Book, error)
	// SaveBook writes the book unless it is already saved and force is false.
	// It assigns an ID to new books and reports whether a write happened.
	SaveBook(ctx context.Context, fileID string, book *domain.Book, force bool) (bool, error)
	SetExisting(ctx context.Context, bookIDs []string, existing bool) error
	// InTx runs fn with a context whose store calls share one transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	LoadRecentBookIDs(ctx context.Context) ([]string, error)
	SaveRecentBookIDs(ctx context.Context, ids []string) error

	LoadFavoriteIDs(ctx context.Context) ([]string, error)
	HasFavorites(ctx context.Context) (bool, error)
	IsFavorite(ctx context.Context, bookID string) (bool, error)
	AddToFavorites(ctx context.Context, bookID string) error
	RemoveFromFavorites(ctx context.Context, bookID string) error

	LoadAllVisibleBookmarks(ctx context.Context) ([]*domain.Bookmark, error)
	LoadBookmarks(ctx context.Context, bookID string, visible bool) ([]*domain.Bookmark, error)
	SaveBookmark(ctx context.Context, bm *domain.Bookmark) (int64, error)
	DeleteBookmark(ctx context.Context, id int64) error

	StoredPosition(ctx context.Context, bookID string) (*domain.Position, error)
	StorePosition(ctx context.Context, bookID string, pos domain.Position) error

	LoadVisitedHyperlinks(ctx context.Context, bookID string) ([]string, error)
	AddVisitedHyperlink(ctx context.Context, bookID, linkID string) error
}
