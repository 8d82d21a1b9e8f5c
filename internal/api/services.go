package api

import (
	"context"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
	"github.com/shelfsync/shelfsync-server/internal/search"
	"github.com/shelfsync/shelfsync-server/internal/tree"
)

// Library is the part of *library.Library the handlers use.
type Library interface {
	Size() int
	Books() []*domain.Book
	BooksByAuthor(a domain.Author) []*domain.Book
	BooksByTag(t *domain.Tag) []*domain.Book
	BooksForSeries(title string) []*domain.Book
	BooksForTitlePrefix(prefix string) []*domain.Book
	BooksForPattern(pattern string) []*domain.Book
	Search(ctx context.Context, query string, limit int) ([]*domain.Book, error)
	Authors() []domain.Author
	Tags() []*domain.Tag
	Series() []string

	GetByID(ctx context.Context, id string) *domain.Book
	Lookup(file bookfile.File) *domain.Book
	RemoveBook(ctx context.Context, book *domain.Book, deleteFromDisk bool)

	RecentBooks(ctx context.Context) []*domain.Book
	AddToRecentList(ctx context.Context, book *domain.Book) error
	Favorites(ctx context.Context) []*domain.Book
	IsFavorite(ctx context.Context, book *domain.Book) bool
	SetFavorite(ctx context.Context, book *domain.Book, favorite bool) error

	AllBookmarks(ctx context.Context) ([]*domain.Bookmark, error)
	Bookmarks(ctx context.Context, book *domain.Book) ([]*domain.Bookmark, error)
	InvisibleBookmarks(ctx context.Context, book *domain.Book) ([]*domain.Bookmark, error)
	SaveBookmark(ctx context.Context, bm *domain.Bookmark) error
	DeleteBookmark(ctx context.Context, bm *domain.Bookmark) error
	StoredPosition(ctx context.Context, book *domain.Book) (*domain.Position, error)
	StorePosition(ctx context.Context, book *domain.Book, pos domain.Position) error

	StartBuild() bool
	Status() domain.BuildStatus
	Building() bool
	LastResult() *scanner.Result
	Rescan(ctx context.Context, path string)
	PendingRescans() int
	Roots() []string
}

// Trees serves the incremental views. *tree.Library implements it.
type Trees interface {
	View(ctx context.Context, id string) (tree.View, bool)
	Search(ctx context.Context, pattern string) tree.View
}

// SearchIndex answers full-text queries. *search.SearchIndex implements it.
type SearchIndex interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
	DocumentCount() (uint64, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services holds the components the handlers call. Search and Store are optional.
type Services struct {
	Library Library
	Trees   Trees
	Search  SearchIndex
	Store   Pinger
}
