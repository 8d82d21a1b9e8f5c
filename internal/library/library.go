// Package library is the live index of books: lookups by file and id, the
// derived queries, the user lists around books and the build state machine.
//
// Every method is safe for concurrent use. One mutex guards the book maps,
// the build status and the rescan queue; events are published after it is
// released so listeners may call back into queries.
package library

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/fingerprint"
	"github.com/shelfsync/shelfsync-server/internal/metrics"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// Searcher answers free-text queries with book ids, best match first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Library is the authoritative in-memory index of books.
type Library struct {
	store  store.BookStore
	cache  *fingerprint.Cache
	engine *scanner.Engine
	walker *scanner.Walker
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.Mutex
	byFile   map[bookfile.File]*domain.Book
	byID     map[string]*domain.Book
	status   domain.BuildStatus
	inFlight bool
	closed   bool
	rescans  domain.RescanQueue
	result   *scanner.Result
	searcher Searcher

	// listsMu serializes read-modify-write cycles of the recent list.
	listsMu sync.Mutex

	builds chan struct{}
	done   chan struct{}
}

var _ scanner.Sink = (*Library)(nil)

// New creates an empty index and starts its build worker. The fingerprint
// cache must already be loaded.
func New(st store.BookStore, cache *fingerprint.Cache, engine *scanner.Engine, bus *events.Bus, logger *slog.Logger) *Library {
	l := &Library{
		store:  st,
		cache:  cache,
		engine: engine,
		walker: scanner.NewWalker(logger),
		bus:    bus,
		logger: logger,
		byFile: make(map[bookfile.File]*domain.Book),
		byID:   make(map[string]*domain.Book),
		status: domain.BuildNotStarted,
		builds: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.worker()
	return l
}

// Close stops the build worker, waiting for an in-flight build to finish.
func (l *Library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	close(l.builds)
	l.mu.Unlock()

	<-l.done
	return nil
}

// SetSearcher installs the full-text searcher used by Search.
func (l *Library) SetSearcher(s Searcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searcher = s
}

// Bus returns the event bus the index publishes on.
func (l *Library) Bus() *events.Bus {
	return l.bus
}

// Roots returns the configured library roots.
func (l *Library) Roots() []string {
	return l.engine.Roots()
}

// HelpFile returns the built-in help book file for the configured locale.
func (l *Library) HelpFile() bookfile.File {
	return l.engine.HelpFile()
}

// HelpBook returns the built-in help book, reading it if necessary.
func (l *Library) HelpBook(ctx context.Context) *domain.Book {
	return l.GetByFile(ctx, l.HelpFile())
}

// Size returns the number of indexed books.
func (l *Library) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byFile)
}

// AddBook inserts a copy of book when its file is not indexed yet and fires
// Added. When it is indexed and force is set, the indexed book is updated
// from book and Updated fires. Books without an id are ignored.
func (l *Library) AddBook(book *domain.Book, force bool) {
	if book == nil || book.ID == "" {
		return
	}

	l.mu.Lock()
	var (
		kind     events.BookEventKind
		snapshot *domain.Book
	)
	existing, ok := l.byFile[book.File]
	switch {
	case !ok:
		stored := book.Snapshot()
		l.byFile[stored.File] = stored
		l.byID[stored.ID] = stored
		kind, snapshot = events.BookAdded, stored.Snapshot()
		metrics.IndexedBooks.Set(float64(len(l.byFile)))
	case force:
		changed := existing.UpdateFrom(book)
		if book.IsSaved() {
			existing.MarkSaved()
		}
		l.byID[existing.ID] = existing
		if changed {
			kind, snapshot = events.BookUpdated, existing.Snapshot()
		}
	}
	l.mu.Unlock()

	if snapshot != nil {
		l.bus.PublishBook(kind, snapshot)
	}
}

// SaveBook persists book, then adds it with force. It reports whether the
// store accepted the book; an unchanged saved book counts as accepted.
func (l *Library) SaveBook(ctx context.Context, book *domain.Book, force bool) bool {
	if _, err := l.store.SaveBook(ctx, fingerprint.ID(book.File), book, force); err != nil {
		l.logger.Warn("failed to save book", "file", book.File.String(), "error", err)
		return false
	}
	l.AddBook(book, true)
	return true
}

// InTransaction runs fn inside one store transaction.
func (l *Library) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.store.InTx(ctx, fn)
}

// RemoveBook drops book from the index, the recent list and the favorites,
// deletes its file when deleteFromDisk is set and fires Removed. The record
// stays in the store. Removing a book that is not indexed only cleans up.
func (l *Library) RemoveBook(ctx context.Context, book *domain.Book, deleteFromDisk bool) {
	if book == nil {
		return
	}

	l.mu.Lock()
	indexed, ok := l.byFile[book.File]
	if ok {
		delete(l.byFile, book.File)
		delete(l.byID, indexed.ID)
		metrics.IndexedBooks.Set(float64(len(l.byFile)))
	}
	var snapshot *domain.Book
	if ok {
		snapshot = indexed.Snapshot()
		book = snapshot
	}
	l.mu.Unlock()

	if book.ID != "" {
		l.removeFromRecent(ctx, book.ID)
		if err := l.store.RemoveFromFavorites(ctx, book.ID); err != nil {
			l.logger.Warn("failed to remove book from favorites", "book_id", book.ID, "error", err)
		}
	}

	if deleteFromDisk {
		// An archive may hold other books, so only plain files are deleted.
		if book.File.IsEntry() || book.File.Resource {
			l.logger.Warn("refusing to delete nested book file", "file", book.File.String())
		} else if err := book.File.Remove(); err != nil {
			l.logger.Warn("failed to delete book file", "file", book.File.String(), "error", err)
		}
	}

	if snapshot != nil {
		l.bus.PublishBook(events.BookRemoved, snapshot)
	}
}

// GetByFile returns the book for file, reading and persisting it when it is
// not indexed yet. It returns nil when the file is missing or unreadable.
func (l *Library) GetByFile(ctx context.Context, file bookfile.File) *domain.Book {
	return l.getByFile(ctx, file, func(checkFile bookfile.File) bool {
		return l.cache.Check(checkFile, checkFile != file)
	})
}

// getByFile resolves file like GetByFile. unchanged reports whether the
// physical file still matches its cached fingerprint; callers that already
// checked pass their answer so the cache is consulted only once.
func (l *Library) getByFile(ctx context.Context, file bookfile.File, unchanged func(bookfile.File) bool) *domain.Book {
	if book := l.Lookup(file); book != nil {
		return book
	}

	checkFile := file.PhysicalFile()
	if checkFile.IsZero() {
		checkFile = file
	}
	if !checkFile.Exists() {
		return nil
	}

	book, err := l.store.LoadBookByFile(ctx, fingerprint.ID(file))
	if err != nil {
		book = nil
	}
	same := unchanged(checkFile)
	l.saveFingerprints(ctx)

	stored := book != nil
	switch {
	case stored && same:
	case stored:
		err = l.engine.Reread(book)
	default:
		book, err = l.engine.ReadBook(file)
	}
	if err != nil {
		l.logger.Debug("failed to read book", "file", file.String(), "error", err)
		metrics.ReadFailuresTotal.Inc()
		if stored {
			l.cache.Invalidate(checkFile)
			l.saveFingerprints(ctx)
		}
		return nil
	}

	l.SaveBook(ctx, book, false)
	if stored {
		// The record may be an orphan whose file came back.
		l.flagExisting(ctx, book.ID)
	}
	return l.indexedOr(book)
}

// GetByID returns the book with id, loading it from the store when it is not
// indexed. It returns nil when the record is unknown or its file is missing.
func (l *Library) GetByID(ctx context.Context, id string) *domain.Book {
	if id == "" {
		return nil
	}
	l.mu.Lock()
	book := l.byID[id].Snapshot()
	l.mu.Unlock()
	if book != nil {
		return book
	}

	book, err := l.store.LoadBook(ctx, id)
	if err != nil {
		return nil
	}

	physical := book.File.PhysicalFile()
	if physical.IsZero() {
		l.AddBook(book, false)
		return l.indexedOr(book)
	}
	if !physical.Exists() {
		return nil
	}
	if !l.cache.Check(physical, physical != book.File) {
		l.saveFingerprints(ctx)
		if err := l.engine.Reread(book); err != nil {
			l.logger.Debug("failed to re-read book", "file", book.File.String(), "error", err)
			l.cache.Invalidate(physical)
			l.saveFingerprints(ctx)
			return nil
		}
		l.SaveBook(ctx, book, false)
	}
	l.AddBook(book, false)
	l.flagExisting(ctx, book.ID)
	return l.indexedOr(book)
}

// Lookup returns a copy of the indexed book for file without reading or
// loading anything. It returns nil when file is not indexed.
//
// Every book the index hands out is such a copy; the indexed objects are only
// touched with l.mu held.
func (l *Library) Lookup(file bookfile.File) *domain.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byFile[file].Snapshot()
}

// indexedOr returns a copy of the indexed book for book's file, or book itself.
func (l *Library) indexedOr(book *domain.Book) *domain.Book {
	if indexed := l.Lookup(book.File); indexed != nil {
		return indexed
	}
	return book
}

// indexedLocked returns the indexed object behind book, or book itself when
// it is not indexed. l.mu must be held.
func (l *Library) indexedLocked(book *domain.Book) *domain.Book {
	if indexed := l.byFile[book.File]; indexed != nil && indexed.ID == book.ID {
		return indexed
	}
	return book
}

func (l *Library) flagExisting(ctx context.Context, id string) {
	if err := l.store.SetExisting(ctx, []string{id}, true); err != nil {
		l.logger.Warn("failed to flag book existing", "book_id", id, "error", err)
	}
}

func (l *Library) saveFingerprints(ctx context.Context) {
	if err := l.cache.Save(ctx); err != nil {
		l.logger.Warn("failed to save fingerprints", "error", err)
	}
}
