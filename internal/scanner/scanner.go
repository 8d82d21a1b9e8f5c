// Package scanner reconciles the library roots on disk with the persisted book records.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/fingerprint"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/metrics"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// Sink receives the books resolved by a pass. The library index implements it.
type Sink interface {
	// AddBook inserts book, merging into an indexed copy only when force is set.
	AddBook(book *domain.Book, force bool)
	// SaveBook persists book and force-adds it. It reports whether the store accepted it.
	SaveBook(ctx context.Context, book *domain.Book, force bool) bool
	// InTransaction runs fn inside one store transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options configures an Engine.
type Options struct {
	Roots      []string
	HelpLocale string
	OnProgress func(*Progress)
}

// Engine runs reconciliation passes. An engine is not safe for concurrent
// Run calls; the library index runs at most one pass at a time.
type Engine struct {
	store    store.BookStore
	cache    *fingerprint.Cache
	registry *formats.Registry
	logger   *slog.Logger
	walker   *Walker
	opts     Options
}

// NewEngine creates a new engine.
func NewEngine(st store.BookStore, cache *fingerprint.Cache, registry *formats.Registry, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		store:    st,
		cache:    cache,
		registry: registry,
		logger:   logger,
		walker:   NewWalker(logger),
		opts:     opts,
	}
}

// Roots returns the configured library roots.
func (e *Engine) Roots() []string {
	return slices.Clone(e.opts.Roots)
}

// HelpFile returns the built-in help book for the configured locale.
func (e *Engine) HelpFile() bookfile.File {
	return bookfile.HelpFile(e.opts.HelpLocale)
}

// ReadBook reads a fresh, unsaved book for f and stamps its current fingerprint.
func (e *Engine) ReadBook(f bookfile.File) (*domain.Book, error) {
	book, err := e.registry.ReadBook(f)
	if err != nil {
		return nil, err
	}
	if fp, err := fingerprint.Current(f); err == nil {
		book.Fingerprint = fp
	}
	return book, nil
}

// Reread refreshes book in place from its file.
func (e *Engine) Reread(book *domain.Book) error {
	fresh, err := e.ReadBook(book.File)
	if err != nil {
		return err
	}
	book.UpdateFrom(fresh)
	return nil
}

// pass holds the state of one Run.
type pass struct {
	sink     Sink
	result   *Result
	tracker  *ProgressTracker
	saved    map[string]*domain.Book
	orphaned map[string]*domain.Book
	physical map[bookfile.File]struct{}
	// checked memoizes the first fingerprint check of each physical file, so
	// every entry of a changed archive sees the change.
	checked map[bookfile.File]bool
	// collected keeps first-resolution order; seen guards against duplicates.
	collected []*domain.Book
	seen      map[string]struct{}
}

// Run performs one full reconciliation pass and reports what it found.
//
// Per-file problems never fail the pass. Run returns an error only when the
// persisted records cannot be loaded or the final batch cannot be committed.
func (e *Engine) Run(ctx context.Context, sink Sink) (*Result, error) {
	p := &pass{
		sink:     sink,
		result:   &Result{StartedAt: time.Now()},
		tracker:  NewProgressTracker(e.opts.OnProgress),
		physical: make(map[bookfile.File]struct{}),
		checked:  make(map[bookfile.File]bool),
		seen:     make(map[string]struct{}),
	}

	e.logger.Info("build started", "roots", e.opts.Roots)

	// Stage 1: records flagged existing.
	p.tracker.SetPhase(PhaseLoading)
	saved, err := e.store.LoadBooks(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load existing books: %w", err)
	}
	p.saved = saved
	p.result.Existing = len(saved)

	// Stage 2: presentation hint only.
	p.result.GroupTitlesByLetter = domain.GroupTitlesByLetter(sortedBooks(saved))

	// Stage 3.
	e.validateExisting(ctx, p)

	// Stage 4.
	orphaned, err := e.store.LoadBooks(ctx, false)
	if err != nil {
		e.logger.Warn("failed to load orphaned books", "error", err)
		orphaned = map[string]*domain.Book{}
	}
	p.orphaned = orphaned
	if err := e.walkRoots(ctx, p); err != nil {
		return nil, err
	}

	// Stage 5.
	e.ensureHelpBook(ctx, p)

	// Stage 6.
	if err := e.commit(ctx, p); err != nil {
		return nil, err
	}

	p.result.CompletedAt = time.Now()
	p.tracker.SetPhase(PhaseComplete)
	e.logger.Info("build complete",
		"duration", p.result.Duration(),
		"existing", p.result.Existing,
		"orphaned", p.result.Orphaned,
		"reread", p.result.Reread,
		"reused", p.result.Reused,
		"new", p.result.New,
		"failed", p.result.Failed,
	)
	return p.result, nil
}

// validateExisting checks every existing record against its physical file.
func (e *Engine) validateExisting(ctx context.Context, p *pass) {
	p.tracker.SetPhase(PhaseValidating)
	p.tracker.SetTotal(len(p.saved))

	var orphans []string
	for _, book := range sortedBooks(p.saved) {
		p.tracker.Increment(book.File.String())

		physical := book.File.PhysicalFile()
		if physical.IsZero() {
			// The current help book is resolved by ensureHelpBook.
			if book.File != e.HelpFile() {
				orphans = append(orphans, book.ID)
			}
			continue
		}
		// An entry record whose container is no longer an archive is a
		// leftover of a former representation of the same file. The file
		// itself is left to the walk.
		if book.File != physical && !physical.IsArchive() {
			p.result.Stale++
			continue
		}
		p.physical[physical] = struct{}{}

		if !physical.Exists() {
			orphans = append(orphans, book.ID)
			continue
		}

		add := true
		if p.changed(e.cache, physical) {
			if err := e.Reread(book); err != nil {
				e.logger.Debug("failed to re-read changed book", "file", book.File.String(), "error", err)
				p.result.Failed++
				metrics.ReadFailuresTotal.Inc()
				add = false
				e.cache.Invalidate(physical)
			} else {
				p.result.Reread++
				p.sink.SaveBook(ctx, book, false)
			}
		}
		if add {
			p.sink.AddBook(book, false)
		}
	}

	if len(orphans) == 0 {
		return
	}
	p.result.Orphaned = len(orphans)
	if err := e.store.SetExisting(ctx, orphans, false); err != nil {
		e.logger.Error("failed to flag orphaned books", "count", len(orphans), "error", err)
	}
}

// walkRoots resolves every physical file not accounted for by validateExisting.
func (e *Engine) walkRoots(ctx context.Context, p *pass) error {
	p.tracker.SetPhase(PhaseWalking)

	for r := range e.walker.Walk(ctx, e.opts.Roots...) {
		p.result.Files++
		f := bookfile.Physical(r.Path)
		if _, seen := p.physical[f]; seen {
			continue
		}
		p.physical[f] = struct{}{}
		p.tracker.Increment(r.Path)

		e.collect(f, p, !e.cache.Check(f, true))
	}
	return ctx.Err()
}

// collect resolves f into a record: an already validated one, a reused
// orphan, a freshly read book or, for archives, the books among its entries.
func (e *Engine) collect(f bookfile.File, p *pass, changed bool) {
	id := fingerprint.ID(f)
	if _, ok := p.saved[id]; ok {
		return
	}
	if _, ok := p.seen[id]; ok {
		return
	}

	if book, ok := p.orphaned[id]; ok {
		if changed {
			if err := e.Reread(book); err != nil {
				e.logger.Debug("failed to re-read orphaned book", "file", f.String(), "error", err)
			}
		}
		p.result.Reused++
		p.keep(id, book)
		return
	}

	if e.registry.ReaderFor(f) != nil {
		book, err := e.ReadBook(f)
		if err == nil {
			p.result.New++
			if f.IsEntry() {
				p.result.ArchiveEntries++
			}
			p.keep(id, book)
			return
		}
		e.logger.Debug("failed to read book", "file", f.String(), "error", err)
		if !f.IsArchive() && !f.IsEntry() {
			p.result.Failed++
			metrics.ReadFailuresTotal.Inc()
		}
	}

	if !f.IsArchive() {
		return
	}
	entries, err := f.Entries()
	if err != nil {
		e.logger.Debug("failed to list archive", "file", f.String(), "error", err)
		return
	}
	for _, entry := range entries {
		e.collect(entry, p, changed)
	}
}

func (p *pass) changed(cache *fingerprint.Cache, f bookfile.File) bool {
	if changed, ok := p.checked[f]; ok {
		return changed
	}
	changed := !cache.Check(f, true)
	p.checked[f] = changed
	return changed
}

func (p *pass) keep(id string, book *domain.Book) {
	p.seen[id] = struct{}{}
	p.collected = append(p.collected, book)
}

// ensureHelpBook makes sure the built-in help book is indexed.
func (e *Engine) ensureHelpBook(ctx context.Context, p *pass) {
	p.tracker.SetPhase(PhaseHelp)

	help := e.HelpFile()
	book, ok := p.saved[fingerprint.ID(help)]
	if !ok {
		var err error
		book, err = e.ReadBook(help)
		if err != nil {
			err = domainerrors.Invariant("built-in help book is unreadable").WithCause(err)
			e.logger.Error("failed to add help book", "file", help.String(), "error", err)
			return
		}
	}
	p.sink.SaveBook(ctx, book, false)
	p.sink.AddBook(book, false)
}

// commit persists fingerprints and the collected records, then flags them existing.
func (e *Engine) commit(ctx context.Context, p *pass) error {
	p.tracker.SetPhase(PhaseSaving)
	p.tracker.SetTotal(len(p.collected))

	if err := e.cache.Save(ctx); err != nil {
		e.logger.Warn("failed to save fingerprints", "error", err)
	}
	if len(p.collected) == 0 {
		return nil
	}

	err := p.sink.InTransaction(ctx, func(ctx context.Context) error {
		for _, book := range p.collected {
			p.tracker.Increment(book.File.String())
			if !p.sink.SaveBook(ctx, book, false) {
				p.result.Failed++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save collected books: %w", err)
	}

	ids := make([]string, 0, len(p.collected))
	for _, book := range p.collected {
		if book.ID != "" {
			ids = append(ids, book.ID)
		}
	}
	if err := e.store.SetExisting(ctx, ids, true); err != nil {
		return fmt.Errorf("flag collected books: %w", err)
	}
	return nil
}

func sortedBooks(books map[string]*domain.Book) []*domain.Book {
	out := make([]*domain.Book, 0, len(books))
	for _, b := range books {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *domain.Book) int {
		return strings.Compare(a.File.Identity(), b.File.Identity())
	})
	return out
}
