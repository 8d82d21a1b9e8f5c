package scanner

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/fingerprint"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/store"
	"github.com/shelfsync/shelfsync-server/internal/store/sqlite"
)

// mapSink is a minimal library index: books by file, saved through the store.
type mapSink struct {
	store *sqlite.Store
	books map[bookfile.File]*domain.Book
	added int
}

func newMapSink(st *sqlite.Store) *mapSink {
	return &mapSink{store: st, books: make(map[bookfile.File]*domain.Book)}
}

func (s *mapSink) AddBook(book *domain.Book, force bool) {
	if existing, ok := s.books[book.File]; ok {
		if force {
			existing.UpdateFrom(book)
		}
		return
	}
	s.books[book.File] = book
	s.added++
}

func (s *mapSink) SaveBook(ctx context.Context, book *domain.Book, force bool) bool {
	_, err := s.store.SaveBook(ctx, fingerprint.ID(book.File), book, force)
	s.AddBook(book, true)
	return err == nil
}

func (s *mapSink) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.store.InTx(ctx, fn)
}

func (s *mapSink) titles() []string {
	var out []string
	for _, b := range s.books {
		out = append(out, b.Title)
	}
	return out
}

type harness struct {
	t     *testing.T
	root  string
	base  string
	books *sqlite.Store
	cache *fingerprint.Cache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "library")
	require.NoError(t, os.Mkdir(root, 0o755))

	books, err := sqlite.Open(filepath.Join(base, "books.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { books.Close() })

	fps, err := store.New(filepath.Join(base, "fingerprints"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { fps.Close() })

	cache := fingerprint.New(fps, testLogger())
	require.NoError(t, cache.Load(context.Background()))

	return &harness{t: t, root: root, base: base, books: books, cache: cache}
}

func (h *harness) run(opts ...func(*Options)) (*Result, *mapSink) {
	h.t.Helper()
	o := Options{Roots: []string{h.root}, HelpLocale: "en"}
	for _, fn := range opts {
		fn(&o)
	}
	sink := newMapSink(h.books)
	engine := NewEngine(h.books, h.cache, formats.Default(), testLogger(), o)
	result, err := engine.Run(context.Background(), sink)
	require.NoError(h.t, err)
	return result, sink
}

func (h *harness) path(name string) string {
	return filepath.Join(h.root, name)
}

func fb2Doc(title, lastName string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description><title-info>
    <author><first-name>Ann</first-name><last-name>` + lastName + `</last-name></author>
    <book-title>` + title + `</book-title>
  </title-info></description>
  <body><section><p>text</p></section></body>
</FictionBook>`
}

func writeZipFile(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

// populate creates two plain books, one unsupported file and an archive of two books.
func (h *harness) populate() {
	mustWrite(h.t, h.path("alpha.fb2"), fb2Doc("Alpha", "Smith"))
	mustWrite(h.t, h.path("notes/beta.txt"), "plain text")
	mustWrite(h.t, h.path("cover.jpg"), "\xff\xd8\xff\xe0")
	writeZipFile(h.t, h.path("pack.zip"), map[string]string{
		"one.fb2":    fb2Doc("Gamma", "Foo"),
		"two.fb2":    fb2Doc("Delta", "Foo"),
		"readme.jpg": "\xff\xd8\xff\xe0",
	})
}

func countBooks(t *testing.T, st *sqlite.Store) (total, existing int) {
	t.Helper()
	total, existing, err := st.CountBooks(context.Background())
	require.NoError(t, err)
	return total, existing
}

func TestEngine_FirstPass(t *testing.T) {
	h := newHarness(t)
	h.populate()

	result, sink := h.run()

	assert.Equal(t, 0, result.Existing)
	assert.Equal(t, 4, result.New)
	assert.Equal(t, 2, result.ArchiveEntries)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 4, result.Files)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))

	// Four books on disk plus the help book.
	require.Len(t, sink.books, 5)
	assert.ElementsMatch(t, []string{"Alpha", "beta", "Gamma", "Delta", "Shelfsync Quick Start"}, sink.titles())

	archive := bookfile.Physical(h.path("pack.zip"))
	assert.Contains(t, sink.books, bookfile.EntryOf(archive, "one.fb2"))
	assert.Contains(t, sink.books, bookfile.HelpFile("en"))

	for _, b := range sink.books {
		assert.NotEmpty(t, b.ID, b.File.String())
		assert.True(t, b.IsSaved(), b.File.String())
	}

	total, existing := countBooks(t, h.books)
	assert.Equal(t, 5, total)
	assert.Equal(t, 5, existing)
}

func TestEngine_SniffsFilesWithoutExtension(t *testing.T) {
	h := newHarness(t)
	mustWrite(t, h.path("README"), "plain words without an extension\n")
	mustWrite(t, h.path("photo"), "\xff\xd8\xff\xe0")

	result, sink := h.run()

	assert.Equal(t, 1, result.New)
	assert.Contains(t, sink.books, bookfile.Physical(h.path("README")))
	assert.NotContains(t, sink.books, bookfile.Physical(h.path("photo")))
}

func TestEngine_SecondPassIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.populate()

	_, first := h.run()
	result, second := h.run()

	assert.Equal(t, 5, result.Existing)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Reread)
	assert.Zero(t, result.Orphaned)
	assert.Zero(t, result.Reused)

	require.Len(t, second.books, len(first.books))
	for f, b := range first.books {
		require.Contains(t, second.books, f)
		assert.Equal(t, b.ID, second.books[f].ID)
	}

	total, _ := countBooks(t, h.books)
	assert.Equal(t, 5, total)
}

func TestEngine_OrphanRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.populate()

	_, first := h.run()
	alpha := first.books[bookfile.Physical(h.path("alpha.fb2"))]
	require.NotNil(t, alpha)

	away := filepath.Join(h.base, "alpha.fb2")
	require.NoError(t, os.Rename(h.path("alpha.fb2"), away))

	result, sink := h.run()
	assert.Equal(t, 1, result.Orphaned)
	assert.NotContains(t, sink.books, alpha.File)

	orphaned, err := h.books.LoadBooks(context.Background(), false)
	require.NoError(t, err)
	require.Contains(t, orphaned, fingerprint.ID(alpha.File))

	require.NoError(t, os.Rename(away, h.path("alpha.fb2")))

	result, sink = h.run()
	assert.Equal(t, 1, result.Reused)
	assert.Zero(t, result.New)
	require.Contains(t, sink.books, alpha.File)
	assert.Equal(t, alpha.ID, sink.books[alpha.File].ID)

	total, existing := countBooks(t, h.books)
	assert.Equal(t, 5, total, "the orphan is reused, not duplicated")
	assert.Equal(t, 5, existing)
}

func TestEngine_ChangedFileIsReread(t *testing.T) {
	h := newHarness(t)
	h.populate()

	_, first := h.run()
	alpha := first.books[bookfile.Physical(h.path("alpha.fb2"))]

	mustWrite(t, h.path("alpha.fb2"), fb2Doc("Alpha, Revised Edition", "Smith"))

	result, sink := h.run()
	assert.Equal(t, 1, result.Reread)
	got := sink.books[alpha.File]
	require.NotNil(t, got)
	assert.Equal(t, "Alpha, Revised Edition", got.Title)
	assert.Equal(t, alpha.ID, got.ID)

	stored, err := h.books.LoadBook(context.Background(), alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha, Revised Edition", stored.Title)
}

func TestEngine_ChangedArchiveRereadsEveryEntry(t *testing.T) {
	h := newHarness(t)
	h.populate()
	h.run()

	writeZipFile(t, h.path("pack.zip"), map[string]string{
		"one.fb2": fb2Doc("Gamma II", "Foo"),
		"two.fb2": fb2Doc("Delta II", "Foo"),
	})

	result, sink := h.run()
	assert.Equal(t, 2, result.Reread)
	assert.Contains(t, sink.titles(), "Gamma II")
	assert.Contains(t, sink.titles(), "Delta II")
}

func TestEngine_FailedRereadIsRetried(t *testing.T) {
	h := newHarness(t)
	h.populate()

	_, first := h.run()
	alpha := first.books[bookfile.Physical(h.path("alpha.fb2"))]

	mustWrite(t, h.path("alpha.fb2"), "<FictionBook><broken")
	result, sink := h.run()
	assert.Equal(t, 1, result.Failed)
	assert.NotContains(t, sink.books, alpha.File, "an unreadable changed file is not added")

	// Same broken content: the fingerprint was dropped, so it is tried again.
	result, _ = h.run()
	assert.Equal(t, 1, result.Failed)

	mustWrite(t, h.path("alpha.fb2"), fb2Doc("Alpha Again", "Smith"))
	result, sink = h.run()
	assert.Equal(t, 1, result.Reread)
	require.Contains(t, sink.books, alpha.File)
	assert.Equal(t, "Alpha Again", sink.books[alpha.File].Title)
}

func TestEngine_StaleEntrySkipped(t *testing.T) {
	h := newHarness(t)
	mustWrite(t, h.path("story.fb2"), fb2Doc("Story", "Smith"))

	// A record for an entry of a file that is not an archive.
	stale := domain.NewBook(bookfile.File{Path: h.path("story.fb2"), Entry: "story.fb2"})
	stale.Title = "Stale"
	_, err := h.books.SaveBook(context.Background(), fingerprint.ID(stale.File), stale, true)
	require.NoError(t, err)

	result, sink := h.run()
	assert.Equal(t, 1, result.Stale)
	assert.Equal(t, 1, result.New)
	assert.NotContains(t, sink.books, stale.File)
	require.Contains(t, sink.books, bookfile.Physical(h.path("story.fb2")))
	assert.Equal(t, "Story", sink.books[bookfile.Physical(h.path("story.fb2"))].Title)
}

func TestEngine_DuplicateRootsResolveOnce(t *testing.T) {
	h := newHarness(t)
	h.populate()

	result, sink := h.run(func(o *Options) { o.Roots = []string{h.root, h.root} })

	assert.Equal(t, 4, result.New)
	assert.Len(t, sink.books, 5)
}

func TestEngine_HelpLocale(t *testing.T) {
	h := newHarness(t)

	_, sink := h.run(func(o *Options) { o.HelpLocale = "de_DE" })
	assert.Contains(t, sink.books, bookfile.HelpFile("de"))

	// Switching locale orphans the old help book.
	result, sink := h.run()
	assert.Equal(t, 1, result.Orphaned)
	assert.Contains(t, sink.books, bookfile.HelpFile("en"))
	assert.NotContains(t, sink.books, bookfile.HelpFile("de"))
}

func TestEngine_ReportsProgressPhases(t *testing.T) {
	h := newHarness(t)
	h.populate()

	var phases []Phase
	h.run(func(o *Options) {
		o.OnProgress = func(p *Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		}
	})

	assert.Equal(t, []Phase{PhaseLoading, PhaseValidating, PhaseWalking, PhaseHelp, PhaseSaving, PhaseComplete}, phases)
}

func TestEngine_CanceledContext(t *testing.T) {
	h := newHarness(t)
	h.populate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(h.books, h.cache, formats.Default(), testLogger(), Options{Roots: []string{h.root}})
	_, err := engine.Run(ctx, newMapSink(h.books))
	assert.Error(t, err)
}
