package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/id"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// makeTestBook creates an unsaved book for a physical file.
func makeTestBook(path, title string) *domain.Book {
	b := domain.NewBook(bookfile.Physical(path))
	b.Title = title
	return b
}

func TestSaveAndLoadBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := domain.NewBook(bookfile.EntryOf(bookfile.Physical("/books/pack.zip"), "dune.fb2"))
	book.Title = "Dune"
	book.AddAuthor(domain.NewAuthor("Frank Herbert", ""))
	book.AddTag(domain.NewTag("Fiction", "Science Fiction"))
	book.SetSeries("Dune Chronicles", "1")
	book.Language = "en"
	book.Encoding = "utf-8"
	book.Description = "Desert planet."
	book.Fingerprint = domain.Fingerprint{Size: 1234, CRC32: 0xcafebabe}

	wrote, err := s.SaveBook(ctx, "file-dune", book, false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !wrote {
		t.Fatal("expected first save to write")
	}
	if !id.HasPrefix(book.ID, id.PrefixBook) {
		t.Errorf("expected generated book id, got %q", book.ID)
	}
	if !book.IsSaved() {
		t.Error("expected book to be marked saved")
	}

	got, err := s.LoadBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.File != book.File {
		t.Errorf("file: got %v want %v", got.File, book.File)
	}
	if got.Title != "Dune" || got.Language != "en" || got.Encoding != "utf-8" || got.Description != "Desert planet." {
		t.Errorf("scalar fields not round-tripped: %+v", got)
	}
	if len(got.Authors) != 1 || got.Authors[0] != book.Authors[0] {
		t.Errorf("authors: got %v", got.Authors)
	}
	if len(got.Tags) != 1 || got.Tags[0].Key() != "Fiction/Science Fiction" {
		t.Errorf("tags: got %v", got.Tags)
	}
	if !got.Series.Equal(book.Series) {
		t.Errorf("series: got %+v", got.Series)
	}
	if got.Fingerprint != book.Fingerprint {
		t.Errorf("fingerprint: got %+v", got.Fingerprint)
	}
	if !got.IsSaved() {
		t.Error("loaded books are saved")
	}

	byFile, err := s.LoadBookByFile(ctx, "file-dune")
	if err != nil {
		t.Fatalf("load by file: %v", err)
	}
	if byFile.ID != book.ID {
		t.Errorf("load by file: got %s want %s", byFile.ID, book.ID)
	}
}

func TestSaveBook_SkipsSavedUnlessForced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("/books/a.epub", "A")
	if _, err := s.SaveBook(ctx, "f", book, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	wrote, err := s.SaveBook(ctx, "f", book, false)
	if err != nil || wrote {
		t.Fatalf("expected no write for saved book, got wrote=%v err=%v", wrote, err)
	}

	wrote, err = s.SaveBook(ctx, "f", book, true)
	if err != nil || !wrote {
		t.Fatalf("expected forced write, got wrote=%v err=%v", wrote, err)
	}
}

func TestSaveBook_AdoptsStoredID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := makeTestBook("/books/a.epub", "Old title")
	if _, err := s.SaveBook(ctx, "f", first, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread := makeTestBook("/books/a.epub", "New title")
	if _, err := s.SaveBook(ctx, "f", reread, false); err != nil {
		t.Fatalf("save reread: %v", err)
	}
	if reread.ID != first.ID {
		t.Errorf("expected reread book to keep id %s, got %s", first.ID, reread.ID)
	}

	got, err := s.LoadBook(ctx, first.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "New title" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
}

func TestLoadBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadBook(context.Background(), "book-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = s.LoadBookByFile(context.Background(), "nope")
	if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("expected not-found code, got %v", err)
	}
}

func TestLoadBooksAndSetExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := makeTestBook("/books/a.epub", "A")
	b := makeTestBook("/books/b.epub", "B")
	for fileID, book := range map[string]*domain.Book{"fa": a, "fb": b} {
		if _, err := s.SaveBook(ctx, fileID, book, false); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if err := s.SetExisting(ctx, []string{b.ID}, false); err != nil {
		t.Fatalf("set existing: %v", err)
	}

	existing, err := s.LoadBooks(ctx, true)
	if err != nil {
		t.Fatalf("load existing: %v", err)
	}
	if len(existing) != 1 || existing["fa"] == nil || existing["fa"].ID != a.ID {
		t.Errorf("unexpected existing set: %v", existing)
	}

	missing, err := s.LoadBooks(ctx, false)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if len(missing) != 1 || missing["fb"] == nil {
		t.Errorf("unexpected missing set: %v", missing)
	}

	// Updating a record keeps its flag; only SetExisting brings it back.
	missing["fb"].Title = "B revised"
	if _, err := s.SaveBook(ctx, "fb", missing["fb"], true); err != nil {
		t.Fatalf("resave: %v", err)
	}
	_, count, err := s.CountBooks(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected the update to keep the book missing, got %d existing", count)
	}

	if err := s.SetExisting(ctx, []string{b.ID}, true); err != nil {
		t.Fatalf("set existing: %v", err)
	}
	if _, count, _ = s.CountBooks(ctx); count != 2 {
		t.Errorf("expected both books existing, got %d", count)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
