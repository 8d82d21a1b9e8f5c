package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

func TestBookmarks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	books := saveBooks(t, s, "a", "b")

	visible := &domain.Bookmark{BookID: books[0].ID, Text: "quote", Visible: true,
		Position: domain.Position{Paragraph: 4, Element: 2, Char: 9}}
	hidden := &domain.Bookmark{BookID: books[0].ID, Visible: false}
	other := &domain.Bookmark{BookID: books[1].ID, Text: "other", Visible: true}

	for _, bm := range []*domain.Bookmark{visible, hidden, other} {
		newID, err := s.SaveBookmark(ctx, bm)
		if err != nil {
			t.Fatalf("save bookmark: %v", err)
		}
		if newID == 0 || bm.ID != newID {
			t.Fatalf("expected assigned id, got %d/%d", newID, bm.ID)
		}
		if bm.UID == "" || bm.CreatedAt.IsZero() {
			t.Errorf("expected uid and creation time to be set: %+v", bm)
		}
	}

	all, err := s.LoadAllVisibleBookmarks(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 visible bookmarks, got %d", len(all))
	}
	if all[0].BookTitle != "a" || all[0].Position != visible.Position {
		t.Errorf("unexpected first bookmark: %+v", all[0])
	}

	invisible, err := s.LoadBookmarks(ctx, books[0].ID, false)
	if err != nil {
		t.Fatalf("load invisible: %v", err)
	}
	if len(invisible) != 1 || invisible[0].ID != hidden.ID {
		t.Errorf("unexpected invisible bookmarks: %v", invisible)
	}

	now := time.Now()
	visible.Text = "edited"
	visible.ModifiedAt = &now
	if _, err := s.SaveBookmark(ctx, visible); err != nil {
		t.Fatalf("update: %v", err)
	}
	mine, _ := s.LoadBookmarks(ctx, books[0].ID, true)
	if len(mine) != 1 || mine[0].Text != "edited" || mine[0].ModifiedAt == nil {
		t.Errorf("update not persisted: %+v", mine)
	}

	if err := s.DeleteBookmark(ctx, visible.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteBookmark(ctx, visible.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	ghost := &domain.Bookmark{ID: 9999, BookID: books[0].ID}
	if _, err := s.SaveBookmark(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating unknown bookmark, got %v", err)
	}
}

func TestPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	books := saveBooks(t, s, "a")

	pos, err := s.StoredPosition(ctx, books[0].ID)
	if err != nil || pos != nil {
		t.Fatalf("expected no position, got %v %v", pos, err)
	}

	for _, want := range []domain.Position{{Paragraph: 1}, {Paragraph: 7, Element: 3, Char: 2}} {
		if err := s.StorePosition(ctx, books[0].ID, want); err != nil {
			t.Fatalf("store: %v", err)
		}
		got, err := s.StoredPosition(ctx, books[0].ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got == nil || *got != want {
			t.Errorf("position: got %v want %v", got, want)
		}
	}
}

func TestVisitedHyperlinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	books := saveBooks(t, s, "a")

	for _, link := range []string{"n2", "n1", "n2"} {
		if err := s.AddVisitedHyperlink(ctx, books[0].ID, link); err != nil {
			t.Fatalf("add link: %v", err)
		}
	}

	links, err := s.LoadVisitedHyperlinks(ctx, books[0].ID)
	if err != nil {
		t.Fatalf("load links: %v", err)
	}
	if len(links) != 2 || links[0] != "n1" || links[1] != "n2" {
		t.Errorf("links: got %v", links)
	}
}
