package sqlite

import (
	"context"
	"slices"
	"testing"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

func saveBooks(t *testing.T, s *Store, titles ...string) []*domain.Book {
	t.Helper()
	out := make([]*domain.Book, 0, len(titles))
	for _, title := range titles {
		b := makeTestBook("/books/"+title+".epub", title)
		if _, err := s.SaveBook(context.Background(), "file-"+title, b, false); err != nil {
			t.Fatalf("save %s: %v", title, err)
		}
		out = append(out, b)
	}
	return out
}

func TestRecentBookIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	books := saveBooks(t, s, "a", "b", "c")

	ids := []string{books[2].ID, "book-unknown", books[0].ID}
	if err := s.SaveRecentBookIDs(ctx, ids); err != nil {
		t.Fatalf("save recent: %v", err)
	}

	got, err := s.LoadRecentBookIDs(ctx)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	want := []string{books[2].ID, books[0].ID}
	if !slices.Equal(got, want) {
		t.Errorf("recent: got %v want %v", got, want)
	}

	if err := s.SaveRecentBookIDs(ctx, []string{books[1].ID}); err != nil {
		t.Fatalf("replace recent: %v", err)
	}
	got, _ = s.LoadRecentBookIDs(ctx)
	if !slices.Equal(got, []string{books[1].ID}) {
		t.Errorf("expected list to be replaced, got %v", got)
	}
}

func TestFavorites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	books := saveBooks(t, s, "a", "b")

	has, err := s.HasFavorites(ctx)
	if err != nil || has {
		t.Fatalf("expected no favorites, got %v %v", has, err)
	}

	for range 2 {
		if err := s.AddToFavorites(ctx, books[1].ID); err != nil {
			t.Fatalf("add favorite: %v", err)
		}
	}

	ids, err := s.LoadFavoriteIDs(ctx)
	if err != nil {
		t.Fatalf("load favorites: %v", err)
	}
	if !slices.Equal(ids, []string{books[1].ID}) {
		t.Errorf("favorites: got %v", ids)
	}

	fav, _ := s.IsFavorite(ctx, books[1].ID)
	notFav, _ := s.IsFavorite(ctx, books[0].ID)
	if !fav || notFav {
		t.Errorf("IsFavorite: got %v/%v", fav, notFav)
	}

	if err := s.RemoveFromFavorites(ctx, books[1].ID); err != nil {
		t.Fatalf("remove favorite: %v", err)
	}
	has, _ = s.HasFavorites(ctx)
	if has {
		t.Error("expected favorites to be empty after removal")
	}
}

func TestAddToFavorites_UnknownBook(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddToFavorites(context.Background(), "book-ghost"); err == nil {
		t.Error("expected foreign key failure for unknown book")
	}
}
