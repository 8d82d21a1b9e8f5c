package dto

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
)

func sampleBook() *domain.Book {
	b := domain.NewBook(bookfile.EntryOf(bookfile.Physical("/lib/set.zip"), "dune.fb2"))
	b.ID = "b1"
	b.Title = "Dune"
	b.AddAuthor(domain.NewAuthor("Frank Herbert", ""))
	b.AddTag(domain.NewTag("Fiction", "SF"))
	b.SetSeries("Dune", "1")
	b.Language = "en"
	return b
}

func TestFromBook(t *testing.T) {
	assert.Nil(t, FromBook(nil))

	d := FromBook(sampleBook())
	require.NotNil(t, d)
	assert.Equal(t, "b1", d.ID)
	assert.Equal(t, "Dune", d.Title)
	assert.Equal(t, "/lib/set.zip!/dune.fb2", d.File)
	assert.Equal(t, []BookAuthor{{Name: "Frank Herbert", SortKey: "herbert frank"}}, d.Authors)
	assert.Equal(t, []string{"Fiction/SF"}, d.Tags)
	assert.Equal(t, &BookSeries{Title: "Dune", Index: "1"}, d.Series)
	assert.False(t, d.Favorite)
}

func TestFromBook_EmptyListsAreNotNil(t *testing.T) {
	d := FromBook(domain.NewBook(bookfile.Physical("/lib/a.txt")))
	assert.NotNil(t, d.Authors)
	assert.NotNil(t, d.Tags)
	assert.Nil(t, d.Series)
}

type stubStore struct {
	favorite  bool
	position  *domain.Position
	bookmarks []*domain.Bookmark
	err       error
}

func (s *stubStore) IsFavorite(context.Context, *domain.Book) bool { return s.favorite }

func (s *stubStore) StoredPosition(context.Context, *domain.Book) (*domain.Position, error) {
	return s.position, s.err
}

func (s *stubStore) Bookmarks(context.Context, *domain.Book) ([]*domain.Bookmark, error) {
	return s.bookmarks, nil
}

func TestEnricher_EnrichBook(t *testing.T) {
	st := &stubStore{
		favorite:  true,
		position:  &domain.Position{Paragraph: 4},
		bookmarks: []*domain.Bookmark{{ID: 1}, {ID: 2}},
	}
	d, err := NewEnricher(st).EnrichBook(context.Background(), sampleBook())
	require.NoError(t, err)
	assert.True(t, d.Favorite)
	assert.Equal(t, 4, d.Position.Paragraph)
	assert.Equal(t, 2, d.BookmarkCount)
}

func TestEnricher_UnsavedBookSkipsStore(t *testing.T) {
	st := &stubStore{favorite: true, err: errors.New("must not be called")}
	b := sampleBook()
	b.ID = ""

	d, err := NewEnricher(st).EnrichBook(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, d.Favorite)
}

func TestEnricher_PropagatesErrors(t *testing.T) {
	st := &stubStore{err: errors.New("db down")}
	_, err := NewEnricher(st).EnrichBooks(context.Background(), []*domain.Book{sampleBook()})
	assert.ErrorContains(t, err, "db down")
}
