package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
)

func sampleBook() *Book {
	b := NewBook(bookfile.Physical("/books/dune.epub"))
	b.Title = "Dune"
	b.AddAuthor(NewAuthor("Frank Herbert", ""))
	b.AddTag(NewTag("Fiction", "Science Fiction"))
	b.SetSeries("Dune Chronicles", "1")
	return b
}

func TestNewAuthor_SortKey(t *testing.T) {
	assert.Equal(t, "herbert frank", NewAuthor("Frank  Herbert", "").SortKey)
	assert.Equal(t, "Frank Herbert", NewAuthor("Frank  Herbert", "").DisplayName)
	assert.Equal(t, "homer", NewAuthor("Homer", "").SortKey)
	assert.Equal(t, "tolkien, j.r.r.", NewAuthor("J.R.R. Tolkien", "Tolkien, J.R.R.").SortKey)
	assert.True(t, UnknownAuthor.IsUnknown())
}

func TestAuthor_Compare(t *testing.T) {
	a := NewAuthor("Ann Smith", "")
	b := NewAuthor("Bob Smith", "")
	c := NewAuthor("Al Jones", "")

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, a.Compare(c))
	assert.Zero(t, a.Compare(NewAuthor("Ann Smith", "")))
}

func TestTag_Hierarchy(t *testing.T) {
	tag := NewTag("Fiction", "", "Fantasy", "High")

	assert.Equal(t, []string{"Fiction", "Fantasy", "High"}, tag.Path())
	assert.Equal(t, "Fiction/Fantasy/High", tag.Key())
	assert.Len(t, tag.Ancestors(), 3)
	assert.True(t, tag.Equal(ParseTag("Fiction/Fantasy/High")))
	assert.False(t, tag.Equal(ParseTag("Fiction/Fantasy")))
	assert.True(t, UnknownTag.IsUnknown())
	assert.Nil(t, NewTag())
}

func TestGetTag_Interns(t *testing.T) {
	fiction := GetTag(nil, "Fiction")
	fantasy := GetTag(fiction, " Fantasy ")

	assert.Same(t, fantasy, NewTag("Fiction", "Fantasy"))
	assert.Same(t, fiction, fantasy.Parent)
	assert.Same(t, fiction, GetTag(fiction, ""))
	assert.Same(t, fiction, GetTag(UnknownTag, "Fiction"))
	assert.NotSame(t, GetTag(nil, "Fantasy"), fantasy)
}

func TestBook_AddAuthorAndTagDeduplicate(t *testing.T) {
	b := sampleBook()
	b.AddAuthor(NewAuthor("Frank Herbert", ""))
	b.AddAuthor(UnknownAuthor)
	b.AddTag(ParseTag("Fiction/Science Fiction"))
	b.AddTag(UnknownTag)

	assert.Len(t, b.Authors, 1)
	assert.Len(t, b.Tags, 1)
	assert.True(t, b.HasTagOrAncestor(NewTag("Fiction")))
	assert.False(t, b.HasTag(NewTag("Fiction")))
	assert.False(t, b.HasAuthor(UnknownAuthor))
	assert.True(t, NewBook(bookfile.Physical("/x")).HasAuthor(UnknownAuthor))
}

func TestBook_UpdateFromKeepsIdentity(t *testing.T) {
	live := sampleBook()
	live.ID = "book-1"
	live.MarkSaved()
	require.True(t, live.IsSaved())

	fresh := NewBook(live.File)
	fresh.Title = "Dune (Deluxe)"
	fresh.AddAuthor(NewAuthor("Frank Herbert", ""))
	fresh.AddTag(NewTag("Classics"))
	fresh.Fingerprint = Fingerprint{Size: 10, ModTime: 20}

	ptr := live
	changed := live.UpdateFrom(fresh)

	assert.True(t, changed)
	assert.Same(t, ptr, live)
	assert.Equal(t, "book-1", live.ID, "existing id is kept")
	assert.Equal(t, "Dune (Deluxe)", live.Title)
	assert.Nil(t, live.Series)
	assert.Equal(t, "Classics", live.Tags[0].Key())
	assert.False(t, live.IsSaved())

	assert.False(t, live.UpdateFrom(live.Snapshot()), "merging an equal copy changes nothing")
}

func TestBook_UpdateFromAdoptsID(t *testing.T) {
	live := NewBook(bookfile.Physical("/a.txt"))
	other := NewBook(bookfile.Physical("/a.txt"))
	other.ID = "book-9"

	assert.True(t, live.UpdateFrom(other))
	assert.Equal(t, "book-9", live.ID)
}

func TestBook_Matches(t *testing.T) {
	b := sampleBook()

	for _, pattern := range []string{"dune", "HERBERT", "chronicles", "science", "dune.ep"} {
		assert.True(t, b.Matches(pattern), pattern)
	}
	assert.False(t, b.Matches("asimov"))
}

func TestBook_SnapshotIsIndependent(t *testing.T) {
	b := sampleBook()
	b.MarkVisited("link-1")

	snap := b.Snapshot()
	snap.Authors[0] = NewAuthor("Someone Else", "")
	snap.Series.Index = "9"

	assert.Equal(t, "Frank Herbert", b.Authors[0].DisplayName)
	assert.Equal(t, "1", b.Series.Index)
	assert.True(t, snap.Equal(b))
	assert.False(t, snap.VisitedLoaded())
}

func TestBook_Visited(t *testing.T) {
	b := sampleBook()
	assert.False(t, b.VisitedLoaded())

	b.SetVisited([]string{"a"})
	assert.True(t, b.IsVisited("a"))
	assert.False(t, b.MarkVisited("a"))
	assert.True(t, b.MarkVisited("b"))
	assert.True(t, b.IsVisited("b"))
}

func TestBook_SortTitle(t *testing.T) {
	assert.Equal(t, "dune", sampleBook().SortTitle())
	assert.Equal(t, "notes.txt", NewBook(bookfile.Physical("/x/Notes.txt")).SortTitle())
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("STRASSE"), Fold("straße"))
	assert.True(t, HasPrefixFold("Ｄune", "du"), "full-width letters normalize")
	assert.True(t, ContainsFold("The Hobbit", "HOB"))
}

func TestSortBookmarksByTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := base.Add(2 * time.Hour)

	old := &Bookmark{ID: 1, CreatedAt: base}
	touched := &Bookmark{ID: 2, CreatedAt: base, AccessedAt: &later}
	recent := &Bookmark{ID: 3, CreatedAt: base.Add(time.Hour)}

	list := []*Bookmark{old, recent, touched}
	SortBookmarksByTime(list)

	assert.Equal(t, []int64{2, 3, 1}, []int64{list[0].ID, list[1].ID, list[2].ID})
}

func TestGroupTitlesByLetter(t *testing.T) {
	makeBooks := func(titles ...string) []*Book {
		out := make([]*Book, 0, len(titles))
		for i, title := range titles {
			b := NewBook(bookfile.Physical("/b/" + string(rune('a'+i))))
			b.Title = title
			out = append(out, b)
		}
		return out
	}

	assert.False(t, GroupTitlesByLetter(makeBooks("A", "B")), "too few books")
	assert.True(t, GroupTitlesByLetter(makeBooks(
		"Apple", "Avocado", "Banana", "Blueberry", "Cherry", "Citron",
		"Date", "Durian", "Elder", "Eggplant", "Fig",
	)))
	assert.False(t, GroupTitlesByLetter(makeBooks(
		"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K",
	)), "every title has its own letter")

	assert.Equal(t, "ä", TitleLetter(makeBooks("Äpfel")[0]))
}
