package library

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Books returns every indexed book ordered by title.
func (l *Library) Books() []*domain.Book {
	return l.filter(func(*domain.Book) bool { return true })
}

// BooksByAuthor returns the books by author. UnknownAuthor selects the books
// that list no author.
func (l *Library) BooksByAuthor(author domain.Author) []*domain.Book {
	return l.filter(func(b *domain.Book) bool { return b.HasAuthor(author) })
}

// BooksByTag returns the books carrying tag itself. UnknownTag selects
// untagged books.
func (l *Library) BooksByTag(tag *domain.Tag) []*domain.Book {
	if tag.IsUnknown() {
		return l.filter(func(b *domain.Book) bool { return len(b.Tags) == 0 })
	}
	return l.filter(func(b *domain.Book) bool { return b.HasTag(tag) })
}

// BooksForSeries returns the books of the series, in series order.
func (l *Library) BooksForSeries(title string) []*domain.Book {
	books := l.filter(func(b *domain.Book) bool {
		return b.Series != nil && b.Series.Title == title
	})
	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		ai, aok := a.Series.Ordinal()
		bi, bok := b.Series.Ordinal()
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		}
		return 0
	})
	return books
}

// BooksForTitlePrefix returns the books whose folded title starts with the
// folded prefix. An empty prefix selects every book.
func (l *Library) BooksForTitlePrefix(prefix string) []*domain.Book {
	prefix = domain.Fold(prefix)
	return l.filter(func(b *domain.Book) bool {
		return strings.HasPrefix(b.SortTitle(), prefix)
	})
}

// BooksForPattern returns the books matching pattern. An empty pattern matches nothing.
func (l *Library) BooksForPattern(pattern string) []*domain.Book {
	if strings.TrimSpace(pattern) == "" {
		return nil
	}
	return l.filter(func(b *domain.Book) bool { return b.Matches(pattern) })
}

// Search runs a full-text query and resolves the hits to books, best match
// first. Without a searcher it falls back to BooksForPattern.
func (l *Library) Search(ctx context.Context, query string, limit int) ([]*domain.Book, error) {
	l.mu.Lock()
	searcher := l.searcher
	l.mu.Unlock()

	if searcher == nil {
		books := l.BooksForPattern(query)
		if limit > 0 && len(books) > limit {
			books = books[:limit]
		}
		return books, nil
	}

	ids, err := searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	books := make([]*domain.Book, 0, len(ids))
	for _, id := range ids {
		if b := l.GetByID(ctx, id); b != nil {
			books = append(books, b)
		}
	}
	return books, nil
}

// Authors returns the distinct authors ordered by sort key. UnknownAuthor is
// included, first, when some book lists no author.
func (l *Library) Authors() []domain.Author {
	l.mu.Lock()
	seen := make(map[domain.Author]struct{})
	for _, b := range l.byFile {
		if len(b.Authors) == 0 {
			seen[domain.UnknownAuthor] = struct{}{}
		}
		for _, a := range b.Authors {
			seen[a] = struct{}{}
		}
	}
	l.mu.Unlock()

	out := make([]domain.Author, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	slices.SortFunc(out, domain.Author.Compare)
	return out
}

// Tags returns the distinct tags of all books together with every ancestor,
// ordered by path. UnknownTag is included, first, when some book is untagged.
func (l *Library) Tags() []*domain.Tag {
	l.mu.Lock()
	seen := make(map[string]*domain.Tag)
	for _, b := range l.byFile {
		if len(b.Tags) == 0 {
			seen[""] = domain.UnknownTag
		}
		for _, t := range b.Tags {
			for _, a := range t.Ancestors() {
				seen[a.Key()] = a
			}
		}
	}
	l.mu.Unlock()

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*domain.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// HasSeries reports whether some book belongs to a series.
func (l *Library) HasSeries() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.byFile {
		if b.Series != nil {
			return true
		}
	}
	return false
}

// Series returns the distinct series titles in order.
func (l *Library) Series() []string {
	l.mu.Lock()
	seen := make(map[string]struct{})
	for _, b := range l.byFile {
		if b.Series != nil {
			seen[b.Series.Title] = struct{}{}
		}
	}
	l.mu.Unlock()

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b string) int {
		return cmp.Or(strings.Compare(domain.Fold(a), domain.Fold(b)), strings.Compare(a, b))
	})
	return out
}

// filter returns copies of the matching books ordered by title, then file.
// keep runs with l.mu held.
func (l *Library) filter(keep func(*domain.Book) bool) []*domain.Book {
	l.mu.Lock()
	var out []*domain.Book
	for _, b := range l.byFile {
		if keep(b) {
			out = append(out, b.Snapshot())
		}
	}
	l.mu.Unlock()

	slices.SortFunc(out, compareBooks)
	return out
}

func compareBooks(a, b *domain.Book) int {
	return cmp.Or(
		strings.Compare(a.SortTitle(), b.SortTitle()),
		strings.Compare(a.File.Identity(), b.File.Identity()),
	)
}
