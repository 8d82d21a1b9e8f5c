package tree

import (
	"context"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Root category ids.
const (
	RootFound     = "found"
	RootFavorites = "favorites"
	RootRecent    = "recent"
	RootByAuthor  = "byAuthor"
	RootByTitle   = "byTitle"
	RootBySeries  = "bySeries"
	RootByTag     = "byTag"
	RootFileTree  = "fileTree"
)

// RootIDs lists the root categories in display order.
var RootIDs = []string{
	RootFound, RootFavorites, RootRecent,
	RootByAuthor, RootByTitle, RootBySeries, RootByTag, RootFileTree,
}

// Source answers the full queries a refresh rebuilds from. *library.Library
// implements it.
type Source interface {
	Books() []*domain.Book
	BooksByAuthor(domain.Author) []*domain.Book
	BooksByTag(*domain.Tag) []*domain.Book
	BooksForSeries(title string) []*domain.Book
	BooksForTitlePrefix(prefix string) []*domain.Book
	BooksForPattern(pattern string) []*domain.Book
	Authors() []domain.Author
	Tags() []*domain.Tag
	Series() []string
	RecentBooks(ctx context.Context) []*domain.Book
	Favorites(ctx context.Context) []*domain.Book
	Roots() []string
}

// NewRoot creates an empty root category. It returns nil for an unknown id.
func NewRoot(id string) *Node {
	switch id {
	case RootFound, RootByAuthor, RootByTitle, RootBySeries, RootByTag, RootFileTree:
		return &Node{kind: KindRoot, root: id, name: id}
	case RootFavorites, RootRecent:
		return &Node{kind: KindRoot, root: id, name: id, ordered: true}
	}
	return nil
}

// NewSearchRoot creates the found category for pattern.
func NewSearchRoot(pattern string) *Node {
	n := NewRoot(RootFound)
	n.pattern = pattern
	return n
}

// Pattern returns the search pattern of the found category.
func (n *Node) Pattern() string { return n.pattern }

// AlwaysReload reports whether the category is rebuilt every time it is
// opened instead of trusting events. Recent and favorites change without
// book events, and Updated never moves a book to another author.
func (n *Node) AlwaysReload() bool {
	if n.kind != KindRoot {
		return false
	}
	switch n.root {
	case RootRecent, RootFavorites, RootByAuthor:
		return true
	}
	return false
}

// Refresh discards the children of n and rebuilds them from src.
func (n *Node) Refresh(ctx context.Context, src Source) {
	n.clear()
	switch n.kind {
	case KindRoot:
		n.refreshRoot(ctx, src)
	case KindAuthor:
		for _, b := range src.BooksByAuthor(n.author) {
			n.addRouted(b)
		}
	case KindTag:
		n.refreshTag(ctx, src)
	case KindTitle:
		for _, b := range src.BooksForTitlePrefix(n.letter) {
			if domain.TitleLetter(b) == n.letter {
				n.addLeaf(b, false)
			}
		}
	case KindSeries:
		for _, b := range src.BooksForSeries(n.series) {
			n.addLeaf(b, true)
		}
	case KindFile:
		for _, b := range src.Books() {
			if n.ContainsBook(b) {
				n.addLeaf(b, false)
			}
		}
	}
}

func (n *Node) refreshRoot(ctx context.Context, src Source) {
	switch n.root {
	case RootByAuthor:
		for _, a := range src.Authors() {
			c, _ := n.child(newAuthorNode(a))
			c.Refresh(ctx, src)
		}
	case RootByTitle:
		books := src.Books()
		n.grouped = domain.GroupTitlesByLetter(books)
		if !n.grouped {
			for _, b := range books {
				n.addLeaf(b, false)
			}
			return
		}
		for _, b := range books {
			c, created := n.child(newTitleNode(domain.TitleLetter(b)))
			if created {
				c.Refresh(ctx, src)
			}
		}
	case RootBySeries:
		for _, s := range src.Series() {
			c, _ := n.child(newSeriesNode(s))
			c.Refresh(ctx, src)
		}
	case RootByTag:
		for _, t := range src.Tags() {
			if t.IsUnknown() || t.Parent == nil {
				c, _ := n.child(newTagNode(t))
				c.Refresh(ctx, src)
			}
		}
	case RootFound:
		if n.pattern == "" {
			return
		}
		for _, b := range src.BooksForPattern(n.pattern) {
			n.addLeaf(b, false)
		}
	case RootFavorites:
		for _, b := range src.Favorites(ctx) {
			n.addLeaf(b, false)
		}
	case RootRecent:
		for _, b := range src.RecentBooks(ctx) {
			n.addLeaf(b, false)
		}
	case RootFileTree:
		for _, dir := range src.Roots() {
			c, _ := n.child(newFileNode(dir))
			c.Refresh(ctx, src)
		}
	}
}

func (n *Node) refreshTag(ctx context.Context, src Source) {
	if n.tag.IsUnknown() {
		for _, b := range src.BooksByTag(domain.UnknownTag) {
			n.addLeaf(b, false)
		}
		return
	}
	key := n.tag.Key()
	for _, t := range src.Tags() {
		if t.Parent != nil && t.Parent.Key() == key {
			c, _ := n.child(newTagNode(t))
			c.Refresh(ctx, src)
		}
	}
	for _, b := range src.BooksByTag(n.tag) {
		n.addLeaf(b, false)
	}
}
