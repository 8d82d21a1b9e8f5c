// Package tree keeps sorted category views of the library (by author, tag,
// title, series and directory) up to date from book events.
//
// A view is a tree of Nodes. Children are always sorted; lookup-or-insert
// binary-searches them and inserts a missing child at the insertion point.
// Book leaves hold the book's file as a handle into the library index, never
// a copy of the book.
//
// Nodes are not safe for concurrent use. Library serializes access.
package tree

import (
	"cmp"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/events"
)

// Kind identifies the variant of a node.
type Kind string

// Node kinds.
const (
	KindRoot   Kind = "root"
	KindAuthor Kind = "author"
	KindTag    Kind = "tag"
	KindTitle  Kind = "title"
	KindSeries Kind = "series"
	KindFile   Kind = "file"
	KindBook   Kind = "book"
)

// Node is one entry of a view. Which fields are meaningful depends on kind.
type Node struct {
	kind   Kind
	name   string
	key    string
	hasKey bool

	root    string        // KindRoot: category id
	pattern string        // RootFound
	grouped bool          // RootByTitle: children are letter buckets
	ordered bool          // children keep source order instead of sort order
	pinned  bool          // survives losing its last child
	author  domain.Author // KindAuthor
	tag     *domain.Tag   // KindTag
	letter  string        // KindTitle
	series  string        // KindSeries
	dir     string        // KindFile

	file       bookfile.File // KindBook: handle into the library index
	ordinal    float64       // KindBook under a series
	hasOrdinal bool

	parent   *Node
	children []*Node
}

func newAuthorNode(a domain.Author) *Node {
	n := &Node{kind: KindAuthor, author: a, name: a.String()}
	if !a.IsUnknown() {
		n.key, n.hasKey = " author:"+a.SortKey+":"+domain.Fold(a.DisplayName), true
	}
	return n
}

func newTagNode(t *domain.Tag) *Node {
	if t.IsUnknown() {
		return &Node{kind: KindTag, tag: domain.UnknownTag, name: domain.UnknownTag.String()}
	}
	return &Node{kind: KindTag, tag: t, name: t.Name, key: " tag:" + domain.Fold(t.Name), hasKey: true}
}

func newTitleNode(letter string) *Node {
	return &Node{kind: KindTitle, letter: letter, name: strings.ToUpper(letter), key: letter, hasKey: letter != ""}
}

func newSeriesNode(title string) *Node {
	return &Node{kind: KindSeries, series: title, name: title, key: " series:" + domain.Fold(title), hasKey: true}
}

func newFileNode(dir string) *Node {
	return &Node{kind: KindFile, dir: dir, name: dir, key: " file:" + dir, hasKey: true, pinned: true}
}

func newBookNode(b *domain.Book, inSeries bool) *Node {
	n := &Node{kind: KindBook, file: b.File}
	n.setBook(b, inSeries)
	return n
}

// setBook copies the ordering fields of b into a leaf.
func (n *Node) setBook(b *domain.Book, inSeries bool) {
	n.name = b.Title
	if strings.TrimSpace(n.name) == "" {
		n.name = b.File.Name()
	}
	n.key, n.hasKey = b.SortTitle(), true
	n.ordinal, n.hasOrdinal = 0, false
	if inSeries {
		n.ordinal, n.hasOrdinal = b.Series.Ordinal()
	}
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// ID returns the category id of a root node and "" otherwise.
func (n *Node) ID() string { return n.root }

// SortKey returns the ordering key. Unknown sentinels have none.
func (n *Node) SortKey() (string, bool) { return n.key, n.hasKey }

// File returns the book handle of a leaf.
func (n *Node) File() bookfile.File { return n.file }

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the children in order.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Walk visits n and its descendants depth first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Leaves returns the book handles below n in tree order.
func (n *Node) Leaves() []bookfile.File {
	var out []bookfile.File
	n.Walk(func(c *Node) {
		if c.kind == KindBook {
			out = append(out, c.file)
		}
	})
	return out
}

// compare is the total order of siblings: nodes without a key first, then by
// key, then by kind name. Series members order by ordinal before title, and
// equal books fall back to their file identity.
func compare(a, b *Node) int {
	switch {
	case !a.hasKey && !b.hasKey:
	case !a.hasKey:
		return -1
	case !b.hasKey:
		return 1
	default:
		if a.kind == KindBook && b.kind == KindBook {
			switch {
			case a.hasOrdinal && b.hasOrdinal:
				if c := cmp.Compare(a.ordinal, b.ordinal); c != 0 {
					return c
				}
			case a.hasOrdinal:
				return -1
			case b.hasOrdinal:
				return 1
			}
		}
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
	}
	if c := strings.Compare(string(a.kind), string(b.kind)); c != 0 {
		return c
	}
	if a.kind == KindBook {
		return strings.Compare(a.file.Identity(), b.file.Identity())
	}
	return 0
}

// search returns the insertion point of probe and whether an equal child sits there.
func (n *Node) search(probe *Node) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return compare(n.children[i], probe) >= 0
	})
	return i, i < len(n.children) && compare(n.children[i], probe) == 0
}

// child returns the child equal to probe, attaching probe at its insertion
// point when there is none.
func (n *Node) child(probe *Node) (c *Node, created bool) {
	if n.ordered {
		n.attach(len(n.children), probe)
		return probe, true
	}
	i, found := n.search(probe)
	if found {
		return n.children[i], false
	}
	n.attach(i, probe)
	return probe, true
}

func (n *Node) attach(i int, c *Node) {
	c.parent = n
	n.children = slices.Insert(n.children, i, c)
}

func (n *Node) detach(c *Node) {
	i := -1
	if !n.ordered {
		if j, found := n.search(c); found && n.children[j] == c {
			i = j
		}
	}
	if i < 0 {
		i = slices.Index(n.children, c)
	}
	if i < 0 {
		return
	}
	n.children = slices.Delete(n.children, i, i+1)
	c.parent = nil
}

func (n *Node) clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// ContainsBook reports whether b belongs under n.
func (n *Node) ContainsBook(b *domain.Book) bool {
	if b == nil {
		return false
	}
	switch n.kind {
	case KindRoot:
		switch n.root {
		case RootByAuthor, RootByTitle, RootByTag, RootFileTree:
			return true
		case RootBySeries:
			return b.Series != nil
		case RootFound:
			return n.pattern != "" && b.Matches(n.pattern)
		}
		return false
	case KindAuthor:
		return b.HasAuthor(n.author)
	case KindTag:
		if n.tag.IsUnknown() {
			return len(b.Tags) == 0
		}
		return b.HasTagOrAncestor(n.tag)
	case KindTitle:
		return domain.TitleLetter(b) == n.letter
	case KindSeries:
		return b.Series != nil && b.Series.Title == n.series
	case KindFile:
		return underDir(b.File, n.dir)
	case KindBook:
		return b.File == n.file
	}
	return false
}

// OnBookEvent applies one book event to the subtree and reports whether it changed.
//
// Added attaches a leaf when n contains the book. Removed drops every leaf of
// the book and collapses emptied branches below n. Updated refreshes the
// leaves of the book in place; it never moves a leaf to another category.
func (n *Node) OnBookEvent(kind events.BookEventKind, b *domain.Book) bool {
	if b == nil {
		return false
	}
	switch kind {
	case events.BookAdded:
		return n.ContainsBook(b) && n.addBook(b)
	case events.BookRemoved:
		return n.RemoveBook(b, true)
	case events.BookUpdated:
		return n.updateBook(b)
	}
	return false
}

func (n *Node) addBook(b *domain.Book) bool {
	switch n.kind {
	case KindRoot:
		return n.addToRoot(b)
	case KindAuthor:
		return n.addRouted(b)
	case KindTag:
		return n.addToTag(b)
	case KindSeries:
		return n.addLeaf(b, true)
	case KindTitle, KindFile:
		return n.addLeaf(b, false)
	}
	return false
}

func (n *Node) addToRoot(b *domain.Book) bool {
	changed := false
	switch n.root {
	case RootByAuthor:
		authors := b.Authors
		if len(authors) == 0 {
			authors = []domain.Author{domain.UnknownAuthor}
		}
		for _, a := range authors {
			c, _ := n.child(newAuthorNode(a))
			changed = c.OnBookEvent(events.BookAdded, b) || changed
		}
	case RootByTitle:
		if !n.grouped {
			return n.addLeaf(b, false)
		}
		c, _ := n.child(newTitleNode(domain.TitleLetter(b)))
		changed = c.OnBookEvent(events.BookAdded, b)
	case RootBySeries:
		c, _ := n.child(newSeriesNode(b.Series.Title))
		changed = c.OnBookEvent(events.BookAdded, b)
	case RootByTag:
		if len(b.Tags) == 0 {
			c, _ := n.child(newTagNode(domain.UnknownTag))
			return c.OnBookEvent(events.BookAdded, b)
		}
		for _, t := range b.Tags {
			ancestors := t.Ancestors()
			c, _ := n.child(newTagNode(ancestors[len(ancestors)-1]))
			changed = c.OnBookEvent(events.BookAdded, b) || changed
		}
	case RootFound:
		return n.addLeaf(b, false)
	case RootFileTree:
		for _, c := range n.children {
			changed = c.OnBookEvent(events.BookAdded, b) || changed
		}
	}
	return changed
}

// addRouted attaches b under its series node when it has a series, else directly.
func (n *Node) addRouted(b *domain.Book) bool {
	if b.Series != nil {
		c, _ := n.child(newSeriesNode(b.Series.Title))
		return c.addLeaf(b, true)
	}
	return n.addLeaf(b, false)
}

func (n *Node) addToTag(b *domain.Book) bool {
	if n.tag.IsUnknown() {
		return n.addLeaf(b, false)
	}
	changed := false
	key := n.tag.Key()
	for _, t := range b.Tags {
		if t.Key() == key {
			changed = n.addLeaf(b, false) || changed
			continue
		}
		// Descend one level towards t.
		for cur := t; cur.Parent != nil; cur = cur.Parent {
			if cur.Parent.Key() == key {
				c, _ := n.child(newTagNode(cur))
				changed = c.OnBookEvent(events.BookAdded, b) || changed
				break
			}
		}
	}
	return changed
}

func (n *Node) addLeaf(b *domain.Book, inSeries bool) bool {
	_, created := n.child(newBookNode(b, inSeries))
	return created
}

// RemoveBook drops every leaf of b below n. When recursive is set, ancestors
// left without children are removed too, up to but excluding n.
func (n *Node) RemoveBook(b *domain.Book, recursive bool) bool {
	leaves := n.leavesOf(b.File)
	for _, leaf := range leaves {
		parent := leaf.parent
		parent.detach(leaf)
		if !recursive {
			continue
		}
		for p := parent; p != n && !p.pinned && len(p.children) == 0; {
			up := p.parent
			if up == nil {
				break
			}
			up.detach(p)
			p = up
		}
	}
	return len(leaves) > 0
}

// updateBook refreshes the leaves of b, moving a leaf among its siblings
// when its sort position changed.
func (n *Node) updateBook(b *domain.Book) bool {
	leaves := n.leavesOf(b.File)
	for _, leaf := range leaves {
		parent := leaf.parent
		inSeries := parent.kind == KindSeries && b.Series != nil
		if parent.ordered {
			leaf.setBook(b, inSeries)
			continue
		}
		parent.detach(leaf)
		leaf.setBook(b, inSeries)
		if i, found := parent.search(leaf); !found {
			parent.attach(i, leaf)
		}
	}
	return len(leaves) > 0
}

func (n *Node) leavesOf(file bookfile.File) []*Node {
	var out []*Node
	n.Walk(func(c *Node) {
		if c != n && c.kind == KindBook && c.file == file {
			out = append(out, c)
		}
	})
	return out
}

func underDir(f bookfile.File, dir string) bool {
	physical := f.PhysicalFile()
	if physical.IsZero() || dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), physical.Path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
