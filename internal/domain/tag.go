package domain

import (
	"strings"
	"sync"
)

// TagSeparator joins tag names in a tag key.
const TagSeparator = "/"

// Tag is a hierarchical category. A book carrying a tag is implicitly
// associated with every ancestor of that tag.
type Tag struct {
	Name   string `json:"name"`
	Parent *Tag   `json:"parent,omitempty"`
}

// UnknownTag stands in for books that carry no tags.
var UnknownTag = &Tag{}

// tags interns every tag by its path so equal paths share one pointer.
var tags sync.Map

// GetTag returns the interned child of parent named name. A blank name yields parent.
func GetTag(parent *Tag, name string) *Tag {
	name = strings.TrimSpace(name)
	if name == "" {
		return parent
	}
	if parent.IsUnknown() {
		parent = nil
	}

	key := name
	if parent != nil {
		key = parent.internKey() + "\x00" + name
	}
	if t, ok := tags.Load(key); ok {
		return t.(*Tag)
	}
	t, _ := tags.LoadOrStore(key, &Tag{Name: name, Parent: parent})
	return t.(*Tag)
}

// NewTag returns the interned tag named by path, root first. Empty segments are skipped.
func NewTag(path ...string) *Tag {
	var t *Tag
	for _, name := range path {
		t = GetTag(t, name)
	}
	return t
}

// ParseTag splits s on TagSeparator.
func ParseTag(s string) *Tag {
	return NewTag(strings.Split(s, TagSeparator)...)
}

// IsUnknown reports whether t is the UnknownTag sentinel.
func (t *Tag) IsUnknown() bool {
	return t == nil || (t.Name == "" && t.Parent == nil)
}

// Path returns the names from the root ancestor down to t.
func (t *Tag) Path() []string {
	var path []string
	for cur := t; cur != nil; cur = cur.Parent {
		path = append(path, cur.Name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Key is the full path of t; equal keys mean equal tags.
func (t *Tag) Key() string {
	if t.IsUnknown() {
		return ""
	}
	return strings.Join(t.Path(), TagSeparator)
}

func (t *Tag) internKey() string {
	return strings.Join(t.Path(), "\x00")
}

// Equal compares tags by full path.
func (t *Tag) Equal(o *Tag) bool {
	return t.Key() == o.Key()
}

// Ancestors returns t and all of its parents, t first.
func (t *Tag) Ancestors() []*Tag {
	var out []*Tag
	for cur := t; cur != nil; cur = cur.Parent {
		out = append(out, cur)
	}
	return out
}

func (t *Tag) String() string {
	if t.IsUnknown() {
		return "<no tags>"
	}
	return t.Key()
}
