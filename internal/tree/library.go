package tree

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/events"
)

// BookSource is a Source that can also resolve leaf handles to books.
type BookSource interface {
	Source
	// Lookup returns a copy of the indexed book for file, or nil.
	Lookup(file bookfile.File) *domain.Book
}

// View is a serializable copy of a subtree.
type View struct {
	Kind     Kind         `json:"kind"`
	ID       string       `json:"id,omitempty"`
	Name     string       `json:"name"`
	Book     *domain.Book `json:"book,omitempty"`
	Children []View       `json:"children,omitempty"`
}

// Library holds one tree per root category and keeps them current by
// listening to book events. It is safe for concurrent use.
type Library struct {
	src    BookSource
	logger *slog.Logger

	mu    sync.RWMutex
	roots map[string]*Node
	// pending collects the events that arrive while a root is rebuilt.
	pending map[string][]*eventLog

	unsubscribe func()
}

// New builds every root from src and subscribes to book events on bus.
func New(ctx context.Context, src BookSource, bus *events.Bus, logger *slog.Logger) *Library {
	l := &Library{
		src:     src,
		logger:  logger,
		roots:   make(map[string]*Node, len(RootIDs)),
		pending: make(map[string][]*eventLog),
	}
	for _, id := range RootIDs {
		l.roots[id] = rebuilt(ctx, NewRoot(id), src)
	}
	l.unsubscribe = bus.Subscribe(l, events.FilterAll)
	return l
}

// Close stops listening for events.
func (l *Library) Close() {
	l.unsubscribe()
}

// OnBookEvent implements events.Listener.
func (l *Library) OnBookEvent(e events.BookEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range RootIDs {
		l.roots[id].OnBookEvent(e.Kind, e.Book)
	}
	for _, logs := range l.pending {
		for _, log := range logs {
			log.events = append(log.events, e)
		}
	}
}

// OnBuildEvent implements events.Listener. A finished build may have moved
// the title view across the by-letter threshold, so it is rebuilt.
func (l *Library) OnBuildEvent(kind events.BuildEventKind) {
	if kind != events.BuildSucceeded {
		return
	}
	l.Refresh(context.Background(), RootByTitle)
}

// Refresh rebuilds one root from the library. Unknown ids are ignored.
func (l *Library) Refresh(ctx context.Context, id string) {
	l.mu.Lock()
	old, ok := l.roots[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	fresh := NewRoot(id)
	fresh.pattern = old.pattern
	log := l.watchLocked(id)
	l.mu.Unlock()

	l.install(ctx, id, fresh, log)
	l.logger.Debug("tree refreshed", "root", id, "children", fresh.Len())
}

// Search replaces the found category with the books matching pattern.
func (l *Library) Search(ctx context.Context, pattern string) View {
	l.mu.Lock()
	log := l.watchLocked(RootFound)
	l.mu.Unlock()
	l.install(ctx, RootFound, NewSearchRoot(pattern), log)

	v, _ := l.View(ctx, RootFound)
	return v
}

// eventLog records the book events seen during one rebuild.
type eventLog struct {
	events []events.BookEvent
}

func (l *Library) watchLocked(id string) *eventLog {
	log := &eventLog{}
	l.pending[id] = append(l.pending[id], log)
	return log
}

// install rebuilds fresh from the library and swaps it in for id. Queries
// may publish events, so the rebuild runs without the lock; events that
// arrive meanwhile are replayed onto fresh before the swap.
func (l *Library) install(ctx context.Context, id string, fresh *Node, log *eventLog) {
	fresh.Refresh(ctx, l.src)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range log.events {
		fresh.OnBookEvent(e.Kind, e.Book)
	}
	l.pending[id] = slices.DeleteFunc(l.pending[id], func(p *eventLog) bool { return p == log })
	if len(l.pending[id]) == 0 {
		delete(l.pending, id)
	}
	l.roots[id] = fresh
}

// View returns a copy of the root id, reloading always-reload categories
// first. ok is false for an unknown id.
func (l *Library) View(ctx context.Context, id string) (v View, ok bool) {
	l.mu.RLock()
	root, ok := l.roots[id]
	l.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	if root.AlwaysReload() {
		l.Refresh(ctx, id)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	v, _ = l.view(l.roots[id])
	return v, true
}

// Root runs fn with the root id while holding the read lock. fn must not
// keep references to nodes.
func (l *Library) Root(id string, fn func(*Node)) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	root, ok := l.roots[id]
	if ok {
		fn(root)
	}
	return ok
}

// view copies n. Leaves whose book left the index are skipped.
func (l *Library) view(n *Node) (View, bool) {
	v := View{Kind: n.kind, ID: n.root, Name: n.name}
	if n.kind == KindBook {
		if v.Book = l.src.Lookup(n.file); v.Book == nil {
			return v, false
		}
	}
	for _, c := range n.children {
		if cv, ok := l.view(c); ok {
			v.Children = append(v.Children, cv)
		}
	}
	return v, true
}

func rebuilt(ctx context.Context, root *Node, src Source) *Node {
	root.Refresh(ctx, src)
	return root
}
