// Package events fans out library book and build events to in-process listeners.
package events

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// BookEventKind identifies a change to one book.
type BookEventKind string

// Book event kinds.
const (
	BookAdded   BookEventKind = "book.added"
	BookRemoved BookEventKind = "book.removed"
	BookUpdated BookEventKind = "book.updated"
)

// BuildEventKind identifies a step of a build pass.
type BuildEventKind string

// Build event kinds. Every accepted build fires Started, then Succeeded or
// Failed, then exactly one Completed. A rejected StartBuild fires NotStarted.
const (
	BuildNotStarted BuildEventKind = "build.not_started"
	BuildStarted    BuildEventKind = "build.started"
	BuildSucceeded  BuildEventKind = "build.succeeded"
	BuildFailed     BuildEventKind = "build.failed"
	BuildCompleted  BuildEventKind = "build.completed"
)

// BookEvent carries a snapshot of the book as it was when the event fired.
type BookEvent struct {
	Kind BookEventKind `json:"kind"`
	Book *domain.Book  `json:"book"`
}

// Filter selects the event families a listener receives.
type Filter uint8

// Filters.
const (
	FilterBook Filter = 1 << iota
	FilterBuild

	FilterAll = FilterBook | FilterBuild
)

// Listener receives events on the publisher's goroutine. Listeners may call
// back into library queries but must not block for long.
type Listener interface {
	OnBookEvent(BookEvent)
	OnBuildEvent(BuildEventKind)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	Book  func(BookEvent)
	Build func(BuildEventKind)
}

// OnBookEvent implements Listener.
func (f ListenerFuncs) OnBookEvent(e BookEvent) {
	if f.Book != nil {
		f.Book(e)
	}
}

// OnBuildEvent implements Listener.
func (f ListenerFuncs) OnBuildEvent(k BuildEventKind) {
	if f.Build != nil {
		f.Build(k)
	}
}

type subscription struct {
	id       uint64
	listener Listener
	filter   Filter
}

// Bus delivers events synchronously in registration order. Nothing is queued.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs []subscription
	next uint64
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers l for the families in filter and returns a function
// that removes it. Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(l Listener, filter Filter) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, listener: l, filter: filter})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// HasListeners reports whether anyone is subscribed. Publishers use it to
// skip building payloads nobody receives.
func (b *Bus) HasListeners() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

// PublishBook delivers a book event carrying a snapshot of book.
func (b *Bus) PublishBook(kind BookEventKind, book *domain.Book) {
	subs := b.matching(FilterBook)
	if len(subs) == 0 {
		return
	}
	event := BookEvent{Kind: kind, Book: book.Snapshot()}
	for _, s := range subs {
		b.deliver(string(kind), func() { s.listener.OnBookEvent(event) })
	}
}

// PublishBuild delivers a build event.
func (b *Bus) PublishBuild(kind BuildEventKind) {
	for _, s := range b.matching(FilterBuild) {
		b.deliver(string(kind), func() { s.listener.OnBuildEvent(kind) })
	}
}

func (b *Bus) matching(f Filter) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter&f != 0 {
			out = append(out, s)
		}
	}
	return out
}

// deliver isolates the publisher from a panicking listener.
func (b *Bus) deliver(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("event listener panicked", "event", kind, "error", fmt.Sprint(r))
		}
	}()
	fn()
}
