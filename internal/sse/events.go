// Package sse streams library events to HTTP clients as Server-Sent Events.
package sse

import (
	"strings"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/dto"
	"github.com/shelfsync/shelfsync-server/internal/events"
)

// EventType represents the type of SSE event. Library events keep the
// kind names they carry on the bus.
type EventType string

// Book events.
const (
	EventBookAdded   EventType = EventType(events.BookAdded)
	EventBookUpdated EventType = EventType(events.BookUpdated)
	EventBookRemoved EventType = EventType(events.BookRemoved)
)

// Build events.
const (
	EventBuildNotStarted EventType = EventType(events.BuildNotStarted)
	EventBuildStarted    EventType = EventType(events.BuildStarted)
	EventBuildSucceeded  EventType = EventType(events.BuildSucceeded)
	EventBuildFailed     EventType = EventType(events.BuildFailed)
	EventBuildCompleted  EventType = EventType(events.BuildCompleted)
)

// EventHeartbeat keeps idle connections open. Every client receives it.
const EventHeartbeat EventType = "heartbeat"

// family returns the bus filter an event type belongs to, or 0 for heartbeats.
func (t EventType) family() events.Filter {
	switch {
	case strings.HasPrefix(string(t), "book."):
		return events.FilterBook
	case strings.HasPrefix(string(t), "build."):
		return events.FilterBuild
	default:
		return 0
	}
}

// Event is one message on the stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// BookEventData is the data payload for book events. Book is the state at
// the time the event fired.
type BookEventData struct {
	Book *dto.Book `json:"book"`
}

// BuildEventData is the data payload for build events.
type BuildEventData struct {
	Building bool `json:"building"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewBookEvent converts a bus book event.
func NewBookEvent(e events.BookEvent) Event {
	return Event{
		Type:      EventType(e.Kind),
		Timestamp: time.Now(),
		Data:      BookEventData{Book: dto.FromBook(e.Book)},
	}
}

// NewBuildEvent converts a bus build event. building is the build state
// after the event.
func NewBuildEvent(kind events.BuildEventKind, building bool) Event {
	return Event{
		Type:      EventType(kind),
		Timestamp: time.Now(),
		Data:      BuildEventData{Building: building},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}

// ParseFilter reads a comma-separated list of families ("book", "build").
// An empty list selects everything; unknown names are ignored.
func ParseFilter(s string) events.Filter {
	var f events.Filter
	for name := range strings.SplitSeq(s, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "book", "books":
			f |= events.FilterBook
		case "build", "builds":
			f |= events.FilterBuild
		}
	}
	if f == 0 {
		return events.FilterAll
	}
	return f
}

// buildingAfter returns the build state once kind has been delivered.
func buildingAfter(kind events.BuildEventKind, was bool) bool {
	switch kind {
	case events.BuildStarted:
		return true
	case events.BuildCompleted:
		return false
	default:
		return was
	}
}
