package watcher

import "time"

// EventType names a settled change. The values double as log labels.
type EventType string

// Settled change kinds.
const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is a settled change to one path under a library root.
type Event struct {
	Type EventType
	Path string

	// Size and ModTime describe the settled file. Both are zero for removals.
	Size    int64
	ModTime time.Time
}
