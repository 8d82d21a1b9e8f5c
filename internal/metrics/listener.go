package metrics

import (
	"github.com/shelfsync/shelfsync-server/internal/events"
)

// Subscribe counts every event published on bus. It returns the unsubscribe function.
func Subscribe(bus *events.Bus) func() {
	return bus.Subscribe(events.ListenerFuncs{
		Book: func(e events.BookEvent) {
			BookEventsTotal.WithLabelValues(string(e.Kind)).Inc()
		},
		Build: func(k events.BuildEventKind) {
			BuildEventsTotal.WithLabelValues(string(k)).Inc()
			switch k {
			case events.BuildStarted:
				BuildRunning.Set(1)
			case events.BuildCompleted:
				BuildRunning.Set(0)
			}
		},
	}, events.FilterAll)
}
