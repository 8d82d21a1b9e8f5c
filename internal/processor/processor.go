package processor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
	"github.com/shelfsync/shelfsync-server/internal/watcher"
)

// Rescanner brings the index in line with one file. *library.Library implements it.
type Rescanner interface {
	Rescan(ctx context.Context, path string)
}

// EventProcessor turns watcher events into library rescans.
//
//   - Every relevant event becomes Rescan(path); the library works out
//     whether the file was added, changed or removed.
//   - Rescans are throttled per directory, so a bulk copy into one folder
//     does not re-read books in a tight loop.
//   - A path already waiting for its turn is not queued twice; the pending
//     rescan reads the file's latest state anyway.
type EventProcessor struct {
	library Rescanner
	formats Formats
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	// pending holds the paths waiting on the limiter.
	pending *SyncMap[string, struct{}]
	wg      sync.WaitGroup
}

// NewEventProcessor creates a processor. limiter keys are directories.
func NewEventProcessor(library Rescanner, formats Formats, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		library: library,
		formats: formats,
		limiter: limiter,
		logger:  logger,
		pending: NewSyncMap[string, struct{}](),
	}
}

// Run processes events until ctx is cancelled or events is closed, then
// waits for scheduled rescans to finish.
func (ep *EventProcessor) Run(ctx context.Context, events <-chan watcher.Event) error {
	defer ep.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			ep.ProcessEvent(ctx, event)
		}
	}
}

// ProcessEvent schedules a rescan for one event. It never blocks on the
// limiter; the rescan runs on its own goroutine once the directory's turn
// comes. It reports whether a rescan was scheduled.
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event watcher.Event) bool {
	fileType := classifyFile(event.Path, ep.formats)
	if fileType == FileTypeIgnored {
		ep.logger.Debug("ignoring file", "path", event.Path, "type", string(event.Type))
		return false
	}

	path := filepath.Clean(event.Path)
	if _, loaded := ep.pending.LoadOrStore(path, struct{}{}); loaded {
		ep.logger.Debug("rescan already pending", "path", path)
		return false
	}

	ep.logger.Debug("scheduling rescan",
		"path", path,
		"event", string(event.Type),
		"file_type", fileType.String(),
	)

	ep.wg.Add(1)
	go func() {
		defer ep.wg.Done()

		err := ep.limiter.Wait(ctx, filepath.Dir(path))
		// A later event for path must schedule a new rescan, so the
		// entry goes before the rescan starts.
		ep.pending.Delete(path)
		if err != nil {
			ep.logger.Debug("rescan dropped", "path", path, "error", err)
			return
		}
		ep.library.Rescan(ctx, path)
	}()
	return true
}

// Wait blocks until every scheduled rescan has run or been dropped.
func (ep *EventProcessor) Wait() {
	ep.wg.Wait()
}

// Pending returns the number of paths waiting on the limiter.
func (ep *EventProcessor) Pending() int {
	return ep.pending.Len()
}
