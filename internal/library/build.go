package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/metrics"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
)

// StartBuild schedules a full reconciliation pass on the build worker and
// reports whether it was accepted. While a build is in flight, or after
// Close, it only fires NotStarted.
func (l *Library) StartBuild() bool {
	l.mu.Lock()
	if l.inFlight || l.closed {
		l.mu.Unlock()
		metrics.BuildRunsTotal.WithLabelValues("rejected").Inc()
		l.bus.PublishBuild(events.BuildNotStarted)
		return false
	}
	l.inFlight = true
	l.status = domain.BuildStarted
	// The slot is always free here: the worker took the previous request
	// before clearing inFlight.
	l.builds <- struct{}{}
	l.mu.Unlock()
	return true
}

// Status returns the build status.
func (l *Library) Status() domain.BuildStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Building reports whether a build is in flight.
func (l *Library) Building() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// LastResult returns the result of the last successful build, or nil.
func (l *Library) LastResult() *scanner.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.result == nil {
		return nil
	}
	r := *l.result
	return &r
}

func (l *Library) worker() {
	defer close(l.done)
	for range l.builds {
		l.runBuild()
	}
}

// runBuild executes one pass. Whatever happens, including a panic, it ends
// with exactly one Completed event, the Finished status and a rescan drain.
func (l *Library) runBuild() {
	ctx := context.Background()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("build panicked", "error", fmt.Sprint(r), "stack", string(debug.Stack()))
			metrics.BuildRunsTotal.WithLabelValues("failed").Inc()
			l.bus.PublishBuild(events.BuildFailed)
		}
		metrics.BuildDuration.Observe(time.Since(start).Seconds())
		l.bus.PublishBuild(events.BuildCompleted)

		l.mu.Lock()
		l.status = domain.BuildFinished
		l.inFlight = false
		l.mu.Unlock()

		l.drainRescans(ctx)
	}()

	l.bus.PublishBuild(events.BuildStarted)

	result, err := l.engine.Run(ctx, l)
	if err != nil {
		l.logger.Error("build failed", "error", err)
		metrics.BuildRunsTotal.WithLabelValues("failed").Inc()
		l.bus.PublishBuild(events.BuildFailed)
		return
	}

	l.mu.Lock()
	l.result = result
	l.mu.Unlock()
	l.pruneMissing()

	metrics.BuildRunsTotal.WithLabelValues("succeeded").Inc()
	for class, n := range map[string]int{
		"existing": result.Existing,
		"orphaned": result.Orphaned,
		"reread":   result.Reread,
		"reused":   result.Reused,
		"new":      result.New,
		"failed":   result.Failed,
	} {
		metrics.BuildBooks.WithLabelValues(class).Set(float64(n))
	}
	l.bus.PublishBuild(events.BuildSucceeded)
}

// Rescan queues path for a rescan. Only a finished index drains the queue
// right away; before the first build and during a build the path waits until
// the build completes. A directory is expanded into the files below it.
func (l *Library) Rescan(ctx context.Context, path string) {
	l.mu.Lock()
	l.rescans.Push(path)
	l.mu.Unlock()

	l.drainRescans(ctx)
}

// PendingRescans returns the number of queued rescans.
func (l *Library) PendingRescans() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rescans.Len()
}

// drainRescans processes every queued path when the index is finished and
// idle. Taking the queue under the lock makes each path processed exactly once.
func (l *Library) drainRescans(ctx context.Context) {
	l.mu.Lock()
	if l.status != domain.BuildFinished || l.inFlight {
		l.mu.Unlock()
		return
	}
	paths := l.rescans.Drain()
	l.mu.Unlock()

	for _, path := range paths {
		l.rescanPath(ctx, path)
	}
}

// rescanPath brings the index in line with one path: a missing path drops
// the books in or below it, a directory is rescanned file by file, a changed
// file is re-read and a new one is added.
func (l *Library) rescanPath(ctx context.Context, path string) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		removed := l.removeBooks(ctx, l.booksAt(path))
		metrics.RescansTotal.WithLabelValues("removed").Inc()
		l.logger.Debug("rescan removed books", "path", path, "count", removed)
		return
	}
	if info.IsDir() {
		files := l.walker.Collect(ctx, path)
		l.logger.Debug("rescanning directory", "path", path, "files", len(files))
		for _, f := range files {
			l.rescanPath(ctx, f)
		}
		// Books whose files left the directory are not walked.
		var gone []*domain.Book
		for _, b := range l.booksAt(path) {
			if !b.File.PhysicalFile().Exists() {
				gone = append(gone, b)
			}
		}
		l.removeBooks(ctx, gone)
		return
	}

	file := bookfile.Physical(path)
	changed := !l.cache.Check(file, true)
	l.saveFingerprints(ctx)
	unchanged := func(bookfile.File) bool { return !changed }

	resolved := false
	for _, indexed := range l.booksOfPhysical(file) {
		resolved = true
		if changed {
			l.refresh(ctx, indexed)
		}
	}

	if !resolved {
		if book := l.getByFile(ctx, file, unchanged); book != nil {
			resolved = true
		} else if file.IsArchive() {
			entries, err := file.Entries()
			if err != nil {
				l.logger.Debug("failed to list archive", "path", path, "error", err)
			}
			for _, entry := range entries {
				if book := l.getByFile(ctx, entry, unchanged); book != nil {
					resolved = true
				}
			}
		}
	}

	if resolved {
		metrics.RescansTotal.WithLabelValues("updated").Inc()
	} else {
		metrics.RescansTotal.WithLabelValues("unresolved").Inc()
	}
}

// refresh re-reads an indexed book into a fresh copy and merges it back, so
// readers of the indexed object never see a half-updated book.
func (l *Library) refresh(ctx context.Context, indexed *domain.Book) {
	fresh, err := l.engine.ReadBook(indexed.File)
	if err != nil {
		l.logger.Debug("failed to re-read book", "file", indexed.File.String(), "error", err)
		metrics.ReadFailuresTotal.Inc()
		return
	}
	l.mu.Lock()
	fresh.ID = indexed.ID
	l.mu.Unlock()
	l.SaveBook(ctx, fresh, true)
}

// removeBooks drops books from the index and flags their records as not
// existing. It returns the number of books removed.
func (l *Library) removeBooks(ctx context.Context, books []*domain.Book) int {
	if len(books) == 0 {
		return 0
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		l.RemoveBook(ctx, b, false)
		ids = append(ids, b.ID)
		l.cache.Invalidate(b.File.PhysicalFile())
	}
	if err := l.store.SetExisting(ctx, ids, false); err != nil {
		l.logger.Warn("failed to flag removed books", "count", len(ids), "error", err)
	}
	l.saveFingerprints(ctx)
	return len(books)
}

// pruneMissing drops indexed books whose physical file disappeared. The pass
// already flagged their records as orphaned, so recent and favorites are kept
// for when the file returns.
func (l *Library) pruneMissing() {
	var candidates []*domain.Book
	for _, b := range l.Books() {
		if physical := b.File.PhysicalFile(); !physical.IsZero() && !physical.Exists() {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return
	}

	l.mu.Lock()
	gone := make([]*domain.Book, 0, len(candidates))
	for _, b := range candidates {
		if cur := l.byFile[b.File]; cur == nil || cur.ID != b.ID {
			continue
		}
		delete(l.byFile, b.File)
		delete(l.byID, b.ID)
		gone = append(gone, b.Snapshot())
	}
	metrics.IndexedBooks.Set(float64(len(l.byFile)))
	l.mu.Unlock()

	for _, b := range gone {
		l.bus.PublishBook(events.BookRemoved, b)
	}
}

// booksOfPhysical returns copies of the indexed books whose physical file is file.
func (l *Library) booksOfPhysical(file bookfile.File) []*domain.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Book
	for f, b := range l.byFile {
		if f.PhysicalFile() == file {
			out = append(out, b.Snapshot())
		}
	}
	return out
}

// booksAt returns copies of the indexed books whose physical file is path or
// lies below it.
func (l *Library) booksAt(path string) []*domain.Book {
	prefix := path + string(filepath.Separator)
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Book
	for f, b := range l.byFile {
		p := f.PhysicalFile()
		if p.IsZero() {
			continue
		}
		if p.Path == path || strings.HasPrefix(p.Path, prefix) {
			out = append(out, b.Snapshot())
		}
	}
	return out
}
