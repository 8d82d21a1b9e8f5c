package processor

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
	"github.com/shelfsync/shelfsync-server/internal/watcher"
)

// recordingLibrary records rescanned paths.
type recordingLibrary struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingLibrary) Rescan(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingLibrary) rescanned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

func newTestProcessor(t *testing.T, rps float64) (*EventProcessor, *recordingLibrary) {
	t.Helper()
	lib := &recordingLibrary{}
	limiter := ratelimit.New(rps, 1)
	t.Cleanup(limiter.Stop)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEventProcessor(lib, formats.Default(), limiter, logger), lib
}

func TestEventProcessor_RescansBooks(t *testing.T) {
	ep, lib := newTestProcessor(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()

	events := []watcher.Event{
		{Type: watcher.EventAdded, Path: filepath.Join(dir, "a.fb2")},
		{Type: watcher.EventModified, Path: filepath.Join(dir, "cover.jpg")},
		{Type: watcher.EventRemoved, Path: filepath.Join(dir, "sub", "b.epub")},
	}
	for _, e := range events {
		ep.ProcessEvent(ctx, e)
	}
	ep.Wait()

	got := lib.rescanned()
	slices.Sort(got)
	want := []string{filepath.Join(dir, "a.fb2"), filepath.Join(dir, "sub", "b.epub")}
	if !slices.Equal(got, want) {
		t.Errorf("rescanned %v, want %v", got, want)
	}
}

func TestEventProcessor_CoalescesPendingPath(t *testing.T) {
	// 10 rps with burst 1: the second rescan in a directory waits ~100ms.
	ep, lib := newTestProcessor(t, 10)
	ctx := context.Background()
	dir := t.TempDir()
	first := filepath.Join(dir, "a.fb2")
	second := filepath.Join(dir, "b.fb2")

	if !ep.ProcessEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: first}) {
		t.Fatal("first event should be scheduled")
	}
	ep.Wait()

	if !ep.ProcessEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: second}) {
		t.Fatal("second event should be scheduled")
	}
	if ep.ProcessEvent(ctx, watcher.Event{Type: watcher.EventModified, Path: second}) {
		t.Error("event for a pending path should be coalesced")
	}
	if ep.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", ep.Pending())
	}
	ep.Wait()

	if got := lib.rescanned(); !slices.Equal(got, []string{first, second}) {
		t.Errorf("rescanned %v, want [%s %s]", got, first, second)
	}
	if ep.Pending() != 0 {
		t.Errorf("Pending() after Wait = %d, want 0", ep.Pending())
	}
}

func TestEventProcessor_CancelledContextDropsRescan(t *testing.T) {
	ep, lib := newTestProcessor(t, 0.01)
	dir := t.TempDir()

	// Exhaust the directory's burst.
	ep.ProcessEvent(context.Background(), watcher.Event{Type: watcher.EventAdded, Path: filepath.Join(dir, "a.fb2")})
	ep.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	ep.ProcessEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: filepath.Join(dir, "b.fb2")})
	cancel()
	ep.Wait()

	if got := lib.rescanned(); len(got) != 1 {
		t.Errorf("rescanned %v, want only the first path", got)
	}
}

func TestEventProcessor_Run(t *testing.T) {
	ep, lib := newTestProcessor(t, 1000)
	dir := t.TempDir()

	events := make(chan watcher.Event, 2)
	events <- watcher.Event{Type: watcher.EventAdded, Path: filepath.Join(dir, "a.txt")}
	events <- watcher.Event{Type: watcher.EventAdded, Path: filepath.Join(dir, "b.tmp")}
	close(events)

	done := make(chan error, 1)
	go func() { done <- ep.Run(context.Background(), events) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after events closed")
	}

	if got := lib.rescanned(); !slices.Equal(got, []string{filepath.Join(dir, "a.txt")}) {
		t.Errorf("rescanned %v", got)
	}
}
