package providers

import (
	"context"

	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/processor"
	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
	"github.com/shelfsync/shelfsync-server/internal/watcher"
)

// FileWatcherHandle runs the file watcher and the event processor that turns
// its events into rescans.
type FileWatcherHandle struct {
	watcher *watcher.Watcher
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.watcher == nil {
		return nil
	}
	h.cancel()
	stopErr := h.watcher.Stop()
	if err := h.group.Wait(); err != nil {
		return err
	}
	return stopErr
}

// ProvideFileWatcher provides the file system watcher over the library roots.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	registry := do.MustInvoke[*formats.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Watcher.Enabled || len(cfg.Library.Paths) == 0 {
		log.Info("File watcher disabled")
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log.Component("watcher"), watcher.Options{
		SettleDelay:  cfg.Watcher.SettleDelay,
		IgnoreHidden: true,
	})
	if err != nil {
		return nil, err
	}

	for _, root := range cfg.Library.Paths {
		if err := w.Watch(root); err != nil {
			_ = w.Stop()
			return nil, err
		}
		log.Info("Watching library path", "path", root)
	}

	limiter := ratelimit.New(cfg.Watcher.RescanRate, 1)
	ep := processor.NewEventProcessor(lib.Library, registry, limiter, log.Component("processor"))

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Start(ctx) })
	group.Go(func() error { return ep.Run(ctx, w.Events()) })
	group.Go(func() error {
		for {
			select {
			case err := <-w.Errors():
				log.Warn("file watcher error", "error", err)
			case <-ctx.Done():
				return nil
			}
		}
	})

	log.Info("File watcher started", "roots", len(cfg.Library.Paths))

	return &FileWatcherHandle{watcher: w, cancel: cancel, group: group}, nil
}
