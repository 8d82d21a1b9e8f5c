package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/library"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/metrics"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
	"github.com/shelfsync/shelfsync-server/internal/tree"
)

// ProvideFormats provides the registry of book format readers.
func ProvideFormats(i do.Injector) (*formats.Registry, error) {
	return formats.Default(), nil
}

// ProvideEngine provides the reconciliation engine.
func ProvideEngine(i do.Injector) (*scanner.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	books := do.MustInvoke[*BookStoreHandle](i)
	cache := do.MustInvoke[*FingerprintCacheHandle](i)
	registry := do.MustInvoke[*formats.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	return scanner.NewEngine(books.Store, cache.Cache, registry, log.Component("scanner"), scanner.Options{
		Roots:      cfg.Library.Paths,
		HelpLocale: cfg.Library.HelpLanguage,
	}), nil
}

// BusHandle wraps the event bus and its metrics subscription.
type BusHandle struct {
	*events.Bus
	unsubscribe func()
}

// Shutdown implements do.Shutdownable.
func (h *BusHandle) Shutdown() error {
	h.unsubscribe()
	return nil
}

// ProvideBus provides the event bus. Build and book events feed the metrics.
func ProvideBus(i do.Injector) (*BusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bus := events.New(log.Component("events"))
	return &BusHandle{Bus: bus, unsubscribe: metrics.Subscribe(bus)}, nil
}

// LibraryHandle wraps the library with shutdown capability.
type LibraryHandle struct {
	*library.Library
}

// Shutdown implements do.Shutdownable.
func (h *LibraryHandle) Shutdown() error {
	return h.Close()
}

// ProvideLibrary provides the library index.
func ProvideLibrary(i do.Injector) (*LibraryHandle, error) {
	books := do.MustInvoke[*BookStoreHandle](i)
	cache := do.MustInvoke[*FingerprintCacheHandle](i)
	engine := do.MustInvoke[*scanner.Engine](i)
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	lib := library.New(books.Store, cache.Cache, engine, bus.Bus, log.Component("library"))
	log.Info("Library ready", "roots", lib.Roots())
	return &LibraryHandle{Library: lib}, nil
}

// TreesHandle wraps the incremental views with shutdown capability.
type TreesHandle struct {
	*tree.Library
}

// Shutdown implements do.Shutdownable.
func (h *TreesHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideTrees provides the incremental tree views over the library.
func ProvideTrees(i do.Injector) (*TreesHandle, error) {
	lib := do.MustInvoke[*LibraryHandle](i)
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &TreesHandle{Library: tree.New(context.Background(), lib.Library, bus.Bus, log.Component("tree"))}, nil
}

// RunInitialBuild starts the startup reconciliation pass when configured.
// Should be called after all listeners are subscribed.
func RunInitialBuild(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Build.OnStart {
		log.Info("Startup build disabled by configuration")
		return
	}
	if lib.StartBuild() {
		log.Info("Startup build scheduled", "roots", len(lib.Roots()))
	}
}
