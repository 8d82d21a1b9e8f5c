// Package di provides dependency injection configuration for the shelfsync daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/di/providers"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideBookStore)
	do.Provide(injector, providers.ProvideFingerprintStore)
	do.Provide(injector, providers.ProvideFingerprintCache)

	// Indexing layer
	do.Provide(injector, providers.ProvideFormats)
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideBus)
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideTrees)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Workers
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is listening.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	// Every provider below can fail on a bad path or a locked database.
	for _, invoke := range []func() error{
		invokeErr[*providers.BookStoreHandle](injector),
		invokeErr[*providers.FingerprintStoreHandle](injector),
		invokeErr[*providers.FingerprintCacheHandle](injector),
		invokeErr[*formats.Registry](injector),
		invokeErr[*scanner.Engine](injector),
		invokeErr[*providers.BusHandle](injector),
		invokeErr[*providers.LibraryHandle](injector),
		invokeErr[*providers.TreesHandle](injector),
		invokeErr[*providers.SearchIndexHandle](injector),
		invokeErr[*providers.SSEManagerHandle](injector),
		invokeErr[*providers.FileWatcherHandle](injector),
		invokeErr[*providers.HTTPServerHandle](injector),
	} {
		if err := invoke(); err != nil {
			return err
		}
	}

	// Listeners are in place; the first build can publish.
	providers.WatchSearchConsistency(injector)
	providers.RunInitialBuild(injector)

	return nil
}

func invokeErr[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
