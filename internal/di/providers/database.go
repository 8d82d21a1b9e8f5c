package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/fingerprint"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/store"
	"github.com/shelfsync/shelfsync-server/internal/store/sqlite"
)

// BookStoreHandle wraps the sqlite book store with shutdown capability.
type BookStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *BookStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideBookStore provides the sqlite store holding books, lists and bookmarks.
func ProvideBookStore(i do.Injector) (*BookStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.BooksDBPath(), log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Book database initialized", "path", cfg.BooksDBPath())
	return &BookStoreHandle{Store: db}, nil
}

// FingerprintStoreHandle wraps the badger fingerprint store with shutdown capability.
type FingerprintStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *FingerprintStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideFingerprintStore provides the badger store holding file fingerprints.
func ProvideFingerprintStore(i do.Injector) (*FingerprintStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.FingerprintDBPath(), log.Component("fingerprints"))
	if err != nil {
		return nil, err
	}

	log.Info("Fingerprint database initialized", "path", cfg.FingerprintDBPath())
	return &FingerprintStoreHandle{Store: db}, nil
}

// FingerprintCacheHandle persists pending fingerprints on shutdown.
type FingerprintCacheHandle struct {
	*fingerprint.Cache
}

// Shutdown implements do.Shutdownable.
func (h *FingerprintCacheHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Save(ctx)
}

// ProvideFingerprintCache provides the fingerprint cache, loaded from disk.
func ProvideFingerprintCache(i do.Injector) (*FingerprintCacheHandle, error) {
	fps := do.MustInvoke[*FingerprintStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache := fingerprint.New(fps.Store, log.Component("fingerprints"))
	if err := cache.Load(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Fingerprint cache loaded", "entries", cache.Len())
	return &FingerprintCacheHandle{Cache: cache}, nil
}
