package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
	unsubscribe func()
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	h.unsubscribe()
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index. The index follows book
// events and answers the library's free-text searches.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Metadata.BasePath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	lib.SetSearcher(index.Searcher())
	unsubscribe := bus.Subscribe(index, events.FilterBook)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index, unsubscribe: unsubscribe}, nil
}

// WatchSearchConsistency rebuilds the index after a successful build whenever
// its document count disagrees with the library, for example when a stale
// on-disk index still holds books that were deleted while the daemon was down.
func WatchSearchConsistency(i do.Injector) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	bus.Subscribe(events.ListenerFuncs{Build: func(kind events.BuildEventKind) {
		if kind != events.BuildSucceeded {
			return
		}
		docCount, _ := index.DocumentCount()
		books := lib.Books()
		if docCount == uint64(len(books)) {
			return
		}

		// Listeners run on the publishing goroutine; reindex off it.
		go func() {
			log.Info("Search index out of step with library, reindexing",
				"documents", docCount,
				"books", len(books),
			)
			if err := index.Rebuild(books); err != nil {
				log.Error("Search reindex failed", "error", err)
				return
			}
			count, _ := index.DocumentCount()
			log.Info("Search reindex completed", "documents", count)
		}()
	}}, events.FilterBuild)
}
