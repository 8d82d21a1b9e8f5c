package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/shelfsync/shelfsync-server/internal/api"
	"github.com/shelfsync/shelfsync-server/internal/config"
	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
	"github.com/shelfsync/shelfsync-server/internal/sse"
)

// Version is reported in the OpenAPI document. Set at link time.
var Version = "dev"

const (
	// apiRate and apiBurst bound the requests per second of one client IP.
	apiRate  = 50
	apiBurst = 100
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel      context.CancelFunc
	unsubscribe func()
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.unsubscribe()
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager, fed by the bus.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))
	unsubscribe := bus.Subscribe(manager, events.FilterAll)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager:     manager,
		cancel:      cancel,
		unsubscribe: unsubscribe,
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	trees := do.MustInvoke[*TreesHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	books := do.MustInvoke[*BookStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Library: lib.Library,
		Trees:   trees.Library,
		Search:  index.SearchIndex,
		Store:   books.Store,
	}

	handler := api.NewServer(services, sseHandle.Manager, api.Options{
		Version:        Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Limiter:        ratelimit.New(apiRate, apiBurst),
	}, log.Component("api"))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
