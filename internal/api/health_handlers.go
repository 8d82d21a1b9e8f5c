package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Component states reported by /health.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"search":   s.checkSearchIndex(),
		"sse":      s.checkSSEManager(),
		"library":  s.checkLibrary(),
	}

	overall := statusHealthy
	for _, c := range components {
		switch {
		case c.Status == statusUnhealthy:
			overall = statusUnhealthy
		case c.Status == statusDegraded && overall == statusHealthy:
			overall = statusDegraded
		}
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

// checkDatabase pings the book store.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.services.Store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "database not configured"}
	}

	start := time.Now()
	err := s.services.Store.Ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		s.logger.Warn("database ping failed", "error", err)
		return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: "database unreachable"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency}
}

// checkSearchIndex verifies the search index answers and is populated.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}

	start := time.Now()
	docCount, err := s.services.Search.DocumentCount()
	latency := time.Since(start).String()
	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: "search index unreachable"}
	}

	// An empty index is only suspicious when the library is not.
	if docCount == 0 && s.services.Library.Size() > 0 {
		return ComponentHealth{Status: statusDegraded, Latency: latency, Message: "search index empty"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency, Message: fmt.Sprintf("%d documents", docCount)}
}

// checkSSEManager reports the connected event clients.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "event stream not configured"}
	}
	return ComponentHealth{Status: statusHealthy, Message: formatSSEStatus(s.sseManager.ClientCount())}
}

// checkLibrary reports the build state. Until the first build finishes the
// index is incomplete.
func (s *Server) checkLibrary() ComponentHealth {
	lib := s.services.Library
	status := lib.Status()
	msg := fmt.Sprintf("%d books, build %s", lib.Size(), status)
	if status != domain.BuildFinished {
		return ComponentHealth{Status: statusDegraded, Message: msg}
	}
	return ComponentHealth{Status: statusHealthy, Message: msg}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}
