package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
)

func (s *Server) registerBuildRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBuild",
		Method:      http.MethodGet,
		Path:        "/api/v1/build",
		Summary:     "Build status",
		Description: "Returns the build status and the result of the last successful build",
		Tags:        []string{"Build"},
	}, s.handleGetBuild)

	huma.Register(s.api, huma.Operation{
		OperationID:   "startBuild",
		Method:        http.MethodPost,
		Path:          "/api/v1/build",
		Summary:       "Start build",
		Description:   "Schedules a full reconciliation pass. Fails with 409 while one is running.",
		Tags:          []string{"Build"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleStartBuild)

	huma.Register(s.api, huma.Operation{
		OperationID:   "rescanPath",
		Method:        http.MethodPost,
		Path:          "/api/v1/rescan",
		Summary:       "Rescan path",
		Description:   "Brings the index in line with one file. During a build the path is queued until the build ends.",
		Tags:          []string{"Build"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRescan)
}

// === DTOs ===

// BuildResponse describes the build state.
type BuildResponse struct {
	Status     domain.BuildStatus `json:"status"`
	Building   bool               `json:"building"`
	Books      int                `json:"books"`
	Pending    int                `json:"pending_rescans"`
	LastResult *scanner.Result    `json:"last_result,omitempty"`
}

// BuildOutput wraps the build state for Huma.
type BuildOutput struct {
	Body BuildResponse
}

// RescanRequest names the file to rescan.
type RescanRequest struct {
	Path string `json:"path" validate:"required,abspath" doc:"Absolute path of the file"`
}

// RescanInput carries a rescan request.
type RescanInput struct {
	Body RescanRequest
}

// RescanOutput reports the accepted rescan.
type RescanOutput struct {
	Body struct {
		Path string `json:"path"`
	}
}

// === Handlers ===

func (s *Server) buildState() BuildResponse {
	lib := s.services.Library
	return BuildResponse{
		Status:     lib.Status(),
		Building:   lib.Building(),
		Books:      lib.Size(),
		Pending:    lib.PendingRescans(),
		LastResult: lib.LastResult(),
	}
}

func (s *Server) handleGetBuild(_ context.Context, _ *struct{}) (*BuildOutput, error) {
	return &BuildOutput{Body: s.buildState()}, nil
}

func (s *Server) handleStartBuild(_ context.Context, _ *struct{}) (*BuildOutput, error) {
	if !s.services.Library.StartBuild() {
		return nil, toAPIError(domainerrors.Conflict("a build is already running"))
	}
	s.logger.Info("build requested over HTTP")
	return &BuildOutput{Body: s.buildState()}, nil
}

func (s *Server) handleRescan(ctx context.Context, input *RescanInput) (*RescanOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}
	// Rescan outlives the request; the library bounds its own work.
	s.services.Library.Rescan(context.WithoutCancel(ctx), input.Body.Path)

	out := &RescanOutput{}
	out.Body.Path = input.Body.Path
	return out, nil
}
