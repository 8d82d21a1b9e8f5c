package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/dto"
	"github.com/shelfsync/shelfsync-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search library",
		Description: "Full-text search over titles, authors, series and descriptions",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching the library.
type SearchInput struct {
	Query    string `query:"q" validate:"required,min=1,max=200" doc:"Search query"`
	Tag      string `query:"tag" validate:"omitempty,max=200" doc:"Tag key; matches the tag and its descendants"`
	Language string `query:"language" validate:"omitempty,max=16" doc:"Book language"`
	Limit    int    `query:"limit" validate:"omitempty,gte=1,lte=100" doc:"Max results (default 20)"`
	Offset   int    `query:"offset" validate:"omitempty,gte=0" doc:"Pagination offset"`
	Sort     string `query:"sort" enum:"relevance,title" doc:"Sort field (default relevance)"`
	Order    string `query:"order" enum:"asc,desc" doc:"Sort order"`
	Facets   bool   `query:"facets" doc:"Include tag and language facets"`
}

// SearchHitResult is one search hit with its book.
type SearchHitResult struct {
	Score      float64           `json:"score" doc:"Relevance score"`
	Book       *dto.Book         `json:"book"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string               `json:"query"`
	Total  int64                `json:"total"`
	TookMs int64                `json:"took_ms"`
	Hits   []SearchHitResult    `json:"hits"`
	Facets *search.SearchFacets `json:"facets,omitempty"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, toAPIError(err)
	}

	params := search.DefaultSearchParams()
	params.Query = strings.TrimSpace(input.Query)
	params.TagPath = input.Tag
	params.Language = input.Language
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}

	if s.services.Search == nil {
		return s.fallbackSearch(ctx, params)
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", "error", err, "query", params.Query)
		return nil, toAPIError(err)
	}

	resp := SearchResponse{
		Query:  params.Query,
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
	}
	if params.IncludeFacets {
		resp.Facets = &result.Facets
	}

	// Hits whose book left the index since it was searched are dropped.
	for i := range result.Hits {
		hit := &result.Hits[i]
		b := s.services.Library.GetByID(ctx, hit.ID)
		if b == nil {
			continue
		}
		resp.Hits = append(resp.Hits, SearchHitResult{
			Score:      hit.Score,
			Book:       s.present(b),
			Highlights: hit.Highlights,
		})
	}
	resp.Total = int64(result.Total) //nolint:gosec // hit counts fit in int64
	if dropped := len(result.Hits) - len(resp.Hits); dropped > 0 {
		resp.Total -= int64(dropped)
	}

	s.logger.Debug("search completed",
		"query", params.Query,
		"total", resp.Total,
		"took_ms", resp.TookMs,
	)
	return &SearchOutput{Body: resp}, nil
}

// fallbackSearch serves the route from the library's own matcher when no
// full-text index is configured.
func (s *Server) fallbackSearch(ctx context.Context, params search.SearchParams) (*SearchOutput, error) {
	books, err := s.services.Library.Search(ctx, params.Query, params.Offset+params.Limit)
	if err != nil {
		return nil, toAPIError(err)
	}
	if params.Offset >= len(books) {
		books = nil
	} else {
		books = books[params.Offset:]
	}

	resp := SearchResponse{Query: params.Query, Hits: make([]SearchHitResult, 0, len(books))}
	for _, b := range books {
		resp.Hits = append(resp.Hits, SearchHitResult{Score: 1, Book: s.present(b)})
	}
	resp.Total = int64(len(resp.Hits))
	return &SearchOutput{Body: resp}, nil
}
