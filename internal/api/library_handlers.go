package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listRecent",
		Method:      http.MethodGet,
		Path:        "/api/v1/recent",
		Summary:     "Recent books",
		Description: "Returns the recently opened books, most recent first",
		Tags:        []string{"Lists"},
	}, s.handleListRecent)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFavorites",
		Method:      http.MethodGet,
		Path:        "/api/v1/favorites",
		Summary:     "Favorite books",
		Tags:        []string{"Lists"},
	}, s.handleListFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors",
		Summary:     "List authors",
		Description: "Returns the distinct authors ordered by sort key",
		Tags:        []string{"Library"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns every tag a book carries, with its ancestors",
		Tags:        []string{"Library"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSeries",
		Method:      http.MethodGet,
		Path:        "/api/v1/series",
		Summary:     "List series",
		Tags:        []string{"Library"},
	}, s.handleListSeries)
}

// === DTOs ===

// AuthorResponse is one author. Name is empty for books without an author.
type AuthorResponse struct {
	Name    string `json:"name"`
	SortKey string `json:"sort_key"`
	Unknown bool   `json:"unknown,omitempty"`
}

// AuthorListOutput wraps the authors for Huma.
type AuthorListOutput struct {
	Body struct {
		Authors []AuthorResponse `json:"authors"`
	}
}

// TagResponse is one tag.
type TagResponse struct {
	Key  string   `json:"key"`
	Name string   `json:"name"`
	Path []string `json:"path"`
}

// TagListOutput wraps the tags for Huma.
type TagListOutput struct {
	Body struct {
		Tags []TagResponse `json:"tags"`
	}
}

// SeriesListOutput wraps the series titles for Huma.
type SeriesListOutput struct {
	Body struct {
		Series []string `json:"series"`
	}
}

// === Handlers ===

func (s *Server) handleListRecent(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	books := s.presentAll(s.services.Library.RecentBooks(ctx))
	return &BookListOutput{Body: BookListResponse{Books: books, Total: len(books)}}, nil
}

func (s *Server) handleListFavorites(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	books := s.presentAll(s.services.Library.Favorites(ctx))
	return &BookListOutput{Body: BookListResponse{Books: books, Total: len(books)}}, nil
}

func (s *Server) handleListAuthors(_ context.Context, _ *struct{}) (*AuthorListOutput, error) {
	authors := s.services.Library.Authors()
	out := &AuthorListOutput{}
	out.Body.Authors = make([]AuthorResponse, 0, len(authors))
	for _, a := range authors {
		out.Body.Authors = append(out.Body.Authors, AuthorResponse{
			Name:    a.DisplayName,
			SortKey: a.SortKey,
			Unknown: a.IsUnknown(),
		})
	}
	return out, nil
}

func (s *Server) handleListTags(_ context.Context, _ *struct{}) (*TagListOutput, error) {
	tags := s.services.Library.Tags()
	out := &TagListOutput{}
	out.Body.Tags = make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		if t.IsUnknown() {
			continue
		}
		out.Body.Tags = append(out.Body.Tags, TagResponse{Key: t.Key(), Name: t.Name, Path: t.Path()})
	}
	return out, nil
}

func (s *Server) handleListSeries(_ context.Context, _ *struct{}) (*SeriesListOutput, error) {
	out := &SeriesListOutput{}
	out.Body.Series = nonNil(s.services.Library.Series())
	return out, nil
}
