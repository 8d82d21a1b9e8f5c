package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

func (s *Server) registerBookmarkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks",
		Summary:     "List bookmarks",
		Description: "Returns every visible bookmark",
		Tags:        []string{"Bookmarks"},
	}, s.handleListBookmarks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBookmark",
		Method:        http.MethodDelete,
		Path:          "/api/v1/bookmarks/{id}",
		Summary:       "Delete bookmark",
		Tags:          []string{"Bookmarks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/bookmarks",
		Summary:     "List book bookmarks",
		Description: "Returns the visible bookmarks of a book, or the reader-maintained ones most recent first",
		Tags:        []string{"Bookmarks"},
	}, s.handleListBookBookmarks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBookmark",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/bookmarks",
		Summary:       "Create bookmark",
		Tags:          []string{"Bookmarks"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBookmark)
}

// === DTOs ===

// BookmarkListOutput wraps a bookmark list for Huma.
type BookmarkListOutput struct {
	Body struct {
		Bookmarks []*domain.Bookmark `json:"bookmarks"`
	}
}

// BookmarkIDInput identifies a bookmark.
type BookmarkIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Bookmark ID"`
}

// ListBookBookmarksInput selects a book's bookmarks.
type ListBookBookmarksInput struct {
	ID        string `path:"id" doc:"Book ID"`
	Invisible bool   `query:"invisible" doc:"Return the reader-maintained bookmarks instead"`
}

// CreateBookmarkRequest is the body of a new bookmark.
type CreateBookmarkRequest struct {
	Text     string          `json:"text" validate:"max=4096" doc:"Quoted text"`
	Style    int             `json:"style,omitempty" validate:"gte=0,lte=255" doc:"Highlight style"`
	Position domain.Position `json:"position"`
	Visible  *bool           `json:"visible,omitempty" doc:"Defaults to true"`
}

// CreateBookmarkInput carries a new bookmark.
type CreateBookmarkInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body CreateBookmarkRequest
}

// BookmarkOutput wraps one bookmark for Huma.
type BookmarkOutput struct {
	Body *domain.Bookmark
}

// === Handlers ===

func (s *Server) handleListBookmarks(ctx context.Context, _ *struct{}) (*BookmarkListOutput, error) {
	list, err := s.services.Library.AllBookmarks(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &BookmarkListOutput{}
	out.Body.Bookmarks = nonNil(list)
	return out, nil
}

func (s *Server) handleDeleteBookmark(ctx context.Context, input *BookmarkIDInput) (*struct{}, error) {
	return nil, toAPIError(s.services.Library.DeleteBookmark(ctx, &domain.Bookmark{ID: input.ID}))
}

func (s *Server) handleListBookBookmarks(ctx context.Context, input *ListBookBookmarksInput) (*BookmarkListOutput, error) {
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	var list []*domain.Bookmark
	if input.Invisible {
		list, err = s.services.Library.InvisibleBookmarks(ctx, b)
	} else {
		list, err = s.services.Library.Bookmarks(ctx, b)
	}
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &BookmarkListOutput{}
	out.Body.Bookmarks = nonNil(list)
	return out, nil
}

func (s *Server) handleCreateBookmark(ctx context.Context, input *CreateBookmarkInput) (*BookmarkOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	b = s.snapshot(b)

	visible := true
	if input.Body.Visible != nil {
		visible = *input.Body.Visible
	}
	bm := &domain.Bookmark{
		BookID:    b.ID,
		BookTitle: b.Title,
		Text:      input.Body.Text,
		Style:     input.Body.Style,
		Position:  input.Body.Position,
		Visible:   visible,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.services.Library.SaveBookmark(ctx, bm); err != nil {
		return nil, toAPIError(err)
	}
	return &BookmarkOutput{Body: bm}, nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
