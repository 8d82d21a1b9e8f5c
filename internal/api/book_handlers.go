package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/dto"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the indexed books ordered by title. Filters combine.",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID with its favorite state, position and bookmark count",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}",
		Summary:       "Remove book",
		Description:   "Drops a book from the index and the lists. The record is kept; the file is deleted only when asked.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "openBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/open",
		Summary:       "Open book",
		Description:   "Moves the book to the front of the recent list",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleOpenBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addFavorite",
		Method:        http.MethodPut,
		Path:          "/api/v1/books/{id}/favorite",
		Summary:       "Add favorite",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleAddFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeFavorite",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}/favorite",
		Summary:       "Remove favorite",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPosition",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/position",
		Summary:     "Get reading position",
		Tags:        []string{"Books"},
	}, s.handleGetPosition)

	huma.Register(s.api, huma.Operation{
		OperationID:   "storePosition",
		Method:        http.MethodPut,
		Path:          "/api/v1/books/{id}/position",
		Summary:       "Store reading position",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleStorePosition)
}

// === DTOs ===

// ListBooksInput contains the book filters.
type ListBooksInput struct {
	Author  string `query:"author" doc:"Author display name, case-insensitive"`
	Tag     string `query:"tag" doc:"Tag key such as Fiction/SF; matches the exact tag"`
	Series  string `query:"series" doc:"Series title"`
	Prefix  string `query:"prefix" doc:"Title prefix, case-insensitive"`
	Pattern string `query:"q" doc:"Substring of title, author or series"`
}

// BookListResponse is a list of books.
type BookListResponse struct {
	Books []*dto.Book `json:"books"`
	Total int         `json:"total"`
}

// BookListOutput wraps a book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// BookIDInput identifies a book.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// BookOutput wraps one book for Huma.
type BookOutput struct {
	Body *dto.Book
}

// RemoveBookInput identifies the book to remove.
type RemoveBookInput struct {
	ID         string `path:"id" doc:"Book ID"`
	DeleteFile bool   `query:"delete_file" doc:"Also delete the book file from disk"`
}

// PositionResponse holds the stored position, or null when none is stored.
type PositionResponse struct {
	Position *domain.Position `json:"position"`
}

// PositionOutput wraps a reading position for Huma.
type PositionOutput struct {
	Body PositionResponse
}

// StorePositionInput carries the position to store.
type StorePositionInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body domain.Position
}

// === Handlers ===

func (s *Server) handleListBooks(_ context.Context, input *ListBooksInput) (*BookListOutput, error) {
	lib := s.services.Library

	// The first filter picks the library query; the rest narrow its result.
	var books []*domain.Book
	var keep []func(*domain.Book) bool
	queried := false
	narrow := func(query func() []*domain.Book, pred func(*domain.Book) bool) {
		if queried {
			keep = append(keep, pred)
			return
		}
		books, queried = query(), true
	}

	if input.Author != "" {
		author, ok := s.findAuthor(input.Author)
		if !ok {
			return &BookListOutput{Body: BookListResponse{Books: []*dto.Book{}}}, nil
		}
		narrow(func() []*domain.Book { return lib.BooksByAuthor(author) },
			func(b *domain.Book) bool { return b.HasAuthor(author) })
	}
	if input.Tag != "" {
		tag := domain.ParseTag(input.Tag)
		narrow(func() []*domain.Book { return lib.BooksByTag(tag) },
			func(b *domain.Book) bool { return b.HasTag(tag) })
	}
	if title := strings.TrimSpace(input.Series); title != "" {
		narrow(func() []*domain.Book { return lib.BooksForSeries(title) },
			func(b *domain.Book) bool { return b.Series != nil && b.Series.Title == title })
	}
	if input.Prefix != "" {
		narrow(func() []*domain.Book { return lib.BooksForTitlePrefix(input.Prefix) },
			func(b *domain.Book) bool { return domain.HasPrefixFold(b.Title, input.Prefix) })
	}
	if input.Pattern != "" {
		narrow(func() []*domain.Book { return lib.BooksForPattern(input.Pattern) },
			func(b *domain.Book) bool { return b.Matches(input.Pattern) })
	}
	if !queried {
		books = lib.Books()
	}

	out := make([]*dto.Book, 0, len(books))
	for _, b := range books {
		b = s.snapshot(b)
		if matchesAll(b, keep) {
			out = append(out, dto.FromBook(b))
		}
	}
	return &BookListOutput{Body: BookListResponse{Books: out, Total: len(out)}}, nil
}

func matchesAll(b *domain.Book, keep []func(*domain.Book) bool) bool {
	for _, k := range keep {
		if !k(b) {
			return false
		}
	}
	return true
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	enriched, err := s.enricher.EnrichBook(ctx, s.snapshot(b))
	if err != nil {
		s.logger.Warn("Failed to enrich book", "book_id", input.ID, "error", err)
		return &BookOutput{Body: s.present(b)}, nil
	}
	return &BookOutput{Body: enriched}, nil
}

func (s *Server) handleRemoveBook(ctx context.Context, input *RemoveBookInput) (*struct{}, error) {
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	s.services.Library.RemoveBook(ctx, b, input.DeleteFile)
	s.logger.Info("book removed", "book_id", input.ID, "delete_file", input.DeleteFile)
	return nil, nil
}

func (s *Server) handleOpenBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return nil, toAPIError(s.services.Library.AddToRecentList(ctx, b))
}

func (s *Server) handleAddFavorite(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	return nil, s.setFavorite(ctx, input.ID, true)
}

func (s *Server) handleRemoveFavorite(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	return nil, s.setFavorite(ctx, input.ID, false)
}

func (s *Server) setFavorite(ctx context.Context, id string, favorite bool) error {
	b, err := s.book(ctx, id)
	if err != nil {
		return err
	}
	return toAPIError(s.services.Library.SetFavorite(ctx, b, favorite))
}

func (s *Server) handleGetPosition(ctx context.Context, input *BookIDInput) (*PositionOutput, error) {
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	pos, err := s.services.Library.StoredPosition(ctx, b)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &PositionOutput{Body: PositionResponse{Position: pos}}, nil
}

func (s *Server) handleStorePosition(ctx context.Context, input *StorePositionInput) (*struct{}, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}
	b, err := s.book(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return nil, toAPIError(s.services.Library.StorePosition(ctx, b, input.Body))
}
