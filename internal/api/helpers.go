package api

import (
	"context"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/dto"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// book resolves id through the library or fails with NOT_FOUND.
func (s *Server) book(ctx context.Context, id string) (*domain.Book, error) {
	b := s.services.Library.GetByID(ctx, id)
	if b == nil {
		return nil, toAPIError(domainerrors.NotFoundf("book %q not found", id))
	}
	return b, nil
}

// snapshot returns a copy of b taken under the library lock, so handlers
// never read a book a rescan is updating.
func (s *Server) snapshot(b *domain.Book) *domain.Book {
	if c := s.services.Library.Lookup(b.File); c != nil {
		return c
	}
	return b
}

func (s *Server) present(b *domain.Book) *dto.Book {
	return dto.FromBook(s.snapshot(b))
}

func (s *Server) presentAll(books []*domain.Book) []*dto.Book {
	out := make([]*dto.Book, 0, len(books))
	for _, b := range books {
		out = append(out, s.present(b))
	}
	return out
}

// findAuthor matches name against the display names of the indexed authors,
// ignoring case.
func (s *Server) findAuthor(name string) (domain.Author, bool) {
	folded := domain.Fold(name)
	for _, a := range s.services.Library.Authors() {
		if !a.IsUnknown() && domain.Fold(a.DisplayName) == folded {
			return a, true
		}
	}
	return domain.Author{}, false
}
