package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// StoredPosition returns the last reading position of a book, or nil.
func (s *Store) StoredPosition(ctx context.Context, bookID string) (*domain.Position, error) {
	var p domain.Position
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT paragraph, element, char_offset FROM positions WHERE book_id = ?`, bookID,
	).Scan(&p.Paragraph, &p.Element, &p.Char)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.StoreFailure(err, "load position")
	}
	return &p, nil
}

// StorePosition records the reading position of a book.
func (s *Store) StorePosition(ctx context.Context, bookID string, pos domain.Position) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO positions (book_id, paragraph, element, char_offset, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			paragraph = excluded.paragraph,
			element = excluded.element,
			char_offset = excluded.char_offset,
			updated_at = excluded.updated_at`,
		bookID, pos.Paragraph, pos.Element, pos.Char, formatTime(time.Now()))
	if err != nil {
		return domainerrors.StoreFailure(err, "store position")
	}
	return nil
}

// LoadVisitedHyperlinks returns the link ids followed in a book.
func (s *Store) LoadVisitedHyperlinks(ctx context.Context, bookID string) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT link_id FROM visited_hyperlinks WHERE book_id = ? ORDER BY link_id`,
		"load visited hyperlinks", bookID)
}

// AddVisitedHyperlink records a followed link.
func (s *Store) AddVisitedHyperlink(ctx context.Context, bookID, linkID string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO visited_hyperlinks (book_id, link_id) VALUES (?, ?)`, bookID, linkID)
	if err != nil {
		return domainerrors.StoreFailure(err, "add visited hyperlink")
	}
	return nil
}
