package sqlite

import (
	"context"
	"time"

	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// LoadRecentBookIDs returns the recent list, most recent first.
func (s *Store) LoadRecentBookIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT book_id FROM recent_books ORDER BY position`, "load recent books")
}

// SaveRecentBookIDs replaces the recent list. Ids without a stored book are skipped.
func (s *Store) SaveRecentBookIDs(ctx context.Context, ids []string) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM recent_books`); err != nil {
			return domainerrors.StoreFailure(err, "clear recent books")
		}
		for pos, bookID := range ids {
			_, err := s.q(ctx).ExecContext(ctx, `
				INSERT OR IGNORE INTO recent_books (book_id, position)
				SELECT ?, ? WHERE EXISTS (SELECT 1 FROM books WHERE id = ?)`,
				bookID, pos, bookID)
			if err != nil {
				return domainerrors.StoreFailure(err, "save recent books")
			}
		}
		return nil
	})
}

// LoadFavoriteIDs returns favorite book ids in the order they were added.
func (s *Store) LoadFavoriteIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT book_id FROM favorites ORDER BY added_at, book_id`, "load favorites")
}

// HasFavorites reports whether any book is a favorite.
func (s *Store) HasFavorites(ctx context.Context) (bool, error) {
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM favorites)`).Scan(&n); err != nil {
		return false, domainerrors.StoreFailure(err, "check favorites")
	}
	return n != 0, nil
}

// IsFavorite reports whether the book is a favorite.
func (s *Store) IsFavorite(ctx context.Context, bookID string) (bool, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE book_id = ?)`, bookID).Scan(&n)
	if err != nil {
		return false, domainerrors.StoreFailure(err, "check favorite")
	}
	return n != 0, nil
}

// AddToFavorites marks the book as a favorite. Adding twice is a no-op.
func (s *Store) AddToFavorites(ctx context.Context, bookID string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (book_id, added_at) VALUES (?, ?)`,
		bookID, formatTime(time.Now()))
	if err != nil {
		return domainerrors.StoreFailure(err, "add favorite")
	}
	return nil
}

// RemoveFromFavorites clears the favorite flag.
func (s *Store) RemoveFromFavorites(ctx context.Context, bookID string) error {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM favorites WHERE book_id = ?`, bookID); err != nil {
		return domainerrors.StoreFailure(err, "remove favorite")
	}
	return nil
}

func (s *Store) queryIDs(ctx context.Context, query, op string, args ...any) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerrors.StoreFailure(err, op)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, domainerrors.StoreFailure(err, op)
		}
		ids = append(ids, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.StoreFailure(err, op)
	}
	return ids, nil
}
