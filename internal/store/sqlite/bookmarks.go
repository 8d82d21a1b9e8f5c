package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// bookmarkColumns must match the scan order in scanBookmark.
const bookmarkColumns = `bm.id, bm.uid, bm.book_id, b.title, bm.text, bm.style,
	bm.paragraph, bm.element, bm.char_offset, bm.visible,
	bm.created_at, bm.modified_at, bm.accessed_at`

func scanBookmark(scanner interface{ Scan(dest ...any) error }) (*domain.Bookmark, error) {
	var (
		bm       domain.Bookmark
		visible  int
		created  string
		modified sql.NullString
		accessed sql.NullString
	)

	err := scanner.Scan(
		&bm.ID, &bm.UID, &bm.BookID, &bm.BookTitle, &bm.Text, &bm.Style,
		&bm.Position.Paragraph, &bm.Position.Element, &bm.Position.Char, &visible,
		&created, &modified, &accessed,
	)
	if err != nil {
		return nil, err
	}

	bm.Visible = visible != 0
	if bm.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if bm.ModifiedAt, err = parseNullableTime(modified); err != nil {
		return nil, err
	}
	if bm.AccessedAt, err = parseNullableTime(accessed); err != nil {
		return nil, err
	}
	return &bm, nil
}

// LoadAllVisibleBookmarks returns every visible bookmark across books.
func (s *Store) LoadAllVisibleBookmarks(ctx context.Context) ([]*domain.Bookmark, error) {
	return s.queryBookmarks(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks bm JOIN books b ON b.id = bm.book_id
		WHERE bm.visible = 1
		ORDER BY bm.id`)
}

// LoadBookmarks returns the book's bookmarks with the given visibility.
func (s *Store) LoadBookmarks(ctx context.Context, bookID string, visible bool) ([]*domain.Bookmark, error) {
	return s.queryBookmarks(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks bm JOIN books b ON b.id = bm.book_id
		WHERE bm.book_id = ? AND bm.visible = ?
		ORDER BY bm.id`, bookID, boolInt(visible))
}

// SaveBookmark inserts a bookmark with ID 0 or updates the existing one,
// returning its ID. New bookmarks get a UID and a creation time if missing.
func (s *Store) SaveBookmark(ctx context.Context, bm *domain.Bookmark) (int64, error) {
	if bm.UID == "" {
		bm.UID = uuid.NewString()
	}
	if bm.CreatedAt.IsZero() {
		bm.CreatedAt = time.Now()
	}

	if bm.ID == 0 {
		res, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO bookmarks (
				uid, book_id, text, style, paragraph, element, char_offset,
				visible, created_at, modified_at, accessed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bm.UID, bm.BookID, bm.Text, bm.Style,
			bm.Position.Paragraph, bm.Position.Element, bm.Position.Char,
			boolInt(bm.Visible), formatTime(bm.CreatedAt),
			nullTimeString(bm.ModifiedAt), nullTimeString(bm.AccessedAt),
		)
		if err != nil {
			return 0, domainerrors.StoreFailure(err, "insert bookmark")
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, domainerrors.StoreFailure(err, "insert bookmark")
		}
		bm.ID = newID
		return newID, nil
	}

	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE bookmarks SET
			text = ?, style = ?, paragraph = ?, element = ?, char_offset = ?,
			visible = ?, modified_at = ?, accessed_at = ?
		WHERE id = ?`,
		bm.Text, bm.Style, bm.Position.Paragraph, bm.Position.Element, bm.Position.Char,
		boolInt(bm.Visible), nullTimeString(bm.ModifiedAt), nullTimeString(bm.AccessedAt),
		bm.ID,
	)
	if err != nil {
		return 0, domainerrors.StoreFailure(err, "update bookmark")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, store.ErrNotFound
	}
	return bm.ID, nil
}

// DeleteBookmark removes a bookmark. Unknown ids yield ErrNotFound.
func (s *Store) DeleteBookmark(ctx context.Context, bookmarkID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, bookmarkID)
	if err != nil {
		return domainerrors.StoreFailure(err, "delete bookmark")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) queryBookmarks(ctx context.Context, query string, args ...any) ([]*domain.Bookmark, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerrors.StoreFailure(err, "load bookmarks")
	}
	defer rows.Close()

	var out []*domain.Bookmark
	for rows.Next() {
		bm, err := scanBookmark(rows)
		if err != nil {
			return nil, domainerrors.StoreFailure(err, "scan bookmark")
		}
		out = append(out, bm)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.StoreFailure(err, "iterate bookmarks")
	}
	return out, nil
}
