package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/id"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, file_id, file_path, file_entry, resource,
	title, authors, tags, series_title, series_index,
	encoding, language, description,
	fp_size, fp_mod_time, fp_inode, fp_crc32`

// setExistingChunk bounds the number of ids bound into one statement.
const setExistingChunk = 500

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book
// and returns it together with its file id.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, string, error) {
	var (
		b        domain.Book
		fileID   string
		resource int
		authors  string
		tags     string
		series   sql.NullString
		index    sql.NullString
		encoding sql.NullString
		language sql.NullString
		desc     sql.NullString
		inode    int64
		crc      int64
	)

	err := scanner.Scan(
		&b.ID,
		&fileID,
		&b.File.Path,
		&b.File.Entry,
		&resource,
		&b.Title,
		&authors,
		&tags,
		&series,
		&index,
		&encoding,
		&language,
		&desc,
		&b.Fingerprint.Size,
		&b.Fingerprint.ModTime,
		&inode,
		&crc,
	)
	if err != nil {
		return nil, "", err
	}

	b.File.Resource = resource != 0
	b.Fingerprint.Inode = uint64(inode)
	b.Fingerprint.CRC32 = uint32(crc)
	b.Encoding = encoding.String
	b.Language = language.String
	b.Description = desc.String
	b.Series = domain.NewSeriesInfo(series.String, index.String)

	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return nil, "", fmt.Errorf("decode authors of %s: %w", b.ID, err)
	}

	var tagPaths [][]string
	if err := json.Unmarshal([]byte(tags), &tagPaths); err != nil {
		return nil, "", fmt.Errorf("decode tags of %s: %w", b.ID, err)
	}
	for _, path := range tagPaths {
		if t := domain.NewTag(path...); t != nil {
			b.Tags = append(b.Tags, t)
		}
	}

	b.MarkSaved()
	return &b, fileID, nil
}

// LoadBook retrieves a book by its ID.
func (s *Store) LoadBook(ctx context.Context, bookID string) (*domain.Book, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)

	b, _, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, domainerrors.StoreFailure(err, "load book")
	}
	return b, nil
}

// LoadBookByFile retrieves the book stored for a file id.
func (s *Store) LoadBookByFile(ctx context.Context, fileID string) (*domain.Book, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE file_id = ?`, fileID)

	b, _, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, domainerrors.StoreFailure(err, "load book by file")
	}
	return b, nil
}

// LoadBooks returns every book with the given existing flag keyed by file id.
func (s *Store) LoadBooks(ctx context.Context, existing bool) (map[string]*domain.Book, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE existing = ?`, boolInt(existing))
	if err != nil {
		return nil, domainerrors.StoreFailure(err, "load books")
	}
	defer rows.Close()

	out := make(map[string]*domain.Book)
	for rows.Next() {
		b, fileID, err := scanBook(rows)
		if err != nil {
			return nil, domainerrors.StoreFailure(err, "scan book")
		}
		out[fileID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.StoreFailure(err, "iterate books")
	}
	return out, nil
}

// SaveBook upserts the book keyed by its ID. New books adopt the ID already
// stored for their file, or get a fresh one. An inserted row starts
// existing; an update keeps the flag, which only SetExisting changes.
func (s *Store) SaveBook(ctx context.Context, fileID string, b *domain.Book, force bool) (bool, error) {
	if b.IsSaved() && !force {
		return false, nil
	}

	if b.ID == "" {
		var existingID string
		err := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM books WHERE file_id = ?`, fileID).Scan(&existingID)
		switch {
		case err == nil:
			b.ID = existingID
		case errors.Is(err, sql.ErrNoRows):
			newID, err := id.Generate(id.PrefixBook)
			if err != nil {
				return false, domainerrors.Internal("generate book id").WithCause(err)
			}
			b.ID = newID
		default:
			return false, domainerrors.StoreFailure(err, "look up book id")
		}
	}

	authors, err := json.Marshal(nonNilAuthors(b.Authors))
	if err != nil {
		return false, fmt.Errorf("encode authors: %w", err)
	}
	tagPaths := make([][]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		if !t.IsUnknown() {
			tagPaths = append(tagPaths, t.Path())
		}
	}
	tags, err := json.Marshal(tagPaths)
	if err != nil {
		return false, fmt.Errorf("encode tags: %w", err)
	}

	var seriesTitle, seriesIndex string
	if b.Series != nil {
		seriesTitle, seriesIndex = b.Series.Title, b.Series.Index
	}
	now := formatTime(time.Now())

	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO books (
			id, file_id, file_path, file_entry, resource,
			title, authors, tags, series_title, series_index,
			encoding, language, description,
			fp_size, fp_mod_time, fp_inode, fp_crc32,
			existing, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_id = excluded.file_id,
			file_path = excluded.file_path,
			file_entry = excluded.file_entry,
			resource = excluded.resource,
			title = excluded.title,
			authors = excluded.authors,
			tags = excluded.tags,
			series_title = excluded.series_title,
			series_index = excluded.series_index,
			encoding = excluded.encoding,
			language = excluded.language,
			description = excluded.description,
			fp_size = excluded.fp_size,
			fp_mod_time = excluded.fp_mod_time,
			fp_inode = excluded.fp_inode,
			fp_crc32 = excluded.fp_crc32,
			updated_at = excluded.updated_at`,
		b.ID, fileID, b.File.Path, b.File.Entry, boolInt(b.File.Resource),
		b.Title, string(authors), string(tags), nullString(seriesTitle), nullString(seriesIndex),
		nullString(b.Encoding), nullString(b.Language), nullString(b.Description),
		b.Fingerprint.Size, b.Fingerprint.ModTime, int64(b.Fingerprint.Inode), int64(b.Fingerprint.CRC32),
		now, now,
	)
	if err != nil {
		return false, domainerrors.StoreFailure(err, "save book")
	}

	b.MarkSaved()
	return true, nil
}

// SetExisting flips the existing flag of the given books.
func (s *Store) SetExisting(ctx context.Context, bookIDs []string, existing bool) error {
	for start := 0; start < len(bookIDs); start += setExistingChunk {
		chunk := bookIDs[start:min(start+setExistingChunk, len(bookIDs))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, boolInt(existing))
		for _, bookID := range chunk {
			args = append(args, bookID)
		}

		query := `UPDATE books SET existing = ? WHERE id IN (` + placeholders(len(chunk)) + `)`
		if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
			return domainerrors.StoreFailure(err, "set existing flag")
		}
	}
	return nil
}

// CountBooks returns the number of stored books and how many of them exist.
func (s *Store) CountBooks(ctx context.Context) (total, existing int, err error) {
	err = s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(existing), 0) FROM books`).Scan(&total, &existing)
	if err != nil {
		return 0, 0, domainerrors.StoreFailure(err, "count books")
	}
	return total, existing, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func nonNilAuthors(a []domain.Author) []domain.Author {
	if a == nil {
		return []domain.Author{}
	}
	return a
}
