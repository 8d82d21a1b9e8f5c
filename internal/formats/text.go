package formats

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Text reads plain text books. The title comes from the file name.
type Text struct{}

// Name implements Reader.
func (Text) Name() string { return "txt" }

// MIMEType implements Reader.
func (Text) MIMEType() string { return "text/plain" }

// Accepts implements Reader.
func (Text) Accepts(f bookfile.File) bool { return hasExt(f, ".txt") }

// RealBookFile implements Reader.
func (Text) RealBookFile(f bookfile.File) (bookfile.File, error) { return f, nil }

// ReadMetadata implements Reader.
func (Text) ReadMetadata(data []byte, book *domain.Book) error {
	book.Title = titleFromName(book.File.Name())
	if utf8.Valid(data) {
		book.Encoding = "utf-8"
		return nil
	}
	_, name, _ := charset.DetermineEncoding(data, "text/plain")
	book.Encoding = name
	return nil
}
