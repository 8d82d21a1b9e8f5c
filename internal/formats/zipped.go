package formats

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// Zipped handles a zip archive carrying exactly one book, named after it
// ("story.fb2.zip"). The book text is the single inner entry.
type Zipped struct {
	registry *Registry
}

// Name implements Reader.
func (*Zipped) Name() string { return "zip" }

// MIMEType implements Reader. Zipped containers are never chosen by content.
func (*Zipped) MIMEType() string { return "" }

// Accepts implements Reader.
func (z *Zipped) Accepts(f bookfile.File) bool {
	if !f.IsArchive() {
		return false
	}
	inner := bookfile.Physical(f.Path[:len(f.Path)-len(".zip")])
	for _, rd := range z.registry.readers {
		if rd != Reader(z) && rd.Accepts(inner) {
			return true
		}
	}
	return false
}

// RealBookFile implements Reader.
func (z *Zipped) RealBookFile(f bookfile.File) (bookfile.File, error) {
	entries, err := f.Entries()
	if err != nil {
		return bookfile.File{}, err
	}

	var found []bookfile.File
	for _, e := range entries {
		if z.registry.Supported(e) {
			found = append(found, e)
		}
	}
	if len(found) != 1 {
		return bookfile.File{}, fmt.Errorf("%s holds %d books, want exactly 1", f, len(found))
	}
	return found[0], nil
}

// ReadMetadata implements Reader by sniffing the inner content.
func (z *Zipped) ReadMetadata(data []byte, book *domain.Book) error {
	rd := z.registry.readerForMIME(mimetype.Detect(data))
	if rd == nil {
		return domainerrors.ReadFailuref("%s: unrecognized zipped content", book.File)
	}
	return rd.ReadMetadata(data, book)
}
