// Package formats reads book metadata from supported file formats.
package formats

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// Reader extracts metadata from one file format.
type Reader interface {
	// Name is a short format name such as "epub".
	Name() string
	// MIMEType is the content type the reader handles when sniffed.
	MIMEType() string
	// Accepts reports whether f looks like this format by its name.
	Accepts(f bookfile.File) bool
	// RealBookFile returns the file holding the book text. For most formats
	// that is f itself; zipped containers resolve to their inner entry.
	RealBookFile(f bookfile.File) (bookfile.File, error)
	// ReadMetadata fills book from the content of its real book file.
	// It fails with a READ_FAILURE error.
	ReadMetadata(data []byte, book *domain.Book) error
}

// Registry picks the reader for a file: by extension first, then by content
// for files that have no extension.
type Registry struct {
	readers []Reader
}

// NewRegistry creates a registry trying readers in order.
func NewRegistry(readers ...Reader) *Registry {
	return &Registry{readers: readers}
}

// Default returns a registry with every built-in reader.
func Default() *Registry {
	r := NewRegistry(EPUB{}, FB2{}, Text{})
	r.readers = append(r.readers, &Zipped{registry: r})
	return r
}

// ReaderFor returns the reader for f, or nil when the format is not supported.
func (r *Registry) ReaderFor(f bookfile.File) Reader {
	for _, rd := range r.readers {
		if rd.Accepts(f) {
			return rd
		}
	}
	if path.Ext(f.Name()) != "" {
		return nil
	}

	var (
		mtype *mimetype.MIME
		err   error
	)
	if f.IsEntry() || f.Resource {
		var data []byte
		if data, err = f.ReadAll(); err == nil {
			mtype = mimetype.Detect(data)
		}
	} else {
		mtype, err = mimetype.DetectFile(f.Path)
	}
	if err != nil {
		return nil
	}
	return r.readerForMIME(mtype)
}

// readerForMIME walks the detected type and its parents looking for a reader.
func (r *Registry) readerForMIME(mtype *mimetype.MIME) Reader {
	for m := mtype; m != nil; m = m.Parent() {
		for _, rd := range r.readers {
			if rd.MIMEType() != "" && m.Is(rd.MIMEType()) {
				return rd
			}
		}
	}
	return nil
}

// Supported reports whether some reader accepts f by name.
func (r *Registry) Supported(f bookfile.File) bool {
	for _, rd := range r.readers {
		if rd.Accepts(f) {
			return true
		}
	}
	return false
}

// ReadBook reads a new, unsaved book for f. Missing files fail with
// FILE_MISSING, everything else with READ_FAILURE.
func (r *Registry) ReadBook(f bookfile.File) (*domain.Book, error) {
	if !f.Exists() {
		return nil, domainerrors.FileMissing(f.String())
	}

	rd := r.ReaderFor(f)
	if rd == nil {
		return nil, domainerrors.ReadFailuref("%s: unsupported format", f)
	}

	bookFile, err := rd.RealBookFile(f)
	if err != nil {
		return nil, domainerrors.ReadFailuref("%s: resolve book file", f).WithCause(err)
	}
	if bookFile != f {
		if inner := r.ReaderFor(bookFile); inner != nil {
			rd = inner
		}
	}

	data, err := bookFile.ReadAll()
	if err != nil {
		return nil, domainerrors.ReadFailuref("%s: read", bookFile).WithCause(err)
	}

	book := domain.NewBook(f)
	if err := rd.ReadMetadata(data, book); err != nil {
		return nil, err
	}
	if strings.TrimSpace(book.Title) == "" {
		book.Title = titleFromName(bookFile.Name())
	}
	return book, nil
}

// titleFromName strips every known book extension from a file name.
func titleFromName(name string) string {
	for {
		ext := path.Ext(name)
		if ext == "" || ext == name {
			return name
		}
		switch strings.ToLower(ext) {
		case ".zip", ".epub", ".fb2", ".txt":
			name = strings.TrimSuffix(name, ext)
		default:
			return name
		}
	}
}

func hasExt(f bookfile.File, ext string) bool {
	return f.Ext() == ext
}
