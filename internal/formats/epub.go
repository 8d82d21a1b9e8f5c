package formats

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/normalize"
)

var errNoPackage = errors.New("no package document")

// subjectSeparator splits hierarchical EPUB subjects into tag paths.
const subjectSeparator = " / "

// EPUB reads the OPF package document of an EPUB container.
type EPUB struct{}

// Name implements Reader.
func (EPUB) Name() string { return "epub" }

// MIMEType implements Reader.
func (EPUB) MIMEType() string { return "application/epub+zip" }

// Accepts implements Reader.
func (EPUB) Accepts(f bookfile.File) bool { return hasExt(f, ".epub") }

// RealBookFile implements Reader.
func (EPUB) RealBookFile(f bookfile.File) (bookfile.File, error) { return f, nil }

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Subject     []string `xml:"subject"`
		Description string   `xml:"description"`
		Language    []string `xml:"language"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			ID       string `xml:"id,attr"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// ReadMetadata implements Reader.
func (EPUB) ReadMetadata(data []byte, book *domain.Book) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domainerrors.ReadFailuref("%s: not a zip container", book.File).WithCause(err)
	}

	opfPath, err := findOPF(zr)
	if err != nil {
		return domainerrors.ReadFailuref("%s: locate package document", book.File).WithCause(err)
	}

	raw, err := readZipFile(zr, opfPath)
	if err != nil {
		return domainerrors.ReadFailuref("%s: read %s", book.File, opfPath).WithCause(err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return domainerrors.ReadFailuref("%s: parse %s", book.File, opfPath).WithCause(err)
	}

	applyOPF(&pkg, book)
	return nil
}

func applyOPF(pkg *opfPackage, book *domain.Book) {
	md := &pkg.Metadata

	// Properties attached to elements through refines="#id".
	refined := map[string]map[string]string{}
	named := map[string]string{}
	for _, m := range md.Meta {
		switch {
		case m.Refines != "":
			key := strings.TrimPrefix(m.Refines, "#")
			if refined[key] == nil {
				refined[key] = map[string]string{}
			}
			refined[key][m.Property] = strings.TrimSpace(m.Text)
		case m.Name != "":
			named[m.Name] = strings.TrimSpace(m.Content)
		}
	}

	switch len(md.Title) {
	case 0:
	case 1:
		book.Title = strings.TrimSpace(md.Title[0].Text)
	default:
		book.Title = strings.TrimSpace(md.Title[0].Text)
		for _, t := range md.Title {
			if t.ID != "" && refined[t.ID]["title-type"] == "main" {
				book.Title = strings.TrimSpace(t.Text)
				break
			}
		}
	}

	for _, c := range md.Creator {
		role := c.Role
		if role == "" && c.ID != "" {
			role = refined[c.ID]["role"]
		}
		if role != "" && role != "aut" {
			continue
		}
		sortKey := c.FileAs
		if sortKey == "" && c.ID != "" {
			sortKey = refined[c.ID]["file-as"]
		}
		book.AddAuthor(domain.NewAuthor(c.Text, sortKey))
	}

	for _, s := range md.Subject {
		book.AddTag(domain.NewTag(strings.Split(s, subjectSeparator)...))
	}

	if len(md.Language) > 0 {
		book.Language = normalize.BookLanguage(md.Language[0])
	}
	book.Description = htmlToMarkdown(md.Description)

	if series := named["calibre:series"]; series != "" {
		book.SetSeries(series, named["calibre:series_index"])
	} else {
		// EPUB 3 collections.
		for _, m := range md.Meta {
			if m.Property != "belongs-to-collection" {
				continue
			}
			props := refined[m.ID]
			if ct := props["collection-type"]; ct != "" && ct != "series" {
				continue
			}
			book.SetSeries(m.Text, props["group-position"])
			break
		}
	}
	book.Encoding = "utf-8"
}

// findOPF returns the package document path from META-INF/container.xml,
// falling back to the first .opf file in the archive.
func findOPF(zr *zip.Reader) (string, error) {
	if raw, err := readZipFile(zr, "META-INF/container.xml"); err == nil {
		var c container
		if err := xml.Unmarshal(raw, &c); err == nil {
			for _, rf := range c.Rootfiles {
				if rf.FullPath != "" {
					return rf.FullPath, nil
				}
			}
		}
	}
	for _, zf := range zr.File {
		if strings.EqualFold(path.Ext(zf.Name), ".opf") {
			return zf.Name, nil
		}
	}
	return "", errNoPackage
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	rc, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
