package formats

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/normalize"
)

// xmlEncodingPattern reads the encoding from an XML declaration.
var xmlEncodingPattern = regexp.MustCompile(`^\s*<\?xml[^>]*encoding\s*=\s*["']([A-Za-z0-9._-]+)["']`)

// FB2 reads the title-info of a FictionBook 2 document.
type FB2 struct{}

// Name implements Reader.
func (FB2) Name() string { return "fb2" }

// MIMEType implements Reader.
func (FB2) MIMEType() string { return "application/x-fictionbook+xml" }

// Accepts implements Reader.
func (FB2) Accepts(f bookfile.File) bool { return hasExt(f, ".fb2") }

// RealBookFile implements Reader.
func (FB2) RealBookFile(f bookfile.File) (bookfile.File, error) { return f, nil }

type fb2Author struct {
	FirstName  string `xml:"first-name"`
	MiddleName string `xml:"middle-name"`
	LastName   string `xml:"last-name"`
	Nickname   string `xml:"nickname"`
}

func (a fb2Author) author() domain.Author {
	display := strings.Join(strings.Fields(strings.Join([]string{a.FirstName, a.MiddleName, a.LastName}, " ")), " ")
	if display == "" {
		display = strings.TrimSpace(a.Nickname)
	}
	sortKey := strings.TrimSpace(a.LastName)
	if sortKey != "" {
		if rest := strings.TrimSpace(a.FirstName + " " + a.MiddleName); rest != "" {
			sortKey += " " + rest
		}
	}
	return domain.NewAuthor(display, sortKey)
}

type fb2Document struct {
	XMLName   xml.Name `xml:"FictionBook"`
	TitleInfo struct {
		Genre      []string    `xml:"genre"`
		Author     []fb2Author `xml:"author"`
		BookTitle  string      `xml:"book-title"`
		Annotation struct {
			Inner string `xml:",innerxml"`
		} `xml:"annotation"`
		Lang     string `xml:"lang"`
		Sequence []struct {
			Name   string `xml:"name,attr"`
			Number string `xml:"number,attr"`
		} `xml:"sequence"`
	} `xml:"description>title-info"`
}

// ReadMetadata implements Reader.
func (FB2) ReadMetadata(data []byte, book *domain.Book) error {
	var doc fb2Document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	if err := dec.Decode(&doc); err != nil {
		return domainerrors.ReadFailuref("%s: parse fb2", book.File).WithCause(err)
	}

	ti := &doc.TitleInfo
	book.Title = strings.TrimSpace(ti.BookTitle)
	for _, a := range ti.Author {
		if author := a.author(); author.DisplayName != "" {
			book.AddAuthor(author)
		}
	}
	for _, g := range ti.Genre {
		if t := genreTag(g); t != nil {
			book.AddTag(t)
		}
	}
	if len(ti.Sequence) > 0 {
		book.SetSeries(ti.Sequence[0].Name, ti.Sequence[0].Number)
	}
	book.Language = normalize.BookLanguage(ti.Lang)
	book.Description = htmlToMarkdown(ti.Annotation.Inner)
	book.Encoding = declaredEncoding(data)
	return nil
}

// declaredEncoding returns the lowercased XML declaration encoding, utf-8 by default.
func declaredEncoding(data []byte) string {
	head := data[:min(len(data), 256)]
	if m := xmlEncodingPattern.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return "utf-8"
}
