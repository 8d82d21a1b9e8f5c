package formats

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>The Left Hand of Darkness</dc:title>
    <dc:creator opf:role="aut" opf:file-as="Le Guin, Ursula K.">Ursula K. Le Guin</dc:creator>
    <dc:creator opf:role="ill">Some Illustrator</dc:creator>
    <dc:subject>Fiction / Science Fiction</dc:subject>
    <dc:subject>Classics</dc:subject>
    <dc:language>en</dc:language>
    <dc:description>&lt;p&gt;A &lt;b&gt;classic&lt;/b&gt; novel.&lt;/p&gt;</dc:description>
    <meta name="calibre:series" content="Hainish Cycle"/>
    <meta name="calibre:series_index" content="4.0"/>
  </metadata>
</package>`

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const testFB2 = `<?xml version="1.0" encoding="%s"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <genre>sf_fantasy</genre>
      <genre>prose_classic</genre>
      <author><first-name>Михаил</first-name><last-name>Булгаков</last-name></author>
      <book-title>Мастер и Маргарита</book-title>
      <annotation><p>Роман.</p></annotation>
      <lang>ru</lang>
      <sequence name="Romans" number="2"/>
    </title-info>
  </description>
  <body><section><p>...</p></section></body>
</FictionBook>`

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func epubBytes(t *testing.T) []byte {
	return zipBytes(t, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testOPF,
	})
}

func fb2Bytes(t *testing.T, enc string) []byte {
	t.Helper()
	doc := []byte(fmt.Sprintf(testFB2, enc))
	if enc == "windows-1251" {
		encoded, err := charmap.Windows1251.NewEncoder().Bytes(doc)
		require.NoError(t, err)
		return encoded
	}
	return doc
}

func writeFile(t *testing.T, dir, name string, data []byte) bookfile.File {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return bookfile.Physical(p)
}

func TestEPUB_ReadMetadata(t *testing.T) {
	book := domain.NewBook(bookfile.Physical("/books/lhod.epub"))
	require.NoError(t, EPUB{}.ReadMetadata(epubBytes(t), book))

	assert.Equal(t, "The Left Hand of Darkness", book.Title)
	require.Len(t, book.Authors, 1)
	assert.Equal(t, "Ursula K. Le Guin", book.Authors[0].DisplayName)
	assert.Equal(t, domain.Fold("Le Guin, Ursula K."), book.Authors[0].SortKey)
	require.Len(t, book.Tags, 2)
	assert.Equal(t, "Fiction/Science Fiction", book.Tags[0].Key())
	assert.Equal(t, "Classics", book.Tags[1].Key())
	assert.Equal(t, "en", book.Language)
	assert.Equal(t, &domain.SeriesInfo{Title: "Hainish Cycle", Index: "4"}, book.Series)
	assert.Contains(t, book.Description, "**classic**")
	assert.NotContains(t, book.Description, "<p>")
}

func TestEPUB_EPUB3Collection(t *testing.T) {
	opf := `<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="t1">Subtitle First</dc:title>
    <dc:title id="t2">Main Title</dc:title>
    <meta refines="#t2" property="title-type">main</meta>
    <dc:creator id="c1">Ann Leckie</dc:creator>
    <meta refines="#c1" property="role">aut</meta>
    <meta property="belongs-to-collection" id="s1">Imperial Radch</meta>
    <meta refines="#s1" property="collection-type">series</meta>
    <meta refines="#s1" property="group-position">1</meta>
  </metadata>
</package>`
	data := zipBytes(t, map[string]string{"book.opf": opf})

	book := domain.NewBook(bookfile.Physical("/books/aj.epub"))
	require.NoError(t, EPUB{}.ReadMetadata(data, book))

	assert.Equal(t, "Main Title", book.Title)
	require.Len(t, book.Authors, 1)
	assert.Equal(t, "Ann Leckie", book.Authors[0].DisplayName)
	assert.Equal(t, &domain.SeriesInfo{Title: "Imperial Radch", Index: "1"}, book.Series)
}

func TestEPUB_Failures(t *testing.T) {
	tests := map[string][]byte{
		"not a zip":  []byte("plain"),
		"no package": zipBytes(t, map[string]string{"a.txt": "x"}),
		"broken opf": zipBytes(t, map[string]string{"content.opf": "<package><metadata>"}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			err := EPUB{}.ReadMetadata(data, domain.NewBook(bookfile.Physical("/x.epub")))
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrReadFailure))
		})
	}
}

func TestFB2_ReadMetadata(t *testing.T) {
	for _, enc := range []string{"utf-8", "windows-1251"} {
		t.Run(enc, func(t *testing.T) {
			book := domain.NewBook(bookfile.Physical("/books/mm.fb2"))
			require.NoError(t, FB2{}.ReadMetadata(fb2Bytes(t, enc), book))

			assert.Equal(t, "Мастер и Маргарита", book.Title)
			require.Len(t, book.Authors, 1)
			assert.Equal(t, "Михаил Булгаков", book.Authors[0].DisplayName)
			assert.Equal(t, domain.Fold("Булгаков Михаил"), book.Authors[0].SortKey)
			require.Len(t, book.Tags, 2)
			assert.Equal(t, "Science Fiction/Fantasy", book.Tags[0].Key())
			assert.Equal(t, "Prose/Classic", book.Tags[1].Key())
			assert.Equal(t, &domain.SeriesInfo{Title: "Romans", Index: "2"}, book.Series)
			assert.Equal(t, "ru", book.Language)
			assert.Equal(t, "Роман.", book.Description)
			assert.Equal(t, enc, book.Encoding)
		})
	}
}

func TestGenreTag(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"sf_horror", "Science Fiction/Horror"},
		{"computers", "Computers"},
		{"det_classic", "Detective/Classic"},
		{"unknown_thing", "Unknown Thing"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, genreTag(tt.code).Key())
		})
	}
	assert.Nil(t, genreTag("  "))
}

func TestTitleFromName(t *testing.T) {
	assert.Equal(t, "story", titleFromName("story.fb2.zip"))
	assert.Equal(t, "notes.v2", titleFromName("notes.v2.txt"))
	assert.Equal(t, ".txt", titleFromName(".txt"))
}

func TestRegistry_ReadBook(t *testing.T) {
	dir := t.TempDir()
	reg := Default()

	t.Run("epub", func(t *testing.T) {
		f := writeFile(t, dir, "lhod.epub", epubBytes(t))
		book, err := reg.ReadBook(f)
		require.NoError(t, err)
		assert.Equal(t, f, book.File)
		assert.Equal(t, "The Left Hand of Darkness", book.Title)
		assert.False(t, book.IsSaved())
	})

	t.Run("text", func(t *testing.T) {
		f := writeFile(t, dir, "Walden.txt", []byte("Simplicity, simplicity, simplicity!"))
		book, err := reg.ReadBook(f)
		require.NoError(t, err)
		assert.Equal(t, "Walden", book.Title)
		assert.Equal(t, "utf-8", book.Encoding)
	})

	t.Run("zipped fb2", func(t *testing.T) {
		f := writeFile(t, dir, "mm.fb2.zip", zipBytes(t, map[string]string{"mm.fb2": string(fb2Bytes(t, "utf-8"))}))
		book, err := reg.ReadBook(f)
		require.NoError(t, err)
		assert.Equal(t, f, book.File, "the book keeps the container as its file")
		assert.Equal(t, "Мастер и Маргарита", book.Title)
	})

	t.Run("zip with several books is not a single book", func(t *testing.T) {
		f := writeFile(t, dir, "pack.fb2.zip", zipBytes(t, map[string]string{"a.fb2": "x", "b.fb2": "y"}))
		_, err := reg.ReadBook(f)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrReadFailure))
	})

	t.Run("plain archive is unsupported", func(t *testing.T) {
		f := writeFile(t, dir, "pack.zip", zipBytes(t, map[string]string{"a.fb2": "x"}))
		_, err := reg.ReadBook(f)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrReadFailure))
	})

	t.Run("archive entry", func(t *testing.T) {
		archive := writeFile(t, dir, "lib.zip", zipBytes(t, map[string]string{"nested/lhod.epub": string(epubBytes(t))}))
		book, err := reg.ReadBook(bookfile.EntryOf(archive, "nested/lhod.epub"))
		require.NoError(t, err)
		assert.Equal(t, "The Left Hand of Darkness", book.Title)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := reg.ReadBook(bookfile.Physical(filepath.Join(dir, "gone.epub")))
		assert.True(t, domainerrors.Is(err, domainerrors.ErrFileMissing))
	})

	t.Run("sniffed without extension", func(t *testing.T) {
		f := writeFile(t, dir, "README", []byte("just some words\n"))
		book, err := reg.ReadBook(f)
		require.NoError(t, err)
		assert.Equal(t, "README", book.Title)
	})

	t.Run("unknown extension", func(t *testing.T) {
		f := writeFile(t, dir, "cover.jpg", []byte{0xff, 0xd8, 0xff, 0xe0})
		_, err := reg.ReadBook(f)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrReadFailure))
	})

	t.Run("embedded help", func(t *testing.T) {
		book, err := reg.ReadBook(bookfile.HelpFile("en"))
		require.NoError(t, err)
		assert.Equal(t, "Shelfsync Quick Start", book.Title)
		assert.Equal(t, "en", book.Language)
	})
}

func TestHTMLToMarkdown(t *testing.T) {
	assert.Equal(t, "plain text", htmlToMarkdown("  plain text "))
	assert.Equal(t, "", htmlToMarkdown(""))
	assert.Equal(t, "**bold**", htmlToMarkdown("<p><b>bold</b></p>"))
}
