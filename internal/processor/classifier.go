// Package processor turns settled file system events into library rescans.
package processor

import (
	"path/filepath"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
)

// FileType represents the type of file detected by the classifier.
type FileType int

const (
	// FileTypeBook represents files a format reader accepts by name (.epub, .fb2, .txt, .fb2.zip).
	FileTypeBook FileType = iota
	// FileTypeArchive represents zip archives that may hold several books.
	FileTypeArchive
	// FileTypeUnknown represents files without an extension; the reader is picked by content.
	FileTypeUnknown
	// FileTypeIgnored represents everything else (covers, sidecars, temp files).
	FileTypeIgnored
)

// String returns the string representation of a FileType.
func (ft FileType) String() string {
	switch ft {
	case FileTypeBook:
		return "book"
	case FileTypeArchive:
		return "archive"
	case FileTypeUnknown:
		return "unknown"
	case FileTypeIgnored:
		return "ignored"
	default:
		return "invalid"
	}
}

// Formats reports which files a format reader accepts by name.
// *formats.Registry implements it.
type Formats interface {
	Supported(f bookfile.File) bool
}

// classifyFile determines the type of file from its name alone, so removed
// files classify the same as present ones.
func classifyFile(path string, formats Formats) FileType {
	if path == "" {
		return FileTypeIgnored
	}

	f := bookfile.Physical(path)
	switch {
	case formats.Supported(f):
		return FileTypeBook
	case f.IsArchive():
		return FileTypeArchive
	case filepath.Ext(path) == "":
		return FileTypeUnknown
	}
	return FileTypeIgnored
}
