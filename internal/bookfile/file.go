// Package bookfile models the files books live in: plain files on disk,
// entries nested inside zip archives, and resources embedded in the binary.
package bookfile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// entrySeparator joins an archive path and an entry name in an identity string.
const entrySeparator = "!/"

// ErrNotArchive is returned when entries are requested from a non-archive file.
var ErrNotArchive = errors.New("file is not an archive")

// File is a logical reference to a book file. It is comparable and safe to use as a map key.
//
// A physical file has only Path set. An archive entry has Path set to the archive
// on disk and Entry set to the slash-separated name inside it. A resource has
// Resource set and Path naming a file in the embedded resource tree.
type File struct {
	Path     string `json:"path"`
	Entry    string `json:"entry,omitempty"`
	Resource bool   `json:"resource,omitempty"`
}

// Physical returns a reference to a file on disk.
func Physical(p string) File {
	return File{Path: filepath.Clean(p)}
}

// EntryOf returns a reference to name inside the archive.
func EntryOf(archive File, name string) File {
	return File{Path: archive.Path, Entry: strings.TrimPrefix(path.Clean("/"+name), "/")}
}

// ResourceFile returns a reference to an embedded resource.
func ResourceFile(name string) File {
	return File{Path: path.Clean(name), Resource: true}
}

// IsZero reports whether f references nothing.
func (f File) IsZero() bool {
	return f == File{}
}

// IsEntry reports whether f is nested inside an archive.
func (f File) IsEntry() bool {
	return f.Entry != "" && !f.Resource
}

// HasPhysical reports whether f is backed by a file on disk.
func (f File) HasPhysical() bool {
	return !f.Resource && f.Path != ""
}

// PhysicalFile returns the on-disk file backing f: the archive for an entry,
// f itself for a physical file and the zero File for a resource.
func (f File) PhysicalFile() File {
	if !f.HasPhysical() {
		return File{}
	}
	return File{Path: f.Path}
}

// Parent returns the containing archive of an entry, or the zero File.
func (f File) Parent() File {
	if !f.IsEntry() {
		return File{}
	}
	return File{Path: f.Path}
}

// Identity is the stable logical name of f, including the container chain.
func (f File) Identity() string {
	switch {
	case f.Resource:
		return "resource:" + f.Path
	case f.Entry != "":
		return f.Path + entrySeparator + f.Entry
	default:
		return f.Path
	}
}

// String implements fmt.Stringer.
func (f File) String() string {
	return f.Identity()
}

// Name returns the short name: the entry base name or the file base name.
func (f File) Name() string {
	if f.IsEntry() {
		return path.Base(f.Entry)
	}
	return filepath.Base(f.Path)
}

// Ext returns the lowercased extension of Name, including the dot.
func (f File) Ext() string {
	return strings.ToLower(path.Ext(f.Name()))
}

// IsArchive reports whether f is a container whose entries may be books.
// Only physical zip files qualify; nested archives are not opened.
func (f File) IsArchive() bool {
	return !f.Resource && !f.IsEntry() && f.Ext() == ".zip"
}

// Exists reports whether f can currently be opened.
func (f File) Exists() bool {
	switch {
	case f.Resource:
		_, err := fs.Stat(resources, resourceRoot+f.Path)
		return err == nil
	case f.IsEntry():
		_, err := f.EntryHeader()
		return err == nil
	default:
		info, err := os.Stat(f.Path)
		return err == nil && info.Mode().IsRegular()
	}
}

// Size returns the uncompressed size of f.
func (f File) Size() (int64, error) {
	switch {
	case f.Resource:
		info, err := fs.Stat(resources, resourceRoot+f.Path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case f.IsEntry():
		hdr, err := f.EntryHeader()
		if err != nil {
			return 0, err
		}
		return int64(hdr.UncompressedSize64), nil
	default:
		info, err := os.Stat(f.Path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
}

// EntryHeader returns the zip header of an archive entry.
func (f File) EntryHeader() (zip.FileHeader, error) {
	if !f.IsEntry() {
		return zip.FileHeader{}, fmt.Errorf("%s: not an archive entry", f)
	}
	zr, err := zip.OpenReader(f.Path)
	if err != nil {
		return zip.FileHeader{}, err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name == f.Entry {
			return zf.FileHeader, nil
		}
	}
	return zip.FileHeader{}, fmt.Errorf("%s: %w", f, fs.ErrNotExist)
}

// Entries lists the regular-file entries of an archive in archive order.
func (f File) Entries() ([]File, error) {
	if !f.IsArchive() {
		return nil, fmt.Errorf("%s: %w", f, ErrNotArchive)
	}
	zr, err := zip.OpenReader(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", f.Path, err)
	}
	defer zr.Close()

	entries := make([]File, 0, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || strings.HasSuffix(zf.Name, "/") {
			continue
		}
		entries = append(entries, EntryOf(f, zf.Name))
	}
	return entries, nil
}

// ReadAll returns the full content of f.
func (f File) ReadAll() ([]byte, error) {
	switch {
	case f.Resource:
		return fs.ReadFile(resources, resourceRoot+f.Path)
	case f.IsEntry():
		zr, err := zip.OpenReader(f.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", f.Path, err)
		}
		defer zr.Close()

		for _, zf := range zr.File {
			if zf.Name != f.Entry {
				continue
			}
			rc, err := zf.Open()
			if err != nil {
				return nil, fmt.Errorf("open entry %s: %w", f, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
		return nil, fmt.Errorf("%s: %w", f, fs.ErrNotExist)
	default:
		return os.ReadFile(f.Path)
	}
}

// Remove deletes the physical file behind f. Entries and resources cannot be removed.
func (f File) Remove() error {
	if f.Resource || f.IsEntry() {
		return fmt.Errorf("%s: cannot remove nested or embedded file", f)
	}
	return os.Remove(f.Path)
}
