package fingerprint

import (
	"fmt"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// Current computes the fingerprint of f as it is now. Physical files use size,
// modification time and inode. Archive entries use the zip header.
func Current(f bookfile.File) (domain.Fingerprint, error) {
	switch {
	case f.Resource:
		size, err := f.Size()
		if err != nil {
			return domain.Fingerprint{}, err
		}
		return domain.Fingerprint{Size: size}, nil
	case f.IsEntry():
		hdr, err := f.EntryHeader()
		if err != nil {
			return domain.Fingerprint{}, err
		}
		return domain.Fingerprint{Size: int64(hdr.UncompressedSize64), CRC32: hdr.CRC32}, nil
	case f.Path == "":
		return domain.Fingerprint{}, fmt.Errorf("empty file reference")
	default:
		return statFile(f.Path)
	}
}
