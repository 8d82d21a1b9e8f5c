//go:build !linux

package fingerprint

import (
	"fmt"
	"os"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// statFile reports no inode here; size and mtime still catch edits.
func statFile(path string) (domain.Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return domain.Fingerprint{}, fmt.Errorf("stat %s: not a regular file", path)
	}
	return domain.Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}
