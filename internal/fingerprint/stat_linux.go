//go:build linux

package fingerprint

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

func statFile(path string) (domain.Fingerprint, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return domain.Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return domain.Fingerprint{}, fmt.Errorf("stat %s: not a regular file", path)
	}
	return domain.Fingerprint{
		Size:    st.Size,
		ModTime: unix.TimespecToNsec(st.Mtim),
		Inode:   st.Ino,
	}, nil
}
