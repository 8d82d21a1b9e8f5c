package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const defaultSettleDelay = 500 * time.Millisecond

// DefaultIgnorePatterns match partial downloads, editor swap files and
// desktop litter. None of them can become a book.
var DefaultIgnorePatterns = []string{
	"*.part",
	"*.crdownload",
	"*.download",
	"*.tmp",
	"*.temp",
	"*.swp",
	"~$*",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// Options configures the watcher.
type Options struct {
	// IgnorePatterns are matched against the base name. Nil selects
	// DefaultIgnorePatterns and also turns on IgnoreHidden.
	IgnorePatterns []string
	// SettleDelay is how long a file must stay unchanged before its event is emitted.
	SettleDelay time.Duration
	// IgnoreHidden skips any path with a dot-prefixed element, such as
	// reader sidecar directories.
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = slices.Clone(DefaultIgnorePatterns)
		o.IgnoreHidden = true
	}
}

func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden && hasHiddenElement(path) {
		return true
	}
	base := filepath.Base(path)
	return slices.ContainsFunc(o.IgnorePatterns, func(pattern string) bool {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	})
}

func hasHiddenElement(path string) bool {
	for elem := range strings.SplitSeq(filepath.Clean(path), string(filepath.Separator)) {
		if len(elem) > 1 && elem[0] == '.' && elem != ".." {
			return true
		}
	}
	return false
}
