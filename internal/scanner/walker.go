package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Walker enumerates the regular files below the library roots.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{
		logger: logger,
	}
}

// WalkResult is a file discovered during walking.
type WalkResult struct {
	Path string
	Root string
}

// Walk streams every regular file below roots, breadth first. Each directory
// is visited once even when reachable through several roots or symlinks.
// Hidden files and directories are skipped. The channel closes when the walk
// is complete or ctx is canceled.
func (w *Walker) Walk(ctx context.Context, roots ...string) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		type dir struct{ path, root string }
		visited := make(map[string]struct{})
		var queue []dir

		enqueue := func(path, root string) {
			key := path
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				key = resolved
			}
			if _, seen := visited[key]; seen {
				return
			}
			visited[key] = struct{}{}
			queue = append(queue, dir{path: path, root: root})
		}

		for _, root := range roots {
			enqueue(filepath.Clean(root), filepath.Clean(root))
		}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if ctx.Err() != nil {
				return
			}

			entries, err := os.ReadDir(current.path)
			if err != nil {
				w.logger.Warn("failed to read directory", "path", current.path, "error", err)
				continue
			}

			for _, entry := range entries {
				// Skip hidden files/directories.
				if strings.HasPrefix(entry.Name(), ".") {
					continue
				}

				path := filepath.Join(current.path, entry.Name())

				info, err := os.Stat(path)
				if err != nil {
					w.logger.Debug("failed to stat", "path", path, "error", err)
					continue
				}

				if info.IsDir() {
					enqueue(path, current.root)
					continue
				}
				if !info.Mode().IsRegular() {
					continue
				}

				select {
				case results <- WalkResult{Path: path, Root: current.root}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}

// Collect drains Walk into a slice.
func (w *Walker) Collect(ctx context.Context, roots ...string) []string {
	var files []string
	for r := range w.Walk(ctx, roots...) {
		files = append(files, r.Path)
	}
	return files
}
