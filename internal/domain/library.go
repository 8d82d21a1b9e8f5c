package domain

import (
	"path/filepath"
	"slices"
)

// BuildStatus is the state of the library build. It only moves forward,
// except that an accepted rebuild takes Finished back to Started.
type BuildStatus string

// Build statuses.
const (
	BuildNotStarted BuildStatus = "not_started"
	BuildStarted    BuildStatus = "started"
	BuildFinished   BuildStatus = "finished"
)

// RescanQueue holds paths waiting to be rescanned, oldest first. A path
// queued twice is kept once. It is not safe for concurrent use.
type RescanQueue struct {
	paths []string
}

// Push appends path unless it is already queued.
func (q *RescanQueue) Push(path string) {
	path = filepath.Clean(path)
	if slices.Contains(q.paths, path) {
		return
	}
	q.paths = append(q.paths, path)
}

// Drain removes and returns every queued path.
func (q *RescanQueue) Drain() []string {
	paths := q.paths
	q.paths = nil
	return paths
}

// Len returns the number of queued paths.
func (q *RescanQueue) Len() int {
	return len(q.paths)
}
