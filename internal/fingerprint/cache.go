// Package fingerprint detects changed book files without reading their content.
package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/shelfsync/shelfsync-server/internal/bookfile"
	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/store"
)

// Cache maps file ids to their last seen fingerprint. Changes are kept in
// memory until Save writes them in one batch.
type Cache struct {
	store  store.FingerprintStore
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]store.FileRecord
	dirty   map[string]struct{}
	deleted map[string]struct{}
}

// New creates an empty cache over st. Call Load before the first Check.
func New(st store.FingerprintStore, logger *slog.Logger) *Cache {
	return &Cache{
		store:   st,
		logger:  logger,
		entries: make(map[string]store.FileRecord),
		dirty:   make(map[string]struct{}),
		deleted: make(map[string]struct{}),
	}
}

// ID returns the stable id of a file: the hex xxhash of its identity. Entries
// hash the archive identity and the entry name separately so equally named
// entries of different archives never collide.
func ID(f bookfile.File) string {
	h := xxhash.New()
	switch {
	case f.Resource:
		_, _ = h.WriteString("resource:")
		_, _ = h.WriteString(f.Path)
	case f.IsEntry():
		_, _ = h.WriteString(f.PhysicalFile().Identity())
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(f.Entry)
	default:
		_, _ = h.WriteString(f.Path)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Load replaces the in-memory state with the persisted fingerprints.
func (c *Cache) Load(ctx context.Context) error {
	records, err := c.store.LoadFingerprints(ctx)
	if err != nil {
		return fmt.Errorf("load fingerprints: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = records
	clear(c.dirty)
	clear(c.deleted)
	return nil
}

// Get returns the cached fingerprint of fileID.
func (c *Cache) Get(fileID string) (domain.Fingerprint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[fileID]
	return rec.Fingerprint, ok
}

// Len returns the number of cached fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Check reports whether f still matches its cached fingerprint. On mismatch the
// cache is refreshed to the current fingerprint, and with processChildren the
// cached entries of an archive are dropped so they are re-read. A file that
// cannot be stat'ed is treated as changed and forgotten.
func (c *Cache) Check(f bookfile.File, processChildren bool) bool {
	id := ID(f)
	current, err := Current(f)

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, known := c.entries[id]
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("fingerprint unavailable, treating as changed", "file", f.String(), "error", err)
		}
		if known {
			c.forget(id)
		}
		return false
	}

	if known && cached.Fingerprint == current {
		return true
	}

	rec := store.FileRecord{Fingerprint: current}
	if f.IsEntry() {
		rec.Parent = ID(f.PhysicalFile())
	}
	c.entries[id] = rec
	c.dirty[id] = struct{}{}
	delete(c.deleted, id)

	if processChildren && f.IsArchive() {
		for childID, child := range c.entries {
			if child.Parent == id {
				c.forget(childID)
			}
		}
	}
	return false
}

// Invalidate drops the cached fingerprint of f so the next Check reports a change.
func (c *Cache) Invalidate(f bookfile.File) {
	id := ID(f)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		c.forget(id)
	}
}

// forget drops id from the cache. Callers hold c.mu.
func (c *Cache) forget(id string) {
	delete(c.entries, id)
	delete(c.dirty, id)
	c.deleted[id] = struct{}{}
}

// Pending returns the number of changes not yet saved.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty) + len(c.deleted)
}

// Save persists all pending changes in one batch.
func (c *Cache) Save(ctx context.Context) error {
	c.mu.Lock()
	upserts := make(map[string]store.FileRecord, len(c.dirty))
	for id := range c.dirty {
		upserts[id] = c.entries[id]
	}
	deletes := make([]string, 0, len(c.deleted))
	for id := range c.deleted {
		deletes = append(deletes, id)
	}
	c.mu.Unlock()

	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	if err := c.store.SaveFingerprints(ctx, upserts, deletes); err != nil {
		return fmt.Errorf("save fingerprints: %w", err)
	}

	c.mu.Lock()
	for id, rec := range upserts {
		// Only clear what was written; Check may have run meanwhile.
		if c.entries[id] == rec {
			delete(c.dirty, id)
		}
	}
	for _, id := range deletes {
		if _, back := c.entries[id]; !back {
			delete(c.deleted, id)
		}
	}
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("fingerprints saved", "upserts", len(upserts), "deletes", len(deletes))
	}
	return nil
}
