package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/segmentio/encoding/json"
)

// BatchWriter accumulates fingerprint writes in a badger WriteBatch.
type BatchWriter struct {
	store     *Store
	batch     *badger.WriteBatch
	maxSize   int
	count     int
	autoFlush bool
}

// NewBatchWriter creates a batch writer that flushes whenever maxSize operations are pending.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		store:     s,
		batch:     s.db.NewWriteBatch(),
		maxSize:   maxSize,
		autoFlush: maxSize > 0,
	}
}

// Put records the fingerprint of a file, maintaining the parent index.
func (b *BatchWriter) Put(id string, rec FileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}

	key := buildKey(fingerprintPrefix, id)
	err = b.batch.Set(append([]byte(nil), key...), data)
	releaseKey(key)
	if err != nil {
		return fmt.Errorf("batch set fingerprint: %w", err)
	}

	if rec.Parent != "" {
		idx := parentKey(rec.Parent, id)
		err = b.batch.Set(append([]byte(nil), idx...), nil)
		releaseKey(idx)
		if err != nil {
			return fmt.Errorf("batch set parent index: %w", err)
		}
	}

	return b.added()
}

// Delete removes the fingerprint of a file. parent must be the value it was stored with.
func (b *BatchWriter) Delete(id, parent string) error {
	key := buildKey(fingerprintPrefix, id)
	err := b.batch.Delete(append([]byte(nil), key...))
	releaseKey(key)
	if err != nil {
		return fmt.Errorf("batch delete fingerprint: %w", err)
	}

	if parent != "" {
		idx := parentKey(parent, id)
		err = b.batch.Delete(append([]byte(nil), idx...))
		releaseKey(idx)
		if err != nil {
			return fmt.Errorf("batch delete parent index: %w", err)
		}
	}

	return b.added()
}

func (b *BatchWriter) added() error {
	b.count++
	if b.autoFlush && b.count >= b.maxSize {
		if err := b.Flush(); err != nil {
			return fmt.Errorf("auto flush: %w", err)
		}
	}
	return nil
}

// Flush commits all pending writes in the batch.
func (b *BatchWriter) Flush() error {
	if b.count == 0 {
		return nil
	}

	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	if b.store.logger != nil {
		b.store.logger.LogAttrs(context.Background(), slog.LevelDebug, "fingerprint batch flushed",
			slog.Int("count", b.count),
		)
	}

	b.count = 0
	b.batch = b.store.db.NewWriteBatch()

	return nil
}

// Cancel discards all pending writes in the batch.
func (b *BatchWriter) Cancel() {
	b.batch.Cancel()
	b.count = 0
}

// Count returns the number of operations in the current batch.
func (b *BatchWriter) Count() int {
	return b.count
}
