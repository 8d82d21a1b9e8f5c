package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/segmentio/encoding/json"
)

const fingerprintBatchSize = 1000

// LoadFingerprints returns every stored fingerprint keyed by file id.
func (s *Store) LoadFingerprints(ctx context.Context) (map[string]FileRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	out := make(map[string]FileRecord)
	prefix := []byte(fingerprintPrefix)
	indexPrefix := []byte(fingerprintPrefix + "idx:")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			if bytes.HasPrefix(key, indexPrefix) {
				continue
			}

			var rec FileRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode fingerprint %s: %w", key, err)
			}
			out[string(key[len(prefix):])] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFingerprints writes upserts and removes deletes in one batch.
func (s *Store) SaveFingerprints(ctx context.Context, upserts map[string]FileRecord, deletes []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	// Deleted records need their stored parent to drop the index entry.
	parents := make(map[string]string, len(deletes))
	for _, id := range deletes {
		var rec FileRecord
		key := buildKey(fingerprintPrefix, id)
		err := s.get(key, &rec)
		releaseKey(key)
		if err == nil {
			parents[id] = rec.Parent
		}
	}

	batch := s.NewBatchWriter(fingerprintBatchSize)
	for _, id := range deletes {
		if err := ctx.Err(); err != nil {
			batch.Cancel()
			return err
		}
		if err := batch.Delete(id, parents[id]); err != nil {
			batch.Cancel()
			return err
		}
	}
	for id, rec := range upserts {
		if err := ctx.Err(); err != nil {
			batch.Cancel()
			return err
		}
		if err := batch.Put(id, rec); err != nil {
			batch.Cancel()
			return err
		}
	}
	return batch.Flush()
}

// Fingerprint returns the stored record for id or ErrNotFound.
func (s *Store) Fingerprint(_ context.Context, id string) (FileRecord, error) {
	var rec FileRecord
	key := buildKey(fingerprintPrefix, id)
	defer releaseKey(key)
	err := s.get(key, &rec)
	return rec, err
}

// HasFingerprint reports whether a record exists for id.
func (s *Store) HasFingerprint(_ context.Context, id string) (bool, error) {
	key := buildKey(fingerprintPrefix, id)
	defer releaseKey(key)
	return s.exists(key)
}

// Children returns the ids recorded with parent as their archive.
func (s *Store) Children(ctx context.Context, parent string) ([]string, error) {
	prefix := parentKey(parent, "")
	defer releaseKey(prefix)
	seek := append([]byte(nil), prefix...)

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = seek
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(seek)))
		}
		return nil
	})
	return ids, err
}
