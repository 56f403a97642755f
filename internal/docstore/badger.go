// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// Documents live under doc/<collection>/<_id>.
const docKeyPrefix = "doc/"

// conflictRetries bounds how often an update transaction is replayed after
// badger reports a write conflict.
const conflictRetries = 3

// Options configures OpenBadger.
type Options struct {
	// Path is the Badger directory. Ignored when InMemory is true.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore implements Store and Replacer on BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	log    zerolog.Logger
	closed atomic.Bool
}

// OpenBadger opens (or creates) a Badger-backed document store.
func OpenBadger(opts Options) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger document store: %w", err)
	}

	s := NewBadgerStore(db)
	s.log.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Document store opened")
	return s, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, log: logging.WithComponent("docstore")}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func collectionPrefix(collection string) []byte {
	return []byte(docKeyPrefix + collection + "/")
}

func docKey(collection, id string) []byte {
	return []byte(docKeyPrefix + collection + "/" + id)
}

func (s *BadgerStore) check(ctx context.Context, collection string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return validateCollection(collection)
}

// update runs fn in a read-write transaction, replaying it on write conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Find returns every document in collection matching filter, ordered by _id.
func (s *BadgerStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := s.check(ctx, collection); err != nil {
		return nil, err
	}

	var docs []Document
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(ctx, txn, collection, filter, func(_ []byte, doc Document) {
			docs = append(docs, doc)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	return docs, nil
}

// DeleteMany removes every document in collection matching filter.
func (s *BadgerStore) DeleteMany(ctx context.Context, collection string, filter Filter) (int, error) {
	if err := s.check(ctx, collection); err != nil {
		return 0, err
	}

	var deleted int
	err := s.update(ctx, func(txn *badger.Txn) error {
		keys, err := matchingKeys(ctx, txn, collection, filter)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return s.deleteBatched(ctx, collection, filter)
	}
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return deleted, nil
}

// InsertMany writes docs into collection. Documents without an _id get a
// ULID. The batch is rejected with ErrDuplicateID if any _id already exists.
func (s *BadgerStore) InsertMany(ctx context.Context, collection string, docs []Document) error {
	if err := s.check(ctx, collection); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	entries, err := encodeDocuments(collection, docs)
	if err != nil {
		return err
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		return insertEntries(txn, entries, nil)
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return s.insertBatched(ctx, collection, entries)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

// ReplaceMany deletes the documents matching filter and inserts docs in a
// single transaction. A replacement too large for one transaction degrades to
// DeleteMany followed by InsertMany.
func (s *BadgerStore) ReplaceMany(ctx context.Context, collection string, filter Filter, docs []Document) (int, error) {
	if err := s.check(ctx, collection); err != nil {
		return 0, err
	}

	entries, err := encodeDocuments(collection, docs)
	if err != nil {
		return 0, err
	}

	var deleted int
	err = s.update(ctx, func(txn *badger.Txn) error {
		keys, err := matchingKeys(ctx, txn, collection, filter)
		if err != nil {
			return err
		}
		removed := make(map[string]bool, len(keys))
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			removed[string(k)] = true
		}
		deleted = len(keys)
		return insertEntries(txn, entries, removed)
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		s.log.Warn().
			Str("collection", collection).
			Int("documents", len(docs)).
			Msg("Replacement exceeds one transaction, falling back to non-atomic delete and insert")
		deleted, err = s.deleteBatched(ctx, collection, filter)
		if err != nil {
			return 0, err
		}
		return deleted, s.insertBatched(ctx, collection, entries)
	}
	if err != nil {
		return 0, fmt.Errorf("replace in %s: %w", collection, err)
	}
	return deleted, nil
}

type entry struct {
	key   []byte
	value []byte
}

func encodeDocuments(collection string, docs []Document) ([]entry, error) {
	entries := make([]entry, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			doc = doc.Clone()
			id = ulid.Make().String()
			doc[IDField] = id
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %s/%s repeated in batch", ErrDuplicateID, collection, id)
		}
		seen[id] = true

		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
		}
		entries = append(entries, entry{key: docKey(collection, id), value: data})
	}
	return entries, nil
}

// insertEntries writes entries, failing on keys that already exist unless
// they were deleted earlier in the same transaction.
func insertEntries(txn *badger.Txn, entries []entry, removed map[string]bool) error {
	for _, e := range entries {
		if !removed[string(e.key)] {
			_, err := txn.Get(e.key)
			if err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicateID, e.key[len(docKeyPrefix):])
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) deleteBatched(ctx context.Context, collection string, filter Filter) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		keys, err = matchingKeys(ctx, txn, collection, filter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete from %s: %w", collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return len(keys), nil
}

func (s *BadgerStore) insertBatched(ctx context.Context, collection string, entries []entry) error {
	err := s.db.View(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := txn.Get(e.key)
			if err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicateID, e.key[len(docKeyPrefix):])
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range entries {
		if err := wb.Set(e.key, e.value); err != nil {
			return fmt.Errorf("insert into %s: %w", collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

// scan walks a collection and calls fn for each document matching filter. A
// filter on _id alone is answered with a point lookup.
func scan(ctx context.Context, txn *badger.Txn, collection string, filter Filter, fn func(key []byte, doc Document)) error {
	if id, ok := filter[IDField].(string); ok && len(filter) == 1 {
		key := docKey(collection, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var doc Document
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		fn(key, doc)
		return nil
	}

	prefix := collectionPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		var doc Document
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
			return fmt.Errorf("decode %s: %w", item.Key(), err)
		}
		if filter.Matches(doc) {
			fn(item.KeyCopy(nil), doc)
		}
	}
	return nil
}

func matchingKeys(ctx context.Context, txn *badger.Txn, collection string, filter Filter) ([][]byte, error) {
	var keys [][]byte
	err := scan(ctx, txn, collection, filter, func(key []byte, _ Document) {
		keys = append(keys, key)
	})
	return keys, err
}
