// Package pebble stores uploads in an embedded Pebble key-value store.
//
// Each upload is kept under "upload/<name>" with an 8-byte save timestamp
// prefixed to the content. A second key "saved/<timestamp>/<name>" orders
// uploads by save time so Prune only scans what it removes.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/storage"
)

var (
	uploadPrefix = []byte("upload/")
	savedPrefix  = []byte("saved/")
)

// Store is a Pebble-backed UploadStore.
type Store struct {
	db  *pebble.DB
	now func() time.Time
}

var _ storage.UploadStore = (*Store)(nil)

// New opens or creates the database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating pebble dir: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save stores content under name and reindexes its save time.
func (s *Store) Save(_ context.Context, name string, content []byte) error {
	name, err := storage.CleanName(name)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if prev, err := s.savedAt(name); err == nil {
		if err := b.Delete(savedKey(prev, name), nil); err != nil {
			return fmt.Errorf("dropping index: %w", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	now := s.now().UnixNano()
	value := make([]byte, 8+len(content))
	binary.BigEndian.PutUint64(value, uint64(now))
	copy(value[8:], content)

	if err := b.Set(uploadKey(name), value, nil); err != nil {
		return fmt.Errorf("writing upload: %w", err)
	}
	if err := b.Set(savedKey(now, name), nil, nil); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing upload: %w", err)
	}
	debug.Log(debug.Storage, "upload saved", "backend", "pebble", "name", name, "bytes", len(content))
	return nil
}

// Load returns the content stored under name.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	name, err := storage.CleanName(name)
	if err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get(uploadKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	defer closer.Close()
	if len(v) < 8 {
		return nil, fmt.Errorf("corrupt upload record %q", name)
	}
	out := make([]byte, len(v)-8)
	copy(out, v[8:])
	return out, nil
}

// Prune removes uploads saved before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: savedPrefix,
		UpperBound: savedKey(before.UnixNano(), ""),
	})
	if err != nil {
		return 0, fmt.Errorf("opening iterator: %w", err)
	}
	defer it.Close()

	b := s.db.NewBatch()
	defer b.Close()

	var removed int
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		key := append([]byte(nil), it.Key()...)
		name := nameFromSavedKey(key)
		if err := b.Delete(key, nil); err != nil {
			return 0, err
		}
		if err := b.Delete(uploadKey(name), nil); err != nil {
			return 0, err
		}
		removed++
	}
	if err := it.Error(); err != nil {
		return 0, fmt.Errorf("scanning index: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return removed, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) savedAt(name string) (int64, error) {
	v, closer, err := s.db.Get(uploadKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading upload: %w", err)
	}
	defer closer.Close()
	if len(v) < 8 {
		return 0, fmt.Errorf("corrupt upload record %q", name)
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

func uploadKey(name string) []byte {
	return append(append([]byte(nil), uploadPrefix...), name...)
}

// savedKey sorts by time: the timestamp is big-endian and followed by a
// separator so a bare timestamp bounds every name saved at that instant.
func savedKey(nanos int64, name string) []byte {
	k := make([]byte, 0, len(savedPrefix)+9+len(name))
	k = append(k, savedPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(nanos))
	k = append(k, '/')
	return append(k, name...)
}

func nameFromSavedKey(k []byte) string {
	rest := bytes.TrimPrefix(k, savedPrefix)
	if len(rest) < 9 {
		return ""
	}
	return string(rest[9:])
}
