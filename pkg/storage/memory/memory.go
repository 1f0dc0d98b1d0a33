// Package memory provides an in-memory upload store for tests and
// lightweight deployments. Uploads are lost when the process restarts.
// Optional LRU eviction bounds the number of uploads kept.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/httpd/pkg/storage"
)

// entry holds a stored upload and its metadata.
type entry struct {
	content []byte
	savedAt time.Time
	lruElem *list.Element // position in LRU list
}

// Store is an in-memory UploadStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
	now     func() time.Time
}

var _ storage.UploadStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used upload is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save stores a copy of content under name.
func (s *Store) Save(_ context.Context, name string, content []byte) error {
	name, err := storage.CleanName(name)
	if err != nil {
		return err
	}
	content = append([]byte(nil), content...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		e.content = content
		e.savedAt = s.now()
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(name)
	s.entries[name] = &entry{
		content: content,
		savedAt: s.now(),
		lruElem: elem,
	}
	return nil
}

// Load returns a copy of the upload and marks it recently used.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	name, err := storage.CleanName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return append([]byte(nil), e.content...), nil
}

// Prune removes uploads saved before the cutoff.
func (s *Store) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for name, e := range s.entries {
		if e.savedAt.Before(before) {
			s.lruList.Remove(e.lruElem)
			delete(s.entries, name)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored uploads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	name := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, name)
}
