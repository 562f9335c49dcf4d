// Package memory is an in-process searchindex.Store used by tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"searchahouse/internal/searchindex"
)

type key struct {
	entityType string
	id         string
}

// Store keeps documents in a map. Writes for the same document are serialized
// by a per-document lock; writes for different documents run in parallel.
type Store struct {
	mu    sync.RWMutex
	docs  map[key]searchindex.Document
	locks sync.Map
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[key]searchindex.Document), now: time.Now}
}

func (s *Store) lock(k key) func() {
	m, _ := s.locks.LoadOrStore(k, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) load(k key) (searchindex.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[k]
	return doc, ok
}

func (s *Store) store(k key, doc searchindex.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[k] = doc
}

func (s *Store) Put(_ context.Context, doc searchindex.Document) (searchindex.Outcome, error) {
	k := key{entityType: doc.Type, id: doc.ID}
	defer s.lock(k)()

	// an equal version is stale, also against a tombstone
	if current, ok := s.load(k); ok && doc.Version <= current.Version {
		return searchindex.Stale, nil
	}

	doc.Deleted = false
	doc.IndexedAt = s.now().UTC()
	s.store(k, doc)
	return searchindex.Applied, nil
}

func (s *Store) Delete(_ context.Context, entityType, id string, version int64) (searchindex.Outcome, error) {
	k := key{entityType: entityType, id: id}
	defer s.lock(k)()

	if current, ok := s.load(k); ok && version < current.Version {
		return searchindex.Stale, nil
	}

	s.store(k, searchindex.Document{
		Type:      entityType,
		ID:        id,
		Version:   version,
		Deleted:   true,
		IndexedAt: s.now().UTC(),
	})
	return searchindex.Applied, nil
}

func (s *Store) Get(_ context.Context, entityType, id string) (searchindex.Document, bool, error) {
	doc, ok := s.load(key{entityType: entityType, id: id})
	return doc, ok, nil
}

// PurgeTombstones drops tombstones of entityType indexed before the cutoff.
func (s *Store) PurgeTombstones(_ context.Context, entityType string, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for k, doc := range s.docs {
		if k.entityType == entityType && doc.Deleted && doc.IndexedAt.Before(before) {
			delete(s.docs, k)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored documents, tombstones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

var (
	_ searchindex.Store           = (*Store)(nil)
	_ searchindex.TombstonePurger = (*Store)(nil)
)
