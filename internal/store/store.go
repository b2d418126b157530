// Package store implements the per-replica version store (clean and
// dirty maps) and the per-key mutex table described in spec.md §3.
// Grounded on original_source/craq_server.py's CraqServer.store,
// .temp_store and .locks (a defaultdict(Lock)).
package store

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Clean is the last value this replica knows to be committed at the
// tail for a key.
type Clean struct {
	Version int64
	Value   string
}

// Store holds one replica's view of every key it has seen: a clean
// entry (value known tail-committed) and a dirty map (versions
// forwarded downstream but not yet known committed). It also owns the
// per-key mutex table that serializes all handler activity for a key
// on this replica (spec.md §5).
//
// All three maps are guarded by mu for structural access (creating a
// key's lock, reading/writing its clean/dirty entries); the *lock
// returned by Lock() is then held by the caller across whatever else
// it does, including a blocking downstream send, so Store itself
// never blocks on network I/O.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	clean map[string]Clean
	dirty map[string]map[int64]string
}

// New returns an empty version store.
func New() *Store {
	return &Store{
		locks: make(map[string]*sync.Mutex),
		clean: make(map[string]Clean),
		dirty: make(map[string]map[int64]string),
	}
}

// Lock returns the mutex for key, creating it on first reference. The
// caller is responsible for Unlock.
func (s *Store) Lock(key string) *sync.Mutex {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l
}

// Clean returns the clean entry for key, if any. Callers hold key's
// lock, except the tail's QUERY handler, which reads without it
// (see internal/craq/query.go).
func (s *Store) Clean(key string) (Clean, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clean[key]
	return c, ok
}

// SetClean installs the clean entry for key. Caller must hold key's lock.
func (s *Store) SetClean(key string, version int64, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clean[key] = Clean{Version: version, Value: value}
}

// DirtyVersions returns the set of versions currently dirty for key,
// in no particular order. Caller must hold key's lock.
func (s *Store) DirtyVersions(key string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.dirty[key]
	if len(m) == 0 {
		return nil
	}
	out := make([]int64, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	return out
}

// HasDirty reports whether key has any dirty (in-flight) versions.
// Caller must hold key's lock.
func (s *Store) HasDirty(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty[key]) > 0
}

// DirtyValue returns the value forwarded for (key, version), if this
// replica still holds it dirty. Caller must hold key's lock.
func (s *Store) DirtyValue(key string, version int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.dirty[key]
	if !ok {
		return "", false
	}
	v, ok := m[version]
	return v, ok
}

// PutDirty inserts value at version into key's dirty map (step 1 of
// the SET propagation rule, spec.md §4.2). Caller must hold key's lock.
func (s *Store) PutDirty(key string, version int64, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.dirty[key]
	if !ok {
		m = make(map[int64]string)
		s.dirty[key] = m
	}
	m[version] = value
}

// PromoteDirty moves (key, version) from dirty to clean: it sets the
// clean entry to (version, value) and then deletes the dirty entry
// (step 3 of spec.md §4.2), only ever called after a successful
// downstream forward. Caller must hold key's lock.
func (s *Store) PromoteDirty(key string, version int64, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.dirty[key]
	if !ok {
		return errors.Newf("no dirty entries for key %q", key)
	}
	if _, ok := m[version]; !ok {
		return errors.Newf("no dirty entry for key %q at version %d", key, version)
	}
	s.clean[key] = Clean{Version: version, Value: value}
	delete(m, version)
	if len(m) == 0 {
		delete(s.dirty, key)
	}
	return nil
}

// NextVersion computes max(dirty_versions(key) ∪ {clean_version(key) or 0}) + 1,
// the head's version-assignment rule (spec.md §4.2). Caller must hold
// key's lock.
func (s *Store) NextVersion(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if c, ok := s.clean[key]; ok {
		current = c.Version
	}
	for v := range s.dirty[key] {
		if v > current {
			current = v
		}
	}
	return current + 1
}
