package memlite

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
)

var errStoreClosed = errors.New("memlite: store closed")

// store holds the encoded records of one database.
type store interface {
	// get returns nil, nil when id has no record.
	get(id string) (*record, error)
	put(recs ...*record) error
	purge(id string) error
	// nextSequence allocates the next change sequence.
	nextSequence() (uint64, error)
	// scan visits every record, tombstones included, in id order.
	scan(fn func(*record) error) error
	close() error
}

// sharedStore is a store opened by one or more database connections of the
// same Library.
type sharedStore struct {
	path      string
	name      string
	store     store
	conns     int
	listeners []*listener
}

func dbPath(dir, name string) string {
	return filepath.Join(dir, name+".cblite2") + string(filepath.Separator)
}

// memStore keeps records in memory. Records are stored encoded so that no
// caller can alias stored state.
type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	seq     uint64
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]byte)}
}

func (s *memStore) get(id string) (*record, error) {
	s.mu.Lock()
	data, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeRecord(data)
}

func (s *memStore) put(recs ...*record) error {
	encoded := make([][]byte, len(recs))
	for i, rec := range recs {
		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		encoded[i] = data
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range recs {
		s.records[rec.ID] = encoded[i]
	}
	return nil
}

func (s *memStore) purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memStore) nextSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *memStore) scan(fn func(*record) error) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	snapshot := make(map[string][]byte, len(s.records))
	for id, data := range s.records {
		snapshot[id] = data
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		rec, err := decodeRecord(snapshot[id])
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// close is a no-op: in-memory data outlives its connections until the
// database is deleted.
func (s *memStore) close() error { return nil }

// openStore returns the shared store for path, opening it on first use.
// Caller holds l.mu.
func (l *Library) openStore(dir, name string) (*sharedStore, error) {
	path := dbPath(dir, name)
	if ss, ok := l.stores[path]; ok {
		ss.conns++
		return ss, nil
	}
	var (
		s   store
		err error
	)
	switch l.storage {
	case StorageBolt:
		s, err = openBoltStore(path)
		if err != nil {
			return nil, err
		}
	default:
		ms, ok := l.memory[path]
		if !ok {
			ms = newMemStore()
			l.memory[path] = ms
		}
		s = ms
	}
	ss := &sharedStore{path: path, name: name, store: s, conns: 1}
	l.stores[path] = ss
	return ss, nil
}

// closeStore drops one connection. Caller holds l.mu.
func (l *Library) closeStore(ss *sharedStore) error {
	ss.conns--
	if ss.conns > 0 {
		return nil
	}
	delete(l.stores, ss.path)
	return ss.store.close()
}

// storeExists reports whether storage exists for path. Caller holds l.mu.
func (l *Library) storeExists(path string) bool {
	if l.storage == StorageBolt {
		return exists(boltFile(path))
	}
	_, ok := l.memory[path]
	return ok
}

// destroyStore removes the storage of a database with no open connection.
// Caller holds l.mu.
func (l *Library) destroyStore(path string) error {
	if l.storage == StorageBolt {
		return removeBoltStore(path)
	}
	delete(l.memory, path)
	return nil
}
