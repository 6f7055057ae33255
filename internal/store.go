package internal

import (
	"encoding/binary"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// Store is a minimal append/list log over BoltDB. When the DB cannot be
// opened it falls back to an in-memory log so the server (and tests) still
// run, just without persistence.
type Store struct {
	db  *bolt.DB
	mu  sync.Mutex
	mem map[string][][]byte
}

// OpenStore opens the BoltDB at path, or returns a memory-backed store on
// failure.
func OpenStore(path string) *Store {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		Logf(WARN, "Store", "Could not open %s, using in-memory store: %v", path, err)
		return &Store{mem: make(map[string][][]byte)}
	}
	return &Store{db: db}
}

// NewMemoryStore returns a store with no disk backing.
func NewMemoryStore() *Store {
	return &Store{mem: make(map[string][][]byte)}
}

// Append adds a value to the named log.
func (s *Store) Append(bucket string, value []byte) error {
	if s.db == nil {
		s.mu.Lock()
		s.mem[bucket] = append(s.mem[bucket], append([]byte(nil), value...))
		s.mu.Unlock()
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, value)
	})
}

// List returns up to limit values from the named log, oldest first. A limit
// of 0 returns everything.
func (s *Store) List(bucket string, limit int) ([][]byte, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		vals := s.mem[bucket]
		if limit > 0 && len(vals) > limit {
			vals = vals[len(vals)-limit:]
		}
		out := make([][]byte, len(vals))
		for i, v := range vals {
			out[i] = append([]byte(nil), v...)
		}
		return out, nil
	}
	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close releases the underlying DB.
func (s *Store) Close() {
	if s.db != nil {
		CheckErrLog(WARN, "Store", "Failed to close history db", s.db.Close())
	}
}
