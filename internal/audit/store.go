// SPDX-License-Identifier: MIT

package audit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Store is a badger-backed append-only persistence for the pruning trail.
// The engine keeps its canonical audit list in memory; the store exists so
// the trail survives restarts. Keys are "prune:<seq>" with a monotonically
// increasing sequence, so replay order matches append order. Append is
// safe for concurrent use; the scheduled loop and manual prunes share one
// store.
type Store struct {
	db *badger.DB

	mu   sync.Mutex // guards next
	next uint64
}

// OpenStore opens (or creates) the audit store at path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	s := &Store{db: db}

	// Resume the sequence after the last persisted row.
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: []byte("prune:")})
		defer it.Close()
		it.Seek([]byte("prune:\xff"))
		if it.ValidForPrefix([]byte("prune:")) {
			var seq uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), "prune:%016d", &seq); err == nil {
				s.next = seq + 1
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scan audit store: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append persists one audit record.
func (s *Store) Append(rec Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	// The sequence stays locked across the write so concurrent appends
	// can never mint the same key; a failed write does not burn a slot.
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(fmt.Sprintf("prune:%016d", s.next))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	}); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	s.next++
	return nil
}

// Replay returns every persisted record in append order.
func (s *Store) Replay() ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte("prune:")})
		defer it.Close()
		for it.Seek([]byte("prune:")); it.ValidForPrefix([]byte("prune:")); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay audit store: %w", err)
	}
	return out, nil
}
