package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"fleetd/internal/common/fsutil"
)

// BadgerStore implements Store on top of Badger. Slot records live under
// "slot:<id>"; assignment entries under "assign:<seq>" with a monotonically
// increasing sequence so the audit order survives restarts.
type BadgerStore struct {
	db *badger.DB

	mu      sync.Mutex
	nextSeq uint64
}

// NewBadgerStore opens (or creates) the store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", path, err)
	}
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil // badger's own logging is too chatty for a daemon log
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s := &BadgerStore{db: db}
	if err := s.loadNextSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func slotKey(id int) []byte {
	return []byte(fmt.Sprintf("slot:%010d", id))
}

func assignKey(seq uint64) []byte {
	key := make([]byte, 7+8)
	copy(key, "assign:")
	binary.BigEndian.PutUint64(key[7:], seq)
	return key
}

func (s *BadgerStore) loadNextSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: []byte("assign:")})
		defer it.Close()
		// Seek past the last possible assignment key, then step back.
		it.Seek(assignKey(^uint64(0)))
		if it.Valid() {
			key := it.Item().Key()
			s.nextSeq = binary.BigEndian.Uint64(key[7:]) + 1
		}
		return nil
	})
}

func (s *BadgerStore) SaveSlot(rec SlotRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(slotKey(rec.ID), data)
	})
}

func (s *BadgerStore) DeleteSlot(id int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(slotKey(id))
	})
}

func (s *BadgerStore) ListSlots() ([]SlotRecord, error) {
	var out []SlotRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("slot:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec SlotRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BadgerStore) AppendAssignment(rec AssignmentRecord) error {
	s.mu.Lock()
	seq := s.nextSeq
	s.nextSeq++
	s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(assignKey(seq), data)
	})
}

func (s *BadgerStore) ListAssignments() ([]AssignmentRecord, error) {
	var out []AssignmentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("assign:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec AssignmentRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
