package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

const btreeDegree = 32

func lessPair(a, b kvPair) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemDB is an in-memory ordered store. Each Update works on a lazy
// copy-on-write clone of the tree and swaps it in only when the call
// succeeds, so a failed call leaves no trace.
type MemDB struct {
	mu   sync.Mutex
	tree *btree.BTreeG[kvPair]
}

func NewMemDB() *MemDB {
	return &MemDB{
		tree: btree.NewG[kvPair](btreeDegree, lessPair),
	}
}

func (db *MemDB) Update(_ context.Context, fn func(KVStore) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	working := db.tree.Clone()
	if err := fn(&memTx{tree: working}); err != nil {
		return err
	}
	db.tree = working
	return nil
}

func (db *MemDB) View(_ context.Context, fn func(KVStore) error) error {
	// Clone must not run concurrently with another Clone or a write.
	db.mu.Lock()
	snapshot := db.tree.Clone()
	db.mu.Unlock()

	return fn(&memTx{tree: snapshot, readOnly: true})
}

func (db *MemDB) Close() error { return nil }

// Len returns the number of stored keys.
func (db *MemDB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tree.Len()
}

type memTx struct {
	tree     *btree.BTreeG[kvPair]
	readOnly bool
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	item, ok := tx.tree.Get(kvPair{key: key})
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(item.value), nil
}

func (tx *memTx) Has(key []byte) (bool, error) {
	return tx.tree.Has(kvPair{key: key}), nil
}

func (tx *memTx) Set(key, value []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.tree.ReplaceOrInsert(kvPair{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.tree.Delete(kvPair{key: key})
	return nil
}

func (tx *memTx) Iterator(start, end []byte, order Order) (Iterator, error) {
	var pairs []kvPair
	collect := func(item kvPair) bool {
		pairs = append(pairs, item)
		return true
	}

	switch {
	case start == nil && end == nil:
		tx.tree.Ascend(collect)
	case end == nil:
		tx.tree.AscendGreaterOrEqual(kvPair{key: start}, collect)
	case start == nil:
		tx.tree.AscendLessThan(kvPair{key: end}, collect)
	default:
		if bytes.Compare(start, end) >= 0 {
			break
		}
		tx.tree.AscendRange(kvPair{key: start}, kvPair{key: end}, collect)
	}

	return newSliceIterator(pairs, order), nil
}
