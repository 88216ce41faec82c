package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is the embedded durable backend. Each Update runs on an indexed
// batch (reads see the batch's own writes) that is committed with fsync.
type PebbleDB struct {
	mu sync.Mutex
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir. opts may be nil.
func OpenPebble(dir string, opts *pebble.Options) (*PebbleDB, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Update(_ context.Context, fn func(KVStore) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&pebbleTx{reader: batch, batch: batch}); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (p *PebbleDB) View(_ context.Context, fn func(KVStore) error) error {
	snap := p.db.NewSnapshot()
	defer snap.Close()

	return fn(&pebbleTx{reader: snap})
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// pebbleReader is the read surface shared by *pebble.Batch and *pebble.Snapshot.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type pebbleTx struct {
	reader pebbleReader
	batch  *pebble.Batch // nil for read-only views
}

func (tx *pebbleTx) Get(key []byte) ([]byte, error) {
	value, closer, err := tx.reader.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := cloneBytes(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *pebbleTx) Has(key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tx *pebbleTx) Set(key, value []byte) error {
	if tx.batch == nil {
		return ErrReadOnly
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *pebbleTx) Delete(key []byte) error {
	if tx.batch == nil {
		return ErrReadOnly
	}
	return tx.batch.Delete(key, nil)
}

func (tx *pebbleTx) Iterator(start, end []byte, order Order) (Iterator, error) {
	iter, err := tx.reader.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	if order == Descending {
		iter.Last()
	} else {
		iter.First()
	}
	return &pebbleIterator{iter: iter, order: order}, nil
}

type pebbleIterator struct {
	iter  *pebble.Iterator
	order Order
}

func (it *pebbleIterator) Valid() bool { return it.iter.Valid() }

func (it *pebbleIterator) Next() {
	if it.order == Descending {
		it.iter.Prev()
		return
	}
	it.iter.Next()
}

func (it *pebbleIterator) Key() []byte   { return cloneBytes(it.iter.Key()) }
func (it *pebbleIterator) Value() []byte { return cloneBytes(it.iter.Value()) }
func (it *pebbleIterator) Error() error  { return it.iter.Error() }
func (it *pebbleIterator) Close() error  { return it.iter.Close() }
