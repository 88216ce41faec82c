package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("store: key not found")

	// ErrReadOnly is returned by mutating calls inside a View.
	ErrReadOnly = errors.New("store: read-only transaction")
)

// Order is the direction of a range scan.
type Order int

const (
	Ascending Order = iota
	Descending
)

// KVStore is the ordered key-value view a single call operates on.
// Keys compare bytewise. A nil start or end leaves that side unbounded;
// end is exclusive.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterator(start, end []byte, order Order) (Iterator, error)
}

// Iterator walks a key range. Key and Value return copies that stay valid
// after Next.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// DB runs calls against the ledger. Update commits every mutation made by fn
// atomically, or none of them when fn returns an error. Writers are
// serialized: one Update completes before the next begins.
type DB interface {
	Update(ctx context.Context, fn func(KVStore) error) error
	View(ctx context.Context, fn func(KVStore) error) error
	Close() error
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

type kvPair struct {
	key   []byte
	value []byte
}

// sliceIterator serves a range that was materialized up front.
type sliceIterator struct {
	pairs []kvPair
	pos   int
}

func newSliceIterator(pairs []kvPair, order Order) *sliceIterator {
	if order == Descending {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}
	return &sliceIterator{pairs: pairs}
}

func (it *sliceIterator) Valid() bool   { return it.pos < len(it.pairs) }
func (it *sliceIterator) Next()         { it.pos++ }
func (it *sliceIterator) Key() []byte   { return cloneBytes(it.pairs[it.pos].key) }
func (it *sliceIterator) Value() []byte { return cloneBytes(it.pairs[it.pos].value) }
func (it *sliceIterator) Error() error  { return nil }
func (it *sliceIterator) Close() error  { return nil }
