// internal/state/ledger.go
package state

import (
	"errors"
	"fmt"

	"LiquidationQueue/internal/store"
)

// Ledger is the typed view of the queue's key-value state. It is bound to a
// single transaction and must not outlive it.
type Ledger struct {
	kv store.KVStore
}

// NewLedger wraps the transaction handed out by store.DB.Update or View.
func NewLedger(kv store.KVStore) *Ledger {
	return &Ledger{kv: kv}
}

func (l *Ledger) load(key []byte, v any) (bool, error) {
	raw, err := l.kv.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := decode(raw, v); err != nil {
		return false, fmt.Errorf("decode %x: %w", key, err)
	}
	return true, nil
}

func (l *Ledger) save(key []byte, v any) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %x: %w", key, err)
	}
	return l.kv.Set(key, raw)
}

// scan visits every entry in [start, PrefixEnd(ns)) in ascending order until
// fn returns false. The iterator is closed before scan returns, so callers may
// mutate the ledger afterwards.
func (l *Ledger) scan(ns, start []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := l.kv.Iterator(start, store.PrefixEnd(ns), store.Ascending)
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		more, err := fn(it.Key()[len(ns):], it.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}
