package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// PostgresDB keeps the ledger in a single BYTEA-keyed table (see
// migrations/0001_queue_kv.up.sql). Postgres compares bytea bytewise, so
// ORDER BY key matches the in-process ordering.
type PostgresDB struct {
	mu sync.Mutex
	db *sql.DB
}

func NewPostgresDB(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

func (p *PostgresDB) Update(ctx context.Context, fn func(KVStore) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View reads from one snapshot: REPEATABLE READ keeps every statement of fn
// on the state as of its first read.
func (p *PostgresDB) View(ctx context.Context, fn func(KVStore) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	return fn(&pgTx{ctx: ctx, tx: tx, readOnly: true})
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

type pgTx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *pgTx) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT value FROM ledger.queue_kv WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return value, nil
}

func (t *pgTx) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *pgTx) Set(key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO ledger.queue_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (t *pgTx) Delete(key []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM ledger.queue_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (t *pgTx) Iterator(start, end []byte, order Order) (Iterator, error) {
	query, args := rangeQuery(start, end, order)

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	defer rows.Close()

	var pairs []kvPair
	for rows.Next() {
		var p kvPair
		if err := rows.Scan(&p.key, &p.value); err != nil {
			return nil, fmt.Errorf("scan range row: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range rows: %w", err)
	}

	// rows already arrive in the requested order
	return newSliceIterator(pairs, Ascending), nil
}

func rangeQuery(start, end []byte, order Order) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if start != nil {
		args = append(args, start)
		conds = append(conds, fmt.Sprintf("key >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, end)
		conds = append(conds, fmt.Sprintf("key < $%d", len(args)))
	}

	query := `SELECT key, value FROM ledger.queue_kv`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if order == Descending {
		query += " ORDER BY key DESC"
	} else {
		query += " ORDER BY key ASC"
	}
	return query, args
}
