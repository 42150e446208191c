// Package memstore is an in-memory Store used by tests. Records are kept as
// marshaled JSON so readers and writers never alias live structs, matching
// the serialization boundary of the Postgres store.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"MgvIndexer/internal/store"
)

type Store struct {
	mu     sync.Mutex
	tables map[string]map[string][]byte
}

func New() *Store {
	return &Store{tables: make(map[string]map[string][]byte)}
}

// InTx serializes transactions with a single lock. fn works on a copy of the
// table maps; the copy replaces the live state only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[string]map[string][]byte, len(s.tables))
	for name, rows := range s.tables {
		cp := make(map[string][]byte, len(rows))
		for id, data := range rows {
			cp[id] = data
		}
		working[name] = cp
	}

	tx := &memTx{tables: working}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.tables = working
	return nil
}

func (s *Store) Close() error { return nil }

type memTx struct {
	tables map[string]map[string][]byte
}

func (t *memTx) rows(table string) map[string][]byte {
	rows, ok := t.tables[table]
	if !ok {
		rows = make(map[string][]byte)
		t.tables[table] = rows
	}
	return rows
}

func (t *memTx) Get(ctx context.Context, table, id string, out any) error {
	data, ok := t.rows(table)[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	return json.Unmarshal(data, out)
}

func (t *memTx) Insert(ctx context.Context, table string, rec store.Record) error {
	rows := t.rows(table)
	if _, ok := rows[rec.PK()]; ok {
		return fmt.Errorf("insert %s %s: duplicate key", table, rec.PK())
	}
	return t.put(rows, rec)
}

func (t *memTx) Upsert(ctx context.Context, table string, rec store.Record) error {
	return t.put(t.rows(table), rec)
}

func (t *memTx) Delete(ctx context.Context, table, id string) error {
	delete(t.rows(table), id)
	return nil
}

func (t *memTx) put(rows map[string][]byte, rec store.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	rows[rec.PK()] = data
	return nil
}
