// Package postgres implements the Store contract on PostgreSQL. Every table
// has the same shape, id TEXT PRIMARY KEY plus a jsonb document, so the
// projection code stays schema-agnostic and migrations stay trivial.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"MgvIndexer/internal/store"
)

type Store struct {
	db     *sql.DB
	tables map[string]string
}

// New wraps an open database handle. Only the named tables may be addressed;
// table names reach SQL text, so they are resolved against this whitelist
// and never taken from caller input directly.
func New(db *sql.DB, tables []string) *Store {
	quoted := make(map[string]string, len(tables))
	for _, t := range tables {
		quoted[t] = pq.QuoteIdentifier(t)
	}
	return &Store{db: db, tables: quoted}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: tx, tables: s.tables}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

type pgTx struct {
	tx     *sql.Tx
	tables map[string]string
}

func (t *pgTx) table(name string) (string, error) {
	quoted, ok := t.tables[name]
	if !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return quoted, nil
}

func (t *pgTx) Get(ctx context.Context, table, id string, out any) error {
	quoted, err := t.table(table)
	if err != nil {
		return err
	}
	var data []byte
	row := t.tx.QueryRowContext(ctx, "SELECT data FROM "+quoted+" WHERE id = $1", id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
		}
		return fmt.Errorf("get %s %s: %w", table, id, err)
	}
	return json.Unmarshal(data, out)
}

func (t *pgTx) Insert(ctx context.Context, table string, rec store.Record) error {
	quoted, err := t.table(table)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, "INSERT INTO "+quoted+" (id, data) VALUES ($1, $2)", rec.PK(), data)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", table, rec.PK(), err)
	}
	return nil
}

func (t *pgTx) Upsert(ctx context.Context, table string, rec store.Record) error {
	quoted, err := t.table(table)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO "+quoted+" (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data",
		rec.PK(), data)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", table, rec.PK(), err)
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, table, id string) error {
	quoted, err := t.table(table)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+quoted+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}
