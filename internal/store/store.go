package store

import "context"

// Record is anything persistable under a primary key.
type Record interface {
	PK() string
}

// Tx is one atomic multi-statement transaction against the backing store.
// The projection engine assumes nothing beyond point lookups, primary-key
// upserts and deletes; all richer access patterns are modelled as explicit
// index records maintained by the aggregate operations themselves.
type Tx interface {
	// Get loads the record with the given id into out, which must be a
	// pointer to the row type. Returns ErrNotFound when absent.
	Get(ctx context.Context, table, id string, out any) error

	// Insert creates a new row. Inserting an existing primary key is an
	// error: version rows are append-only and never overwritten.
	Insert(ctx context.Context, table string, rec Record) error

	// Upsert creates or replaces the row with rec's primary key.
	Upsert(ctx context.Context, table string, rec Record) error

	// Delete removes the row if present. Deleting an absent row is a no-op.
	Delete(ctx context.Context, table, id string) error
}

// Store opens transactions. InTx commits when fn returns nil and rolls back
// otherwise; the rollback guarantee is what lets the batch coordinator treat
// any error as "this batch never happened".
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
