package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// VersionMeta is the bookkeeping every version row carries. Version numbers
// for an entity run 0..N with no gaps; version 0 has an empty PrevVersionID.
type VersionMeta struct {
	ID            string `json:"id"`
	EntityID      string `json:"entityId"`
	TxID          string `json:"txId"`
	VersionNumber int    `json:"versionNumber"`
	PrevVersionID string `json:"prevVersionId,omitempty"`
}

func (m *VersionMeta) PK() string { return m.ID }

// Meta exposes the embedded bookkeeping to the generic store operations.
func (m *VersionMeta) Meta() *VersionMeta { return m }

// EntityBase is embedded by every versioned entity row.
type EntityBase struct {
	ID               string `json:"id"`
	CurrentVersionID string `json:"currentVersionId"`
}

func (e *EntityBase) PK() string          { return e.ID }
func (e *EntityBase) VersionRef() *string { return &e.CurrentVersionID }

// Entity is a versioned entity row: a stable identity plus a pointer to the
// head of its version chain.
type Entity interface {
	Record
	VersionRef() *string
}

// Version is a version row: immutable once inserted.
type Version interface {
	Record
	Meta() *VersionMeta
}

// Aggregate names the pair of tables a versioned entity lives in.
type Aggregate struct {
	Name     string
	Entities string
	Versions string
}

// VersionID derives the id of version n of an entity. Version ids are
// deterministic so replaying the same event stream produces identical rows.
func VersionID(entityID string, n int) string {
	return entityID + "-" + strconv.Itoa(n)
}

// EntityStore scopes versioned operations to one transaction and one event
// stream. The stream id keys the undo ledger so each stream can only retract
// versions it applied itself, in reverse order of application.
type EntityStore struct {
	tx     Tx
	stream string
}

func NewEntityStore(tx Tx, stream string) *EntityStore {
	return &EntityStore{tx: tx, stream: stream}
}

func (s *EntityStore) Tx() Tx         { return s.tx }
func (s *EntityStore) Stream() string { return s.stream }

// AddVersion appends a new version to the entity's chain. When the entity
// does not exist yet it is created from initial (passing a nil initial in
// that case is a validation error); otherwise the draft starts as a copy of
// the current version. mutate edits the draft; the bookkeeping fields are
// assigned afterwards and cannot be forged by the caller.
func AddVersion[E, V any, PE interface {
	*E
	Entity
}, PV interface {
	*V
	Version
}](ctx context.Context, s *EntityStore, agg Aggregate, id, txID string, initial PE, mutate func(PV)) (PV, error) {
	var entity E
	pe := PE(&entity)
	err := s.tx.Get(ctx, agg.Entities, id, pe)

	var draft V
	pv := PV(&draft)

	switch {
	case errors.Is(err, ErrNotFound):
		if initial == nil {
			return nil, fmt.Errorf("create %s %s without initial values: %w", agg.Name, id, ErrValidation)
		}
		entity = *initial
		if mutate != nil {
			mutate(pv)
		}
		*pv.Meta() = VersionMeta{
			ID:            VersionID(id, 0),
			EntityID:      id,
			TxID:          txID,
			VersionNumber: 0,
		}
	case err != nil:
		return nil, err
	default:
		var current V
		pc := PV(&current)
		if err := s.tx.Get(ctx, agg.Versions, *pe.VersionRef(), pc); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%s %s head version %s missing: %w", agg.Name, id, *pe.VersionRef(), ErrIntegrity)
			}
			return nil, err
		}
		prev := *pc.Meta()
		draft = current
		if mutate != nil {
			mutate(pv)
		}
		*pv.Meta() = VersionMeta{
			ID:            VersionID(id, prev.VersionNumber+1),
			EntityID:      id,
			TxID:          txID,
			VersionNumber: prev.VersionNumber + 1,
			PrevVersionID: prev.ID,
		}
	}

	if err := s.tx.Insert(ctx, agg.Versions, pv); err != nil {
		return nil, err
	}
	*pe.VersionRef() = pv.Meta().ID
	if err := s.tx.Upsert(ctx, agg.Entities, pe); err != nil {
		return nil, err
	}
	if err := s.pushApplied(ctx, id, pv.Meta().ID); err != nil {
		return nil, err
	}
	return pv, nil
}

// DeleteLatestVersion pops the head of the entity's version chain. Popping
// version 0 deletes the entity itself. The undo ledger is checked first: the
// head must be the version this stream applied most recently, otherwise the
// upstream is replaying out of order and the error is fatal.
func DeleteLatestVersion[E, V any, PE interface {
	*E
	Entity
}, PV interface {
	*V
	Version
}](ctx context.Context, s *EntityStore, agg Aggregate, id string) error {
	var entity E
	pe := PE(&entity)
	if err := s.tx.Get(ctx, agg.Entities, id, pe); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s %s: %w", agg.Name, id, ErrNotFound)
		}
		return err
	}
	headID := *pe.VersionRef()
	if err := s.popApplied(ctx, id, headID); err != nil {
		return err
	}

	var head V
	ph := PV(&head)
	if err := s.tx.Get(ctx, agg.Versions, headID, ph); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s %s head version %s missing: %w", agg.Name, id, headID, ErrIntegrity)
		}
		return err
	}
	meta := ph.Meta()

	if meta.PrevVersionID == "" {
		if err := s.tx.Delete(ctx, agg.Versions, headID); err != nil {
			return err
		}
		return s.tx.Delete(ctx, agg.Entities, id)
	}

	*pe.VersionRef() = meta.PrevVersionID
	if err := s.tx.Upsert(ctx, agg.Entities, pe); err != nil {
		return err
	}
	return s.tx.Delete(ctx, agg.Versions, headID)
}

const tableUndoLedger = "undo_ledger"

type undoLedgerRow struct {
	ID    string   `json:"id"`
	Stack []string `json:"stack"`
}

func (r *undoLedgerRow) PK() string { return r.ID }

func (s *EntityStore) ledgerID(entityID string) string {
	return s.stream + "|" + entityID
}

func (s *EntityStore) pushApplied(ctx context.Context, entityID, versionID string) error {
	row := undoLedgerRow{ID: s.ledgerID(entityID)}
	if err := s.tx.Get(ctx, tableUndoLedger, row.ID, &row); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	row.Stack = append(row.Stack, versionID)
	return s.tx.Upsert(ctx, tableUndoLedger, &row)
}

func (s *EntityStore) popApplied(ctx context.Context, entityID, headID string) error {
	row := undoLedgerRow{ID: s.ledgerID(entityID)}
	if err := s.tx.Get(ctx, tableUndoLedger, row.ID, &row); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("stream %s never touched entity %s: %w", s.stream, entityID, ErrUndoOrder)
		}
		return err
	}
	if len(row.Stack) == 0 || row.Stack[len(row.Stack)-1] != headID {
		return fmt.Errorf("stream %s cannot retract %s head %s: %w", s.stream, entityID, headID, ErrUndoOrder)
	}
	row.Stack = row.Stack[:len(row.Stack)-1]
	if len(row.Stack) == 0 {
		return s.tx.Delete(ctx, tableUndoLedger, row.ID)
	}
	return s.tx.Upsert(ctx, tableUndoLedger, &row)
}
