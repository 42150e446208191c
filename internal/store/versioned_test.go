package store_test

import (
	"context"
	"errors"
	"testing"

	"MgvIndexer/internal/store"
	"MgvIndexer/internal/store/memstore"
)

type widget struct {
	store.EntityBase
	Owner string `json:"owner"`
}

type widgetVersion struct {
	store.VersionMeta
	Color string `json:"color"`
	Count int    `json:"count"`
}

var widgetAgg = store.Aggregate{Name: "widget", Entities: "widgets", Versions: "widget_versions"}

func addWidgetVersion(ctx context.Context, es *store.EntityStore, id, txID string, initial *widget, mutate func(*widgetVersion)) (*widgetVersion, error) {
	return store.AddVersion[widget, widgetVersion](ctx, es, widgetAgg, id, txID, initial, mutate)
}

func deleteWidgetVersion(ctx context.Context, es *store.EntityStore, id string) error {
	return store.DeleteLatestVersion[widget, widgetVersion](ctx, es, widgetAgg, id)
}

func TestAddVersionCreatesEntity(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		v, err := addWidgetVersion(ctx, es, "w1", "tx1", &widget{Owner: "alice"}, func(v *widgetVersion) {
			v.Color = "red"
		})
		if err != nil {
			return err
		}
		if v.ID != "w1-0" || v.EntityID != "w1" || v.VersionNumber != 0 || v.PrevVersionID != "" {
			t.Errorf("v0 meta = %+v", v.VersionMeta)
		}
		if v.TxID != "tx1" {
			t.Errorf("TxID = %q", v.TxID)
		}

		var got widget
		if err := tx.Get(ctx, widgetAgg.Entities, "w1", &got); err != nil {
			return err
		}
		if got.CurrentVersionID != "w1-0" || got.Owner != "alice" {
			t.Errorf("entity = %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddVersionChainsFromHead(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		if _, err := addWidgetVersion(ctx, es, "w1", "tx1", &widget{}, func(v *widgetVersion) {
			v.Color = "red"
			v.Count = 7
		}); err != nil {
			return err
		}
		v1, err := addWidgetVersion(ctx, es, "w1", "tx2", nil, func(v *widgetVersion) {
			v.Count = 8
		})
		if err != nil {
			return err
		}
		// The draft starts as a copy of the head: untouched fields carry over.
		if v1.Color != "red" {
			t.Errorf("Color = %q, want red", v1.Color)
		}
		if v1.Count != 8 {
			t.Errorf("Count = %d, want 8", v1.Count)
		}
		if v1.ID != "w1-1" || v1.VersionNumber != 1 || v1.PrevVersionID != "w1-0" {
			t.Errorf("v1 meta = %+v", v1.VersionMeta)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddVersionNilInitialIsValidation(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		_, err := addWidgetVersion(ctx, es, "missing", "tx1", nil, nil)
		if !errors.Is(err, store.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeleteLatestVersionPopsChain(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		if _, err := addWidgetVersion(ctx, es, "w1", "tx1", &widget{}, nil); err != nil {
			return err
		}
		if _, err := addWidgetVersion(ctx, es, "w1", "tx2", nil, func(v *widgetVersion) { v.Count = 1 }); err != nil {
			return err
		}

		if err := deleteWidgetVersion(ctx, es, "w1"); err != nil {
			return err
		}
		var ent widget
		if err := tx.Get(ctx, widgetAgg.Entities, "w1", &ent); err != nil {
			return err
		}
		if ent.CurrentVersionID != "w1-0" {
			t.Errorf("head after pop = %q, want w1-0", ent.CurrentVersionID)
		}
		var gone widgetVersion
		if err := tx.Get(ctx, widgetAgg.Versions, "w1-1", &gone); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("popped version still present: %v", err)
		}

		// Popping version 0 deletes the entity itself.
		if err := deleteWidgetVersion(ctx, es, "w1"); err != nil {
			return err
		}
		if err := tx.Get(ctx, widgetAgg.Entities, "w1", &ent); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("entity survived popping v0: %v", err)
		}

		if err := deleteWidgetVersion(ctx, es, "w1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("third pop err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeleteLatestVersionCrossStreamGuard(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a := store.NewEntityStore(tx, "core-1")
		b := store.NewEntityStore(tx, "strategy-1")

		if _, err := addWidgetVersion(ctx, a, "w1", "tx1", &widget{}, nil); err != nil {
			return err
		}
		if _, err := addWidgetVersion(ctx, b, "w1", "tx2", nil, nil); err != nil {
			return err
		}

		// Stream a applied v0 but the head is now v1: retracting from a
		// would strand b's version, so it is refused.
		if err := deleteWidgetVersion(ctx, a, "w1"); !errors.Is(err, store.ErrUndoOrder) {
			t.Errorf("cross-stream pop err = %v, want ErrUndoOrder", err)
		}

		// A stream that never touched the entity cannot retract either.
		c := store.NewEntityStore(tx, "kandel-1")
		if err := deleteWidgetVersion(ctx, c, "w1"); !errors.Is(err, store.ErrUndoOrder) {
			t.Errorf("stranger pop err = %v, want ErrUndoOrder", err)
		}

		// The owning stream pops in reverse order of application.
		if err := deleteWidgetVersion(ctx, b, "w1"); err != nil {
			return err
		}
		if err := deleteWidgetVersion(ctx, a, "w1"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddVersionMissingHeadIsIntegrity(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		if _, err := addWidgetVersion(ctx, es, "w1", "tx1", &widget{}, nil); err != nil {
			return err
		}
		if err := tx.Delete(ctx, widgetAgg.Versions, "w1-0"); err != nil {
			return err
		}
		_, err := addWidgetVersion(ctx, es, "w1", "tx2", nil, nil)
		if !errors.Is(err, store.ErrIntegrity) {
			t.Errorf("err = %v, want ErrIntegrity", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemstoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()

	boom := errors.New("boom")
	err := db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		es := store.NewEntityStore(tx, "s1")
		if _, err := addWidgetVersion(ctx, es, "w1", "tx1", &widget{}, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	err = db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var ent widget
		if err := tx.Get(ctx, widgetAgg.Entities, "w1", &ent); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("rolled-back write visible: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
