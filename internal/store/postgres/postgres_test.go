package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
	"MgvIndexer/internal/store/postgres"
	"MgvIndexer/internal/testutil"
)

func setup(t *testing.T) *postgres.Store {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	migrator := postgres.NewMigrator(db, "../../../migrations", zerolog.Nop())
	if err := migrator.Up(context.Background()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return postgres.New(db, model.Tables())
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := setup(t)

	err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		row := &model.Chain{ID: "80001", ChainlistID: 80001, Name: "mumbai"}
		if err := tx.Insert(ctx, model.TableChains, row); err != nil {
			return err
		}
		var got model.Chain
		if err := tx.Get(ctx, model.TableChains, "80001", &got); err != nil {
			return err
		}
		if got.Name != "mumbai" {
			t.Errorf("row = %+v", got)
		}

		// Insert refuses duplicates, Upsert replaces.
		if err := tx.Insert(ctx, model.TableChains, row); err == nil {
			t.Error("duplicate insert accepted")
		}
		row.Name = "polygon-mumbai"
		if err := tx.Upsert(ctx, model.TableChains, row); err != nil {
			return err
		}
		if err := tx.Get(ctx, model.TableChains, "80001", &got); err != nil {
			return err
		}
		if got.Name != "polygon-mumbai" {
			t.Errorf("row after upsert = %+v", got)
		}

		if err := tx.Delete(ctx, model.TableChains, "80001"); err != nil {
			return err
		}
		if err := tx.Get(ctx, model.TableChains, "80001", &got); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("get after delete: %v", err)
		}
		// Deleting an absent row is a no-op.
		return tx.Delete(ctx, model.TableChains, "80001")
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := setup(t)

	boom := errors.New("boom")
	err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Insert(ctx, model.TableChains, &model.Chain{ID: "1", Name: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	err = st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var got model.Chain
		if err := tx.Get(ctx, model.TableChains, "1", &got); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("rolled-back write visible: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStoreRejectsUnknownTable(t *testing.T) {
	ctx := context.Background()
	st := setup(t)

	err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var got model.Chain
		return tx.Get(ctx, "not_a_table", "1", &got)
	})
	if err == nil {
		t.Fatal("unknown table accepted")
	}
}
