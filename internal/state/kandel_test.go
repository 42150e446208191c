package state_test

import (
	"context"
	"errors"
	"testing"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/state"
	"MgvIndexer/internal/store"
)

func seedKandel(ctx context.Context, db *state.DB) (string, error) {
	if _, _, err := seedMarket(ctx, db); err != nil {
		return "", err
	}
	id := model.KandelID(testChain, "0xkan")
	err := db.Kandels.Create(ctx, testChain, "0xkan", "tx1", "0xmgv", "0xaaa", "0xbbb", "0xowner", "", "Kandel")
	return id, err
}

func TestKandelCreate(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		id, err := seedKandel(ctx, db)
		if err != nil {
			return err
		}

		kandel, err := db.Kandels.Get(ctx, id)
		if err != nil {
			return err
		}
		// Without an explicit reserve the kandel holds its own funds.
		if kandel.ReserveID != model.AccountID(testChain, "0xkan") {
			t.Errorf("reserveID = %q", kandel.ReserveID)
		}
		if kandel.BaseTokenID != model.TokenID(testChain, "0xaaa") {
			t.Errorf("baseTokenID = %q", kandel.BaseTokenID)
		}

		var v model.KandelVersion
		if err := db.Tx().Get(ctx, model.TableKandelVersions, kandel.CurrentVersionID, &v); err != nil {
			return err
		}
		if v.Trigger != state.TriggerCreated {
			t.Errorf("trigger = %q", v.Trigger)
		}
		if v.AdminID != model.AccountID(testChain, "0xowner") {
			t.Errorf("adminID = %q", v.AdminID)
		}
		var cfg model.KandelConfiguration
		if err := db.Tx().Get(ctx, model.TableKandelConfigurations, v.ConfigurationID, &cfg); err != nil {
			return err
		}
		return nil
	})
}

func TestKandelSetParams(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		id, err := seedKandel(ctx, db)
		if err != nil {
			return err
		}

		err = db.Kandels.SetParams(ctx, id, "tx2", testChain, event.SetParams{
			Geometric: &event.GeometricParams{Ratio: "10800", Spread: "1"},
		})
		if err != nil {
			return err
		}

		kandel, err := db.Kandels.Get(ctx, id)
		if err != nil {
			return err
		}
		var v model.KandelVersion
		if err := db.Tx().Get(ctx, model.TableKandelVersions, kandel.CurrentVersionID, &v); err != nil {
			return err
		}
		if v.VersionNumber != 1 || v.Trigger != state.TriggerSetParams {
			t.Errorf("head = %+v", v)
		}
		var cfg model.KandelConfiguration
		if err := db.Tx().Get(ctx, model.TableKandelConfigurations, v.ConfigurationID, &cfg); err != nil {
			return err
		}
		if cfg.Ratio != "10800" || cfg.Spread != "1" {
			t.Errorf("config = %+v", cfg)
		}
		// Copy-on-write: the version 0 configuration is untouched.
		var cfg0 model.KandelConfiguration
		if err := db.Tx().Get(ctx, model.TableKandelConfigurations, store.VersionID(id, 0)+"-cfg", &cfg0); err != nil {
			return err
		}
		if cfg0.Ratio != "" {
			t.Errorf("original config mutated: %+v", cfg0)
		}
		var ev model.KandelEvent
		if err := db.Tx().Get(ctx, model.TableKandelEvents, v.ID+"-event", &ev); err != nil {
			return err
		}
		if ev.Geometric == nil || ev.Geometric.Ratio != "10800" {
			t.Errorf("audit event = %+v", ev)
		}

		// An event carrying no parameter group is rejected.
		if err := db.Kandels.SetParams(ctx, id, "tx3", testChain, event.SetParams{}); !errors.Is(err, store.ErrValidation) {
			t.Errorf("empty SetParams err = %v, want ErrValidation", err)
		}

		// Undo removes the config and the audit event with the version.
		if err := db.Kandels.DeleteLatestVersion(ctx, id); err != nil {
			return err
		}
		if err := db.Tx().Get(ctx, model.TableKandelEvents, v.ID+"-event", &ev); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("audit event survived undo: %v", err)
		}
		if err := db.Tx().Get(ctx, model.TableKandelConfigurations, v.ConfigurationID, &cfg); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("config survived undo: %v", err)
		}
		return nil
	})
}

func TestKandelBalanceChange(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		id, err := seedKandel(ctx, db)
		if err != nil {
			return err
		}
		reserveID := model.AccountID(testChain, "0xkan")
		tokenID := model.TokenID(testChain, "0xaaa")

		if err := db.Kandels.ApplyBalanceChange(ctx, id, "tx2", testChain, "0xaaa", "1000", state.TriggerCredit); err != nil {
			return err
		}
		if err := db.Kandels.ApplyBalanceChange(ctx, id, "tx3", testChain, "0xaaa", "400", state.TriggerDebit); err != nil {
			return err
		}

		v, err := db.TokenBalances.Version(ctx, reserveID, tokenID)
		if err != nil {
			return err
		}
		if v == nil {
			t.Fatal("no balance version after credit and debit")
		}
		if v.Balance != "600" || v.Deposit != "1000" || v.Withdrawal != "400" {
			t.Errorf("balance = %+v", v)
		}

		if err := db.Kandels.UndoBalanceChange(ctx, id, testChain, "0xaaa"); err != nil {
			return err
		}
		v, err = db.TokenBalances.Version(ctx, reserveID, tokenID)
		if err != nil {
			return err
		}
		if v == nil || v.Balance != "1000" {
			t.Errorf("balance after undo = %+v", v)
		}
		kandel, err := db.Kandels.Get(ctx, id)
		if err != nil {
			return err
		}
		if kandel.CurrentVersionID != store.VersionID(id, 1) {
			t.Errorf("kandel head after undo = %q", kandel.CurrentVersionID)
		}
		return nil
	})
}

func TestKandelPopulateRetract(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		id, err := seedKandel(ctx, db)
		if err != nil {
			return err
		}
		mgvID := model.MangroveID(testChain, "0xmgv")
		askKey := model.OfferListKey{OutboundToken: "0xaaa", InboundToken: "0xbbb"}
		offerID := model.OfferID(mgvID, askKey, 7)
		idxID := model.KandelOfferIndexID(id, offerID, "ask")

		err = db.Kandels.Populate(ctx, id, "tx2", testChain, event.Populate{
			Offers: []event.PopulatedOffer{{OfferID: 7, Index: 0, Gives: "1000", BA: "ask"}},
		})
		if err != nil {
			return err
		}
		var idx model.KandelOfferIndex
		if err := db.Tx().Get(ctx, model.TableKandelOfferIndexes, idxID, &idx); err != nil {
			return err
		}
		if idx.OfferID != offerID || idx.Index != 0 {
			t.Errorf("index binding = %+v", idx)
		}

		err = db.Kandels.Retract(ctx, id, "tx3", testChain, event.Retract{
			Offers: []event.RetractedOffer{{OfferID: 7, Index: 0, BA: "ask"}},
		})
		if err != nil {
			return err
		}
		if err := db.Tx().Get(ctx, model.TableKandelOfferIndexes, idxID, &idx); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("binding survived retract: %v", err)
		}

		// Undoing the retract restores the binding from the audit event.
		if err := db.Kandels.DeleteLatestVersion(ctx, id); err != nil {
			return err
		}
		if err := db.Tx().Get(ctx, model.TableKandelOfferIndexes, idxID, &idx); err != nil {
			return err
		}
		// Undoing the populate removes it again.
		if err := db.Kandels.DeleteLatestVersion(ctx, id); err != nil {
			return err
		}
		if err := db.Tx().Get(ctx, model.TableKandelOfferIndexes, idxID, &idx); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("binding survived populate undo: %v", err)
		}
		return nil
	})
}

func TestKandelSetIndexMapping(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		id, err := seedKandel(ctx, db)
		if err != nil {
			return err
		}
		mgvID := model.MangroveID(testChain, "0xmgv")
		bidKey := model.OfferListKey{OutboundToken: "0xbbb", InboundToken: "0xaaa"}
		offerID := model.OfferID(mgvID, bidKey, 3)

		// Bids give quote: the binding resolves into the reversed book.
		if err := db.Kandels.SetIndexMapping(ctx, id, "tx2", testChain, event.SetIndexMapping{BA: "bid", Index: 4, OfferID: 3}); err != nil {
			return err
		}
		var idx model.KandelOfferIndex
		if err := db.Tx().Get(ctx, model.TableKandelOfferIndexes, model.KandelOfferIndexID(id, offerID, "bid"), &idx); err != nil {
			return err
		}
		if idx.Index != 4 {
			t.Errorf("index = %d", idx.Index)
		}

		// Offer number 0 is a cleared slot.
		if err := db.Kandels.SetIndexMapping(ctx, id, "tx3", testChain, event.SetIndexMapping{BA: "bid", Index: 5, OfferID: 0}); err != nil {
			return err
		}
		return nil
	})
}
