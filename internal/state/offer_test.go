package state_test

import (
	"context"
	"testing"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/state"
)

func TestOfferWrite(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		mgvID, key, err := seedMarket(ctx, db)
		if err != nil {
			return err
		}

		v, err := db.Offers.Write(ctx, mgvID, key, "tx1", "0xMaker", "", event.WrittenOffer{
			ID:       1,
			Prev:     0,
			Wants:    "3000000",
			Gives:    "1500000",
			Gasprice: 10,
			Gasreq:   100000,
		})
		if err != nil {
			return err
		}

		if v.WantsNumber != 3 || v.GivesNumber != 1.5 {
			t.Errorf("scaled amounts = %v / %v", v.WantsNumber, v.GivesNumber)
		}
		if !v.TakerPaysPrice.Valid || v.TakerPaysPrice.Float64 != 2 {
			t.Errorf("takerPaysPrice = %+v, want 2", v.TakerPaysPrice)
		}
		if !v.MakerPaysPrice.Valid || v.MakerPaysPrice.Float64 != 0.5 {
			t.Errorf("makerPaysPrice = %+v, want 0.5", v.MakerPaysPrice)
		}
		if !v.Live || v.Deprovisioned || v.Deleted {
			t.Errorf("flags = live=%v deprovisioned=%v deleted=%v", v.Live, v.Deprovisioned, v.Deleted)
		}
		if v.PrevOfferID != "" {
			t.Errorf("prevOfferID = %q, want empty for best offer", v.PrevOfferID)
		}

		offer, err := db.Offers.Get(ctx, v.EntityID)
		if err != nil {
			return err
		}
		if offer.MakerID != "80001-0xmaker" {
			t.Errorf("makerID = %q", offer.MakerID)
		}
		return nil
	})
}

func TestOfferRewriteRecomputesEverything(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		mgvID, key, err := seedMarket(ctx, db)
		if err != nil {
			return err
		}
		if err := writeOffer(ctx, db, mgvID, key, 1, "3000000", "1500000"); err != nil {
			return err
		}

		// Rewrite with zero gives and zero gasprice: off book, deprovisioned.
		v, err := db.Offers.Write(ctx, mgvID, key, "tx2", "0xmaker", "", event.WrittenOffer{
			ID:    1,
			Prev:  2,
			Wants: "3000000",
			Gives: "0",
		})
		if err != nil {
			return err
		}
		if v.VersionNumber != 1 {
			t.Errorf("version = %d", v.VersionNumber)
		}
		if v.Live {
			t.Error("offer with zero gives must not be live")
		}
		if !v.Deprovisioned {
			t.Error("offer with zero gasprice must be deprovisioned")
		}
		if v.TakerPaysPrice.Valid {
			t.Errorf("takerPaysPrice = %+v, want null with zero gives", v.TakerPaysPrice)
		}
		if v.PrevOfferID == "" {
			t.Error("prevOfferID missing for non-best offer")
		}
		return nil
	})
}

func TestOfferMarkDeletedAndUndo(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		mgvID, key, err := seedMarket(ctx, db)
		if err != nil {
			return err
		}
		if err := writeOffer(ctx, db, mgvID, key, 1, "3000000", "1500000"); err != nil {
			return err
		}

		offerID := "80001-0xmgv-0xaaa-0xbbb-1"
		v, err := db.Offers.MarkDeleted(ctx, offerID, "tx2")
		if err != nil {
			return err
		}
		if !v.Deleted || v.Live {
			t.Errorf("marked version flags = deleted=%v live=%v", v.Deleted, v.Live)
		}
		// The rest of the snapshot carries over.
		if v.WantsNumber != 3 {
			t.Errorf("wantsNumber = %v, want carried-over 3", v.WantsNumber)
		}

		if err := db.Offers.DeleteLatestVersion(ctx, offerID); err != nil {
			return err
		}
		head, err := db.Offers.CurrentVersion(ctx, offerID)
		if err != nil {
			return err
		}
		if head.Deleted || !head.Live {
			t.Errorf("restored head flags = %+v", head)
		}
		return nil
	})
}
