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

func TestOrderCompletedCascade(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		mgvID, key, err := seedMarket(ctx, db)
		if err != nil {
			return err
		}
		if err := writeOffer(ctx, db, mgvID, key, 1, "2000000", "1000000"); err != nil {
			return err
		}
		if err := writeOffer(ctx, db, mgvID, key, 2, "2000000", "1000000"); err != nil {
			return err
		}

		err = db.Orders.Create(ctx, mgvID, key, "tx-order", "", event.OrderCompleted{
			ID: "ord1",
			Order: event.CompletedOrder{
				Taker:     "0xtaker",
				TakerGot:  "2000000",
				TakerGave: "4000000",
				Penalty:   "0",
				TakenOffers: []event.TakenOfferSlip{
					{ID: 1, TakerWants: "1000000", TakerGives: "2000000"},
					{ID: 2, TakerWants: "1000000", TakerGives: "2000000"},
				},
			},
		})
		if err != nil {
			return err
		}

		orderID := model.OrderID(mgvID, key, "ord1")
		var order model.Order
		if err := db.Tx().Get(ctx, model.TableOrders, orderID, &order); err != nil {
			return err
		}
		if len(order.TakenOfferIDs) != 2 {
			t.Fatalf("taken offers = %d, want 2", len(order.TakenOfferIDs))
		}
		if !order.TakerPaidPrice.Valid || order.TakerPaidPrice.Float64 != 2 {
			t.Errorf("takerPaidPrice = %+v, want 2", order.TakerPaidPrice)
		}

		for _, n := range []int64{1, 2} {
			offerID := model.OfferID(mgvID, key, n)
			var taken model.TakenOffer
			if err := db.Tx().Get(ctx, model.TableTakenOffers, model.TakenOfferID(orderID, n), &taken); err != nil {
				return err
			}
			// The slip references the snapshot taken before the deletion.
			if taken.OfferVersionID != store.VersionID(offerID, 0) {
				t.Errorf("offer %d consumed version = %q", n, taken.OfferVersionID)
			}
			head, err := db.Offers.CurrentVersion(ctx, offerID)
			if err != nil {
				return err
			}
			if head.VersionNumber != 1 || !head.Deleted || head.Live {
				t.Errorf("offer %d head = %+v", n, head)
			}
		}

		// Undo removes the order, its slips, and the deleted offer versions.
		if err := db.Orders.Undo(ctx, mgvID, key, "ord1"); err != nil {
			return err
		}
		if err := db.Tx().Get(ctx, model.TableOrders, orderID, &order); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("order survived undo: %v", err)
		}
		for _, n := range []int64{1, 2} {
			var taken model.TakenOffer
			if err := db.Tx().Get(ctx, model.TableTakenOffers, model.TakenOfferID(orderID, n), &taken); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("taken offer %d survived undo: %v", n, err)
			}
			head, err := db.Offers.CurrentVersion(ctx, model.OfferID(mgvID, key, n))
			if err != nil {
				return err
			}
			if head.VersionNumber != 0 || head.Deleted {
				t.Errorf("offer %d head after undo = %+v", n, head)
			}
		}
		return nil
	})
}

func TestOrderFailedSlipCarriesReason(t *testing.T) {
	withDB(t, func(ctx context.Context, db *state.DB) error {
		mgvID, key, err := seedMarket(ctx, db)
		if err != nil {
			return err
		}
		if err := writeOffer(ctx, db, mgvID, key, 1, "2000000", "1000000"); err != nil {
			return err
		}

		err = db.Orders.Create(ctx, mgvID, key, "tx-order", "", event.OrderCompleted{
			ID: "ord1",
			Order: event.CompletedOrder{
				Taker:     "0xtaker",
				TakerGot:  "0",
				TakerGave: "0",
				Penalty:   "3000000000000000",
				TakenOffers: []event.TakenOfferSlip{
					{ID: 1, TakerWants: "0", TakerGives: "0", FailReason: "mgv/makerTransferFail", PosthookFailed: true},
				},
			},
		})
		if err != nil {
			return err
		}

		orderID := model.OrderID(mgvID, key, "ord1")
		var taken model.TakenOffer
		if err := db.Tx().Get(ctx, model.TableTakenOffers, model.TakenOfferID(orderID, 1), &taken); err != nil {
			return err
		}
		if taken.FailReason != "mgv/makerTransferFail" || !taken.PosthookFailed {
			t.Errorf("slip = %+v", taken)
		}
		var order model.Order
		if err := db.Tx().Get(ctx, model.TableOrders, orderID, &order); err != nil {
			return err
		}
		if order.BountyNumber != 0.003 {
			t.Errorf("bountyNumber = %v, want 0.003", order.BountyNumber)
		}
		return nil
	})
}
