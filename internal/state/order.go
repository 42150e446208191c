package state

import (
	"context"
	"fmt"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
)

// OrderOps records executed market orders. An Order and its TakenOffer rows
// are immutable; the mutable side effects live on the consumed offers and
// the resting orders linked to them.
type OrderOps struct {
	db *DB
}

// Create applies an OrderCompleted event. For each taken offer, in event
// order: the consumed offer's current version is snapshotted before any
// mutation, an immutable TakenOffer row referencing that snapshot is
// written, the offer gets a deleted version, and resting orders sitting on
// it accumulate the fill. The Order row referencing all taken offers is
// written last.
func (o *OrderOps) Create(ctx context.Context, mangroveID string, key model.OfferListKey, txID, parentOrderID string, e event.OrderCompleted) error {
	key = key.Normalized()
	offerListID := model.OfferListID(mangroveID, key)
	orderID := model.OrderID(mangroveID, key, e.ID)

	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return err
	}
	takerID, err := o.db.Refs.EnsureAccount(ctx, model.ChainID(mgv.ChainID), e.Order.Taker)
	if err != nil {
		return err
	}
	outbound, inbound, err := o.db.OfferLists.Tokens(ctx, offerListID)
	if err != nil {
		return err
	}

	takerGot, err := num.Scale(e.Order.TakerGot, outbound.Decimals)
	if err != nil {
		return fmt.Errorf("order %s takerGot: %w", orderID, err)
	}
	takerGave, err := num.Scale(e.Order.TakerGave, inbound.Decimals)
	if err != nil {
		return fmt.Errorf("order %s takerGave: %w", orderID, err)
	}
	bounty, err := num.Scale(e.Order.Penalty, nativeDecimals)
	if err != nil {
		return fmt.Errorf("order %s bounty: %w", orderID, err)
	}

	takenOfferIDs := make([]string, 0, len(e.Order.TakenOffers))
	for _, slip := range e.Order.TakenOffers {
		takenOfferID, err := o.applyTakenOffer(ctx, mangroveID, key, txID, orderID, slip, outbound, inbound)
		if err != nil {
			return err
		}
		takenOfferIDs = append(takenOfferIDs, takenOfferID)
	}

	return o.db.Tx().Insert(ctx, model.TableOrders, &model.Order{
		ID:              orderID,
		TxID:            txID,
		ParentOrderID:   parentOrderID,
		MangroveID:      mangroveID,
		OfferListID:     offerListID,
		TakerID:         takerID,
		TakerGot:        e.Order.TakerGot,
		TakerGotNumber:  takerGot.InexactFloat64(),
		TakerGave:       e.Order.TakerGave,
		TakerGaveNumber: takerGave.InexactFloat64(),
		TakerPaidPrice:  num.Price(takerGave, takerGot),
		MakerPaidPrice:  num.Price(takerGot, takerGave),
		Bounty:          e.Order.Penalty,
		BountyNumber:    bounty.InexactFloat64(),
		TakenOfferIDs:   takenOfferIDs,
	})
}

func (o *OrderOps) applyTakenOffer(ctx context.Context, mangroveID string, key model.OfferListKey, txID, orderID string, slip event.TakenOfferSlip, outbound, inbound *model.Token) (string, error) {
	offerID := model.OfferID(mangroveID, key, slip.ID)
	takenOfferID := model.TakenOfferID(orderID, slip.ID)

	// Snapshot the consumed version before the offer is mutated.
	consumed, err := o.db.Offers.CurrentVersion(ctx, offerID)
	if err != nil {
		return "", err
	}

	got, err := num.Scale(slip.TakerWants, outbound.Decimals)
	if err != nil {
		return "", fmt.Errorf("taken offer %s takerGot: %w", takenOfferID, err)
	}
	gave, err := num.Scale(slip.TakerGives, inbound.Decimals)
	if err != nil {
		return "", fmt.Errorf("taken offer %s takerGave: %w", takenOfferID, err)
	}

	taken := &model.TakenOffer{
		ID:              takenOfferID,
		OrderID:         orderID,
		OfferVersionID:  consumed.ID,
		TakerGot:        slip.TakerWants,
		TakerGotNumber:  got.InexactFloat64(),
		TakerGave:       slip.TakerGives,
		TakerGaveNumber: gave.InexactFloat64(),
		TakerPaidPrice:  num.Price(gave, got),
		MakerPaidPrice:  num.Price(got, gave),
		FailReason:      slip.FailReason,
		PosthookData:    slip.PosthookData,
		PosthookFailed:  slip.PosthookFailed,
	}
	if err := o.db.Tx().Insert(ctx, model.TableTakenOffers, taken); err != nil {
		return "", err
	}

	if _, err := o.db.Offers.MarkDeleted(ctx, offerID, txID); err != nil {
		return "", err
	}

	err = o.db.MangroveOrders.AccumulateTakenOffer(ctx, offerID, txID, TakenOfferFill{
		TakerGot:       got,
		TakerGave:      gave,
		TakerGotRaw:    slip.TakerWants,
		FailReason:     slip.FailReason,
		PosthookData:   slip.PosthookData,
		PosthookFailed: slip.PosthookFailed,
	})
	if err != nil {
		return "", err
	}
	return takenOfferID, nil
}

// Undo removes the Order, its TakenOffer rows, and pops the offer and
// resting order versions the forward application pushed, in reverse order.
func (o *OrderOps) Undo(ctx context.Context, mangroveID string, key model.OfferListKey, upstreamID string) error {
	key = key.Normalized()
	orderID := model.OrderID(mangroveID, key, upstreamID)

	var order model.Order
	if err := o.db.Tx().Get(ctx, model.TableOrders, orderID, &order); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}

	for i := len(order.TakenOfferIDs) - 1; i >= 0; i-- {
		takenOfferID := order.TakenOfferIDs[i]
		var taken model.TakenOffer
		if err := o.db.Tx().Get(ctx, model.TableTakenOffers, takenOfferID, &taken); err != nil {
			return fmt.Errorf("taken offer %s: %w", takenOfferID, err)
		}

		var consumed model.OfferVersion
		if err := o.db.Tx().Get(ctx, model.TableOfferVersions, taken.OfferVersionID, &consumed); err != nil {
			return fmt.Errorf("offer version %s: %w", taken.OfferVersionID, err)
		}
		offerID := consumed.EntityID

		if err := o.db.MangroveOrders.UndoTakenOffer(ctx, offerID); err != nil {
			return err
		}
		if err := o.db.Offers.DeleteLatestVersion(ctx, offerID); err != nil {
			return err
		}
		if err := o.db.Tx().Delete(ctx, model.TableTakenOffers, takenOfferID); err != nil {
			return err
		}
	}

	return o.db.Tx().Delete(ctx, model.TableOrders, orderID)
}
