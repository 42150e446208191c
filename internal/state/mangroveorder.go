package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// MangroveOrderOps maintains resting limit orders created by the order
// strategy contract. A MangroveOrder rests on an Offer; every state change
// of that offer is mirrored into the orders linked to it through the
// resting order index.
type MangroveOrderOps struct {
	db *DB
}

// Create registers a resting order from an OrderSummary event and writes
// version 0 reflecting the amounts already moved by the initiating market
// order. Amounts on the entity and version are human-scaled.
func (o *MangroveOrderOps) Create(ctx context.Context, mangroveID string, key model.OfferListKey, txID string, s event.OrderSummary) error {
	key = key.Normalized()
	offerListID := model.OfferListID(mangroveID, key)
	id := model.MangroveOrderID(mangroveID, key, s.ID)

	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return err
	}
	takerID, err := o.db.Refs.EnsureAccount(ctx, model.ChainID(mgv.ChainID), s.Taker)
	if err != nil {
		return err
	}
	outbound, inbound, err := o.db.OfferLists.Tokens(ctx, offerListID)
	if err != nil {
		return err
	}

	takerWants, err := num.Scale(s.TakerWants, outbound.Decimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s takerWants: %w", id, err)
	}
	takerGives, err := num.Scale(s.TakerGives, inbound.Decimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s takerGives: %w", id, err)
	}
	takerGot, err := num.Scale(s.TakerGot, outbound.Decimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s takerGot: %w", id, err)
	}
	takerGave, err := num.Scale(s.TakerGave, inbound.Decimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s takerGave: %w", id, err)
	}
	fee, err := num.Scale(s.Fee, outbound.Decimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s fee: %w", id, err)
	}
	bounty, err := num.Scale(s.Bounty, nativeDecimals)
	if err != nil {
		return fmt.Errorf("mangrove order %s bounty: %w", id, err)
	}

	restingOrderID := ""
	if s.RestingOrder && s.RestingOrderID != 0 {
		restingOrderID = model.OfferID(mangroveID, key, s.RestingOrderID)
	}

	initial := &model.MangroveOrder{
		EntityBase:       store.EntityBase{ID: id},
		MangroveID:       mangroveID,
		OfferListID:      offerListID,
		TakerID:          takerID,
		RestingOrderID:   restingOrderID,
		FillOrKill:       s.FillOrKill,
		FillWants:        s.FillWants,
		RestingOrder:     s.RestingOrder,
		TakerWants:       takerWants.String(),
		TakerWantsNumber: takerWants.InexactFloat64(),
		TakerGives:       takerGives.String(),
		TakerGivesNumber: takerGives.InexactFloat64(),
		Bounty:           bounty.String(),
		BountyNumber:     bounty.InexactFloat64(),
	}
	filled := s.FillWants && takerGot.Add(fee).Equal(takerWants) ||
		!s.FillWants && takerGave.Equal(takerGives)

	_, err = store.AddVersion[model.MangroveOrder, model.MangroveOrderVersion](
		ctx, o.db.es, model.MangroveOrderAggregate, id, txID, initial,
		func(v *model.MangroveOrderVersion) {
			v.Filled = filled
			v.TakerGot = takerGot.String()
			v.TakerGotNumber = takerGot.InexactFloat64()
			v.TakerGave = takerGave.String()
			v.TakerGaveNumber = takerGave.InexactFloat64()
			v.TotalFee = fee.String()
			v.TotalFeeNumber = fee.InexactFloat64()
			v.Price = num.Price(takerGave, takerGot)
			v.ExpiryDate = s.ExpiryDate
		})
	if err != nil {
		return err
	}

	if restingOrderID != "" {
		return o.link(ctx, restingOrderID, id)
	}
	return nil
}

// Delete undoes an OrderSummary: it pops version 0, which removes the
// entity, and unlinks the resting order index.
func (o *MangroveOrderOps) Delete(ctx context.Context, mangroveID string, key model.OfferListKey, summaryID string) error {
	key = key.Normalized()
	id := model.MangroveOrderID(mangroveID, key, summaryID)

	var row model.MangroveOrder
	if err := o.db.Tx().Get(ctx, model.TableMangroveOrders, id, &row); err != nil {
		return fmt.Errorf("mangrove order %s: %w", id, err)
	}
	if err := store.DeleteLatestVersion[model.MangroveOrder, model.MangroveOrderVersion](
		ctx, o.db.es, model.MangroveOrderAggregate, id); err != nil {
		return err
	}
	if row.RestingOrderID != "" {
		return o.unlink(ctx, row.RestingOrderID, id)
	}
	return nil
}

// TakenOfferFill carries one taken offer's execution, amounts already
// human-scaled, into resting order accumulation.
type TakenOfferFill struct {
	TakerGot       decimal.Decimal
	TakerGave      decimal.Decimal
	TakerGotRaw    string
	FailReason     string
	PosthookData   string
	PosthookFailed bool
}

// AccumulateTakenOffer folds one taken offer's amounts into every resting
// order sitting on the consumed offer. Accumulation runs in decimal-string
// space; the float mirrors are recomputed afterwards.
func (o *MangroveOrderOps) AccumulateTakenOffer(ctx context.Context, offerID, txID string, fill TakenOfferFill) error {
	ids, err := o.restingOn(ctx, offerID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := o.accumulateOne(ctx, id, txID, fill); err != nil {
			return err
		}
	}
	return nil
}

func (o *MangroveOrderOps) accumulateOne(ctx context.Context, id, txID string, fill TakenOfferFill) error {
	var row model.MangroveOrder
	if err := o.db.Tx().Get(ctx, model.TableMangroveOrders, id, &row); err != nil {
		return fmt.Errorf("mangrove order %s: %w", id, err)
	}

	fee, err := o.db.OfferLists.FeeForTakenOffer(ctx, row.OfferListID, fill.TakerGotRaw)
	if err != nil {
		return err
	}

	var accErr error
	_, err = store.AddVersion[model.MangroveOrder, model.MangroveOrderVersion](
		ctx, o.db.es, model.MangroveOrderAggregate, id, txID, nil,
		func(v *model.MangroveOrderVersion) {
			v.TotalFee, accErr = num.AddDecimalStrings(v.TotalFee, fee.String(), 0)
			if accErr != nil {
				return
			}
			v.TakerGot, accErr = num.AddDecimalStrings(v.TakerGot, fill.TakerGot.String(), 0)
			if accErr != nil {
				return
			}
			v.TakerGave, accErr = num.AddDecimalStrings(v.TakerGave, fill.TakerGave.String(), 0)
			if accErr != nil {
				return
			}
			v.TotalFeeNumber, _ = num.Number(v.TotalFee)
			v.TakerGotNumber, _ = num.Number(v.TakerGot)
			v.TakerGaveNumber, _ = num.Number(v.TakerGave)

			v.Failed = fill.PosthookFailed || fill.PosthookData != ""
			if fill.FailReason != "" {
				v.FailedReason = fill.FailReason
			} else {
				v.FailedReason = fill.PosthookData
			}

			if row.FillWants {
				var gotPlusFee string
				gotPlusFee, accErr = num.AddDecimalStrings(v.TakerGot, v.TotalFee, 0)
				if accErr != nil {
					return
				}
				v.Filled = num.EqualStrings(gotPlusFee, row.TakerWants)
			} else {
				v.Filled = num.EqualStrings(v.TakerGave, row.TakerGives)
			}
			v.Price = num.PriceStrings(v.TakerGave, v.TakerGot)
		})
	if err != nil {
		return err
	}
	return accErr
}

// UndoTakenOffer pops the accumulation versions AccumulateTakenOffer pushed
// for the offer's resting orders.
func (o *MangroveOrderOps) UndoTakenOffer(ctx context.Context, offerID string) error {
	ids, err := o.restingOn(ctx, offerID)
	if err != nil {
		return err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if err := store.DeleteLatestVersion[model.MangroveOrder, model.MangroveOrderVersion](
			ctx, o.db.es, model.MangroveOrderAggregate, ids[i]); err != nil {
			return err
		}
	}
	return nil
}

// MarkCancelled appends a cancelled version to every resting order sitting
// on the retracted offer.
func (o *MangroveOrderOps) MarkCancelled(ctx context.Context, offerID, txID string) error {
	ids, err := o.restingOn(ctx, offerID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := store.AddVersion[model.MangroveOrder, model.MangroveOrderVersion](
			ctx, o.db.es, model.MangroveOrderAggregate, id, txID, nil,
			func(v *model.MangroveOrderVersion) { v.Cancelled = true })
		if err != nil {
			return err
		}
	}
	return nil
}

// SetExpiry appends a version with the new expiry date to every resting
// order sitting on the offer.
func (o *MangroveOrderOps) SetExpiry(ctx context.Context, offerID, txID string, expiry time.Time) error {
	ids, err := o.restingOn(ctx, offerID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := store.AddVersion[model.MangroveOrder, model.MangroveOrderVersion](
			ctx, o.db.es, model.MangroveOrderAggregate, id, txID, nil,
			func(v *model.MangroveOrderVersion) { v.ExpiryDate = expiry })
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteLatestVersionByOffer pops one version from every resting order
// sitting on the offer, in reverse link order.
func (o *MangroveOrderOps) DeleteLatestVersionByOffer(ctx context.Context, offerID string) error {
	return o.UndoTakenOffer(ctx, offerID)
}

func (o *MangroveOrderOps) restingOn(ctx context.Context, offerID string) ([]string, error) {
	var idx model.RestingOrderIndex
	err := o.db.Tx().Get(ctx, model.TableRestingOrderIndex, offerID, &idx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return idx.MangroveOrderIDs, nil
}

func (o *MangroveOrderOps) link(ctx context.Context, offerID, mangroveOrderID string) error {
	var idx model.RestingOrderIndex
	err := o.db.Tx().Get(ctx, model.TableRestingOrderIndex, offerID, &idx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	idx.ID = offerID
	for _, id := range idx.MangroveOrderIDs {
		if id == mangroveOrderID {
			return nil
		}
	}
	idx.MangroveOrderIDs = append(idx.MangroveOrderIDs, mangroveOrderID)
	return o.db.Tx().Upsert(ctx, model.TableRestingOrderIndex, &idx)
}

func (o *MangroveOrderOps) unlink(ctx context.Context, offerID, mangroveOrderID string) error {
	var idx model.RestingOrderIndex
	err := o.db.Tx().Get(ctx, model.TableRestingOrderIndex, offerID, &idx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	kept := idx.MangroveOrderIDs[:0]
	for _, id := range idx.MangroveOrderIDs {
		if id != mangroveOrderID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return o.db.Tx().Delete(ctx, model.TableRestingOrderIndex, offerID)
	}
	idx.MangroveOrderIDs = kept
	return o.db.Tx().Upsert(ctx, model.TableRestingOrderIndex, &idx)
}
