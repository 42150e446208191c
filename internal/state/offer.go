package state

import (
	"context"
	"fmt"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// OfferOps maintains offers and their version chains.
type OfferOps struct {
	db *DB
}

// Write applies an OfferWritten event: it creates the offer on first sight
// and appends a version snapshotting the full on-book state. Every numeric
// field is recomputed from the event; nothing is inherited from the
// previous version.
func (o *OfferOps) Write(ctx context.Context, mangroveID string, key model.OfferListKey, txID, maker, parentOrderID string, w event.WrittenOffer) (*model.OfferVersion, error) {
	key = key.Normalized()
	offerListID := model.OfferListID(mangroveID, key)
	offerID := model.OfferID(mangroveID, key, w.ID)

	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return nil, err
	}
	makerID, err := o.db.Refs.EnsureAccount(ctx, model.ChainID(mgv.ChainID), maker)
	if err != nil {
		return nil, err
	}
	outbound, inbound, err := o.db.OfferLists.Tokens(ctx, offerListID)
	if err != nil {
		return nil, err
	}

	gives, err := num.Scale(w.Gives, outbound.Decimals)
	if err != nil {
		return nil, fmt.Errorf("offer %s gives: %w", offerID, err)
	}
	wants, err := num.Scale(w.Wants, inbound.Decimals)
	if err != nil {
		return nil, fmt.Errorf("offer %s wants: %w", offerID, err)
	}

	prevOfferID := ""
	if w.Prev != 0 {
		prevOfferID = model.OfferID(mangroveID, key, w.Prev)
	}

	initial := &model.Offer{
		EntityBase:  store.EntityBase{ID: offerID},
		MangroveID:  mangroveID,
		OfferListID: offerListID,
		OfferNumber: w.ID,
		MakerID:     makerID,
	}
	return store.AddVersion[model.Offer, model.OfferVersion](
		ctx, o.db.es, model.OfferAggregate, offerID, txID, initial,
		func(v *model.OfferVersion) {
			v.ParentOrderID = parentOrderID
			v.PrevOfferID = prevOfferID
			v.Wants = w.Wants
			v.WantsNumber = wants.InexactFloat64()
			v.Gives = w.Gives
			v.GivesNumber = gives.InexactFloat64()
			v.TakerPaysPrice = num.Price(wants, gives)
			v.MakerPaysPrice = num.Price(gives, wants)
			v.Gasprice = w.Gasprice
			v.Gasreq = w.Gasreq
			v.Live = gives.IsPositive()
			v.Deprovisioned = w.Gasprice == 0
			v.Deleted = false
		})
}

// MarkDeleted appends a version with deleted set, carrying the rest of the
// previous snapshot forward. Used when an offer is retracted or consumed.
func (o *OfferOps) MarkDeleted(ctx context.Context, offerID, txID string) (*model.OfferVersion, error) {
	return store.AddVersion[model.Offer, model.OfferVersion](
		ctx, o.db.es, model.OfferAggregate, offerID, txID, nil,
		func(v *model.OfferVersion) {
			v.Deleted = true
			v.Live = false
		})
}

func (o *OfferOps) DeleteLatestVersion(ctx context.Context, offerID string) error {
	return store.DeleteLatestVersion[model.Offer, model.OfferVersion](
		ctx, o.db.es, model.OfferAggregate, offerID)
}

func (o *OfferOps) Get(ctx context.Context, offerID string) (*model.Offer, error) {
	var row model.Offer
	if err := o.db.Tx().Get(ctx, model.TableOffers, offerID, &row); err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, err)
	}
	return &row, nil
}

func (o *OfferOps) CurrentVersion(ctx context.Context, offerID string) (*model.OfferVersion, error) {
	offer, err := o.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	var v model.OfferVersion
	if err := o.db.Tx().Get(ctx, model.TableOfferVersions, offer.CurrentVersionID, &v); err != nil {
		return nil, fmt.Errorf("offer %s version %s: %w", offerID, offer.CurrentVersionID, err)
	}
	return &v, nil
}
