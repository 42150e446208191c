package state

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// feeDecimals scales the raw fee parameter (given in basis points) to a
// fraction of the outbound amount.
const feeDecimals = 4

// OfferListOps maintains order books and their parameter versions.
type OfferListOps struct {
	db *DB
}

// Update appends a parameter version, creating the offer list on first
// sight. The containing Mangrove must already exist; its chain id derives
// the token identities.
func (o *OfferListOps) Update(ctx context.Context, mangroveID string, key model.OfferListKey, txID string, p event.OfferListParams) error {
	key = key.Normalized()
	id := model.OfferListID(mangroveID, key)

	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return err
	}
	chain := model.ChainID(mgv.ChainID)

	initial := &model.OfferList{
		EntityBase:      store.EntityBase{ID: id},
		MangroveID:      mangroveID,
		OutboundTokenID: model.TokenID(chain, key.OutboundToken),
		InboundTokenID:  model.TokenID(chain, key.InboundToken),
	}
	_, err = store.AddVersion[model.OfferList, model.OfferListVersion](
		ctx, o.db.es, model.OfferListAggregate, id, txID, initial,
		func(v *model.OfferListVersion) {
			if p.Active != nil {
				v.Active = p.Active
			}
			if p.Fee != nil {
				v.Fee = p.Fee
			}
			if p.Gasbase != nil {
				v.Gasbase = p.Gasbase
			}
			if p.Density != nil {
				v.Density = p.Density
			}
		})
	return err
}

func (o *OfferListOps) DeleteLatestVersion(ctx context.Context, mangroveID string, key model.OfferListKey) error {
	return store.DeleteLatestVersion[model.OfferList, model.OfferListVersion](
		ctx, o.db.es, model.OfferListAggregate, model.OfferListID(mangroveID, key.Normalized()))
}

func (o *OfferListOps) Get(ctx context.Context, offerListID string) (*model.OfferList, error) {
	var row model.OfferList
	if err := o.db.Tx().Get(ctx, model.TableOfferLists, offerListID, &row); err != nil {
		return nil, fmt.Errorf("offer list %s: %w", offerListID, err)
	}
	return &row, nil
}

func (o *OfferListOps) CurrentVersion(ctx context.Context, offerListID string) (*model.OfferListVersion, error) {
	list, err := o.Get(ctx, offerListID)
	if err != nil {
		return nil, err
	}
	var v model.OfferListVersion
	if err := o.db.Tx().Get(ctx, model.TableOfferListVersions, list.CurrentVersionID, &v); err != nil {
		return nil, fmt.Errorf("offer list %s version %s: %w", offerListID, list.CurrentVersionID, err)
	}
	return &v, nil
}

// Tokens resolves the outbound and inbound token rows of an offer list.
func (o *OfferListOps) Tokens(ctx context.Context, offerListID string) (outbound, inbound *model.Token, err error) {
	list, err := o.Get(ctx, offerListID)
	if err != nil {
		return nil, nil, err
	}
	if outbound, err = o.db.Refs.Token(ctx, list.OutboundTokenID); err != nil {
		return nil, nil, err
	}
	if inbound, err = o.db.Refs.Token(ctx, list.InboundTokenID); err != nil {
		return nil, nil, err
	}
	return outbound, inbound, nil
}

// FeeForTakenOffer computes the fee accrued on one taken offer: the offer
// list's current fee fraction times the scaled taker-got amount. An offer
// list without a fee parameter charges nothing.
func (o *OfferListOps) FeeForTakenOffer(ctx context.Context, offerListID, takerGotRaw string) (decimal.Decimal, error) {
	v, err := o.CurrentVersion(ctx, offerListID)
	if err != nil {
		return decimal.Zero, err
	}
	outbound, _, err := o.Tokens(ctx, offerListID)
	if err != nil {
		return decimal.Zero, err
	}

	fee := "0"
	if v.Fee != nil {
		fee = *v.Fee
	}
	feeFraction, err := num.Scale(fee, feeDecimals)
	if err != nil {
		return decimal.Zero, err
	}
	got, err := num.Scale(takerGotRaw, outbound.Decimals)
	if err != nil {
		return decimal.Zero, err
	}
	return feeFraction.Mul(got), nil
}
