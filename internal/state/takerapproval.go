package state

import (
	"context"

	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
)

// TakerApprovalOps tracks how much of the inbound token an owner lets
// Mangrove spend on a given order book, per spender.
type TakerApprovalOps struct {
	db *DB
}

// Update appends a version with the new approved amount (raw base units).
func (o *TakerApprovalOps) Update(ctx context.Context, mangroveID string, key model.OfferListKey, txID, owner, spender, amount, parentOrderID string) error {
	key = key.Normalized()
	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return err
	}
	chain := model.ChainID(mgv.ChainID)

	ownerID, err := o.db.Refs.EnsureAccount(ctx, chain, owner)
	if err != nil {
		return err
	}
	spenderID, err := o.db.Refs.EnsureAccount(ctx, chain, spender)
	if err != nil {
		return err
	}

	id := model.TakerApprovalID(mangroveID, key, owner, spender)
	initial := &model.TakerApproval{
		EntityBase:  store.EntityBase{ID: id},
		MangroveID:  mangroveID,
		OfferListID: model.OfferListID(mangroveID, key),
		OwnerID:     ownerID,
		SpenderID:   spenderID,
	}
	_, err = store.AddVersion[model.TakerApproval, model.TakerApprovalVersion](
		ctx, o.db.es, model.TakerApprovalAggregate, id, txID, initial,
		func(v *model.TakerApprovalVersion) {
			v.Value = amount
			v.ParentOrderID = parentOrderID
		})
	return err
}

func (o *TakerApprovalOps) DeleteLatestVersion(ctx context.Context, mangroveID string, key model.OfferListKey, owner, spender string) error {
	return store.DeleteLatestVersion[model.TakerApproval, model.TakerApprovalVersion](
		ctx, o.db.es, model.TakerApprovalAggregate, model.TakerApprovalID(mangroveID, key.Normalized(), owner, spender))
}
