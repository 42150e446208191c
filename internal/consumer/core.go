package consumer

import (
	"context"
	"fmt"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/state"
)

// CoreDispatcher applies the core Mangrove protocol stream of one chain.
type CoreDispatcher struct {
	chain  model.ChainID
	stream string
}

func NewCoreDispatcher(chain model.ChainID, stream string) *CoreDispatcher {
	return &CoreDispatcher{chain: chain, stream: stream}
}

func (d *CoreDispatcher) Stream() string { return d.stream }

func (d *CoreDispatcher) Decode(data []byte) (event.Delivery, error) {
	return event.DecodeCore(data)
}

func (d *CoreDispatcher) EventType(del event.Delivery) string {
	return typeName(del.(event.CoreEnvelope).Payload)
}

func (d *CoreDispatcher) Apply(ctx context.Context, db *state.DB, del event.Delivery) error {
	env := del.(event.CoreEnvelope)
	mangroveID := model.MangroveID(d.chain, env.MangroveID)

	txID := ""
	if !env.Undo {
		if env.Tx == nil {
			return fmt.Errorf("core event %s without transaction", typeName(env.Payload))
		}
		txRow, err := db.Refs.EnsureTransaction(ctx, d.chain, *env.Tx, env.Timestamp)
		if err != nil {
			return err
		}
		txID = txRow.ID
	}

	parentOrderID := ""
	if env.ParentOrder != nil {
		parentOrderID = model.OrderID(mangroveID, env.ParentOrder.OfferList, env.ParentOrder.ID)
	}

	switch p := env.Payload.(type) {
	case event.MangroveCreated:
		if env.Undo {
			return db.Mangroves.DeleteLatestVersion(ctx, mangroveID)
		}
		if err := db.Refs.EnsureChain(ctx, d.chain, p.ChainName); err != nil {
			return err
		}
		_, err := db.Mangroves.Create(ctx, d.chain, p.Address, txID)
		return err

	case event.MangroveParamsUpdated:
		if env.Undo {
			return db.Mangroves.DeleteLatestVersion(ctx, mangroveID)
		}
		return db.Mangroves.UpdateParams(ctx, mangroveID, txID, p.Params)

	case event.OfferListParamsUpdated:
		if env.Undo {
			return db.OfferLists.DeleteLatestVersion(ctx, mangroveID, p.OfferList)
		}
		return db.OfferLists.Update(ctx, mangroveID, p.OfferList, txID, p.Params)

	case event.OfferWritten:
		offerID := model.OfferID(mangroveID, p.OfferList.Normalized(), p.Offer.ID)
		if env.Undo {
			return db.Offers.DeleteLatestVersion(ctx, offerID)
		}
		_, err := db.Offers.Write(ctx, mangroveID, p.OfferList, txID, p.Maker, parentOrderID, p.Offer)
		return err

	case event.OfferRetracted:
		offerID := model.OfferID(mangroveID, p.OfferList.Normalized(), p.OfferID)
		if env.Undo {
			if err := db.Offers.DeleteLatestVersion(ctx, offerID); err != nil {
				return err
			}
			return db.MangroveOrders.DeleteLatestVersionByOffer(ctx, offerID)
		}
		if err := db.MangroveOrders.MarkCancelled(ctx, offerID, txID); err != nil {
			return err
		}
		_, err := db.Offers.MarkDeleted(ctx, offerID, txID)
		return err

	case event.MakerBalanceUpdated:
		if env.Undo {
			return db.MakerBalances.DeleteLatestVersion(ctx, mangroveID, p.Maker)
		}
		return db.MakerBalances.ApplyChange(ctx, mangroveID, p.Maker, txID, p.AmountChange)

	case event.TakerApprovalUpdated:
		if env.Undo {
			return db.TakerApprovals.DeleteLatestVersion(ctx, mangroveID, p.OfferList, p.Owner, p.Spender)
		}
		return db.TakerApprovals.Update(ctx, mangroveID, p.OfferList, txID, p.Owner, p.Spender, p.Amount, parentOrderID)

	case event.OrderCompleted:
		if env.Undo {
			return db.Orders.Undo(ctx, mangroveID, p.OfferList, p.ID)
		}
		return db.Orders.Create(ctx, mangroveID, p.OfferList, txID, parentOrderID, p)

	default:
		return fmt.Errorf("unhandled core event %T", env.Payload)
	}
}
