package consumer

import (
	"context"
	"fmt"
	"strings"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/state"
)

// StrategyDispatcher applies the mangrove-order strategy stream of one
// chain. Events referencing an excluded Mangrove deployment (stale test
// deployments sharing the stream) are dropped.
type StrategyDispatcher struct {
	chain    model.ChainID
	stream   string
	excluded map[string]bool
}

func NewStrategyDispatcher(chain model.ChainID, stream string, excludeMangroves []string) *StrategyDispatcher {
	excluded := make(map[string]bool, len(excludeMangroves))
	for _, m := range excludeMangroves {
		excluded[strings.ToLower(m)] = true
	}
	return &StrategyDispatcher{chain: chain, stream: stream, excluded: excluded}
}

func (d *StrategyDispatcher) Stream() string { return d.stream }

func (d *StrategyDispatcher) Decode(data []byte) (event.Delivery, error) {
	return event.DecodeStrategy(data)
}

func (d *StrategyDispatcher) EventType(del event.Delivery) string {
	return typeName(del.(event.StrategyEnvelope).Payload)
}

func (d *StrategyDispatcher) Apply(ctx context.Context, db *state.DB, del event.Delivery) error {
	env := del.(event.StrategyEnvelope)

	switch p := env.Payload.(type) {
	case event.OrderSummary:
		if d.excluded[strings.ToLower(p.Mangrove)] {
			return nil
		}
		mangroveID := model.MangroveID(d.chain, p.Mangrove)
		key := model.OfferListKey{OutboundToken: p.OutboundToken, InboundToken: p.InboundToken}
		if env.Undo {
			return db.MangroveOrders.Delete(ctx, mangroveID, key, p.ID)
		}
		txRow, err := db.Refs.EnsureTransaction(ctx, d.chain, env.Tx, env.Timestamp)
		if err != nil {
			return err
		}
		return db.MangroveOrders.Create(ctx, mangroveID, key, txRow.ID, p)

	case event.SetExpiry:
		if d.excluded[strings.ToLower(p.Mangrove)] {
			return nil
		}
		mangroveID := model.MangroveID(d.chain, p.Mangrove)
		key := model.OfferListKey{OutboundToken: p.OutboundToken, InboundToken: p.InboundToken}
		offerID := model.OfferID(mangroveID, key.Normalized(), p.OfferID)
		if env.Undo {
			return db.MangroveOrders.DeleteLatestVersionByOffer(ctx, offerID)
		}
		txRow, err := db.Refs.EnsureTransaction(ctx, d.chain, env.Tx, env.Timestamp)
		if err != nil {
			return err
		}
		return db.MangroveOrders.SetExpiry(ctx, offerID, txRow.ID, p.Date)

	default:
		return fmt.Errorf("unhandled strategy event %T", env.Payload)
	}
}
