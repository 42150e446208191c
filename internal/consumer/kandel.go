package consumer

import (
	"context"
	"fmt"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/state"
)

// KandelDispatcher applies the kandel strategy stream of one chain. The
// stream references offers and transactions produced by the core stream, so
// its coordinator runs behind the chain head barrier.
type KandelDispatcher struct {
	chain  model.ChainID
	stream string
}

func NewKandelDispatcher(chain model.ChainID, stream string) *KandelDispatcher {
	return &KandelDispatcher{chain: chain, stream: stream}
}

func (d *KandelDispatcher) Stream() string { return d.stream }

func (d *KandelDispatcher) Decode(data []byte) (event.Delivery, error) {
	return event.DecodeKandel(data)
}

func (d *KandelDispatcher) EventType(del event.Delivery) string {
	return typeName(del.(event.KandelEnvelope).Payload)
}

func (d *KandelDispatcher) Apply(ctx context.Context, db *state.DB, del event.Delivery) error {
	env := del.(event.KandelEnvelope)
	kandelID := model.KandelID(d.chain, env.Address)

	txID := ""
	if !env.Undo {
		txRow, err := db.Refs.EnsureTransaction(ctx, d.chain, env.Tx, env.Timestamp)
		if err != nil {
			return err
		}
		txID = txRow.ID
	}

	switch p := env.Payload.(type) {
	case event.NewKandel:
		if env.Undo {
			return db.Kandels.DeleteLatestVersion(ctx, kandelID)
		}
		return db.Kandels.Create(ctx, d.chain, env.Address, txID, p.Mangrove, p.Base, p.Quote, p.Owner, "", "Kandel")

	case event.NewAaveKandel:
		if env.Undo {
			return db.Kandels.DeleteLatestVersion(ctx, kandelID)
		}
		return db.Kandels.Create(ctx, d.chain, env.Address, txID, p.Mangrove, p.Base, p.Quote, p.Owner, p.Reserve, "AaveKandel")

	case event.SetParams:
		if env.Undo {
			return db.Kandels.DeleteLatestVersion(ctx, kandelID)
		}
		return db.Kandels.SetParams(ctx, kandelID, txID, d.chain, p)

	case event.Debit:
		if env.Undo {
			return db.Kandels.UndoBalanceChange(ctx, kandelID, d.chain, p.Token)
		}
		return db.Kandels.ApplyBalanceChange(ctx, kandelID, txID, d.chain, p.Token, p.Amount, state.TriggerDebit)

	case event.Credit:
		if env.Undo {
			return db.Kandels.UndoBalanceChange(ctx, kandelID, d.chain, p.Token)
		}
		return db.Kandels.ApplyBalanceChange(ctx, kandelID, txID, d.chain, p.Token, p.Amount, state.TriggerCredit)

	case event.Populate:
		if env.Undo {
			return db.Kandels.DeleteLatestVersion(ctx, kandelID)
		}
		return db.Kandels.Populate(ctx, kandelID, txID, d.chain, p)

	case event.Retract:
		if env.Undo {
			return db.Kandels.DeleteLatestVersion(ctx, kandelID)
		}
		return db.Kandels.Retract(ctx, kandelID, txID, d.chain, p)

	case event.SetIndexMapping:
		if env.Undo {
			return db.Kandels.UnsetIndexMapping(ctx, kandelID, d.chain, p)
		}
		return db.Kandels.SetIndexMapping(ctx, kandelID, txID, d.chain, p)

	default:
		return fmt.Errorf("unhandled kandel event %T", env.Payload)
	}
}
