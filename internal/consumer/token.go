package consumer

import (
	"context"
	"fmt"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/state"
)

// TokenDispatcher applies the token discovery stream of one chain.
type TokenDispatcher struct {
	chain     model.ChainID
	chainName string
	stream    string
}

func NewTokenDispatcher(chain model.ChainID, chainName, stream string) *TokenDispatcher {
	return &TokenDispatcher{chain: chain, chainName: chainName, stream: stream}
}

func (d *TokenDispatcher) Stream() string { return d.stream }

func (d *TokenDispatcher) Decode(data []byte) (event.Delivery, error) {
	return event.DecodeToken(data)
}

func (d *TokenDispatcher) EventType(del event.Delivery) string {
	return typeName(del.(event.TokenEnvelope).Payload)
}

func (d *TokenDispatcher) Apply(ctx context.Context, db *state.DB, del event.Delivery) error {
	env := del.(event.TokenEnvelope)

	switch p := env.Payload.(type) {
	case event.NewToken:
		// Token metadata is immutable; the undo of a sighting keeps the
		// row, and redelivery after the undo recreates it identically.
		if env.Undo {
			return nil
		}
		if err := db.Refs.EnsureChain(ctx, d.chain, d.chainName); err != nil {
			return err
		}
		return db.Refs.CreateToken(ctx, d.chain, p.Address, p.Symbol, p.Name, p.Decimals)

	default:
		return fmt.Errorf("unhandled token event %T", env.Payload)
	}
}
