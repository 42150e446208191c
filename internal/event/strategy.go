package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// StrategyEnvelope is one message from a mangrove-order strategy stream.
type StrategyEnvelope struct {
	Head
	ChainID int    `json:"chainId"`
	Address string `json:"address"`
	Tx      TxRef  `json:"tx"`
	Payload StrategyEvent
}

type StrategyEvent interface{ strategyEvent() }

// OrderSummary is emitted when the strategy contract finishes routing a
// market order, possibly leaving a resting offer on the book. Amounts are
// raw base-unit strings.
type OrderSummary struct {
	ID             string    `json:"id"`
	Mangrove       string    `json:"mangrove"`
	OutboundToken  string    `json:"outboundToken"`
	InboundToken   string    `json:"inboundToken"`
	Taker          string    `json:"taker"`
	FillOrKill     bool      `json:"fillOrKill"`
	FillWants      bool      `json:"fillWants"`
	TakerWants     string    `json:"takerWants"`
	TakerGives     string    `json:"takerGives"`
	TakerGot       string    `json:"takerGot"`
	TakerGave      string    `json:"takerGave"`
	Fee            string    `json:"fee"`
	Bounty         string    `json:"bounty"`
	RestingOrder   bool      `json:"restingOrder"`
	RestingOrderID int64     `json:"restingOrderId"`
	ExpiryDate     time.Time `json:"expiryDate"`
}

// SetExpiry updates the expiry of an existing resting order's offer.
type SetExpiry struct {
	Mangrove      string    `json:"mangrove"`
	OutboundToken string    `json:"outboundToken"`
	InboundToken  string    `json:"inboundToken"`
	OfferID       int64     `json:"offerId"`
	Date          time.Time `json:"date"`
}

func (OrderSummary) strategyEvent() {}
func (SetExpiry) strategyEvent()    {}

func DecodeStrategy(data []byte) (StrategyEnvelope, error) {
	var wire struct {
		Head
		Type    string          `json:"type"`
		ChainID int             `json:"chainId"`
		Address string          `json:"address"`
		Tx      TxRef           `json:"tx"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return StrategyEnvelope{}, fmt.Errorf("decode strategy envelope: %w", err)
	}

	env := StrategyEnvelope{
		Head:    wire.Head,
		ChainID: wire.ChainID,
		Address: wire.Address,
		Tx:      wire.Tx,
	}

	var err error
	switch wire.Type {
	case "OrderSummary":
		env.Payload, err = decodePayload[OrderSummary](wire.Payload)
	case "SetExpiry":
		env.Payload, err = decodePayload[SetExpiry](wire.Payload)
	default:
		return StrategyEnvelope{}, fmt.Errorf("unknown strategy event type %q", wire.Type)
	}
	if err != nil {
		return StrategyEnvelope{}, fmt.Errorf("decode strategy %s: %w", wire.Type, err)
	}
	return env, nil
}
