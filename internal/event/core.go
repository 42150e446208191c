package event

import (
	"encoding/json"
	"fmt"

	"MgvIndexer/internal/model"
)

// CoreEnvelope is one message from the core Mangrove protocol stream.
type CoreEnvelope struct {
	Head
	MangroveID  string       `json:"mangroveId"`
	Tx          *TxRef       `json:"tx,omitempty"`
	ParentOrder *ParentOrder `json:"parentOrder,omitempty"`
	Payload     CoreEvent
}

// ParentOrder links an event to the market order whose posthook emitted it.
type ParentOrder struct {
	ID        string             `json:"id"`
	OfferList model.OfferListKey `json:"offerList"`
}

// CoreEvent is the core stream's payload union.
type CoreEvent interface{ coreEvent() }

type MangroveCreated struct {
	Address     string `json:"address"`
	ChainlistID int    `json:"chainlistId"`
	ChainName   string `json:"chainName"`
}

type MangroveParamsUpdated struct {
	Params MangroveParams `json:"params"`
}

// MangroveParams carries only the governance parameters the transaction
// changed; absent fields leave the previous value in place.
type MangroveParams struct {
	Governance *string `json:"governance,omitempty"`
	Monitor    *string `json:"monitor,omitempty"`
	Vault      *string `json:"vault,omitempty"`
	UseOracle  *bool   `json:"useOracle,omitempty"`
	Notify     *bool   `json:"notify,omitempty"`
	Gasmax     *int64  `json:"gasmax,omitempty"`
	Gasprice   *int64  `json:"gasprice,omitempty"`
	Dead       *bool   `json:"dead,omitempty"`
}

type OfferListParamsUpdated struct {
	OfferList model.OfferListKey `json:"offerList"`
	Params    OfferListParams    `json:"params"`
}

type OfferListParams struct {
	Active  *bool   `json:"active,omitempty"`
	Fee     *string `json:"fee,omitempty"`
	Gasbase *int64  `json:"gasbase,omitempty"`
	Density *string `json:"density,omitempty"`
}

type OfferWritten struct {
	OfferList model.OfferListKey `json:"offerList"`
	Maker     string             `json:"maker"`
	Offer     WrittenOffer       `json:"offer"`
}

// WrittenOffer is the on-book state of the offer after the write. Prev is
// the offer number ahead of it in the book, 0 for the best offer.
type WrittenOffer struct {
	ID       int64  `json:"id"`
	Prev     int64  `json:"prev"`
	Wants    string `json:"wants"`
	Gives    string `json:"gives"`
	Gasprice int64  `json:"gasprice"`
	Gasreq   int64  `json:"gasreq"`
}

type OfferRetracted struct {
	OfferList model.OfferListKey `json:"offerList"`
	OfferID   int64              `json:"offerId"`
}

type MakerBalanceUpdated struct {
	Maker        string `json:"maker"`
	AmountChange string `json:"amountChange"`
}

type TakerApprovalUpdated struct {
	OfferList model.OfferListKey `json:"offerList"`
	Owner     string             `json:"owner"`
	Spender   string             `json:"spender"`
	Amount    string             `json:"amount"`
}

type OrderCompleted struct {
	ID        string             `json:"id"`
	OfferList model.OfferListKey `json:"offerList"`
	Order     CompletedOrder     `json:"order"`
}

type CompletedOrder struct {
	Taker       string           `json:"taker"`
	TakerGot    string           `json:"takerGot"`
	TakerGave   string           `json:"takerGave"`
	Penalty     string           `json:"penalty"`
	TakenOffers []TakenOfferSlip `json:"takenOffers"`
}

// TakenOfferSlip reports one offer's execution within a market order.
// TakerWants/TakerGives are the amounts actually moved against this offer.
type TakenOfferSlip struct {
	ID             int64  `json:"id"`
	TakerWants     string `json:"takerWants"`
	TakerGives     string `json:"takerGives"`
	FailReason     string `json:"failReason,omitempty"`
	PosthookData   string `json:"posthookData,omitempty"`
	PosthookFailed bool   `json:"posthookFailed"`
}

func (MangroveCreated) coreEvent()        {}
func (MangroveParamsUpdated) coreEvent()  {}
func (OfferListParamsUpdated) coreEvent() {}
func (OfferWritten) coreEvent()           {}
func (OfferRetracted) coreEvent()         {}
func (MakerBalanceUpdated) coreEvent()    {}
func (TakerApprovalUpdated) coreEvent()   {}
func (OrderCompleted) coreEvent()         {}

// DecodeCore parses one raw core stream message. Unknown types are an
// error; the producer and indexer must agree on the event set.
func DecodeCore(data []byte) (CoreEnvelope, error) {
	var wire struct {
		Head
		Type        string          `json:"type"`
		MangroveID  string          `json:"mangroveId"`
		Tx          *TxRef          `json:"tx"`
		ParentOrder *ParentOrder    `json:"parentOrder"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return CoreEnvelope{}, fmt.Errorf("decode core envelope: %w", err)
	}

	env := CoreEnvelope{
		Head:        wire.Head,
		MangroveID:  wire.MangroveID,
		Tx:          wire.Tx,
		ParentOrder: wire.ParentOrder,
	}

	var err error
	switch wire.Type {
	case "MangroveCreated":
		env.Payload, err = decodePayload[MangroveCreated](wire.Payload)
	case "MangroveParamsUpdated":
		env.Payload, err = decodePayload[MangroveParamsUpdated](wire.Payload)
	case "OfferListParamsUpdated":
		env.Payload, err = decodePayload[OfferListParamsUpdated](wire.Payload)
	case "OfferWritten":
		env.Payload, err = decodePayload[OfferWritten](wire.Payload)
	case "OfferRetracted":
		env.Payload, err = decodePayload[OfferRetracted](wire.Payload)
	case "MakerBalanceUpdated":
		env.Payload, err = decodePayload[MakerBalanceUpdated](wire.Payload)
	case "TakerApprovalUpdated":
		env.Payload, err = decodePayload[TakerApprovalUpdated](wire.Payload)
	case "OrderCompleted":
		env.Payload, err = decodePayload[OrderCompleted](wire.Payload)
	default:
		return CoreEnvelope{}, fmt.Errorf("unknown core event type %q", wire.Type)
	}
	if err != nil {
		return CoreEnvelope{}, fmt.Errorf("decode core %s: %w", wire.Type, err)
	}
	return env, nil
}

func decodePayload[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
