package event

import (
	"encoding/json"
	"fmt"
)

// KandelEnvelope is one message from a kandel strategy stream.
type KandelEnvelope struct {
	Head
	ChainID int    `json:"chainId"`
	Address string `json:"address"`
	Tx      TxRef  `json:"tx"`
	Payload KandelEvent
}

type KandelEvent interface{ kandelEvent() }

type NewKandel struct {
	Mangrove string `json:"mangrove"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	Owner    string `json:"owner"`
}

// NewAaveKandel deploys a kandel whose reserve is held on Aave rather than
// in the contract itself.
type NewAaveKandel struct {
	Mangrove string `json:"mangrove"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	Owner    string `json:"owner"`
	Reserve  string `json:"reserve"`
}

// SetParams carries exactly one changed parameter group per event.
type SetParams struct {
	Admin        *string              `json:"admin,omitempty"`
	Router       *string              `json:"router,omitempty"`
	GasReq       *string              `json:"gasReq,omitempty"`
	GasPrice     *string              `json:"gasPrice,omitempty"`
	Length       *int64               `json:"length,omitempty"`
	CompoundRate *CompoundRateParams  `json:"compoundRate,omitempty"`
	Geometric    *GeometricParams     `json:"geometric,omitempty"`
}

type CompoundRateParams struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type GeometricParams struct {
	Ratio  string `json:"ratio"`
	Spread string `json:"spread"`
}

// Debit is a withdrawal from the kandel's reserve.
type Debit struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Credit is a deposit into the kandel's reserve.
type Credit struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type Populate struct {
	Offers []PopulatedOffer `json:"offers"`
}

type PopulatedOffer struct {
	OfferID int64  `json:"offerId"`
	Index   int    `json:"index"`
	Gives   string `json:"gives"`
	BA      string `json:"ba"`
}

type Retract struct {
	Offers []RetractedOffer `json:"offers"`
}

type RetractedOffer struct {
	OfferID int64 `json:"offerId"`
	Index   int   `json:"index"`
	BA      string `json:"ba"`
}

// SetIndexMapping binds or unbinds one offer to a price point index.
// An OfferID of 0 clears the binding at Index.
type SetIndexMapping struct {
	BA      string `json:"ba"`
	Index   int    `json:"index"`
	OfferID int64  `json:"offerId"`
}

func (NewKandel) kandelEvent()       {}
func (NewAaveKandel) kandelEvent()   {}
func (SetParams) kandelEvent()       {}
func (Debit) kandelEvent()           {}
func (Credit) kandelEvent()          {}
func (Populate) kandelEvent()        {}
func (Retract) kandelEvent()         {}
func (SetIndexMapping) kandelEvent() {}

func DecodeKandel(data []byte) (KandelEnvelope, error) {
	var wire struct {
		Head
		Type    string          `json:"type"`
		ChainID int             `json:"chainId"`
		Address string          `json:"address"`
		Tx      TxRef           `json:"tx"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return KandelEnvelope{}, fmt.Errorf("decode kandel envelope: %w", err)
	}

	env := KandelEnvelope{
		Head:    wire.Head,
		ChainID: wire.ChainID,
		Address: wire.Address,
		Tx:      wire.Tx,
	}

	var err error
	switch wire.Type {
	case "NewKandel":
		env.Payload, err = decodePayload[NewKandel](wire.Payload)
	case "NewAaveKandel":
		env.Payload, err = decodePayload[NewAaveKandel](wire.Payload)
	case "SetParams":
		env.Payload, err = decodePayload[SetParams](wire.Payload)
	case "Debit":
		env.Payload, err = decodePayload[Debit](wire.Payload)
	case "Credit":
		env.Payload, err = decodePayload[Credit](wire.Payload)
	case "Populate":
		env.Payload, err = decodePayload[Populate](wire.Payload)
	case "Retract":
		env.Payload, err = decodePayload[Retract](wire.Payload)
	case "SetIndexMapping":
		env.Payload, err = decodePayload[SetIndexMapping](wire.Payload)
	default:
		return KandelEnvelope{}, fmt.Errorf("unknown kandel event type %q", wire.Type)
	}
	if err != nil {
		return KandelEnvelope{}, fmt.Errorf("decode kandel %s: %w", wire.Type, err)
	}
	return env, nil
}
