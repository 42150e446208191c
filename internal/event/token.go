package event

import (
	"encoding/json"
	"fmt"
)

// TokenEnvelope is one message from the token discovery stream.
type TokenEnvelope struct {
	Head
	ChainID int `json:"chainId"`
	Payload TokenEvent
}

type TokenEvent interface{ tokenEvent() }

// NewToken announces an ERC-20 contract seen for the first time.
type NewToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

func (NewToken) tokenEvent() {}

func DecodeToken(data []byte) (TokenEnvelope, error) {
	var wire struct {
		Head
		Type    string          `json:"type"`
		ChainID int             `json:"chainId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return TokenEnvelope{}, fmt.Errorf("decode token envelope: %w", err)
	}

	env := TokenEnvelope{Head: wire.Head, ChainID: wire.ChainID}

	var err error
	switch wire.Type {
	case "NewToken":
		env.Payload, err = decodePayload[NewToken](wire.Payload)
	default:
		return TokenEnvelope{}, fmt.Errorf("unknown token event type %q", wire.Type)
	}
	if err != nil {
		return TokenEnvelope{}, fmt.Errorf("decode token %s: %w", wire.Type, err)
	}
	return env, nil
}
