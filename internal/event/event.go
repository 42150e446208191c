// Package event defines the wire format of the upstream block-sourcing
// streams and decodes raw messages into typed payloads. Each stream is a
// tagged union: a type discriminator selects the payload struct.
package event

import "time"

// TxRef identifies the blockchain transaction an event was emitted in.
type TxRef struct {
	TxHash      string `json:"txHash"`
	Sender      string `json:"sender"`
	BlockNumber int64  `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

// Delivery is what every decoded stream envelope exposes to the batch
// coordinator, independent of which stream it came from.
type Delivery interface {
	DeliveryOffset() uint64
	DeliveryTime() time.Time
	IsUndo() bool
}

// Head carries the fields shared by every stream envelope.
type Head struct {
	Undo      bool      `json:"undo"`
	Timestamp time.Time `json:"timestamp"`
	Offset    uint64    `json:"offset"`
}

func (h Head) DeliveryOffset() uint64  { return h.Offset }
func (h Head) DeliveryTime() time.Time { return h.Timestamp }
func (h Head) IsUndo() bool            { return h.Undo }
