package model

import (
	"strconv"
	"strings"
)

// ChainID is a chainlist network id (e.g. 80001 for Mumbai).
type ChainID int

func (c ChainID) String() string { return strconv.Itoa(int(c)) }

// All derived ids are deterministic functions of semantic keys so that
// replaying the same event stream reproduces byte-identical rows. Addresses
// and hashes are lowercased before use; two casings of one address must
// never yield two identities.

func AccountID(chain ChainID, address string) string {
	return c(chain.String(), strings.ToLower(address))
}

func TokenID(chain ChainID, address string) string {
	return c(chain.String(), strings.ToLower(address))
}

func TransactionID(chain ChainID, txHash string) string {
	return c(chain.String(), strings.ToLower(txHash))
}

func MangroveID(chain ChainID, address string) string {
	return c(chain.String(), strings.ToLower(address))
}

// OfferListKey identifies an order book within a Mangrove instance by its
// outbound/inbound token address pair.
type OfferListKey struct {
	OutboundToken string `json:"outboundToken"`
	InboundToken  string `json:"inboundToken"`
}

func (k OfferListKey) Normalized() OfferListKey {
	return OfferListKey{
		OutboundToken: strings.ToLower(k.OutboundToken),
		InboundToken:  strings.ToLower(k.InboundToken),
	}
}

func (k OfferListKey) String() string {
	n := k.Normalized()
	return c(n.OutboundToken, n.InboundToken)
}

func OfferListID(mangroveID string, key OfferListKey) string {
	return c(mangroveID, key.String())
}

func OfferID(mangroveID string, key OfferListKey, offerNumber int64) string {
	return c(mangroveID, key.String(), strconv.FormatInt(offerNumber, 10))
}

func OrderID(mangroveID string, key OfferListKey, upstreamID string) string {
	return c(mangroveID, key.String(), upstreamID)
}

func TakenOfferID(orderID string, offerNumber int64) string {
	return c(orderID, strconv.FormatInt(offerNumber, 10))
}

func MakerBalanceID(mangroveID, makerAddress string) string {
	return c(mangroveID, strings.ToLower(makerAddress))
}

func TakerApprovalID(mangroveID string, key OfferListKey, owner, spender string) string {
	return c(mangroveID, key.String(), strings.ToLower(owner), strings.ToLower(spender))
}

// MangroveOrderID is positional: the same triple always names the same
// resting order regardless of which stream mentions it first.
func MangroveOrderID(mangroveID string, key OfferListKey, orderSummaryID string) string {
	return c(mangroveID, key.String(), orderSummaryID)
}

func KandelID(chain ChainID, address string) string {
	return c(chain.String(), strings.ToLower(address))
}

// TokenBalanceID is scoped per stream: each strategy stream tracks the
// reserves it observes independently.
func TokenBalanceID(accountID, tokenID, stream string) string {
	return c(accountID, tokenID, stream)
}

func KandelOfferIndexID(kandelID, offerID, ba string) string {
	return c(kandelID, offerID, ba)
}

func c(parts ...string) string { return strings.Join(parts, "-") }
