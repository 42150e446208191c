package model

import (
	"time"

	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// Reference rows. These are created on first sight and never versioned.

type Chain struct {
	ID          string `json:"id"`
	ChainlistID int    `json:"chainlistId"`
	Name        string `json:"name"`
}

func (r *Chain) PK() string { return r.ID }

type Account struct {
	ID      string `json:"id"`
	ChainID int    `json:"chainId"`
	Address string `json:"address"`
}

func (r *Account) PK() string { return r.ID }

type Token struct {
	ID       string `json:"id"`
	ChainID  int    `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

func (r *Token) PK() string { return r.ID }

type Transaction struct {
	ID          string    `json:"id"`
	ChainID     int       `json:"chainId"`
	TxHash      string    `json:"txHash"`
	From        string    `json:"from"`
	BlockNumber int64     `json:"blockNumber"`
	BlockHash   string    `json:"blockHash"`
	Time        time.Time `json:"time"`
}

func (r *Transaction) PK() string { return r.ID }

// Mangrove instance. Params arrive incrementally, so every field of the
// version is nullable until first set.

type Mangrove struct {
	store.EntityBase
	ChainID int    `json:"chainId"`
	Address string `json:"address"`
}

type MangroveVersion struct {
	store.VersionMeta
	Governance *string `json:"governance,omitempty"`
	Monitor    *string `json:"monitor,omitempty"`
	Vault      *string `json:"vault,omitempty"`
	UseOracle  *bool   `json:"useOracle,omitempty"`
	Notify     *bool   `json:"notify,omitempty"`
	Gasmax     *int64  `json:"gasmax,omitempty"`
	Gasprice   *int64  `json:"gasprice,omitempty"`
	Dead       *bool   `json:"dead,omitempty"`
}

type OfferList struct {
	store.EntityBase
	MangroveID      string `json:"mangroveId"`
	OutboundTokenID string `json:"outboundTokenId"`
	InboundTokenID  string `json:"inboundTokenId"`
}

type OfferListVersion struct {
	store.VersionMeta
	Active  *bool   `json:"active,omitempty"`
	Fee     *string `json:"fee,omitempty"`
	Gasbase *int64  `json:"gasbase,omitempty"`
	Density *string `json:"density,omitempty"`
}

type Offer struct {
	store.EntityBase
	MangroveID  string `json:"mangroveId"`
	OfferListID string `json:"offerListId"`
	OfferNumber int64  `json:"offerNumber"`
	MakerID     string `json:"makerId"`
}

type OfferVersion struct {
	store.VersionMeta
	ParentOrderID  string    `json:"parentOrderId,omitempty"`
	PrevOfferID    string    `json:"prevOfferId,omitempty"`
	Wants          string    `json:"wants"`
	WantsNumber    float64   `json:"wantsNumber"`
	Gives          string    `json:"gives"`
	GivesNumber    float64   `json:"givesNumber"`
	TakerPaysPrice num.Float `json:"takerPaysPrice"`
	MakerPaysPrice num.Float `json:"makerPaysPrice"`
	Gasprice       int64     `json:"gasprice"`
	Gasreq         int64     `json:"gasreq"`
	Live           bool      `json:"live"`
	Deprovisioned  bool      `json:"deprovisioned"`
	Deleted        bool      `json:"deleted"`
}

// Order is a completed market order. Orders are immutable; undo removes the
// whole row together with its taken offers.

type Order struct {
	ID             string    `json:"id"`
	TxID           string    `json:"txId"`
	ParentOrderID  string    `json:"parentOrderId,omitempty"`
	MangroveID     string    `json:"mangroveId"`
	OfferListID    string    `json:"offerListId"`
	TakerID        string    `json:"takerId"`
	TakerGot       string    `json:"takerGot"`
	TakerGotNumber float64   `json:"takerGotNumber"`
	TakerGave      string    `json:"takerGave"`
	TakerGaveNumber float64  `json:"takerGaveNumber"`
	TakerPaidPrice num.Float `json:"takerPaidPrice"`
	MakerPaidPrice num.Float `json:"makerPaidPrice"`
	Bounty         string    `json:"bounty"`
	BountyNumber   float64   `json:"bountyNumber"`
	TakenOfferIDs  []string  `json:"takenOfferIds"`
}

func (r *Order) PK() string { return r.ID }

type TakenOffer struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId"`
	OfferVersionID  string    `json:"offerVersionId"`
	TakerGot        string    `json:"takerGot"`
	TakerGotNumber  float64   `json:"takerGotNumber"`
	TakerGave       string    `json:"takerGave"`
	TakerGaveNumber float64   `json:"takerGaveNumber"`
	TakerPaidPrice  num.Float `json:"takerPaidPrice"`
	MakerPaidPrice  num.Float `json:"makerPaidPrice"`
	FailReason      string    `json:"failReason,omitempty"`
	PosthookData    string    `json:"posthookData,omitempty"`
	PosthookFailed  bool      `json:"posthookFailed"`
}

func (r *TakenOffer) PK() string { return r.ID }

type MakerBalance struct {
	store.EntityBase
	MangroveID string `json:"mangroveId"`
	MakerID    string `json:"makerId"`
}

type MakerBalanceVersion struct {
	store.VersionMeta
	Balance string `json:"balance"`
}

type TakerApproval struct {
	store.EntityBase
	MangroveID  string `json:"mangroveId"`
	OfferListID string `json:"offerListId"`
	OwnerID     string `json:"ownerId"`
	SpenderID   string `json:"spenderId"`
}

type TakerApprovalVersion struct {
	store.VersionMeta
	ParentOrderID string `json:"parentOrderId,omitempty"`
	Value         string `json:"value"`
}

// MangroveOrder is a resting limit order managed by the order strategy
// contract. Amounts on the entity and its versions are human-scaled.

type MangroveOrder struct {
	store.EntityBase
	MangroveID       string  `json:"mangroveId"`
	OfferListID      string  `json:"offerListId"`
	TakerID          string  `json:"takerId"`
	RestingOrderID   string  `json:"restingOrderId,omitempty"`
	FillOrKill       bool    `json:"fillOrKill"`
	FillWants        bool    `json:"fillWants"`
	RestingOrder     bool    `json:"restingOrder"`
	TakerWants       string  `json:"takerWants"`
	TakerWantsNumber float64 `json:"takerWantsNumber"`
	TakerGives       string  `json:"takerGives"`
	TakerGivesNumber float64 `json:"takerGivesNumber"`
	Bounty           string  `json:"bounty"`
	BountyNumber     float64 `json:"bountyNumber"`
}

type MangroveOrderVersion struct {
	store.VersionMeta
	Filled          bool      `json:"filled"`
	Cancelled       bool      `json:"cancelled"`
	Failed          bool      `json:"failed"`
	FailedReason    string    `json:"failedReason,omitempty"`
	TakerGot        string    `json:"takerGot"`
	TakerGotNumber  float64   `json:"takerGotNumber"`
	TakerGave       string    `json:"takerGave"`
	TakerGaveNumber float64   `json:"takerGaveNumber"`
	TotalFee        string    `json:"totalFee"`
	TotalFeeNumber  float64   `json:"totalFeeNumber"`
	Price           num.Float `json:"price"`
	ExpiryDate      time.Time `json:"expiryDate,omitempty"`
}

// Kandel market making strategy instance.

type Kandel struct {
	store.EntityBase
	MangroveID   string `json:"mangroveId"`
	BaseTokenID  string `json:"baseTokenId"`
	QuoteTokenID string `json:"quoteTokenId"`
	ReserveID    string `json:"reserveId"`
	Type         string `json:"type"`
}

type KandelVersion struct {
	store.VersionMeta
	AdminID         string `json:"adminId"`
	RouterAddress   string `json:"routerAddress,omitempty"`
	ConfigurationID string `json:"configurationId"`
	Trigger         string `json:"trigger"`
}

// KandelConfiguration rows are immutable; a config change writes a new row
// and points the new kandel version at it.
type KandelConfiguration struct {
	ID                string `json:"id"`
	Ratio             string `json:"ratio"`
	Spread            string `json:"spread"`
	GasPrice          string `json:"gasPrice"`
	GasReq            string `json:"gasReq"`
	CompoundRateBase  string `json:"compoundRateBase"`
	CompoundRateQuote string `json:"compoundRateQuote"`
	Length            int64  `json:"length"`
}

func (r *KandelConfiguration) PK() string { return r.ID }

// KandelEvent is the audit record for a kandel parameter change or
// population event. Exactly one of the sub-event pointers is set.
type KandelEvent struct {
	ID              string                     `json:"id"`
	KandelID        string                     `json:"kandelId"`
	KandelVersionID string                     `json:"kandelVersionId"`
	TxID            string                     `json:"txId"`
	Admin           *KandelAdminEvent          `json:"admin,omitempty"`
	Router          *KandelRouterEvent         `json:"router,omitempty"`
	GasReq          *KandelGasReqEvent         `json:"gasReq,omitempty"`
	GasPrice        *KandelGasPriceEvent       `json:"gasPrice,omitempty"`
	Length          *KandelLengthEvent         `json:"length,omitempty"`
	CompoundRate    *KandelCompoundRateEvent   `json:"compoundRate,omitempty"`
	Geometric       *KandelGeometricParamsEvent `json:"geometric,omitempty"`
	Populate        *KandelPopulateEvent       `json:"populate,omitempty"`
	Retract         *KandelRetractEvent        `json:"retract,omitempty"`
}

func (r *KandelEvent) PK() string { return r.ID }

type KandelAdminEvent struct {
	Admin string `json:"admin"`
}

type KandelRouterEvent struct {
	Router string `json:"router"`
}

type KandelGasReqEvent struct {
	GasReq string `json:"gasReq"`
}

type KandelGasPriceEvent struct {
	GasPrice string `json:"gasPrice"`
}

type KandelLengthEvent struct {
	Length int64 `json:"length"`
}

type KandelCompoundRateEvent struct {
	CompoundRateBase  string `json:"compoundRateBase"`
	CompoundRateQuote string `json:"compoundRateQuote"`
}

type KandelGeometricParamsEvent struct {
	Ratio  string `json:"ratio"`
	Spread string `json:"spread"`
}

type KandelPopulateEvent struct {
	Offers []KandelEventOffer `json:"offers"`
}

type KandelRetractEvent struct {
	Offers []KandelEventOffer `json:"offers"`
}

type KandelEventOffer struct {
	OfferID string `json:"offerId"`
	Index   int    `json:"index"`
	Gives   string `json:"gives,omitempty"`
	BA      string `json:"ba"`
}

// KandelOfferIndex maps a kandel price point index to an offer, per side.
type KandelOfferIndex struct {
	ID      string `json:"id"`
	KandelID string `json:"kandelId"`
	OfferID string `json:"offerId"`
	TxID    string `json:"txId"`
	Index   int    `json:"index"`
	BA      string `json:"ba"`
}

func (r *KandelOfferIndex) PK() string { return r.ID }

// TokenBalance tracks a reserve account's holdings of one token as seen by
// one strategy stream. All amounts are raw base-unit strings.

type TokenBalance struct {
	store.EntityBase
	AccountID string `json:"accountId"`
	TokenID   string `json:"tokenId"`
	Stream    string `json:"stream"`
}

type TokenBalanceVersion struct {
	store.VersionMeta
	Deposit    string `json:"deposit"`
	Withdrawal string `json:"withdrawal"`
	Send       string `json:"send"`
	Received   string `json:"received"`
	Balance    string `json:"balance"`
}

// TokenBalanceEvent is the audit record for a balance movement. Exactly one
// of Deposit or Withdrawal is set.
type TokenBalanceEvent struct {
	ID                    string                        `json:"id"`
	AccountID             string                        `json:"accountId"`
	TokenID               string                        `json:"tokenId"`
	TxID                  string                        `json:"txId"`
	TokenBalanceVersionID string                        `json:"tokenBalanceVersionId"`
	TakenOfferID          string                        `json:"takenOfferId,omitempty"`
	Deposit               *TokenBalanceDepositEvent     `json:"deposit,omitempty"`
	Withdrawal            *TokenBalanceWithdrawalEvent  `json:"withdrawal,omitempty"`
}

func (r *TokenBalanceEvent) PK() string { return r.ID }

type TokenBalanceDepositEvent struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

type TokenBalanceWithdrawalEvent struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Side tables maintained by the aggregate operations.

// StreamState is the durable consumption cursor for one stream.
type StreamState struct {
	ID        string    `json:"id"`
	Offset    uint64    `json:"offset"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *StreamState) PK() string { return r.ID }

// ChainHead records the latest committed transaction timestamp per chain.
// The kandel stream reads it to wait for the core stream to catch up.
type ChainHead struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
}

func (r *ChainHead) PK() string { return r.ID }

func ChainHeadID(chain ChainID) string { return "head-" + chain.String() }

// RestingOrderIndex links an offer backing one or more resting orders to the
// MangroveOrder rows that must follow its state changes.
type RestingOrderIndex struct {
	ID               string   `json:"id"`
	MangroveOrderIDs []string `json:"mangroveOrderIds"`
}

func (r *RestingOrderIndex) PK() string { return r.ID }
