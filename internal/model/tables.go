package model

import "MgvIndexer/internal/store"

const (
	TableChains               = "chains"
	TableAccounts             = "accounts"
	TableTokens               = "tokens"
	TableTransactions         = "transactions"
	TableMangroves            = "mangroves"
	TableMangroveVersions     = "mangrove_versions"
	TableOfferLists           = "offer_lists"
	TableOfferListVersions    = "offer_list_versions"
	TableOffers               = "offers"
	TableOfferVersions        = "offer_versions"
	TableOrders               = "orders"
	TableTakenOffers          = "taken_offers"
	TableMakerBalances        = "maker_balances"
	TableMakerBalanceVersions = "maker_balance_versions"
	TableTakerApprovals        = "taker_approvals"
	TableTakerApprovalVersions = "taker_approval_versions"
	TableMangroveOrders        = "mangrove_orders"
	TableMangroveOrderVersions = "mangrove_order_versions"
	TableKandels               = "kandels"
	TableKandelVersions        = "kandel_versions"
	TableKandelConfigurations  = "kandel_configurations"
	TableKandelEvents          = "kandel_events"
	TableKandelOfferIndexes    = "kandel_offer_indexes"
	TableTokenBalances         = "token_balances"
	TableTokenBalanceVersions  = "token_balance_versions"
	TableTokenBalanceEvents    = "token_balance_events"
	TableStreamState           = "stream_state"
	TableChainHeads            = "chain_heads"
	TableRestingOrderIndex     = "resting_order_index"
	TableUndoLedger            = "undo_ledger"
)

// Tables lists every table the indexer touches, in creation order.
func Tables() []string {
	return []string{
		TableChains,
		TableAccounts,
		TableTokens,
		TableTransactions,
		TableMangroves,
		TableMangroveVersions,
		TableOfferLists,
		TableOfferListVersions,
		TableOffers,
		TableOfferVersions,
		TableOrders,
		TableTakenOffers,
		TableMakerBalances,
		TableMakerBalanceVersions,
		TableTakerApprovals,
		TableTakerApprovalVersions,
		TableMangroveOrders,
		TableMangroveOrderVersions,
		TableKandels,
		TableKandelVersions,
		TableKandelConfigurations,
		TableKandelEvents,
		TableKandelOfferIndexes,
		TableTokenBalances,
		TableTokenBalanceVersions,
		TableTokenBalanceEvents,
		TableStreamState,
		TableChainHeads,
		TableRestingOrderIndex,
		TableUndoLedger,
	}
}

// Aggregate descriptors for the versioned entities.
var (
	MangroveAggregate      = store.Aggregate{Name: "mangrove", Entities: TableMangroves, Versions: TableMangroveVersions}
	OfferListAggregate     = store.Aggregate{Name: "offer list", Entities: TableOfferLists, Versions: TableOfferListVersions}
	OfferAggregate         = store.Aggregate{Name: "offer", Entities: TableOffers, Versions: TableOfferVersions}
	MakerBalanceAggregate  = store.Aggregate{Name: "maker balance", Entities: TableMakerBalances, Versions: TableMakerBalanceVersions}
	TakerApprovalAggregate = store.Aggregate{Name: "taker approval", Entities: TableTakerApprovals, Versions: TableTakerApprovalVersions}
	MangroveOrderAggregate = store.Aggregate{Name: "mangrove order", Entities: TableMangroveOrders, Versions: TableMangroveOrderVersions}
	KandelAggregate        = store.Aggregate{Name: "kandel", Entities: TableKandels, Versions: TableKandelVersions}
	TokenBalanceAggregate  = store.Aggregate{Name: "token balance", Entities: TableTokenBalances, Versions: TableTokenBalanceVersions}
)
