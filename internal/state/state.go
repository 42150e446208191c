// Package state implements the aggregate update rules of the Mangrove
// projection on top of the versioned entity store. One DB is scoped to one
// storage transaction and one event stream; the batch coordinator builds a
// fresh DB per batch.
package state

import "MgvIndexer/internal/store"

type DB struct {
	es *store.EntityStore

	Refs           *RefOps
	Mangroves      *MangroveOps
	OfferLists     *OfferListOps
	Offers         *OfferOps
	Orders         *OrderOps
	MakerBalances  *MakerBalanceOps
	TakerApprovals *TakerApprovalOps
	MangroveOrders *MangroveOrderOps
	Kandels        *KandelOps
	TokenBalances  *TokenBalanceOps
}

func NewDB(tx store.Tx, stream string) *DB {
	db := &DB{es: store.NewEntityStore(tx, stream)}
	db.Refs = &RefOps{db}
	db.Mangroves = &MangroveOps{db}
	db.OfferLists = &OfferListOps{db}
	db.Offers = &OfferOps{db}
	db.Orders = &OrderOps{db}
	db.MakerBalances = &MakerBalanceOps{db}
	db.TakerApprovals = &TakerApprovalOps{db}
	db.MangroveOrders = &MangroveOrderOps{db}
	db.Kandels = &KandelOps{db}
	db.TokenBalances = &TokenBalanceOps{db}
	return db
}

func (db *DB) Tx() store.Tx     { return db.es.Tx() }
func (db *DB) Stream() string   { return db.es.Stream() }
