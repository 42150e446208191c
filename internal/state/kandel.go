package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
)

// Kandel version triggers.
const (
	TriggerCreated   = "Created"
	TriggerSetParams = "SetParams"
	TriggerDebit     = "Debit"
	TriggerCredit    = "Credit"
	TriggerPopulate  = "Populate"
	TriggerRetract   = "Retract"
)

// KandelOps maintains kandel market-making strategy instances: their
// version chains, immutable configuration rows, audit events and the
// offer/price-point index.
type KandelOps struct {
	db *DB
}

// Create registers a kandel deployment. The reserve defaults to the kandel
// contract itself; Aave kandels hold their reserve elsewhere.
func (o *KandelOps) Create(ctx context.Context, chain model.ChainID, address, txID string, mangrove, base, quote, owner, reserve, kandelType string) error {
	id := model.KandelID(chain, address)
	if reserve == "" {
		reserve = address
	}
	reserveID, err := o.db.Refs.EnsureAccount(ctx, chain, reserve)
	if err != nil {
		return err
	}
	adminID, err := o.db.Refs.EnsureAccount(ctx, chain, owner)
	if err != nil {
		return err
	}

	initial := &model.Kandel{
		EntityBase:   store.EntityBase{ID: id},
		MangroveID:   model.MangroveID(chain, mangrove),
		BaseTokenID:  model.TokenID(chain, base),
		QuoteTokenID: model.TokenID(chain, quote),
		ReserveID:    reserveID,
		Type:         kandelType,
	}

	cfg := model.KandelConfiguration{ID: store.VersionID(id, 0) + "-cfg"}
	if err := o.db.Tx().Insert(ctx, model.TableKandelConfigurations, &cfg); err != nil {
		return err
	}

	_, err = store.AddVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, id, txID, initial,
		func(v *model.KandelVersion) {
			v.AdminID = adminID
			v.ConfigurationID = cfg.ID
			v.Trigger = TriggerCreated
		})
	return err
}

// SetParams applies exactly one parameter group. Admin and router changes
// live on the version itself; the rest are copy-on-write updates of the
// configuration row. An event with no recognized group is a validation
// error.
func (o *KandelOps) SetParams(ctx context.Context, kandelID, txID string, chain model.ChainID, p event.SetParams) error {
	current, err := o.currentVersion(ctx, kandelID)
	if err != nil {
		return err
	}
	var cfg model.KandelConfiguration
	if err := o.db.Tx().Get(ctx, model.TableKandelConfigurations, current.ConfigurationID, &cfg); err != nil {
		return fmt.Errorf("kandel %s configuration %s: %w", kandelID, current.ConfigurationID, err)
	}

	nextVersionID := store.VersionID(kandelID, current.VersionNumber+1)
	ev := &model.KandelEvent{
		ID:              nextVersionID + "-event",
		KandelID:        kandelID,
		KandelVersionID: nextVersionID,
		TxID:            txID,
	}

	newAdminID := ""
	newRouter := ""
	newConfig := false
	switch {
	case p.Admin != nil:
		adminID, err := o.db.Refs.EnsureAccount(ctx, chain, *p.Admin)
		if err != nil {
			return err
		}
		newAdminID = adminID
		ev.Admin = &model.KandelAdminEvent{Admin: strings.ToLower(*p.Admin)}
	case p.Router != nil:
		newRouter = strings.ToLower(*p.Router)
		ev.Router = &model.KandelRouterEvent{Router: newRouter}
	case p.GasReq != nil:
		cfg.GasReq = *p.GasReq
		newConfig = true
		ev.GasReq = &model.KandelGasReqEvent{GasReq: *p.GasReq}
	case p.GasPrice != nil:
		cfg.GasPrice = *p.GasPrice
		newConfig = true
		ev.GasPrice = &model.KandelGasPriceEvent{GasPrice: *p.GasPrice}
	case p.Length != nil:
		cfg.Length = *p.Length
		newConfig = true
		ev.Length = &model.KandelLengthEvent{Length: *p.Length}
	case p.CompoundRate != nil:
		cfg.CompoundRateBase = p.CompoundRate.Base
		cfg.CompoundRateQuote = p.CompoundRate.Quote
		newConfig = true
		ev.CompoundRate = &model.KandelCompoundRateEvent{
			CompoundRateBase:  p.CompoundRate.Base,
			CompoundRateQuote: p.CompoundRate.Quote,
		}
	case p.Geometric != nil:
		cfg.Ratio = p.Geometric.Ratio
		cfg.Spread = p.Geometric.Spread
		newConfig = true
		ev.Geometric = &model.KandelGeometricParamsEvent{
			Ratio:  p.Geometric.Ratio,
			Spread: p.Geometric.Spread,
		}
	default:
		return fmt.Errorf("kandel %s SetParams carries no parameter group: %w", kandelID, store.ErrValidation)
	}

	if newConfig {
		cfg.ID = nextVersionID + "-cfg"
		if err := o.db.Tx().Insert(ctx, model.TableKandelConfigurations, &cfg); err != nil {
			return err
		}
	}

	_, err = store.AddVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID, txID, nil,
		func(v *model.KandelVersion) {
			if newAdminID != "" {
				v.AdminID = newAdminID
			}
			if newRouter != "" {
				v.RouterAddress = newRouter
			}
			if newConfig {
				v.ConfigurationID = cfg.ID
			}
			v.Trigger = TriggerSetParams
		})
	if err != nil {
		return err
	}
	return o.db.Tx().Insert(ctx, model.TableKandelEvents, ev)
}

// ApplyBalanceChange folds a Debit or Credit into the kandel's reserve
// balance and appends a version recording the trigger.
func (o *KandelOps) ApplyBalanceChange(ctx context.Context, kandelID, txID string, chain model.ChainID, token, amount, trigger string) error {
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}
	var acct model.Account
	if err := o.db.Tx().Get(ctx, model.TableAccounts, kandel.ReserveID, &acct); err != nil {
		return fmt.Errorf("kandel %s reserve %s: %w", kandelID, kandel.ReserveID, err)
	}

	switch trigger {
	case TriggerCredit:
		err = o.db.TokenBalances.Deposit(ctx, chain, acct.Address, token, txID, amount, "kandel", "")
	case TriggerDebit:
		err = o.db.TokenBalances.Withdraw(ctx, chain, acct.Address, token, txID, amount, "kandel", "")
	default:
		err = fmt.Errorf("kandel balance trigger %q: %w", trigger, store.ErrValidation)
	}
	if err != nil {
		return err
	}

	_, err = store.AddVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID, txID, nil,
		func(v *model.KandelVersion) { v.Trigger = trigger })
	return err
}

// UndoBalanceChange reverses ApplyBalanceChange: it pops the kandel version
// and the reserve's balance version.
func (o *KandelOps) UndoBalanceChange(ctx context.Context, kandelID string, chain model.ChainID, token string) error {
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}
	var acct model.Account
	if err := o.db.Tx().Get(ctx, model.TableAccounts, kandel.ReserveID, &acct); err != nil {
		return fmt.Errorf("kandel %s reserve %s: %w", kandelID, kandel.ReserveID, err)
	}
	if err := store.DeleteLatestVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID); err != nil {
		return err
	}
	return o.db.TokenBalances.DeleteLatestVersion(ctx, chain, acct.Address, token)
}

// Populate appends a version recording a population run, the audit event
// with the placed offers, and the offer/price-point index bindings.
func (o *KandelOps) Populate(ctx context.Context, kandelID, txID string, chain model.ChainID, e event.Populate) error {
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}

	v, err := store.AddVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID, txID, nil,
		func(v *model.KandelVersion) { v.Trigger = TriggerPopulate })
	if err != nil {
		return err
	}

	offers := make([]model.KandelEventOffer, 0, len(e.Offers))
	for _, po := range e.Offers {
		offerID, err := o.offerIDFor(ctx, kandel, chain, po.BA, po.OfferID)
		if err != nil {
			return err
		}
		offers = append(offers, model.KandelEventOffer{
			OfferID: offerID,
			Index:   po.Index,
			Gives:   po.Gives,
			BA:      po.BA,
		})
		if err := o.bindOfferIndex(ctx, kandelID, offerID, txID, po.Index, po.BA); err != nil {
			return err
		}
	}

	return o.db.Tx().Insert(ctx, model.TableKandelEvents, &model.KandelEvent{
		ID:              v.ID + "-event",
		KandelID:        kandelID,
		KandelVersionID: v.ID,
		TxID:            txID,
		Populate:        &model.KandelPopulateEvent{Offers: offers},
	})
}

// Retract appends a version recording an offer withdrawal run and removes
// the index bindings of the retracted offers.
func (o *KandelOps) Retract(ctx context.Context, kandelID, txID string, chain model.ChainID, e event.Retract) error {
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}

	v, err := store.AddVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID, txID, nil,
		func(v *model.KandelVersion) { v.Trigger = TriggerRetract })
	if err != nil {
		return err
	}

	offers := make([]model.KandelEventOffer, 0, len(e.Offers))
	for _, ro := range e.Offers {
		offerID, err := o.offerIDFor(ctx, kandel, chain, ro.BA, ro.OfferID)
		if err != nil {
			return err
		}
		offers = append(offers, model.KandelEventOffer{
			OfferID: offerID,
			Index:   ro.Index,
			BA:      ro.BA,
		})
		if err := o.db.Tx().Delete(ctx, model.TableKandelOfferIndexes,
			model.KandelOfferIndexID(kandelID, offerID, ro.BA)); err != nil {
			return err
		}
	}

	return o.db.Tx().Insert(ctx, model.TableKandelEvents, &model.KandelEvent{
		ID:              v.ID + "-event",
		KandelID:        kandelID,
		KandelVersionID: v.ID,
		TxID:            txID,
		Retract:         &model.KandelRetractEvent{Offers: offers},
	})
}

// SetIndexMapping binds one offer to a price point index without touching
// the version chain. An offer number of 0 is a cleared slot and is ignored.
func (o *KandelOps) SetIndexMapping(ctx context.Context, kandelID, txID string, chain model.ChainID, e event.SetIndexMapping) error {
	if e.OfferID == 0 {
		return nil
	}
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}
	offerID, err := o.offerIDFor(ctx, kandel, chain, e.BA, e.OfferID)
	if err != nil {
		return err
	}
	return o.bindOfferIndex(ctx, kandelID, offerID, txID, e.Index, e.BA)
}

// UnsetIndexMapping undoes SetIndexMapping.
func (o *KandelOps) UnsetIndexMapping(ctx context.Context, kandelID string, chain model.ChainID, e event.SetIndexMapping) error {
	if e.OfferID == 0 {
		return nil
	}
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return err
	}
	offerID, err := o.offerIDFor(ctx, kandel, chain, e.BA, e.OfferID)
	if err != nil {
		return err
	}
	return o.db.Tx().Delete(ctx, model.TableKandelOfferIndexes,
		model.KandelOfferIndexID(kandelID, offerID, e.BA))
}

// DeleteLatestVersion pops the head kandel version and everything it
// produced: its audit event, its configuration row, and for populate and
// retract events the index bindings they changed.
func (o *KandelOps) DeleteLatestVersion(ctx context.Context, kandelID string) error {
	current, err := o.currentVersion(ctx, kandelID)
	if err != nil {
		return err
	}

	var ev model.KandelEvent
	err = o.db.Tx().Get(ctx, model.TableKandelEvents, current.ID+"-event", &ev)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil {
		switch {
		case ev.Populate != nil:
			for _, po := range ev.Populate.Offers {
				if err := o.db.Tx().Delete(ctx, model.TableKandelOfferIndexes,
					model.KandelOfferIndexID(kandelID, po.OfferID, po.BA)); err != nil {
					return err
				}
			}
		case ev.Retract != nil:
			for _, ro := range ev.Retract.Offers {
				if err := o.bindOfferIndex(ctx, kandelID, ro.OfferID, ev.TxID, ro.Index, ro.BA); err != nil {
					return err
				}
			}
		}
		if err := o.db.Tx().Delete(ctx, model.TableKandelEvents, ev.ID); err != nil {
			return err
		}
	}

	if current.ConfigurationID == current.ID+"-cfg" {
		if err := o.db.Tx().Delete(ctx, model.TableKandelConfigurations, current.ConfigurationID); err != nil {
			return err
		}
	}

	return store.DeleteLatestVersion[model.Kandel, model.KandelVersion](
		ctx, o.db.es, model.KandelAggregate, kandelID)
}

func (o *KandelOps) Get(ctx context.Context, kandelID string) (*model.Kandel, error) {
	var row model.Kandel
	if err := o.db.Tx().Get(ctx, model.TableKandels, kandelID, &row); err != nil {
		return nil, fmt.Errorf("kandel %s: %w", kandelID, err)
	}
	return &row, nil
}

func (o *KandelOps) currentVersion(ctx context.Context, kandelID string) (*model.KandelVersion, error) {
	kandel, err := o.Get(ctx, kandelID)
	if err != nil {
		return nil, err
	}
	var v model.KandelVersion
	if err := o.db.Tx().Get(ctx, model.TableKandelVersions, kandel.CurrentVersionID, &v); err != nil {
		return nil, fmt.Errorf("kandel %s version %s: %w", kandelID, kandel.CurrentVersionID, err)
	}
	return &v, nil
}

// offerIDFor resolves a kandel offer number to the offer identity in the
// book the kandel trades: asks give base, bids give quote.
func (o *KandelOps) offerIDFor(ctx context.Context, kandel *model.Kandel, chain model.ChainID, ba string, offerNumber int64) (string, error) {
	base, err := o.db.Refs.Token(ctx, kandel.BaseTokenID)
	if err != nil {
		return "", err
	}
	quote, err := o.db.Refs.Token(ctx, kandel.QuoteTokenID)
	if err != nil {
		return "", err
	}

	var key model.OfferListKey
	switch ba {
	case "ask":
		key = model.OfferListKey{OutboundToken: base.Address, InboundToken: quote.Address}
	case "bid":
		key = model.OfferListKey{OutboundToken: quote.Address, InboundToken: base.Address}
	default:
		return "", fmt.Errorf("kandel %s offer side %q: %w", kandel.ID, ba, store.ErrValidation)
	}
	return model.OfferID(kandel.MangroveID, key, offerNumber), nil
}

func (o *KandelOps) bindOfferIndex(ctx context.Context, kandelID, offerID, txID string, index int, ba string) error {
	return o.db.Tx().Upsert(ctx, model.TableKandelOfferIndexes, &model.KandelOfferIndex{
		ID:       model.KandelOfferIndexID(kandelID, offerID, ba),
		KandelID: kandelID,
		OfferID:  offerID,
		TxID:     txID,
		Index:    index,
		BA:       ba,
	})
}
