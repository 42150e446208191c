package state

import (
	"context"
	"fmt"
	"strings"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
)

// MangroveOps maintains Mangrove instances and their governance parameter
// versions.
type MangroveOps struct {
	db *DB
}

// Create registers a newly deployed Mangrove and writes version 0 with all
// parameters unset.
func (o *MangroveOps) Create(ctx context.Context, chain model.ChainID, address, txID string) (string, error) {
	id := model.MangroveID(chain, address)
	initial := &model.Mangrove{
		EntityBase: store.EntityBase{ID: id},
		ChainID:    int(chain),
		Address:    strings.ToLower(address),
	}
	_, err := store.AddVersion[model.Mangrove, model.MangroveVersion](
		ctx, o.db.es, model.MangroveAggregate, id, txID, initial, nil)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateParams appends a version carrying the changed parameters; fields the
// event omits keep their previous value.
func (o *MangroveOps) UpdateParams(ctx context.Context, mangroveID, txID string, p event.MangroveParams) error {
	_, err := store.AddVersion[model.Mangrove, model.MangroveVersion](
		ctx, o.db.es, model.MangroveAggregate, mangroveID, txID, nil,
		func(v *model.MangroveVersion) {
			if p.Governance != nil {
				g := strings.ToLower(*p.Governance)
				v.Governance = &g
			}
			if p.Monitor != nil {
				m := strings.ToLower(*p.Monitor)
				v.Monitor = &m
			}
			if p.Vault != nil {
				vault := strings.ToLower(*p.Vault)
				v.Vault = &vault
			}
			if p.UseOracle != nil {
				v.UseOracle = p.UseOracle
			}
			if p.Notify != nil {
				v.Notify = p.Notify
			}
			if p.Gasmax != nil {
				v.Gasmax = p.Gasmax
			}
			if p.Gasprice != nil {
				v.Gasprice = p.Gasprice
			}
			if p.Dead != nil {
				v.Dead = p.Dead
			}
		})
	return err
}

func (o *MangroveOps) DeleteLatestVersion(ctx context.Context, mangroveID string) error {
	return store.DeleteLatestVersion[model.Mangrove, model.MangroveVersion](
		ctx, o.db.es, model.MangroveAggregate, mangroveID)
}

func (o *MangroveOps) Get(ctx context.Context, mangroveID string) (*model.Mangrove, error) {
	var row model.Mangrove
	if err := o.db.Tx().Get(ctx, model.TableMangroves, mangroveID, &row); err != nil {
		return nil, fmt.Errorf("mangrove %s: %w", mangroveID, err)
	}
	return &row, nil
}
