package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
)

// RefOps manages the unversioned reference rows: chains, accounts, tokens
// and transactions. All of them are created on first sight and never change.
type RefOps struct {
	db *DB
}

func (o *RefOps) EnsureChain(ctx context.Context, chain model.ChainID, name string) error {
	var row model.Chain
	err := o.db.Tx().Get(ctx, model.TableChains, chain.String(), &row)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return o.db.Tx().Upsert(ctx, model.TableChains, &model.Chain{
		ID:          chain.String(),
		ChainlistID: int(chain),
		Name:        name,
	})
}

func (o *RefOps) EnsureAccount(ctx context.Context, chain model.ChainID, address string) (string, error) {
	id := model.AccountID(chain, address)
	var row model.Account
	err := o.db.Tx().Get(ctx, model.TableAccounts, id, &row)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	err = o.db.Tx().Upsert(ctx, model.TableAccounts, &model.Account{
		ID:      id,
		ChainID: int(chain),
		Address: strings.ToLower(address),
	})
	return id, err
}

// CreateToken registers an ERC-20 contract. Idempotent; token metadata is
// immutable on chain so a second sighting just keeps the first row.
func (o *RefOps) CreateToken(ctx context.Context, chain model.ChainID, address, symbol, name string, decimals int) error {
	id := model.TokenID(chain, address)
	var row model.Token
	err := o.db.Tx().Get(ctx, model.TableTokens, id, &row)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return o.db.Tx().Upsert(ctx, model.TableTokens, &model.Token{
		ID:       id,
		ChainID:  int(chain),
		Address:  strings.ToLower(address),
		Symbol:   symbol,
		Name:     name,
		Decimals: decimals,
	})
}

func (o *RefOps) Token(ctx context.Context, tokenID string) (*model.Token, error) {
	var row model.Token
	if err := o.db.Tx().Get(ctx, model.TableTokens, tokenID, &row); err != nil {
		return nil, fmt.Errorf("token %s: %w", tokenID, err)
	}
	return &row, nil
}

// EnsureTransaction records the blockchain transaction an event came from
// and advances the chain head watermark. Many events share one transaction;
// only the first sighting writes the row.
func (o *RefOps) EnsureTransaction(ctx context.Context, chain model.ChainID, tx event.TxRef, t time.Time) (*model.Transaction, error) {
	id := model.TransactionID(chain, tx.TxHash)
	var row model.Transaction
	err := o.db.Tx().Get(ctx, model.TableTransactions, id, &row)
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	row = model.Transaction{
		ID:          id,
		ChainID:     int(chain),
		TxHash:      strings.ToLower(tx.TxHash),
		From:        strings.ToLower(tx.Sender),
		BlockNumber: tx.BlockNumber,
		BlockHash:   strings.ToLower(tx.BlockHash),
		Time:        t,
	}
	if err := o.db.Tx().Insert(ctx, model.TableTransactions, &row); err != nil {
		return nil, err
	}
	if err := o.advanceChainHead(ctx, chain, t); err != nil {
		return nil, err
	}
	return &row, nil
}

func (o *RefOps) advanceChainHead(ctx context.Context, chain model.ChainID, t time.Time) error {
	head := model.ChainHead{ID: model.ChainHeadID(chain)}
	err := o.db.Tx().Get(ctx, model.TableChainHeads, head.ID, &head)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if !t.After(head.Time) {
		return nil
	}
	head.Time = t
	return o.db.Tx().Upsert(ctx, model.TableChainHeads, &head)
}

// HasTransactionSince reports whether a transaction with timestamp at or
// after t has been committed for the chain.
func (o *RefOps) HasTransactionSince(ctx context.Context, chain model.ChainID, t time.Time) (bool, error) {
	var head model.ChainHead
	err := o.db.Tx().Get(ctx, model.TableChainHeads, model.ChainHeadID(chain), &head)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !head.Time.Before(t), nil
}
