package state

import (
	"context"
	"errors"
	"fmt"

	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// TokenBalanceOps tracks reserve account holdings per token, scoped to the
// consuming stream. Amounts stay in raw base units; additions are exact
// integer arithmetic in decimal space.
type TokenBalanceOps struct {
	db *DB
}

// Deposit credits the account's balance and deposit counter and writes the
// audit event row.
func (o *TokenBalanceOps) Deposit(ctx context.Context, chain model.ChainID, account, tokenAddress, txID, amount, source, takenOfferID string) error {
	return o.apply(ctx, chain, account, tokenAddress, txID, amount, source, takenOfferID, true)
}

// Withdraw debits the account's balance and credits the withdrawal counter
// and writes the audit event row. Balances may go negative; the chain is
// the source of truth and the projection only mirrors it.
func (o *TokenBalanceOps) Withdraw(ctx context.Context, chain model.ChainID, account, tokenAddress, txID, amount, source, takenOfferID string) error {
	return o.apply(ctx, chain, account, tokenAddress, txID, amount, source, takenOfferID, false)
}

func (o *TokenBalanceOps) apply(ctx context.Context, chain model.ChainID, account, tokenAddress, txID, amount, source, takenOfferID string, deposit bool) error {
	accountID, err := o.db.Refs.EnsureAccount(ctx, chain, account)
	if err != nil {
		return err
	}
	tokenID := model.TokenID(chain, tokenAddress)
	id := model.TokenBalanceID(accountID, tokenID, o.db.Stream())

	initial := &model.TokenBalance{
		EntityBase: store.EntityBase{ID: id},
		AccountID:  accountID,
		TokenID:    tokenID,
		Stream:     o.db.Stream(),
	}
	var accErr error
	v, err := store.AddVersion[model.TokenBalance, model.TokenBalanceVersion](
		ctx, o.db.es, model.TokenBalanceAggregate, id, txID, initial,
		func(v *model.TokenBalanceVersion) {
			zeroFill(v)
			if deposit {
				v.Deposit, accErr = num.AddDecimalStrings(v.Deposit, amount, 0)
				if accErr != nil {
					return
				}
				v.Balance, accErr = num.AddDecimalStrings(v.Balance, amount, 0)
			} else {
				v.Withdrawal, accErr = num.AddDecimalStrings(v.Withdrawal, amount, 0)
				if accErr != nil {
					return
				}
				v.Balance, accErr = num.SubDecimalStrings(v.Balance, amount, 0)
			}
		})
	if err != nil {
		return err
	}
	if accErr != nil {
		return accErr
	}

	ev := &model.TokenBalanceEvent{
		ID:                    v.ID + "-event",
		AccountID:             accountID,
		TokenID:               tokenID,
		TxID:                  txID,
		TokenBalanceVersionID: v.ID,
		TakenOfferID:          takenOfferID,
	}
	if deposit {
		ev.Deposit = &model.TokenBalanceDepositEvent{Value: amount, Source: source}
	} else {
		ev.Withdrawal = &model.TokenBalanceWithdrawalEvent{Value: amount, Source: source}
	}
	return o.db.Tx().Insert(ctx, model.TableTokenBalanceEvents, ev)
}

// DeleteLatestVersion pops the head balance version together with the audit
// event row it produced.
func (o *TokenBalanceOps) DeleteLatestVersion(ctx context.Context, chain model.ChainID, account, tokenAddress string) error {
	accountID := model.AccountID(chain, account)
	tokenID := model.TokenID(chain, tokenAddress)
	id := model.TokenBalanceID(accountID, tokenID, o.db.Stream())

	var row model.TokenBalance
	if err := o.db.Tx().Get(ctx, model.TableTokenBalances, id, &row); err != nil {
		return fmt.Errorf("token balance %s: %w", id, err)
	}
	if err := o.db.Tx().Delete(ctx, model.TableTokenBalanceEvents, row.CurrentVersionID+"-event"); err != nil {
		return err
	}
	return store.DeleteLatestVersion[model.TokenBalance, model.TokenBalanceVersion](
		ctx, o.db.es, model.TokenBalanceAggregate, id)
}

// Version returns the head balance version, or nil when the account has no
// history on this stream.
func (o *TokenBalanceOps) Version(ctx context.Context, accountID, tokenID string) (*model.TokenBalanceVersion, error) {
	id := model.TokenBalanceID(accountID, tokenID, o.db.Stream())
	var row model.TokenBalance
	err := o.db.Tx().Get(ctx, model.TableTokenBalances, id, &row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v model.TokenBalanceVersion
	if err := o.db.Tx().Get(ctx, model.TableTokenBalanceVersions, row.CurrentVersionID, &v); err != nil {
		return nil, fmt.Errorf("token balance %s version %s: %w", id, row.CurrentVersionID, err)
	}
	return &v, nil
}

func zeroFill(v *model.TokenBalanceVersion) {
	if v.Deposit == "" {
		v.Deposit = "0"
	}
	if v.Withdrawal == "" {
		v.Withdrawal = "0"
	}
	if v.Send == "" {
		v.Send = "0"
	}
	if v.Received == "" {
		v.Received = "0"
	}
	if v.Balance == "" {
		v.Balance = "0"
	}
}
