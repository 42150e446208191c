package state

import (
	"context"
	"fmt"

	"MgvIndexer/internal/model"
	"MgvIndexer/internal/num"
	"MgvIndexer/internal/store"
)

// nativeDecimals scales native-currency amounts (provision balances and
// bounties).
const nativeDecimals = 18

// MakerBalanceOps tracks each maker's native-currency provision held by a
// Mangrove instance. Balances are human-scaled decimal strings.
type MakerBalanceOps struct {
	db *DB
}

// ApplyChange appends a version with the balance moved by the raw signed
// amount. The balance starts at zero on first sight.
func (o *MakerBalanceOps) ApplyChange(ctx context.Context, mangroveID, maker, txID, amountChange string) error {
	mgv, err := o.db.Mangroves.Get(ctx, mangroveID)
	if err != nil {
		return err
	}
	makerID, err := o.db.Refs.EnsureAccount(ctx, model.ChainID(mgv.ChainID), maker)
	if err != nil {
		return err
	}
	id := model.MakerBalanceID(mangroveID, maker)

	change, err := num.Scale(amountChange, nativeDecimals)
	if err != nil {
		return fmt.Errorf("maker balance %s change: %w", id, err)
	}

	initial := &model.MakerBalance{
		EntityBase: store.EntityBase{ID: id},
		MangroveID: mangroveID,
		MakerID:    makerID,
	}
	var addErr error
	_, err = store.AddVersion[model.MakerBalance, model.MakerBalanceVersion](
		ctx, o.db.es, model.MakerBalanceAggregate, id, txID, initial,
		func(v *model.MakerBalanceVersion) {
			prev := v.Balance
			if prev == "" {
				prev = "0"
			}
			v.Balance, addErr = num.AddDecimalStrings(prev, change.String(), 0)
		})
	if err != nil {
		return err
	}
	return addErr
}

func (o *MakerBalanceOps) DeleteLatestVersion(ctx context.Context, mangroveID, maker string) error {
	return store.DeleteLatestVersion[model.MakerBalance, model.MakerBalanceVersion](
		ctx, o.db.es, model.MakerBalanceAggregate, model.MakerBalanceID(mangroveID, maker))
}
