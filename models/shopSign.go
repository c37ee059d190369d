package models

import (
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
)

// ShopAmounts carries one value per external-shop balance. Stored
// transactions hold magnitudes; deltas are the signed values applied to balances.
type ShopAmounts struct {
	Gold   decimal.Decimal `json:"gold"`
	Silver decimal.Decimal `json:"silver"`
	Cash   decimal.Decimal `json:"cash"`
}

func (a ShopAmounts) Neg() ShopAmounts {
	return ShopAmounts{Gold: a.Gold.Neg(), Silver: a.Silver.Neg(), Cash: a.Cash.Neg()}
}

func (a ShopAmounts) IsZero() bool {
	return a.Gold.IsZero() && a.Silver.IsZero() && a.Cash.IsZero()
}

// BORROW_ADD and LEND_COLLECT raise the balance, the other two lower it.
var shopSigns = map[ShopTransactionType]int64{
	ShopBorrowAdd:   1,
	ShopBorrowRepay: -1,
	ShopLendAdd:     -1,
	ShopLendCollect: 1,
}

// ShopDelta converts stored magnitudes into the signed balance change.
func ShopDelta(txType ShopTransactionType, magnitudes ShopAmounts) (ShopAmounts, error) {
	sign, ok := shopSigns[txType]
	if !ok {
		return ShopAmounts{}, utils.ValidationError("unknown shop transaction type %q", txType)
	}
	s := decimal.NewFromInt(sign)
	return ShopAmounts{
		Gold:   magnitudes.Gold.Abs().Mul(s),
		Silver: magnitudes.Silver.Abs().Mul(s),
		Cash:   magnitudes.Cash.Abs().Mul(s),
	}, nil
}

// InverseShopDelta undoes ShopDelta for the same stored row.
func InverseShopDelta(txType ShopTransactionType, magnitudes ShopAmounts) (ShopAmounts, error) {
	d, err := ShopDelta(txType, magnitudes)
	if err != nil {
		return ShopAmounts{}, err
	}
	return d.Neg(), nil
}

// metalAmounts puts a weight on the balance matching the metal.
func metalAmounts(metal MetalType, weight decimal.Decimal) ShopAmounts {
	if metal == MetalSilver {
		return ShopAmounts{Silver: weight}
	}
	return ShopAmounts{Gold: weight}
}
