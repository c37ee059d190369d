package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const shopAssetsId = 1

// ShopAssets is the single row holding the shop's own cash and bank money.
type ShopAssets struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CashBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cash_balance"`
	BankBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bank_balance"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// payment mode -> balance column
var assetColumns = map[PaymentMode]string{
	PaymentCash:         "cash_balance",
	PaymentCard:         "bank_balance",
	PaymentUPI:          "bank_balance",
	PaymentBankTransfer: "bank_balance",
}

func assetColumnFor(mode PaymentMode) (string, error) {
	col, ok := assetColumns[mode]
	if !ok {
		return "", utils.ValidationError("unknown payment mode %q", mode)
	}
	return col, nil
}

func lockShopAssets(tx *gorm.DB) (*ShopAssets, error) {
	var assets ShopAssets
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&assets, shopAssetsId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		assets = ShopAssets{ID: shopAssetsId}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&assets).Error; err != nil {
			return nil, err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&assets, shopAssetsId).Error
	}
	if err != nil {
		return nil, err
	}
	return &assets, nil
}

// adjustShopAssets adds a signed amount to the balance selected by mode.
//
// Lock order across the engine: sale, inventory items (ascending id), external
// shops (ascending id), then this row. Callers post cash/bank movements last.
func adjustShopAssets(tx *gorm.DB, mode PaymentMode, delta decimal.Decimal) error {
	col, err := assetColumnFor(mode)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	if _, err := lockShopAssets(tx); err != nil {
		return err
	}
	return tx.Model(&ShopAssets{}).
		Where("id = ?", shopAssetsId).
		Update(col, gorm.Expr(col+" + ?", delta)).Error
}

func (e *Engine) GetShopAssets(ctx context.Context) (*ShopAssets, error) {
	var assets ShopAssets
	err := e.db.WithContext(ctx).First(&assets, shopAssetsId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ShopAssets{ID: shopAssetsId}, nil
	}
	if err != nil {
		return nil, utils.StorageError(err)
	}
	return &assets, nil
}
