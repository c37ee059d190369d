package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func MigrateTable(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ShopAssets{}, &SequenceCounter{},
		&InventoryItem{}, &InventoryStockLog{},
		&Sale{}, &SaleItem{}, &SalePayment{}, &SaleExchangeItem{},
		&Vendor{}, &VendorTransaction{},
		&ExternalShop{}, &ShopTransaction{},
		&ChitPlan{}, &ChitPayment{}, &DailyRate{},
		&OldMetalPurchase{}, &OldMetalItem{},
		&RefineryBatch{}, &RefineryUsage{},
		&History{},
	)
	if err != nil {
		return err
	}
	// the single assets row must exist before the first sale
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ShopAssets{ID: shopAssetsId}).Error
}
