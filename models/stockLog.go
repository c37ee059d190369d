package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryStockLog records every movement of an inventory item. Rows are
// append-only; deltas are signed from the shop's point of view.
type InventoryStockLog struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	Action          StockLogAction  `gorm:"size:20;not null" json:"action"`
	WeightDelta     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight_delta"`
	QuantityDelta   int             `gorm:"not null;default:0" json:"quantity_delta"`
	PureWeightDelta decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pure_weight_delta"`
	ReferenceType   string          `gorm:"size:30" json:"reference_type"`
	ReferenceId     int             `json:"reference_id"`
	Note            string          `gorm:"type:text" json:"note"`
	ActorName       string          `gorm:"size:100" json:"actor_name"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (InventoryStockLog) AppendOnlyLedger() bool { return true }

type stockMovement struct {
	weight   decimal.Decimal
	quantity int
	pure     decimal.Decimal
}

func writeStockLog(tx *gorm.DB, itemId int, action StockLogAction, m stockMovement, refType string, refId int, note, actor string) error {
	return tx.Create(&InventoryStockLog{
		InventoryItemId: itemId,
		Action:          action,
		WeightDelta:     m.weight,
		QuantityDelta:   m.quantity,
		PureWeightDelta: m.pure,
		ReferenceType:   refType,
		ReferenceId:     refId,
		Note:            note,
		ActorName:       actor,
	}).Error
}

func (e *Engine) GetStockLogs(ctx context.Context, itemId int) ([]*InventoryStockLog, error) {
	var rows []*InventoryStockLog
	if err := e.db.WithContext(ctx).Where("inventory_item_id = ?", itemId).Order("id").Find(&rows).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return rows, nil
}
