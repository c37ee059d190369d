package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/jewel_backend/utils"
	"gorm.io/gorm"
)

func (m RestoreMode) IsValid() bool {
	return m == RestoreDefault || m == RestoreTakeOwnership
}

// VoidBill erases a bill and puts back everything it moved: inventory,
// neighbour-shop debt and the shop's own cash/bank. The bill rows are deleted.
//
// TAKE_OWNERSHIP keeps borrowed pieces: the item turns into own stock and the
// debt to the neighbour stays on the books.
func (e *Engine) VoidBill(ctx context.Context, saleId int, mode RestoreMode) error {
	if mode == "" {
		mode = RestoreDefault
	}
	if !mode.IsValid() {
		return utils.ValidationError("unknown restore mode %q", mode)
	}
	actor := actorName(ctx)

	var invoiceNumber string
	err := e.withTx(ctx, "VoidBill", func(tx *gorm.DB) error {
		sale, err := lockByID[Sale](tx, saleId, "bill")
		if err != nil {
			return err
		}
		invoiceNumber = sale.InvoiceNumber

		var lines []*SaleItem
		if err := tx.Where("sale_id = ?", sale.ID).Order("id").Find(&lines).Error; err != nil {
			return err
		}
		var payments []*SalePayment
		if err := tx.Where("sale_id = ?", sale.ID).Order("id").Find(&payments).Error; err != nil {
			return err
		}
		var purchases []*OldMetalPurchase
		if err := tx.Where("sale_id = ? AND source = ?", sale.ID, OldMetalExchange).Find(&purchases).Error; err != nil {
			return err
		}
		purchaseIds := make([]int, 0, len(purchases))
		for _, p := range purchases {
			purchaseIds = append(purchaseIds, p.ID)
		}
		if len(purchaseIds) > 0 {
			var moved int64
			if err := tx.Model(&OldMetalItem{}).
				Where("old_metal_purchase_id IN ? AND status <> ?", purchaseIds, OldMetalInStock).
				Count(&moved).Error; err != nil {
				return err
			}
			if moved > 0 {
				return utils.ConflictError("old metal taken on %s has already been sent to the refinery", sale.InvoiceNumber)
			}
		}

		var ids []int
		for _, l := range lines {
			if l.InventoryItemId != nil {
				ids = append(ids, *l.InventoryItemId)
			}
		}
		items, err := lockInventoryItems(tx, ids)
		if err != nil {
			return err
		}
		var shopIds []int
		for _, l := range lines {
			if l.ExternalShopId != nil {
				shopIds = append(shopIds, *l.ExternalShopId)
			}
		}
		if err := lockExternalShops(tx, shopIds); err != nil {
			return err
		}
		for _, l := range lines {
			if l.InventoryItemId == nil {
				continue
			}
			if err := restoreSaleLine(tx, sale, l, items[*l.InventoryItemId], mode, actor); err != nil {
				return err
			}
		}

		for _, p := range payments {
			if err := adjustShopAssets(tx, p.PaymentMode, p.Amount.Neg()); err != nil {
				return err
			}
		}

		if err := tx.Where("sale_id = ?", sale.ID).Delete(&SaleExchangeItem{}).Error; err != nil {
			return err
		}
		if len(purchaseIds) > 0 {
			if err := tx.Where("old_metal_purchase_id IN ?", purchaseIds).Delete(&OldMetalItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", purchaseIds).Delete(&OldMetalPurchase{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&SalePayment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&SaleItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Sale{}, sale.ID).Error
	})
	if err != nil {
		return err
	}
	e.notify(ctx, AuditEvent{
		Action:        "VOID_BILL",
		Description:   fmt.Sprintf("Bill %s voided (%s)", invoiceNumber, mode),
		ReferenceType: RefSale,
		ReferenceId:   saleId,
	})
	return nil
}

// restoreSaleLine returns the exact amounts recorded on the line to the item.
func restoreSaleLine(tx *gorm.DB, sale *Sale, line *SaleItem, item *InventoryItem, mode RestoreMode, actor string) error {
	if item.IsDeleted {
		return utils.ConflictError("item %s was deleted after %s; restore it before voiding the bill",
			item.Barcode, sale.InvoiceNumber)
	}
	updates := map[string]interface{}{}

	if line.ExternalShopId != nil && line.ShopDebtWeight.IsPositive() {
		switch mode {
		case RestoreTakeOwnership:
			updates["source"] = SourceOwn
			updates["external_shop_id"] = nil
			if err := retagKeptDebt(tx, sale.ID, *line.ExternalShopId, item.ID); err != nil {
				return err
			}
		default:
			if _, err := recordShopTransaction(tx, *line.ExternalShopId, ShopBorrowRepay,
				metalAmounts(line.MetalType, line.ShopDebtWeight), "", RefSale, sale.ID,
				fmt.Sprintf("%s voided", sale.InvoiceNumber), actor); err != nil {
				return err
			}
		}
	}

	if item.StockType.tracksQuantity() {
		updates["gross_weight"] = item.GrossWeight.Add(line.Weight)
		updates["quantity"] = item.Quantity + line.Quantity
		updates["pure_weight"] = item.PureWeight.Add(line.PureWeight)
	}
	updates["status"] = ItemAvailable
	if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		return err
	}
	// keep the in-memory copy current for a second line on the same item
	if item.StockType.tracksQuantity() {
		item.GrossWeight = item.GrossWeight.Add(line.Weight)
		item.Quantity += line.Quantity
		item.PureWeight = item.PureWeight.Add(line.PureWeight)
	}
	item.Status = ItemAvailable

	return writeStockLog(tx, item.ID, StockLogReturn, stockMovement{
		weight: line.Weight, quantity: line.Quantity, pure: line.PureWeight,
	}, RefSale, sale.ID, sale.InvoiceNumber+" voided", actor)
}

// retagKeptDebt moves the BORROW_ADD row of a kept piece from the voided bill
// onto the item, so the debt stays undoable once the bill is gone.
// Rows are matched oldest first, in the same order the sale wrote them.
func retagKeptDebt(tx *gorm.DB, saleId int, shopId int, itemId int) error {
	var row ShopTransaction
	err := tx.Where("external_shop_id = ? AND type = ? AND reference_type = ? AND reference_id = ?",
		shopId, ShopBorrowAdd, RefSale, saleId).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Model(&ShopTransaction{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"reference_type": RefItem,
		"reference_id":   itemId,
	}).Error
}
