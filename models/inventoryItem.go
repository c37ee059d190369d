package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Barcode     string          `gorm:"size:50;not null;uniqueIndex" json:"barcode"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	MetalType   MetalType       `gorm:"size:10;not null;index" json:"metal_type"`
	StockType   StockType       `gorm:"size:10;not null" json:"stock_type"`
	Status      ItemStatus      `gorm:"size:15;not null;index" json:"status"`
	Source      ItemSource      `gorm:"size:15;not null" json:"source"`
	GrossWeight decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_weight"`
	// purity / wastage percent applied to gross weight
	WastagePercent     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"wastage_percent"`
	PureWeight         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pure_weight"`
	PureWeightOverride bool            `gorm:"not null;default:false" json:"pure_weight_override"`
	Quantity           int             `gorm:"not null;default:0" json:"quantity"`
	VendorId           *int            `gorm:"index" json:"vendor_id"`
	ExternalShopId     *int            `gorm:"index" json:"external_shop_id"`
	IsDeleted          bool            `gorm:"not null;default:false" json:"is_deleted"`
	ImageKey           string          `gorm:"size:255" json:"image_key"`
	ThumbnailKey       string          `gorm:"size:255" json:"thumbnail_key"`
	ImageURL           string          `gorm:"-" json:"image_url,omitempty"`
	ThumbnailURL       string          `gorm:"-" json:"thumbnail_url,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryItem struct {
	Name               string           `json:"name" binding:"required"`
	MetalType          MetalType        `json:"metal_type" binding:"required,oneof=GOLD SILVER"`
	StockType          StockType        `json:"stock_type" binding:"required,oneof=SINGLE BULK RAW"`
	GrossWeight        decimal.Decimal  `json:"gross_weight"`
	WastagePercent     decimal.Decimal  `json:"wastage_percent"`
	PureWeightOverride *decimal.Decimal `json:"pure_weight_override"`
	Quantity           int              `json:"quantity"`
	Source             ItemSource       `json:"source" binding:"required,oneof=OWN VENDOR NEIGHBOUR"`
	VendorId           *int             `json:"vendor_id"`
	ExternalShopId     *int             `json:"external_shop_id"`
	// base64 encoded JPEG/PNG
	Image string `json:"image"`
}

type UpdateInventoryItem struct {
	Name               *string          `json:"name"`
	GrossWeight        *decimal.Decimal `json:"gross_weight"`
	WastagePercent     *decimal.Decimal `json:"wastage_percent"`
	PureWeightOverride *decimal.Decimal `json:"pure_weight_override"`
	ClearOverride      bool             `json:"clear_override"`
}

type NewRestock struct {
	Weight   decimal.Decimal `json:"weight"`
	Quantity int             `json:"quantity"`
	Note     string          `json:"note"`
}

// computePureWeight returns gross x purity / 100 unless an override is given.
func computePureWeight(gross, purity decimal.Decimal, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return gross.Mul(purity).Div(hundred).Round(4)
}

func validatePurity(purity decimal.Decimal) error {
	if !purity.IsPositive() || purity.GreaterThan(hundred) {
		return utils.ValidationError("purity must be within (0, 100]")
	}
	return nil
}

func (input *NewInventoryItem) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.ValidationError("item name is required")
	}
	if err := validateMetal(input.MetalType); err != nil {
		return err
	}
	if !input.StockType.IsValid() {
		return utils.ValidationError("unknown stock type %q", input.StockType)
	}
	if !input.GrossWeight.IsPositive() {
		return utils.ValidationError("gross weight must be positive")
	}
	if err := validatePurity(input.WastagePercent); err != nil {
		return err
	}
	if input.PureWeightOverride != nil && input.PureWeightOverride.IsNegative() {
		return utils.ValidationError("pure weight must not be negative")
	}
	if input.StockType.tracksQuantity() {
		if input.Quantity <= 0 {
			return utils.ValidationError("bulk items need a positive quantity")
		}
	} else {
		input.Quantity = 1
	}
	switch input.Source {
	case SourceOwn:
		input.VendorId, input.ExternalShopId = nil, nil
	case SourceVendor:
		if input.VendorId == nil {
			return utils.ValidationError("vendor_id is required for vendor stock")
		}
		input.ExternalShopId = nil
	case SourceNeighbour:
		if input.ExternalShopId == nil {
			return utils.ValidationError("external_shop_id is required for neighbour stock")
		}
		input.VendorId = nil
	default:
		return utils.ValidationError("unknown item source %q", input.Source)
	}
	return nil
}

// sourcePartyName is the name the barcode initials are taken from.
func sourcePartyName(tx *gorm.DB, source ItemSource, vendorId, shopId *int) (string, error) {
	switch source {
	case SourceVendor:
		v, err := lockByID[Vendor](tx, *vendorId, "vendor")
		if err != nil {
			return "", err
		}
		return v.Name, nil
	case SourceNeighbour:
		s, err := lockByID[ExternalShop](tx, *shopId, "external shop")
		if err != nil {
			return "", err
		}
		return s.Name, nil
	case SourceRefinery:
		return "Refinery", nil
	default:
		return "Own", nil
	}
}

// createItem inserts a validated item, its ADD stock log and, for vendor
// stock, the STOCK_ADDED vendor entry.
func createItem(tx *gorm.DB, item *InventoryItem, refType string, refId int, actor string) error {
	partyName, err := sourcePartyName(tx, item.Source, item.VendorId, item.ExternalShopId)
	if err != nil {
		return err
	}
	barcode, err := nextBarcode(tx, item.MetalType, partyName)
	if err != nil {
		return err
	}
	item.Barcode = barcode
	item.Status = ItemAvailable
	if err := tx.Create(item).Error; err != nil {
		return err
	}
	if refType == "" {
		refType, refId = RefItem, item.ID
	}
	if err := writeStockLog(tx, item.ID, StockLogAdd, stockMovement{
		weight: item.GrossWeight, quantity: item.Quantity, pure: item.PureWeight,
	}, refType, refId, "", actor); err != nil {
		return err
	}
	if item.Source == SourceVendor {
		if _, err := applyVendorDelta(tx, *item.VendorId, VendorStockAdded, item.PureWeight,
			RefItem, item.ID, item.Barcode, actor); err != nil {
			return err
		}
	}
	return nil
}

// AddItem registers new stock. The optional image is uploaded before the
// ledger transaction starts.
func (e *Engine) AddItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	item := InventoryItem{
		Name:               input.Name,
		MetalType:          input.MetalType,
		StockType:          input.StockType,
		Source:             input.Source,
		GrossWeight:        input.GrossWeight,
		WastagePercent:     input.WastagePercent,
		PureWeight:         computePureWeight(input.GrossWeight, input.WastagePercent, input.PureWeightOverride),
		PureWeightOverride: input.PureWeightOverride != nil,
		Quantity:           input.Quantity,
		VendorId:           input.VendorId,
		ExternalShopId:     input.ExternalShopId,
	}
	if input.Image != "" {
		if e.images == nil {
			return nil, utils.ValidationError("image storage is not configured")
		}
		imageKey, thumbKey, err := e.images.SaveItemImage(ctx, strings.ToLower(string(input.MetalType)), input.Image)
		if err != nil {
			config.LogError(e.logger, "models", "AddItem", "save item image", input.Name, err)
			return nil, utils.ValidationError("could not store item image: %v", err)
		}
		item.ImageKey, item.ThumbnailKey = imageKey, thumbKey
	}

	err := e.withTx(ctx, "AddItem", func(tx *gorm.DB) error {
		return createItem(tx, &item, "", 0, actorName(ctx))
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "ADD_ITEM",
		Description:   fmt.Sprintf("Added %s (%s g)", item.Barcode, item.GrossWeight.StringFixed(3)),
		ReferenceType: RefItem,
		ReferenceId:   item.ID,
	})
	return &item, nil
}

func (e *Engine) GetItem(ctx context.Context, id int) (*InventoryItem, error) {
	return findByID[InventoryItem](ctx, e.db, id, "inventory item")
}

func (e *Engine) GetItemByBarcode(ctx context.Context, barcode string) (*InventoryItem, error) {
	var item InventoryItem
	if err := e.db.WithContext(ctx).Where("barcode = ?", barcode).First(&item).Error; err != nil {
		return nil, utils.ClassifyDBError(err, "inventory item", barcode)
	}
	return &item, nil
}

// UpdateItem edits weight, purity or pure-weight override of available stock.
// Vendor stock posts only the pure-weight difference as STOCK_UPDATE.
func (e *Engine) UpdateItem(ctx context.Context, id int, input *UpdateInventoryItem) (*InventoryItem, error) {
	var updated *InventoryItem
	err := e.withTx(ctx, "UpdateItem", func(tx *gorm.DB) error {
		item, err := lockByID[InventoryItem](tx, id, "inventory item")
		if err != nil {
			return err
		}
		if item.IsDeleted || item.Status != ItemAvailable {
			return utils.ConflictError("item %s is %s and cannot be edited", item.Barcode, item.Status)
		}
		oldGross, oldPure := item.GrossWeight, item.PureWeight

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return utils.ValidationError("item name is required")
			}
			item.Name = name
		}
		if input.GrossWeight != nil {
			if !input.GrossWeight.IsPositive() {
				return utils.ValidationError("gross weight must be positive")
			}
			item.GrossWeight = *input.GrossWeight
		}
		if input.WastagePercent != nil {
			if err := validatePurity(*input.WastagePercent); err != nil {
				return err
			}
			item.WastagePercent = *input.WastagePercent
		}
		switch {
		case input.PureWeightOverride != nil:
			if input.PureWeightOverride.IsNegative() {
				return utils.ValidationError("pure weight must not be negative")
			}
			item.PureWeight = *input.PureWeightOverride
			item.PureWeightOverride = true
		case input.ClearOverride || !item.PureWeightOverride:
			item.PureWeight = computePureWeight(item.GrossWeight, item.WastagePercent, nil)
			item.PureWeightOverride = false
		}

		if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"name":                 item.Name,
			"gross_weight":         item.GrossWeight,
			"wastage_percent":      item.WastagePercent,
			"pure_weight":          item.PureWeight,
			"pure_weight_override": item.PureWeightOverride,
		}).Error; err != nil {
			return err
		}

		diff := item.PureWeight.Sub(oldPure)
		grossDiff := item.GrossWeight.Sub(oldGross)
		if !diff.IsZero() || !grossDiff.IsZero() {
			if err := writeStockLog(tx, item.ID, StockLogUpdate, stockMovement{weight: grossDiff, pure: diff},
				RefItem, item.ID, "", actorName(ctx)); err != nil {
				return err
			}
		}
		if item.Source == SourceVendor && item.VendorId != nil {
			if _, err := applyVendorDelta(tx, *item.VendorId, VendorStockUpdate, diff,
				RefItem, item.ID, item.Barcode, actorName(ctx)); err != nil {
				return err
			}
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "UPDATE_ITEM",
		Description:   fmt.Sprintf("Updated %s", updated.Barcode),
		ReferenceType: RefItem,
		ReferenceId:   updated.ID,
	})
	return updated, nil
}

// DeleteItem soft-deletes available stock. Vendor stock is returned to the
// vendor as a REPAYMENT of its pure weight.
func (e *Engine) DeleteItem(ctx context.Context, id int) error {
	var barcode string
	err := e.withTx(ctx, "DeleteItem", func(tx *gorm.DB) error {
		item, err := lockByID[InventoryItem](tx, id, "inventory item")
		if err != nil {
			return err
		}
		if item.IsDeleted || item.Status != ItemAvailable {
			return utils.ConflictError("item %s is %s and cannot be deleted", item.Barcode, item.Status)
		}
		if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"is_deleted": true,
			"status":     ItemDeleted,
		}).Error; err != nil {
			return err
		}
		if err := writeStockLog(tx, item.ID, StockLogDelete, stockMovement{
			weight: item.GrossWeight.Neg(), quantity: -item.Quantity, pure: item.PureWeight.Neg(),
		}, RefItem, item.ID, "", actorName(ctx)); err != nil {
			return err
		}
		if item.Source == SourceVendor && item.VendorId != nil {
			if _, err := applyVendorDelta(tx, *item.VendorId, VendorRepayment, item.PureWeight.Neg(),
				RefItem, item.ID, item.Barcode, actorName(ctx)); err != nil {
				return err
			}
		}
		barcode = item.Barcode
		return nil
	})
	if err != nil {
		return err
	}
	e.notify(ctx, AuditEvent{
		Action:        "DELETE_ITEM",
		Description:   fmt.Sprintf("Deleted %s", barcode),
		ReferenceType: RefItem,
		ReferenceId:   id,
	})
	return nil
}

// RestoreItem undoes DeleteItem, replaying the vendor entry with the exact
// magnitude of the REPAYMENT it wrote.
func (e *Engine) RestoreItem(ctx context.Context, id int) (*InventoryItem, error) {
	var restored *InventoryItem
	err := e.withTx(ctx, "RestoreItem", func(tx *gorm.DB) error {
		item, err := lockByID[InventoryItem](tx, id, "inventory item")
		if err != nil {
			return err
		}
		if !item.IsDeleted {
			return utils.ConflictError("item %s is not deleted", item.Barcode)
		}
		if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"is_deleted": false,
			"status":     ItemAvailable,
		}).Error; err != nil {
			return err
		}
		if err := writeStockLog(tx, item.ID, StockLogRestore, stockMovement{
			weight: item.GrossWeight, quantity: item.Quantity, pure: item.PureWeight,
		}, RefItem, item.ID, "", actorName(ctx)); err != nil {
			return err
		}
		if item.Source == SourceVendor && item.VendorId != nil {
			var repayment VendorTransaction
			err := tx.Where("vendor_id = ? AND type = ? AND reference_type = ? AND reference_id = ?",
				*item.VendorId, VendorRepayment, RefItem, item.ID).
				Order("id DESC").First(&repayment).Error
			if err != nil {
				return utils.ClassifyDBError(err, "vendor repayment for item", item.ID)
			}
			if _, err := applyVendorDelta(tx, *item.VendorId, VendorStockAdded, repayment.PureWeightDelta.Abs(),
				RefItem, item.ID, item.Barcode+" restored", actorName(ctx)); err != nil {
				return err
			}
		}
		item.IsDeleted = false
		item.Status = ItemAvailable
		restored = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "RESTORE_ITEM",
		Description:   fmt.Sprintf("Restored %s", restored.Barcode),
		ReferenceType: RefItem,
		ReferenceId:   restored.ID,
	})
	return restored, nil
}

// Restock adds weight and quantity to a bulk item and makes it available again.
func (e *Engine) Restock(ctx context.Context, id int, input *NewRestock) (*InventoryItem, error) {
	if !input.Weight.IsPositive() || input.Quantity < 0 {
		return nil, utils.ValidationError("restock needs a positive weight and a non-negative quantity")
	}
	var restocked *InventoryItem
	err := e.withTx(ctx, "Restock", func(tx *gorm.DB) error {
		item, err := lockByID[InventoryItem](tx, id, "inventory item")
		if err != nil {
			return err
		}
		if !item.StockType.tracksQuantity() {
			return utils.ValidationError("only bulk items can be restocked")
		}
		if item.IsDeleted {
			return utils.ConflictError("item %s is deleted", item.Barcode)
		}
		addedPure := computePureWeight(input.Weight, item.WastagePercent, nil)
		item.GrossWeight = item.GrossWeight.Add(input.Weight)
		item.Quantity += input.Quantity
		item.PureWeight = item.PureWeight.Add(addedPure)
		item.Status = ItemAvailable
		if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"gross_weight": item.GrossWeight,
			"quantity":     item.Quantity,
			"pure_weight":  item.PureWeight,
			"status":       item.Status,
		}).Error; err != nil {
			return err
		}
		if err := writeStockLog(tx, item.ID, StockLogRestock, stockMovement{
			weight: input.Weight, quantity: input.Quantity, pure: addedPure,
		}, RefItem, item.ID, input.Note, actorName(ctx)); err != nil {
			return err
		}
		if item.Source == SourceVendor && item.VendorId != nil {
			if _, err := applyVendorDelta(tx, *item.VendorId, VendorStockAdded, addedPure,
				RefItem, item.ID, item.Barcode+" restock", actorName(ctx)); err != nil {
				return err
			}
		}
		restocked = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "RESTOCK_ITEM",
		Description:   fmt.Sprintf("Restocked %s with %s g", restocked.Barcode, input.Weight.StringFixed(3)),
		ReferenceType: RefItem,
		ReferenceId:   restocked.ID,
	})
	return restocked, nil
}

// isExhausted applies the bulk SOLD rule: weight below 0.01 AND no pieces left.
func isExhausted(weight decimal.Decimal, quantity int) bool {
	return weight.LessThan(weightEpsilon) && quantity == 0
}

// AttachImageURLs fills the response-only URL fields from the stored object keys.
func (item *InventoryItem) AttachImageURLs() {
	item.ImageURL = utils.BuildObjectAccessURL(item.ImageKey)
	item.ThumbnailURL = utils.BuildObjectAccessURL(item.ThumbnailKey)
}
