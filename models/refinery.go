package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefineryBatch is old metal sent out to be melted and refined. Once received
// its pure weight can be paid to vendors or turned back into raw stock.
type RefineryBatch struct {
	ID             int              `gorm:"primary_key" json:"id"`
	RefineryName   string           `gorm:"size:150;not null" json:"refinery_name"`
	MetalType      MetalType        `gorm:"size:10;not null" json:"metal_type"`
	GrossWeight    decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"gross_weight"`
	TouchPercent   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"touch_percent"`
	ReceivedWeight decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"received_weight"`
	PureWeight     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"pure_weight"`
	UsedWeight     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"used_weight"`
	Status         RefineryStatus   `gorm:"size:15;not null;index" json:"status"`
	ActorName      string           `gorm:"size:100" json:"actor_name"`
	Items          []*OldMetalItem  `json:"items,omitempty"`
	Usages         []*RefineryUsage `json:"usages,omitempty"`
	ReceivedAt     *time.Time       `json:"received_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type RefineryUsage struct {
	ID              int               `gorm:"primary_key" json:"id"`
	RefineryBatchId int               `gorm:"index;not null" json:"refinery_batch_id"`
	Weight          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Mode            RefineryUsageMode `gorm:"size:20;not null" json:"mode"`
	VendorId        *int              `gorm:"index" json:"vendor_id"`
	InventoryItemId *int              `gorm:"index" json:"inventory_item_id"`
	Note            string            `gorm:"type:text" json:"note"`
	ActorName       string            `gorm:"size:100" json:"actor_name"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

type NewRefineryBatch struct {
	RefineryName    string `json:"refinery_name" binding:"required"`
	OldMetalItemIds []int  `json:"old_metal_item_ids" binding:"required,min=1"`
}

type ReceiveRefineryBatch struct {
	TouchPercent   decimal.Decimal `json:"touch_percent"`
	ReceivedWeight decimal.Decimal `json:"received_weight"`
}

type NewRefineryUsage struct {
	Weight   decimal.Decimal   `json:"weight"`
	Mode     RefineryUsageMode `json:"mode" binding:"required,oneof=VENDOR_PAYMENT INVENTORY"`
	VendorId *int              `json:"vendor_id"`
	// name of the raw item created in INVENTORY mode
	ItemName string `json:"item_name"`
	Note     string `json:"note"`
}

// CreateRefineryBatch sends in-stock old metal of a single metal type out.
func (e *Engine) CreateRefineryBatch(ctx context.Context, input *NewRefineryBatch) (*RefineryBatch, error) {
	name := strings.TrimSpace(input.RefineryName)
	if name == "" {
		return nil, utils.ValidationError("refinery name is required")
	}
	ids := utils.UniqueSlice(input.OldMetalItemIds)
	if len(ids) == 0 {
		return nil, utils.ValidationError("select at least one old metal item")
	}
	sort.Ints(ids)

	batch := RefineryBatch{RefineryName: name, Status: RefinerySent, ActorName: actorName(ctx)}
	err := e.withTx(ctx, "CreateRefineryBatch", func(tx *gorm.DB) error {
		var items []*OldMetalItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).Order("id").Find(&items).Error; err != nil {
			return err
		}
		if len(items) != len(ids) {
			return utils.NotFoundError("old metal item", ids)
		}
		gross := decimal.Zero
		for _, it := range items {
			if it.Status != OldMetalInStock {
				return utils.ConflictError("old metal item %d is already %s", it.ID, it.Status)
			}
			if batch.MetalType == "" {
				batch.MetalType = it.MetalType
			} else if batch.MetalType != it.MetalType {
				return utils.ValidationError("a batch cannot mix %s and %s", batch.MetalType, it.MetalType)
			}
			gross = gross.Add(it.GrossWeight)
		}
		batch.GrossWeight = gross
		if err := tx.Omit("Items", "Usages").Create(&batch).Error; err != nil {
			return err
		}
		if err := tx.Model(&OldMetalItem{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":            OldMetalSentToRefinery,
			"refinery_batch_id": batch.ID,
		}).Error; err != nil {
			return err
		}
		for _, it := range items {
			it.Status = OldMetalSentToRefinery
			it.RefineryBatchId = &batch.ID
		}
		batch.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "REFINERY_SENT",
		Description:   fmt.Sprintf("%s g %s sent to %s", batch.GrossWeight.StringFixed(3), batch.MetalType, batch.RefineryName),
		ReferenceType: RefRefineryBatch,
		ReferenceId:   batch.ID,
	})
	return &batch, nil
}

// ReceiveRefineryBatch records what came back; pure = received x touch / 100.
func (e *Engine) ReceiveRefineryBatch(ctx context.Context, batchId int, input *ReceiveRefineryBatch) (*RefineryBatch, error) {
	if !input.ReceivedWeight.IsPositive() {
		return nil, utils.ValidationError("received weight must be positive")
	}
	if err := validatePurity(input.TouchPercent); err != nil {
		return nil, utils.ValidationError("touch percent must be within (0, 100]")
	}
	var batch *RefineryBatch
	err := e.withTx(ctx, "ReceiveRefineryBatch", func(tx *gorm.DB) error {
		var err error
		if batch, err = lockByID[RefineryBatch](tx, batchId, "refinery batch"); err != nil {
			return err
		}
		if batch.Status != RefinerySent {
			return utils.ConflictError("refinery batch %d is already %s", batch.ID, batch.Status)
		}
		now := e.now()
		batch.TouchPercent = input.TouchPercent
		batch.ReceivedWeight = input.ReceivedWeight
		batch.PureWeight = computePureWeight(input.ReceivedWeight, input.TouchPercent, nil)
		batch.Status = RefineryRefined
		batch.ReceivedAt = &now
		return tx.Model(&RefineryBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
			"touch_percent":   batch.TouchPercent,
			"received_weight": batch.ReceivedWeight,
			"pure_weight":     batch.PureWeight,
			"status":          batch.Status,
			"received_at":     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "REFINERY_RECEIVED",
		Description:   fmt.Sprintf("Batch %d returned %s g pure", batch.ID, batch.PureWeight.StringFixed(3)),
		ReferenceType: RefRefineryBatch,
		ReferenceId:   batch.ID,
	})
	return batch, nil
}

// UseRefineryStock spends refined weight, either settling vendor debt or
// creating a RAW inventory item at 100% purity.
func (e *Engine) UseRefineryStock(ctx context.Context, batchId int, input *NewRefineryUsage) (*RefineryUsage, error) {
	if !input.Weight.IsPositive() {
		return nil, utils.ValidationError("weight must be positive")
	}
	switch input.Mode {
	case UsageVendorPayment:
		if input.VendorId == nil {
			return nil, utils.ValidationError("vendor_id is required for vendor payment")
		}
	case UsageInventory:
	default:
		return nil, utils.ValidationError("unknown usage mode %q", input.Mode)
	}
	actor := actorName(ctx)

	usage := RefineryUsage{
		RefineryBatchId: batchId,
		Weight:          input.Weight,
		Mode:            input.Mode,
		Note:            strings.TrimSpace(input.Note),
		ActorName:       actor,
	}
	err := e.withTx(ctx, "UseRefineryStock", func(tx *gorm.DB) error {
		batch, err := lockByID[RefineryBatch](tx, batchId, "refinery batch")
		if err != nil {
			return err
		}
		if batch.Status != RefineryRefined {
			return utils.ConflictError("refinery batch %d is %s", batch.ID, batch.Status)
		}
		remaining := batch.PureWeight.Sub(batch.UsedWeight)
		if input.Weight.GreaterThan(remaining.Add(refineryTolerance)) {
			return utils.ConflictError("batch %d has only %s g left", batch.ID, remaining.StringFixed(3))
		}

		switch input.Mode {
		case UsageVendorPayment:
			usage.VendorId = input.VendorId
			if _, err := applyVendorDelta(tx, *input.VendorId, VendorRefineryPayment, input.Weight.Neg(),
				RefRefineryBatch, batch.ID, usage.Note, actor); err != nil {
				return err
			}
		case UsageInventory:
			name := strings.TrimSpace(input.ItemName)
			if name == "" {
				name = fmt.Sprintf("Refined %s batch %d", strings.ToLower(string(batch.MetalType)), batch.ID)
			}
			item := InventoryItem{
				Name:           name,
				MetalType:      batch.MetalType,
				StockType:      StockRaw,
				Source:         SourceRefinery,
				GrossWeight:    input.Weight,
				WastagePercent: hundred,
				PureWeight:     input.Weight,
				Quantity:       1,
			}
			if err := createItem(tx, &item, RefRefineryBatch, batch.ID, actor); err != nil {
				return err
			}
			usage.InventoryItemId = &item.ID
		}
		if err := tx.Create(&usage).Error; err != nil {
			return err
		}

		used := batch.UsedWeight.Add(input.Weight)
		status := batch.Status
		if batch.PureWeight.Sub(used).LessThan(refineryTolerance) {
			status = RefineryCompleted
		}
		return tx.Model(&RefineryBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
			"used_weight": used,
			"status":      status,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "REFINERY_USED",
		Description:   fmt.Sprintf("%s g from batch %d used for %s", input.Weight.StringFixed(3), batchId, input.Mode),
		ReferenceType: RefRefineryBatch,
		ReferenceId:   batchId,
	})
	return &usage, nil
}

func (e *Engine) GetRefineryBatch(ctx context.Context, batchId int) (*RefineryBatch, error) {
	var batch RefineryBatch
	err := e.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Usages", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&batch, batchId).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err, "refinery batch", batchId)
	}
	return &batch, nil
}
