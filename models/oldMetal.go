package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OldMetalPurchase is scrap metal taken in, either against a bill (EXCHANGE)
// or bought outright (DIRECT).
type OldMetalPurchase struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Source        OldMetalSource  `gorm:"size:10;not null" json:"source"`
	SaleId        *int            `gorm:"index" json:"sale_id"`
	CustomerName  string          `gorm:"size:150" json:"customer_name"`
	CustomerPhone string          `gorm:"size:30" json:"customer_phone"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaymentMode   PaymentMode     `gorm:"size:20" json:"payment_mode"`
	ActorName     string          `gorm:"size:100" json:"actor_name"`
	Items         []*OldMetalItem `json:"items"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type OldMetalItem struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	OldMetalPurchaseId int             `gorm:"index;not null" json:"old_metal_purchase_id"`
	MetalType          MetalType       `gorm:"size:10;not null" json:"metal_type"`
	Description        string          `gorm:"size:255" json:"description"`
	GrossWeight        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_weight"`
	Purity             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purity"`
	PureWeight         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pure_weight"`
	Rate               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status             OldMetalStatus  `gorm:"size:20;not null;index" json:"status"`
	RefineryBatchId    *int            `gorm:"index" json:"refinery_batch_id"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOldMetalItem struct {
	MetalType   MetalType       `json:"metal_type" binding:"required,oneof=GOLD SILVER"`
	Description string          `json:"description"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	Purity      decimal.Decimal `json:"purity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

func (input NewOldMetalItem) validate() error {
	if err := validateMetal(input.MetalType); err != nil {
		return err
	}
	if !input.GrossWeight.IsPositive() {
		return utils.ValidationError("gross weight must be positive")
	}
	if err := validatePurity(input.Purity); err != nil {
		return err
	}
	if input.Amount.IsNegative() || input.Rate.IsNegative() {
		return utils.ValidationError("amount and rate must not be negative")
	}
	return nil
}

type NewScrapPurchase struct {
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	PaymentMode   PaymentMode       `json:"payment_mode" binding:"required,oneof=CASH CARD UPI BANK_TRANSFER"`
	Items         []NewOldMetalItem `json:"items" binding:"required,min=1,dive"`
}

func createOldMetalPurchase(tx *gorm.DB, purchase *OldMetalPurchase, inputs []NewOldMetalItem) error {
	total := decimal.Zero
	for _, in := range inputs {
		total = total.Add(in.Amount)
	}
	purchase.TotalAmount = total
	if err := tx.Omit("Items").Create(purchase).Error; err != nil {
		return err
	}
	for _, in := range inputs {
		item := OldMetalItem{
			OldMetalPurchaseId: purchase.ID,
			MetalType:          in.MetalType,
			Description:        strings.TrimSpace(in.Description),
			GrossWeight:        in.GrossWeight,
			Purity:             in.Purity,
			PureWeight:         computePureWeight(in.GrossWeight, in.Purity, nil),
			Rate:               in.Rate,
			Amount:             in.Amount,
			Status:             OldMetalInStock,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		purchase.Items = append(purchase.Items, &item)
	}
	return nil
}

// recordExchange stores the old metal taken against a bill. No money moves:
// the exchange value is already netted into the bill total.
func recordExchange(tx *gorm.DB, sale *Sale, inputs []NewOldMetalItem, actor string) ([]*SaleExchangeItem, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	purchase := OldMetalPurchase{
		Source:        OldMetalExchange,
		SaleId:        &sale.ID,
		CustomerName:  sale.CustomerName,
		CustomerPhone: sale.CustomerPhone,
		ActorName:     actor,
	}
	if err := createOldMetalPurchase(tx, &purchase, inputs); err != nil {
		return nil, err
	}
	rows := make([]*SaleExchangeItem, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		row := SaleExchangeItem{
			SaleId:         sale.ID,
			OldMetalItemId: item.ID,
			MetalType:      item.MetalType,
			Description:    item.Description,
			GrossWeight:    item.GrossWeight,
			Purity:         item.Purity,
			PureWeight:     item.PureWeight,
			Rate:           item.Rate,
			Amount:         item.Amount,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// CreateScrapPurchase buys old metal for money paid out of the shop.
func (e *Engine) CreateScrapPurchase(ctx context.Context, input *NewScrapPurchase) (*OldMetalPurchase, error) {
	if len(input.Items) == 0 {
		return nil, utils.ValidationError("a purchase needs at least one item")
	}
	for i, it := range input.Items {
		if err := it.validate(); err != nil {
			return nil, utils.ValidationError("item %d: %s", i+1, utils.PublicMessage(err))
		}
	}
	if _, err := assetColumnFor(input.PaymentMode); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(input.CustomerPhone)
	if phone != "" {
		normalized, err := utils.NormalizePhoneNumber(phone, utils.CountryCode)
		if err != nil {
			return nil, utils.ValidationError("invalid customer phone: %v", err)
		}
		phone = normalized
	}

	purchase := OldMetalPurchase{
		Source:        OldMetalDirect,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: phone,
		PaymentMode:   input.PaymentMode,
		ActorName:     actorName(ctx),
	}
	err := e.withTx(ctx, "CreateScrapPurchase", func(tx *gorm.DB) error {
		if err := createOldMetalPurchase(tx, &purchase, input.Items); err != nil {
			return err
		}
		return adjustShopAssets(tx, input.PaymentMode, purchase.TotalAmount.Neg())
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "SCRAP_PURCHASE",
		Description:   fmt.Sprintf("Bought old metal for %s", purchase.TotalAmount.StringFixed(2)),
		ReferenceType: "OLD_METAL_PURCHASE",
		ReferenceId:   purchase.ID,
	})
	return &purchase, nil
}

func (e *Engine) ListOldMetalInStock(ctx context.Context, metal MetalType) ([]*OldMetalItem, error) {
	var rows []*OldMetalItem
	q := e.db.WithContext(ctx).Where("status = ?", OldMetalInStock)
	if metal != "" {
		q = q.Where("metal_type = ?", metal)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return rows, nil
}
