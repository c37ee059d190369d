package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	InvoiceNumber   string              `gorm:"size:40;not null;uniqueIndex" json:"invoice_number"`
	CustomerName    string              `gorm:"size:150" json:"customer_name"`
	CustomerPhone   string              `gorm:"size:30;index" json:"customer_phone"`
	CustomerAddress string              `gorm:"type:text" json:"customer_address"`
	GrossTotal      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"gross_total"`
	DiscountTotal   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"discount_total"`
	ExchangeTotal   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"exchange_total"`
	TaxableAmount   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"taxable_amount"`
	SGSTAmount      decimal.Decimal     `gorm:"column:sgst_amount;type:decimal(20,4);default:0" json:"sgst_amount"`
	CGSTAmount      decimal.Decimal     `gorm:"column:cgst_amount;type:decimal(20,4);default:0" json:"cgst_amount"`
	RoundOffAmount  decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"round_off_amount"`
	FinalAmount     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"final_amount"`
	PaidAmount      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	BalanceAmount   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	Status          SaleStatus          `gorm:"size:10;not null;index" json:"status"`
	IncludeGST      bool                `gorm:"column:include_gst;not null;default:false" json:"include_gst"`
	ActorName       string              `gorm:"size:100" json:"actor_name"`
	Items           []*SaleItem         `json:"items"`
	Payments        []*SalePayment      `json:"payments"`
	ExchangeItems   []*SaleExchangeItem `json:"exchange_items"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleItem keeps the exact amounts taken from inventory and from a neighbour
// shop's balance so a void can put them back unchanged.
type SaleItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SaleId          int             `gorm:"index;not null" json:"sale_id"`
	InventoryItemId *int            `gorm:"index" json:"inventory_item_id"`
	Description     string          `gorm:"size:255" json:"description"`
	MetalType       MetalType       `gorm:"size:10" json:"metal_type"`
	StockType       StockType       `gorm:"size:10" json:"stock_type"`
	Weight          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Quantity        int             `gorm:"not null;default:0" json:"quantity"`
	PureWeight      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pure_weight"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	MakingCharges   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"making_charges"`
	Discount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Total           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	ExternalShopId  *int            `gorm:"index" json:"external_shop_id"`
	ShopDebtWeight  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shop_debt_weight"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type SalePayment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleId      int             `gorm:"index;not null" json:"sale_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentMode PaymentMode     `gorm:"size:20;not null" json:"payment_mode"`
	Note        string          `gorm:"type:text" json:"note"`
	ActorName   string          `gorm:"size:100" json:"actor_name"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type SaleExchangeItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SaleId         int             `gorm:"index;not null" json:"sale_id"`
	OldMetalItemId int             `gorm:"index" json:"old_metal_item_id"`
	MetalType      MetalType       `gorm:"size:10;not null" json:"metal_type"`
	Description    string          `gorm:"size:255" json:"description"`
	GrossWeight    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_weight"`
	Purity         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purity"`
	PureWeight     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pure_weight"`
	Rate           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewBillCustomer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type NewBillItem struct {
	InventoryItemId *int            `json:"inventory_item_id"`
	Description     string          `json:"description"`
	MetalType       MetalType       `json:"metal_type"`
	Weight          decimal.Decimal `json:"weight"`
	Quantity        int             `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	MakingCharges   decimal.Decimal `json:"making_charges"`
	Discount        decimal.Decimal `json:"discount"`
	// line total after discount
	Total decimal.Decimal `json:"total"`
}

type NewSalePayment struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode PaymentMode     `json:"payment_mode" binding:"required,oneof=CASH CARD UPI BANK_TRANSFER"`
	Note        string          `json:"note"`
}

type NewBill struct {
	Customer      NewBillCustomer   `json:"customer"`
	Items         []NewBillItem     `json:"items" binding:"required,min=1,dive"`
	ExchangeItems []NewOldMetalItem `json:"exchange_items" binding:"dive"`
	IncludeGST    bool              `json:"include_gst"`
	// client-computed total, checked against the server figure
	NetPayable decimal.Decimal  `json:"net_payable"`
	Payments   []NewSalePayment `json:"payments" binding:"dive"`
}

func (input *NewBill) validate() error {
	input.Customer.Name = strings.TrimSpace(input.Customer.Name)
	input.Customer.Phone = strings.TrimSpace(input.Customer.Phone)
	if input.Customer.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Customer.Phone, utils.CountryCode)
		if err != nil {
			return utils.ValidationError("invalid customer phone: %v", err)
		}
		input.Customer.Phone = phone
	} else if config.RequireCustomerPhone() {
		return utils.ValidationError("customer phone is required")
	}
	if len(input.Items) == 0 {
		return utils.ValidationError("a bill needs at least one item")
	}
	seen := make(map[int]bool)
	for i, it := range input.Items {
		if it.Total.IsNegative() || it.Discount.IsNegative() || it.Weight.IsNegative() || it.Quantity < 0 {
			return utils.ValidationError("item %d: amounts must not be negative", i+1)
		}
		if it.InventoryItemId == nil {
			if strings.TrimSpace(it.Description) == "" {
				return utils.ValidationError("item %d: description is required for manual items", i+1)
			}
			if err := validateMetal(it.MetalType); err != nil {
				return err
			}
			continue
		}
		if seen[*it.InventoryItemId] {
			return utils.ValidationError("item %d: inventory item %d is listed twice", i+1, *it.InventoryItemId)
		}
		seen[*it.InventoryItemId] = true
	}
	for i := range input.ExchangeItems {
		if err := input.ExchangeItems[i].validate(); err != nil {
			return utils.ValidationError("exchange item %d: %s", i+1, utils.PublicMessage(err))
		}
	}
	for _, p := range input.Payments {
		if p.Amount.IsNegative() {
			return utils.ValidationError("payment amounts must not be negative")
		}
		if _, err := assetColumnFor(p.PaymentMode); err != nil {
			return err
		}
	}
	return nil
}

func newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102150405"), suffix)
}

func saleStatusFor(balance decimal.Decimal) SaleStatus {
	if balance.LessThanOrEqual(paidThreshold) {
		return SalePaid
	}
	return SalePartial
}

// lockInventoryItems locks every referenced item in ascending id order.
func lockInventoryItems(tx *gorm.DB, ids []int) (map[int]*InventoryItem, error) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	items := make(map[int]*InventoryItem, len(sorted))
	for _, id := range utils.UniqueSlice(sorted) {
		item, err := lockByID[InventoryItem](tx, id, "inventory item")
		if err != nil {
			return nil, err
		}
		items[id] = item
	}
	return items, nil
}

// saleTake is what one bill line removes from one inventory item.
type saleTake struct {
	weight   decimal.Decimal
	quantity int
	pure     decimal.Decimal
}

// planTake checks availability and works out the exact amounts a line takes.
func planTake(item *InventoryItem, line NewBillItem) (saleTake, error) {
	if item.IsDeleted || item.Status != ItemAvailable {
		return saleTake{}, utils.ConflictError("item %s no longer available", item.Barcode)
	}
	if !item.StockType.tracksQuantity() {
		return saleTake{weight: item.GrossWeight, quantity: 1, pure: item.PureWeight}, nil
	}
	if !line.Weight.IsPositive() && line.Quantity == 0 {
		return saleTake{}, utils.ValidationError("bulk item %s needs a weight or quantity", item.Barcode)
	}
	if line.Weight.GreaterThan(item.GrossWeight) || line.Quantity > item.Quantity {
		return saleTake{}, utils.ConflictError("item %s has only %s g / %d pcs left",
			item.Barcode, item.GrossWeight.StringFixed(3), item.Quantity)
	}
	pure := computePureWeight(line.Weight, item.WastagePercent, nil)
	if pure.GreaterThan(item.PureWeight) || line.Weight.Equal(item.GrossWeight) {
		pure = item.PureWeight
	}
	return saleTake{weight: line.Weight, quantity: line.Quantity, pure: pure}, nil
}

// CreateBill records a sale and every balance it moves in one transaction.
func (e *Engine) CreateBill(ctx context.Context, input *NewBill) (*Sale, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	actor := actorName(ctx)

	var sale Sale
	err := e.withTx(ctx, "CreateBill", func(tx *gorm.DB) error {
		var ids []int
		for _, it := range input.Items {
			if it.InventoryItemId != nil {
				ids = append(ids, *it.InventoryItemId)
			}
		}
		items, err := lockInventoryItems(tx, ids)
		if err != nil {
			return err
		}
		takes := make([]saleTake, len(input.Items))
		for i, it := range input.Items {
			if it.InventoryItemId == nil {
				continue
			}
			if takes[i], err = planTake(items[*it.InventoryItemId], it); err != nil {
				return err
			}
		}
		if err := lockNeighbourShops(tx, items); err != nil {
			return err
		}

		lines := make([]billLineAmount, len(input.Items))
		for i, it := range input.Items {
			lines[i] = billLineAmount{total: it.Total, discount: it.Discount}
		}
		exchangeAmounts := make([]decimal.Decimal, len(input.ExchangeItems))
		for i, ex := range input.ExchangeItems {
			exchangeAmounts[i] = ex.Amount
		}
		totals := computeBillTotals(lines, exchangeAmounts, input.IncludeGST)
		if totals.NetPayable.Sub(input.NetPayable).Abs().GreaterThan(netPayableTolerance) {
			return utils.IntegrityViolation("price mismatch: server total %s, client total %s",
				totals.NetPayable.StringFixed(2), input.NetPayable.StringFixed(2))
		}
		if totals.NetPayable.IsNegative() {
			return utils.ValidationError("exchange value exceeds the bill amount")
		}

		paid := decimal.Zero
		for _, p := range input.Payments {
			paid = paid.Add(p.Amount)
		}
		if paid.GreaterThan(totals.NetPayable) {
			return utils.ValidationError("payments %s exceed bill amount %s",
				paid.StringFixed(2), totals.NetPayable.StringFixed(2))
		}
		balance := totals.NetPayable.Sub(paid)

		sale = Sale{
			InvoiceNumber:   newInvoiceNumber(e.now()),
			CustomerName:    input.Customer.Name,
			CustomerPhone:   input.Customer.Phone,
			CustomerAddress: input.Customer.Address,
			GrossTotal:      totals.GrossTotal,
			DiscountTotal:   totals.DiscountTotal,
			ExchangeTotal:   totals.ExchangeTotal,
			TaxableAmount:   totals.TaxableAmount,
			SGSTAmount:      totals.SGSTAmount,
			CGSTAmount:      totals.CGSTAmount,
			RoundOffAmount:  totals.RoundOff,
			FinalAmount:     totals.NetPayable,
			PaidAmount:      paid,
			BalanceAmount:   balance,
			Status:          saleStatusFor(balance),
			IncludeGST:      input.IncludeGST,
			ActorName:       actor,
		}
		if err := tx.Omit("Items", "Payments", "ExchangeItems").Create(&sale).Error; err != nil {
			return err
		}

		for i, it := range input.Items {
			line, err := e.recordSaleLine(tx, &sale, it, items, takes[i], actor)
			if err != nil {
				return err
			}
			sale.Items = append(sale.Items, line)
		}

		exchange, err := recordExchange(tx, &sale, input.ExchangeItems, actor)
		if err != nil {
			return err
		}
		sale.ExchangeItems = exchange

		for _, p := range input.Payments {
			if p.Amount.IsZero() {
				continue
			}
			payment := SalePayment{SaleId: sale.ID, Amount: p.Amount, PaymentMode: p.PaymentMode, Note: p.Note, ActorName: actor}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			if err := adjustShopAssets(tx, p.PaymentMode, p.Amount); err != nil {
				return err
			}
			sale.Payments = append(sale.Payments, &payment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "CREATE_BILL",
		Description:   fmt.Sprintf("Bill %s created for %s", sale.InvoiceNumber, sale.FinalAmount.StringFixed(2)),
		ReferenceType: RefSale,
		ReferenceId:   sale.ID,
		Payload: map[string]any{
			"invoice_number": sale.InvoiceNumber,
			"final_amount":   sale.FinalAmount,
			"paid_amount":    sale.PaidAmount,
		},
	})
	return &sale, nil
}

// lockNeighbourShops takes the shop rows of borrowed pieces before any line
// posts debt to them.
func lockNeighbourShops(tx *gorm.DB, items map[int]*InventoryItem) error {
	var shopIds []int
	for _, item := range items {
		if item.Source == SourceNeighbour && item.ExternalShopId != nil {
			shopIds = append(shopIds, *item.ExternalShopId)
		}
	}
	return lockExternalShops(tx, shopIds)
}

// lockExternalShops locks each distinct shop row in ascending id order.
func lockExternalShops(tx *gorm.DB, shopIds []int) error {
	shopIds = utils.UniqueSlice(shopIds)
	sort.Ints(shopIds)
	for _, id := range shopIds {
		if _, err := lockByID[ExternalShop](tx, id, "external shop"); err != nil {
			return err
		}
	}
	return nil
}

// recordSaleLine stores one SaleItem and takes its stock, posting neighbour
// debt when the item was borrowed.
func (e *Engine) recordSaleLine(tx *gorm.DB, sale *Sale, it NewBillItem, items map[int]*InventoryItem, take saleTake, actor string) (*SaleItem, error) {
	line := SaleItem{
		SaleId:        sale.ID,
		Description:   strings.TrimSpace(it.Description),
		MetalType:     it.MetalType,
		Weight:        it.Weight,
		Quantity:      it.Quantity,
		Rate:          it.Rate,
		MakingCharges: it.MakingCharges,
		Discount:      it.Discount,
		Total:         it.Total,
	}
	if it.InventoryItemId == nil {
		if err := tx.Create(&line).Error; err != nil {
			return nil, err
		}
		return &line, nil
	}

	item := items[*it.InventoryItemId]
	line.InventoryItemId = &item.ID
	line.MetalType = item.MetalType
	line.StockType = item.StockType
	line.Weight = take.weight
	line.Quantity = take.quantity
	line.PureWeight = take.pure
	if line.Description == "" {
		line.Description = item.Name
	}

	if item.StockType.tracksQuantity() {
		item.GrossWeight = item.GrossWeight.Sub(take.weight)
		item.Quantity -= take.quantity
		item.PureWeight = item.PureWeight.Sub(take.pure)
		if isExhausted(item.GrossWeight, item.Quantity) {
			item.Status = ItemSold
		}
	} else {
		item.Status = ItemSold
	}
	if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"gross_weight": item.GrossWeight,
		"quantity":     item.Quantity,
		"pure_weight":  item.PureWeight,
		"status":       item.Status,
	}).Error; err != nil {
		return nil, err
	}

	if item.Source == SourceNeighbour && item.ExternalShopId != nil {
		line.ExternalShopId = item.ExternalShopId
		line.ShopDebtWeight = take.weight
	}
	if err := tx.Create(&line).Error; err != nil {
		return nil, err
	}
	if err := writeStockLog(tx, item.ID, StockLogSale, stockMovement{
		weight: take.weight.Neg(), quantity: -take.quantity, pure: take.pure.Neg(),
	}, RefSale, sale.ID, sale.InvoiceNumber, actor); err != nil {
		return nil, err
	}
	if line.ExternalShopId != nil && line.ShopDebtWeight.IsPositive() {
		if _, err := recordShopTransaction(tx, *line.ExternalShopId, ShopBorrowAdd,
			metalAmounts(item.MetalType, line.ShopDebtWeight), "", RefSale, sale.ID,
			fmt.Sprintf("%s sold on %s", item.Barcode, sale.InvoiceNumber), actor); err != nil {
			return nil, err
		}
	}
	return &line, nil
}

func (e *Engine) GetBill(ctx context.Context, id int) (*Sale, error) {
	var sale Sale
	err := e.db.WithContext(ctx).
		Preload("Items").Preload("Payments").Preload("ExchangeItems").
		First(&sale, id).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err, "bill", id)
	}
	return &sale, nil
}
