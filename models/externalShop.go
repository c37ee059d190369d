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

// ExternalShop is a neighbouring shop we borrow from or lend to.
// Positive balances mean we owe them.
type ExternalShop struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Phone         string          `gorm:"size:30" json:"phone"`
	BalanceGold   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_gold"`
	BalanceSilver decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_silver"`
	BalanceCash   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_cash"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShopTransaction stores absolute magnitudes; the sign comes from Type.
type ShopTransaction struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	ExternalShopId int                 `gorm:"index;not null" json:"external_shop_id"`
	Type           ShopTransactionType `gorm:"size:20;not null" json:"type"`
	GoldWeight     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"gold_weight"`
	SilverWeight   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"silver_weight"`
	CashAmount     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"cash_amount"`
	PaymentMode    PaymentMode         `gorm:"size:20" json:"payment_mode"`
	ReferenceType  string              `gorm:"size:30;index:idx_shop_tx_ref" json:"reference_type"`
	ReferenceId    int                 `gorm:"index:idx_shop_tx_ref" json:"reference_id"`
	Note           string              `gorm:"type:text" json:"note"`
	ActorName      string              `gorm:"size:100" json:"actor_name"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (t ShopTransaction) magnitudes() ShopAmounts {
	return ShopAmounts{Gold: t.GoldWeight, Silver: t.SilverWeight, Cash: t.CashAmount}
}

type NewExternalShop struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

type NewShopTransaction struct {
	Type         ShopTransactionType `json:"type" binding:"required,oneof=BORROW_ADD BORROW_REPAY LEND_ADD LEND_COLLECT"`
	GoldWeight   decimal.Decimal     `json:"gold_weight"`
	SilverWeight decimal.Decimal     `json:"silver_weight"`
	CashAmount   decimal.Decimal     `json:"cash_amount"`
	PaymentMode  PaymentMode         `json:"payment_mode"`
	Note         string              `json:"note"`
}

func (input NewShopTransaction) validate() error {
	if _, ok := shopSigns[input.Type]; !ok {
		return utils.ValidationError("unknown shop transaction type %q", input.Type)
	}
	if input.GoldWeight.IsNegative() || input.SilverWeight.IsNegative() || input.CashAmount.IsNegative() {
		return utils.ValidationError("amounts must not be negative")
	}
	if input.GoldWeight.IsZero() && input.SilverWeight.IsZero() && input.CashAmount.IsZero() {
		return utils.ValidationError("at least one of gold, silver or cash is required")
	}
	if input.CashAmount.IsPositive() && input.PaymentMode != "" {
		if _, err := assetColumnFor(input.PaymentMode); err != nil {
			return err
		}
	}
	return nil
}

// applyShopDelta locks the shop row and adds signed amounts to its balances.
func applyShopDelta(tx *gorm.DB, shopId int, delta ShopAmounts) error {
	if _, err := lockByID[ExternalShop](tx, shopId, "external shop"); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	return tx.Model(&ExternalShop{}).Where("id = ?", shopId).Updates(map[string]interface{}{
		"balance_gold":   gorm.Expr("balance_gold + ?", delta.Gold),
		"balance_silver": gorm.Expr("balance_silver + ?", delta.Silver),
		"balance_cash":   gorm.Expr("balance_cash + ?", delta.Cash),
	}).Error
}

// recordShopTransaction applies the signed delta of a new row and stores the row.
// The cash leg also moves the shop's own money on the column chosen by mode.
func recordShopTransaction(tx *gorm.DB, shopId int, txType ShopTransactionType, magnitudes ShopAmounts,
	mode PaymentMode, refType string, refId int, note string, actor string) (*ShopTransaction, error) {

	delta, err := ShopDelta(txType, magnitudes)
	if err != nil {
		return nil, err
	}
	if err := applyShopDelta(tx, shopId, delta); err != nil {
		return nil, err
	}
	if !delta.Cash.IsZero() {
		if mode == "" {
			mode = PaymentCash
		}
		if err := adjustShopAssets(tx, mode, delta.Cash); err != nil {
			return nil, err
		}
	}
	row := ShopTransaction{
		ExternalShopId: shopId,
		Type:           txType,
		GoldWeight:     magnitudes.Gold.Abs(),
		SilverWeight:   magnitudes.Silver.Abs(),
		CashAmount:     magnitudes.Cash.Abs(),
		PaymentMode:    mode,
		ReferenceType:  refType,
		ReferenceId:    refId,
		Note:           note,
		ActorName:      actor,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) CreateExternalShop(ctx context.Context, input *NewExternalShop) (*ExternalShop, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.ValidationError("shop name is required")
	}
	shop := ExternalShop{Name: name, Phone: strings.TrimSpace(input.Phone)}
	if shop.Phone != "" {
		if err := utils.ValidatePhoneNumber(shop.Phone, utils.CountryCode); err != nil {
			return nil, utils.ValidationError("invalid shop phone: %v", err)
		}
	}
	if err := e.db.WithContext(ctx).Create(&shop).Error; err != nil {
		return nil, utils.ClassifyDBError(err, "external shop", name)
	}
	return &shop, nil
}

func (e *Engine) GetExternalShop(ctx context.Context, shopId int) (*ExternalShop, error) {
	return findByID[ExternalShop](ctx, e.db, shopId, "external shop")
}

func (e *Engine) CreateShopTransaction(ctx context.Context, shopId int, input *NewShopTransaction) (*ShopTransaction, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	magnitudes := ShopAmounts{Gold: input.GoldWeight, Silver: input.SilverWeight, Cash: input.CashAmount}

	var row *ShopTransaction
	err := e.withTx(ctx, "CreateShopTransaction", func(tx *gorm.DB) error {
		var err error
		row, err = recordShopTransaction(tx, shopId, input.Type, magnitudes, input.PaymentMode,
			RefManual, 0, input.Note, actorName(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "SHOP_TRANSACTION",
		Description:   fmt.Sprintf("%s with shop #%d", input.Type, shopId),
		ReferenceType: "SHOP_TRANSACTION",
		ReferenceId:   row.ID,
		Payload:       map[string]any{"gold": magnitudes.Gold, "silver": magnitudes.Silver, "cash": magnitudes.Cash},
	})
	return row, nil
}

// DeleteShopTransaction undoes a manual shop transaction by applying the inverse
// of its stored delta. Rows written by billing are reversed through void instead.
func (e *Engine) DeleteShopTransaction(ctx context.Context, id int) error {
	var deleted ShopTransaction
	err := e.withTx(ctx, "DeleteShopTransaction", func(tx *gorm.DB) error {
		row, err := lockByID[ShopTransaction](tx, id, "shop transaction")
		if err != nil {
			return err
		}
		if row.ReferenceType == RefSale {
			return utils.ConflictError("transaction %d belongs to bill %d; void the bill instead", id, row.ReferenceId)
		}
		inverse, err := InverseShopDelta(row.Type, row.magnitudes())
		if err != nil {
			return err
		}
		if err := applyShopDelta(tx, row.ExternalShopId, inverse); err != nil {
			return err
		}
		if !inverse.Cash.IsZero() {
			mode := row.PaymentMode
			if mode == "" {
				mode = PaymentCash
			}
			if err := adjustShopAssets(tx, mode, inverse.Cash); err != nil {
				return err
			}
		}
		if err := tx.Delete(&ShopTransaction{}, row.ID).Error; err != nil {
			return err
		}
		deleted = *row
		return nil
	})
	if err != nil {
		return err
	}
	e.notify(ctx, AuditEvent{
		Action:        "SHOP_TRANSACTION_DELETE",
		Description:   fmt.Sprintf("Undid %s with shop #%d", deleted.Type, deleted.ExternalShopId),
		ReferenceType: "SHOP_TRANSACTION",
		ReferenceId:   id,
	})
	return nil
}

func (e *Engine) ListShopTransactions(ctx context.Context, shopId int) ([]*ShopTransaction, error) {
	var rows []*ShopTransaction
	if err := e.db.WithContext(ctx).Where("external_shop_id = ?", shopId).Order("id").Find(&rows).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return rows, nil
}

// ShopBalanceCheck compares a shop's stored balances with the replay of its
// transaction rows.
type ShopBalanceCheck struct {
	ExternalShopId int         `json:"external_shop_id"`
	Stored         ShopAmounts `json:"stored"`
	Replayed       ShopAmounts `json:"replayed"`
}

func (c ShopBalanceCheck) Consistent() bool {
	return c.Stored.Gold.Equal(c.Replayed.Gold) &&
		c.Stored.Silver.Equal(c.Replayed.Silver) &&
		c.Stored.Cash.Equal(c.Replayed.Cash)
}

func (e *Engine) VerifyShopBalance(ctx context.Context, shopId int) (*ShopBalanceCheck, error) {
	shop, err := e.GetExternalShop(ctx, shopId)
	if err != nil {
		return nil, err
	}
	rows, err := e.ListShopTransactions(ctx, shopId)
	if err != nil {
		return nil, err
	}
	check := &ShopBalanceCheck{
		ExternalShopId: shopId,
		Stored:         ShopAmounts{Gold: shop.BalanceGold, Silver: shop.BalanceSilver, Cash: shop.BalanceCash},
	}
	for _, row := range rows {
		delta, err := ShopDelta(row.Type, row.magnitudes())
		if err != nil {
			return nil, utils.IntegrityViolation("shop transaction %d has unknown type %q", row.ID, row.Type)
		}
		check.Replayed = ShopAmounts{
			Gold:   check.Replayed.Gold.Add(delta.Gold),
			Silver: check.Replayed.Silver.Add(delta.Silver),
			Cash:   check.Replayed.Cash.Add(delta.Cash),
		}
	}
	return check, nil
}

func (e *Engine) ListExternalShopIds(ctx context.Context) ([]int, error) {
	var ids []int
	if err := e.db.WithContext(ctx).Model(&ExternalShop{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return ids, nil
}
