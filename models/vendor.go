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

// Vendor is a supplier account. BalancePureWeight > 0 means the shop owes
// the vendor that much pure metal.
type Vendor struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Name              string          `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Phone             string          `gorm:"size:30" json:"phone"`
	BalancePureWeight decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_pure_weight"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// VendorTransaction is an append-only ledger row. BalanceAfter snapshots the
// vendor balance right after PureWeightDelta was applied.
type VendorTransaction struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	VendorId        int                   `gorm:"index;not null" json:"vendor_id"`
	Type            VendorTransactionType `gorm:"size:20;not null" json:"type"`
	PureWeightDelta decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"pure_weight_delta"`
	BalanceAfter    decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"balance_after"`
	ReferenceType   string                `gorm:"size:30;index:idx_vendor_tx_ref" json:"reference_type"`
	ReferenceId     int                   `gorm:"index:idx_vendor_tx_ref" json:"reference_id"`
	Note            string                `gorm:"type:text" json:"note"`
	ActorName       string                `gorm:"size:100" json:"actor_name"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

func (VendorTransaction) AppendOnlyLedger() bool { return true }

type NewVendor struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

type NewVendorRepayment struct {
	PureWeight decimal.Decimal `json:"pure_weight"`
	Note       string          `json:"note"`
}

type VendorLedger struct {
	Vendor       *Vendor              `json:"vendor"`
	Transactions []*VendorTransaction `json:"transactions"`
}

// LedgerCheck is the outcome of replaying a vendor ledger.
type LedgerCheck struct {
	VendorId      int             `json:"vendor_id"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	LedgerSum     decimal.Decimal `json:"ledger_sum"`
	LastSnapshot  decimal.Decimal `json:"last_snapshot"`
	BrokenRowIds  []int           `json:"broken_row_ids,omitempty"`
}

func (c LedgerCheck) Consistent() bool {
	return len(c.BrokenRowIds) == 0 &&
		c.StoredBalance.Equal(c.LedgerSum) &&
		c.StoredBalance.Equal(c.LastSnapshot)
}

// applyVendorDelta moves a vendor balance and appends the matching ledger row.
// A zero delta writes nothing.
func applyVendorDelta(tx *gorm.DB, vendorId int, txType VendorTransactionType, delta decimal.Decimal,
	refType string, refId int, note string, actor string) (*VendorTransaction, error) {

	if delta.IsZero() {
		return nil, nil
	}
	vendor, err := lockByID[Vendor](tx, vendorId, "vendor")
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&Vendor{}).Where("id = ?", vendorId).
		Update("balance_pure_weight", gorm.Expr("balance_pure_weight + ?", delta)).Error; err != nil {
		return nil, err
	}
	row := VendorTransaction{
		VendorId:        vendorId,
		Type:            txType,
		PureWeightDelta: delta,
		BalanceAfter:    vendor.BalancePureWeight.Add(delta),
		ReferenceType:   refType,
		ReferenceId:     refId,
		Note:            note,
		ActorName:       actor,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.ValidationError("vendor name is required")
	}
	vendor := Vendor{Name: name, Phone: strings.TrimSpace(input.Phone)}
	if vendor.Phone != "" {
		if err := utils.ValidatePhoneNumber(vendor.Phone, utils.CountryCode); err != nil {
			return nil, utils.ValidationError("invalid vendor phone: %v", err)
		}
	}
	if err := e.db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, utils.ClassifyDBError(err, "vendor", name)
	}
	return &vendor, nil
}

// RepayVendor records metal handed back to a vendor, reducing what the shop owes.
func (e *Engine) RepayVendor(ctx context.Context, vendorId int, input *NewVendorRepayment) (*VendorTransaction, error) {
	if !input.PureWeight.IsPositive() {
		return nil, utils.ValidationError("repayment weight must be positive")
	}
	var row *VendorTransaction
	err := e.withTx(ctx, "RepayVendor", func(tx *gorm.DB) error {
		var err error
		row, err = applyVendorDelta(tx, vendorId, VendorRepayment, input.PureWeight.Neg(),
			RefVendor, vendorId, input.Note, actorName(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "VENDOR_REPAYMENT",
		Description:   fmt.Sprintf("Repaid %s g pure to vendor #%d", input.PureWeight.StringFixed(3), vendorId),
		ReferenceType: RefVendor,
		ReferenceId:   vendorId,
	})
	return row, nil
}

func (e *Engine) GetVendorLedger(ctx context.Context, vendorId int) (*VendorLedger, error) {
	vendor, err := findByID[Vendor](ctx, e.db, vendorId, "vendor")
	if err != nil {
		return nil, err
	}
	var rows []*VendorTransaction
	if err := e.db.WithContext(ctx).Where("vendor_id = ?", vendorId).Order("id").Find(&rows).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return &VendorLedger{Vendor: vendor, Transactions: rows}, nil
}

// VerifyVendorLedger replays the ledger rows and compares them to the stored balance.
func (e *Engine) VerifyVendorLedger(ctx context.Context, vendorId int) (*LedgerCheck, error) {
	ledger, err := e.GetVendorLedger(ctx, vendorId)
	if err != nil {
		return nil, err
	}
	check := &LedgerCheck{VendorId: vendorId, StoredBalance: ledger.Vendor.BalancePureWeight}
	running := decimal.Zero
	for _, row := range ledger.Transactions {
		running = running.Add(row.PureWeightDelta)
		if !running.Equal(row.BalanceAfter) {
			check.BrokenRowIds = append(check.BrokenRowIds, row.ID)
		}
		check.LastSnapshot = row.BalanceAfter
	}
	check.LedgerSum = running
	return check, nil
}

func (e *Engine) ListVendorIds(ctx context.Context) ([]int, error) {
	var ids []int
	if err := e.db.WithContext(ctx).Model(&Vendor{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, utils.StorageError(err)
	}
	return ids, nil
}
