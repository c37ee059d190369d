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

// ChitPlan is a customer savings scheme paid monthly. GOLD plans convert every
// payment into gold weight at the day's rate.
type ChitPlan struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CustomerName    string          `gorm:"size:150;not null" json:"customer_name"`
	CustomerPhone   string          `gorm:"size:30;index" json:"customer_phone"`
	Type            ChitType        `gorm:"size:10;not null" json:"type"`
	MonthlyAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_amount"`
	DurationMonths  int             `gorm:"not null" json:"duration_months"`
	TotalPaid       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_paid"`
	TotalGoldWeight decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_gold_weight"`
	BonusAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_amount"`
	Status          ChitStatus      `gorm:"size:10;not null;index" json:"status"`
	ClosedAt        *time.Time      `json:"closed_at"`
	Payments        []*ChitPayment  `json:"payments,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ChitPayment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ChitPlanId  int             `gorm:"index;not null" json:"chit_plan_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Rate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	GoldWeight  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gold_weight"`
	PaymentDate string          `gorm:"size:10" json:"payment_date"`
	ActorName   string          `gorm:"size:100" json:"actor_name"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewChit struct {
	CustomerName   string          `json:"customer_name" binding:"required"`
	CustomerPhone  string          `json:"customer_phone"`
	Type           ChitType        `json:"type" binding:"required,oneof=AMOUNT GOLD"`
	MonthlyAmount  decimal.Decimal `json:"monthly_amount"`
	DurationMonths int             `json:"duration_months" binding:"required,min=1"`
}

type NewChitAmount struct {
	Amount decimal.Decimal `json:"amount"`
}

func (input *NewChit) validate() error {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	if input.CustomerName == "" {
		return utils.ValidationError("customer name is required")
	}
	if input.Type != ChitAmount && input.Type != ChitGold {
		return utils.ValidationError("unknown chit type %q", input.Type)
	}
	if !input.MonthlyAmount.IsPositive() {
		return utils.ValidationError("monthly amount must be positive")
	}
	if input.DurationMonths <= 0 {
		return utils.ValidationError("duration must be at least one month")
	}
	if phone := strings.TrimSpace(input.CustomerPhone); phone != "" {
		normalized, err := utils.NormalizePhoneNumber(phone, utils.CountryCode)
		if err != nil {
			return utils.ValidationError("invalid customer phone: %v", err)
		}
		input.CustomerPhone = normalized
	}
	return nil
}

func (e *Engine) CreateChit(ctx context.Context, input *NewChit) (*ChitPlan, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	plan := ChitPlan{
		CustomerName:   input.CustomerName,
		CustomerPhone:  input.CustomerPhone,
		Type:           input.Type,
		MonthlyAmount:  input.MonthlyAmount,
		DurationMonths: input.DurationMonths,
		Status:         ChitActive,
	}
	err := e.withTx(ctx, "CreateChit", func(tx *gorm.DB) error {
		return tx.Omit("Payments").Create(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "CREATE_CHIT",
		Description:   fmt.Sprintf("%s chit opened for %s", plan.Type, plan.CustomerName),
		ReferenceType: "CHIT",
		ReferenceId:   plan.ID,
	})
	return &plan, nil
}

func lockActiveChit(tx *gorm.DB, planId int) (*ChitPlan, error) {
	plan, err := lockByID[ChitPlan](tx, planId, "chit")
	if err != nil {
		return nil, err
	}
	if plan.Status != ChitActive {
		return nil, utils.ConflictError("chit %d is %s", plan.ID, plan.Status)
	}
	return plan, nil
}

// PayChit records one instalment. The money always lands in the cash balance.
func (e *Engine) PayChit(ctx context.Context, planId int, input *NewChitAmount) (*ChitPayment, error) {
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationError("amount must be positive")
	}
	day := e.today()
	payment := ChitPayment{ChitPlanId: planId, Amount: input.Amount, PaymentDate: day, ActorName: actorName(ctx)}

	err := e.withTx(ctx, "PayChit", func(tx *gorm.DB) error {
		plan, err := lockActiveChit(tx, planId)
		if err != nil {
			return err
		}
		if plan.Type == ChitGold {
			rate, err := rateForDay(tx, RateGold999, day)
			if err != nil {
				return err
			}
			if !rate.IsPositive() {
				return utils.ValidationError("no %s rate published for %s", RateGold999, day)
			}
			payment.Rate = rate
			payment.GoldWeight = input.Amount.DivRound(rate, 4)
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := tx.Model(&ChitPlan{}).Where("id = ?", plan.ID).Updates(map[string]interface{}{
			"total_paid":        gorm.Expr("total_paid + ?", payment.Amount),
			"total_gold_weight": gorm.Expr("total_gold_weight + ?", payment.GoldWeight),
		}).Error; err != nil {
			return err
		}
		return adjustShopAssets(tx, PaymentCash, payment.Amount)
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "CHIT_PAYMENT",
		Description:   fmt.Sprintf("Chit %d paid %s", planId, payment.Amount.StringFixed(2)),
		ReferenceType: "CHIT",
		ReferenceId:   planId,
		Payload:       map[string]any{"gold_weight": payment.GoldWeight, "rate": payment.Rate},
	})
	return &payment, nil
}

func (e *Engine) AddChitBonus(ctx context.Context, planId int, input *NewChitAmount) (*ChitPlan, error) {
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationError("bonus must be positive")
	}
	var plan *ChitPlan
	err := e.withTx(ctx, "AddChitBonus", func(tx *gorm.DB) error {
		var err error
		if plan, err = lockActiveChit(tx, planId); err != nil {
			return err
		}
		plan.BonusAmount = plan.BonusAmount.Add(input.Amount)
		return tx.Model(&ChitPlan{}).Where("id = ?", plan.ID).Update("bonus_amount", plan.BonusAmount).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "CHIT_BONUS",
		Description:   fmt.Sprintf("Chit %d bonus %s", planId, input.Amount.StringFixed(2)),
		ReferenceType: "CHIT",
		ReferenceId:   planId,
	})
	return plan, nil
}

// CloseChit only changes status; settlement happens on a bill.
func (e *Engine) CloseChit(ctx context.Context, planId int) (*ChitPlan, error) {
	var plan *ChitPlan
	err := e.withTx(ctx, "CloseChit", func(tx *gorm.DB) error {
		var err error
		if plan, err = lockActiveChit(tx, planId); err != nil {
			return err
		}
		now := e.now()
		plan.Status = ChitClosed
		plan.ClosedAt = &now
		return tx.Model(&ChitPlan{}).Where("id = ?", plan.ID).Updates(map[string]interface{}{
			"status":    plan.Status,
			"closed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "CLOSE_CHIT",
		Description:   fmt.Sprintf("Chit %d closed", planId),
		ReferenceType: "CHIT",
		ReferenceId:   planId,
	})
	return plan, nil
}

func (e *Engine) GetChit(ctx context.Context, planId int) (*ChitPlan, error) {
	var plan ChitPlan
	err := e.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&plan, planId).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err, "chit", planId)
	}
	return &plan, nil
}
