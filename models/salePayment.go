package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/jewel_backend/utils"
	"gorm.io/gorm"
)

// AddPayment settles part of an open bill and returns the updated bill.
func (e *Engine) AddPayment(ctx context.Context, saleId int, input *NewSalePayment) (*Sale, error) {
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationError("payment amount must be positive")
	}
	if _, err := assetColumnFor(input.PaymentMode); err != nil {
		return nil, err
	}
	actor := actorName(ctx)

	var sale *Sale
	err := e.withTx(ctx, "AddPayment", func(tx *gorm.DB) error {
		var err error
		sale, err = lockByID[Sale](tx, saleId, "bill")
		if err != nil {
			return err
		}
		if input.Amount.GreaterThan(sale.BalanceAmount) {
			return utils.ConflictError("payment %s exceeds outstanding balance %s",
				input.Amount.StringFixed(2), sale.BalanceAmount.StringFixed(2))
		}
		payment := SalePayment{SaleId: sale.ID, Amount: input.Amount, PaymentMode: input.PaymentMode, Note: input.Note, ActorName: actor}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := adjustShopAssets(tx, input.PaymentMode, input.Amount); err != nil {
			return err
		}
		sale.PaidAmount = sale.PaidAmount.Add(input.Amount)
		sale.BalanceAmount = sale.FinalAmount.Sub(sale.PaidAmount)
		sale.Status = saleStatusFor(sale.BalanceAmount)
		return tx.Model(&Sale{}).Where("id = ?", sale.ID).Updates(map[string]interface{}{
			"paid_amount":    sale.PaidAmount,
			"balance_amount": sale.BalanceAmount,
			"status":         sale.Status,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, AuditEvent{
		Action:        "ADD_PAYMENT",
		Description:   fmt.Sprintf("Received %s on %s", input.Amount.StringFixed(2), sale.InvoiceNumber),
		ReferenceType: RefSale,
		ReferenceId:   sale.ID,
		Payload:       map[string]any{"amount": input.Amount, "payment_mode": input.PaymentMode, "balance": sale.BalanceAmount},
	})
	return sale, nil
}
