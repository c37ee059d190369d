package models

import "github.com/shopspring/decimal"

// SGST and CGST are each charged at 1.5% of the taxable amount.
var gstHalfRate = decimal.NewFromFloat(0.015)

type BillTotals struct {
	GrossTotal    decimal.Decimal `json:"gross_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	// exchange credit, zero or negative
	ExchangeTotal decimal.Decimal `json:"exchange_total"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	SGSTAmount    decimal.Decimal `json:"sgst_amount"`
	CGSTAmount    decimal.Decimal `json:"cgst_amount"`
	RoundOff      decimal.Decimal `json:"round_off_amount"`
	NetPayable    decimal.Decimal `json:"net_payable"`
}

type billLineAmount struct {
	total    decimal.Decimal // already discounted
	discount decimal.Decimal
}

// RoundToNearestTen rounds half away from zero to a multiple of 10.
func RoundToNearestTen(d decimal.Decimal) decimal.Decimal {
	return d.Div(ten).Round(0).Mul(ten)
}

// computeBillTotals derives every bill figure from line totals that already
// include their discount; discounts are summed for display only.
func computeBillTotals(lines []billLineAmount, exchangeAmounts []decimal.Decimal, includeGST bool) BillTotals {
	var t BillTotals
	itemsTotal := decimal.Zero
	for _, l := range lines {
		itemsTotal = itemsTotal.Add(l.total)
		t.DiscountTotal = t.DiscountTotal.Add(l.discount)
	}
	t.GrossTotal = itemsTotal.Add(t.DiscountTotal)
	for _, a := range exchangeAmounts {
		t.ExchangeTotal = t.ExchangeTotal.Sub(a)
	}
	t.TaxableAmount = itemsTotal.Add(t.ExchangeTotal)
	if includeGST && t.TaxableAmount.IsPositive() {
		t.SGSTAmount = t.TaxableAmount.Mul(gstHalfRate).Round(2)
		t.CGSTAmount = t.TaxableAmount.Mul(gstHalfRate).Round(2)
	}
	rawNet := t.TaxableAmount.Add(t.SGSTAmount).Add(t.CGSTAmount)
	t.NetPayable = RoundToNearestTen(rawNet)
	t.RoundOff = t.NetPayable.Sub(rawNet)
	return t
}
