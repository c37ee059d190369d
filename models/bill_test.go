package models_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleItemBill(itemId int, total string, payments ...models.NewSalePayment) *models.NewBill {
	return &models.NewBill{
		Customer:   models.NewBillCustomer{Name: "Meena", Phone: "98765 43210"},
		Items:      []models.NewBillItem{{InventoryItemId: ptr(itemId), Rate: dec("6000"), Total: dec(total)}},
		NetPayable: dec(total),
		Payments:   payments,
	}
}

func cash(amount string) models.NewSalePayment {
	return models.NewSalePayment{Amount: dec(amount), PaymentMode: models.PaymentCash}
}

func TestCreateBill_SingleItemFullyPaid(t *testing.T) {
	e, sink := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)
	assertDec(t, "9.16", item.PureWeight)
	assert.Equal(t, "G-O-0001", item.Barcode)

	sale, err := e.CreateBill(ctx, singleItemBill(item.ID, "60000", cash("60000")))
	require.NoError(t, err)

	assert.Equal(t, models.SalePaid, sale.Status)
	assert.Equal(t, "+919876543210", sale.CustomerPhone)
	assertDec(t, "60000", sale.FinalAmount)
	assertDec(t, "0", sale.BalanceAmount)
	require.Len(t, sale.Items, 1)
	assertDec(t, "10", sale.Items[0].Weight)
	assertDec(t, "9.16", sale.Items[0].PureWeight)

	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemSold, got.Status)

	assertDec(t, "60000", assets(t, e).CashBalance)

	logs, err := e.GetStockLogs(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.StockLogAdd, logs[0].Action)
	assert.Equal(t, models.StockLogSale, logs[1].Action)
	assertDec(t, "-9.16", logs[1].PureWeightDelta)

	last := sink.last()
	assert.Equal(t, "CREATE_BILL", last.Action)
	assert.Equal(t, 7, last.ActorId)
	assert.Equal(t, "counter-1", last.ActorName)
	assert.False(t, last.IsGuest)
}

func TestCreateBill_BulkItemSoldInParts(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockBulk, "100", "92", 10)
	assertDec(t, "92", item.PureWeight)

	part := &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Weight: dec("10"), Quantity: 1, Total: dec("5000")}},
		NetPayable: dec("5000"),
	}
	_, err := e.CreateBill(ctx, part)
	require.NoError(t, err)

	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "90", got.GrossWeight)
	assert.Equal(t, 9, got.Quantity)
	assertDec(t, "82.8", got.PureWeight)
	assert.Equal(t, models.ItemAvailable, got.Status)

	rest := &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Weight: dec("90"), Quantity: 9, Total: dec("45000")}},
		NetPayable: dec("45000"),
	}
	sale, err := e.CreateBill(ctx, rest)
	require.NoError(t, err)
	assert.Equal(t, models.SalePartial, sale.Status)

	got, err = e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "0", got.GrossWeight)
	assert.Equal(t, 0, got.Quantity)
	assertDec(t, "0", got.PureWeight)
	assert.Equal(t, models.ItemSold, got.Status)

	_, err = e.CreateBill(ctx, part)
	assertKind(t, utils.KindConflict, err)
}

func TestCreateBill_BulkKeepsAvailableWhileWeightRemains(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockBulk, "50", "92", 5)

	// all pieces gone but weight left over stays on sale
	_, err := e.CreateBill(ctx, &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Weight: dec("49"), Quantity: 5, Total: dec("1000")}},
		NetPayable: dec("1000"),
	})
	require.NoError(t, err)
	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, got.Status)
	assert.Equal(t, 0, got.Quantity)
}

func TestCreateBill_InsufficientBulkStock(t *testing.T) {
	e, _ := newTestEngine(t)
	item := addOwnItem(t, e, models.StockBulk, "100", "92", 10)

	_, err := e.CreateBill(testCtx(), &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Weight: dec("120"), Quantity: 1, Total: dec("1000")}},
		NetPayable: dec("1000"),
	})
	assertKind(t, utils.KindConflict, err)
	assert.Zero(t, countRows(t, e, &models.Sale{}))
}

func TestCreateBill_GSTAndRounding(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "2", "91.6", 1)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Total: dec("10001"), Discount: dec("99")}},
		IncludeGST: true,
		NetPayable: dec("10300"),
	})
	require.NoError(t, err)
	assertDec(t, "10100", sale.GrossTotal)
	assertDec(t, "99", sale.DiscountTotal)
	assertDec(t, "10001", sale.TaxableAmount)
	assertDec(t, "150.02", sale.SGSTAmount)
	assertDec(t, "150.02", sale.CGSTAmount)
	assertDec(t, "10300", sale.FinalAmount)
	assertDec(t, "-1.04", sale.RoundOffAmount)
}

func TestCreateBill_PriceMismatchWritesNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	input := singleItemBill(item.ID, "60000", cash("1000"))
	input.NetPayable = dec("60005")
	_, err := e.CreateBill(ctx, input)
	assertKind(t, utils.KindIntegrityViolation, err)

	assert.Zero(t, countRows(t, e, &models.Sale{}))
	assert.Zero(t, countRows(t, e, &models.SalePayment{}))
	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, got.Status)
	assertDec(t, "0", assets(t, e).CashBalance)

	// a drift within the tolerance is accepted and the server figure is kept
	input = singleItemBill(item.ID, "60000")
	input.NetPayable = dec("60002")
	sale, err := e.CreateBill(ctx, input)
	require.NoError(t, err)
	assertDec(t, "60000", sale.FinalAmount)
}

func TestCreateBill_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	cases := map[string]*models.NewBill{
		"overpaid":       singleItemBill(item.ID, "60000", cash("70000")),
		"bad phone":      {Customer: models.NewBillCustomer{Phone: "123"}, Items: singleItemBill(item.ID, "1").Items, NetPayable: dec("1")},
		"no items":       {NetPayable: dec("0")},
		"manual no desc": {Items: []models.NewBillItem{{MetalType: models.MetalGold, Total: dec("10")}}, NetPayable: dec("10")},
		"duplicate item": {
			Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Total: dec("10")}, {InventoryItemId: ptr(item.ID), Total: dec("10")}},
			NetPayable: dec("20"),
		},
		"bad payment mode": singleItemBill(item.ID, "60000", models.NewSalePayment{Amount: dec("10"), PaymentMode: "CHEQUE"}),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.CreateBill(ctx, input)
			assertKind(t, utils.KindValidation, err)
		})
	}
	assert.Zero(t, countRows(t, e, &models.Sale{}))
}

func TestCreateBill_ManualLineAndExchange(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items: []models.NewBillItem{
			{InventoryItemId: ptr(item.ID), Total: dec("45000")},
			{Description: "Polishing", MetalType: models.MetalSilver, Total: dec("5000")},
		},
		ExchangeItems: []models.NewOldMetalItem{
			{MetalType: models.MetalGold, Description: "old chain", GrossWeight: dec("5"), Purity: dec("90"), Rate: dec("4000"), Amount: dec("20000")},
		},
		NetPayable: dec("30000"),
		Payments:   []models.NewSalePayment{{Amount: dec("30000"), PaymentMode: models.PaymentUPI}},
	})
	require.NoError(t, err)
	assertDec(t, "-20000", sale.ExchangeTotal)
	assertDec(t, "30000", sale.TaxableAmount)
	assertDec(t, "30000", sale.FinalAmount)
	require.Len(t, sale.Items, 2)
	assert.Nil(t, sale.Items[1].InventoryItemId)
	require.Len(t, sale.ExchangeItems, 1)
	assertDec(t, "4.5", sale.ExchangeItems[0].PureWeight)

	inStock, err := e.ListOldMetalInStock(ctx, models.MetalGold)
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, sale.ExchangeItems[0].OldMetalItemId, inStock[0].ID)

	a := assets(t, e)
	assertDec(t, "0", a.CashBalance)
	assertDec(t, "30000", a.BankBalance)

	loaded, err := e.GetBill(ctx, sale.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 2)
	assert.Len(t, loaded.Payments, 1)
	assert.Len(t, loaded.ExchangeItems, 1)
}

func TestCreateBill_ExchangeAboveBillRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	item := addOwnItem(t, e, models.StockSingle, "1", "91.6", 1)

	_, err := e.CreateBill(testCtx(), &models.NewBill{
		Items: []models.NewBillItem{{InventoryItemId: ptr(item.ID), Total: dec("1000")}},
		ExchangeItems: []models.NewOldMetalItem{
			{MetalType: models.MetalGold, GrossWeight: dec("5"), Purity: dec("90"), Amount: dec("20000")},
		},
		NetPayable: dec("-19000"),
	})
	assertKind(t, utils.KindValidation, err)
	assert.Zero(t, countRows(t, e, &models.OldMetalPurchase{}))
}

func TestCreateBill_ConcurrentSalesOfOneItem(t *testing.T) {
	e, _ := newTestEngine(t)
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.CreateBill(testCtx(), singleItemBill(item.ID, "60000", cash("60000")))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, utils.KindConflict, utils.ErrorKindOf(err), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 1, countRows(t, e, &models.Sale{}))
	assertDec(t, "60000", assets(t, e).CashBalance)
}

func TestAddPayment(t *testing.T) {
	e, sink := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)
	sale, err := e.CreateBill(ctx, singleItemBill(item.ID, "60000", cash("20000")))
	require.NoError(t, err)
	assert.Equal(t, models.SalePartial, sale.Status)
	assertDec(t, "40000", sale.BalanceAmount)

	_, err = e.AddPayment(ctx, sale.ID, &models.NewSalePayment{Amount: dec("0"), PaymentMode: models.PaymentCash})
	assertKind(t, utils.KindValidation, err)
	_, err = e.AddPayment(ctx, sale.ID, &models.NewSalePayment{Amount: dec("40000.01"), PaymentMode: models.PaymentCash})
	assertKind(t, utils.KindConflict, err)
	_, err = e.AddPayment(ctx, 9999, &models.NewSalePayment{Amount: dec("1"), PaymentMode: models.PaymentCash})
	assertKind(t, utils.KindNotFound, err)

	sale, err = e.AddPayment(ctx, sale.ID, &models.NewSalePayment{Amount: dec("39999.95"), PaymentMode: models.PaymentCard})
	require.NoError(t, err)
	// a balance of 0.05 is within the paid threshold
	assert.Equal(t, models.SalePaid, sale.Status)
	assertDec(t, "0.05", sale.BalanceAmount)
	assert.Equal(t, "ADD_PAYMENT", sink.last().Action)

	a := assets(t, e)
	assertDec(t, "20000", a.CashBalance)
	assertDec(t, "39999.95", a.BankBalance)
}

func TestCreateBill_GuestActor(t *testing.T) {
	e, sink := newTestEngine(t)
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	_, err := e.CreateBill(context.Background(), singleItemBill(item.ID, "60000"))
	require.NoError(t, err)
	last := sink.last()
	assert.True(t, last.IsGuest)
	assert.Equal(t, utils.GuestActorName, last.ActorName)
}
