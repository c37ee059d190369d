package models_test

import (
	"testing"

	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNeighbourItem(t *testing.T, e *models.Engine) (*models.ExternalShop, *models.InventoryItem) {
	t.Helper()
	ctx := testCtx()
	shop, err := e.CreateExternalShop(ctx, &models.NewExternalShop{Name: "Ganesh Jewellers"})
	require.NoError(t, err)
	item, err := e.AddItem(ctx, &models.NewInventoryItem{
		Name:           "Borrowed necklace",
		MetalType:      models.MetalGold,
		StockType:      models.StockSingle,
		GrossWeight:    dec("8"),
		WastagePercent: dec("91.6"),
		Source:         models.SourceNeighbour,
		ExternalShopId: ptr(shop.ID),
	})
	require.NoError(t, err)
	return shop, item
}

func TestNeighbourSaleAndVoid(t *testing.T) {
	e, sink := newTestEngine(t)
	ctx := testCtx()
	shop, item := addNeighbourItem(t, e)
	assert.Equal(t, "G-GJ-0001", item.Barcode)

	sale, err := e.CreateBill(ctx, singleItemBill(item.ID, "48000", cash("48000")))
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assertDec(t, "8", sale.Items[0].ShopDebtWeight)

	got, err := e.GetExternalShop(ctx, shop.ID)
	require.NoError(t, err)
	assertDec(t, "8", got.BalanceGold)

	rows, err := e.ListShopTransactions(ctx, shop.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ShopBorrowAdd, rows[0].Type)
	assert.Equal(t, models.RefSale, rows[0].ReferenceType)

	// billing rows are only reversed through a void
	assertKind(t, utils.KindConflict, e.DeleteShopTransaction(ctx, rows[0].ID))

	require.NoError(t, e.VoidBill(ctx, sale.ID, models.RestoreDefault))
	assert.Equal(t, "VOID_BILL", sink.last().Action)

	got, err = e.GetExternalShop(ctx, shop.ID)
	require.NoError(t, err)
	assertDec(t, "0", got.BalanceGold)

	restored, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, restored.Status)
	assert.Equal(t, models.SourceNeighbour, restored.Source)

	logs, err := e.GetStockLogs(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, models.StockLogReturn, logs[2].Action)
	assertDec(t, "8", logs[2].WeightDelta)

	check, err := e.VerifyShopBalance(ctx, shop.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())

	assertDec(t, "0", assets(t, e).CashBalance)
	assert.Zero(t, countRows(t, e, &models.Sale{}))
	assert.Zero(t, countRows(t, e, &models.SaleItem{}))
	assert.Zero(t, countRows(t, e, &models.SalePayment{}))

	_, err = e.GetBill(ctx, sale.ID)
	assertKind(t, utils.KindNotFound, err)
}

func TestVoidBill_TakeOwnership(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	shop, item := addNeighbourItem(t, e)

	sale, err := e.CreateBill(ctx, singleItemBill(item.ID, "48000"))
	require.NoError(t, err)
	require.NoError(t, e.VoidBill(ctx, sale.ID, models.RestoreTakeOwnership))

	restored, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, restored.Status)
	assert.Equal(t, models.SourceOwn, restored.Source)
	assert.Nil(t, restored.ExternalShopId)

	// the debt to the neighbour stays
	got, err := e.GetExternalShop(ctx, shop.ID)
	require.NoError(t, err)
	assertDec(t, "8", got.BalanceGold)
	check, err := e.VerifyShopBalance(ctx, shop.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestVoidBill_RestoresBulkStockAndPayments(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockBulk, "100", "92", 10)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items: []models.NewBillItem{
			{InventoryItemId: ptr(item.ID), Weight: dec("25"), Quantity: 3, Total: dec("12000")},
			{Description: "Repair", MetalType: models.MetalGold, Total: dec("500")},
		},
		NetPayable: dec("12500"),
		Payments: []models.NewSalePayment{
			cash("2500"),
			{Amount: dec("10000"), PaymentMode: models.PaymentCard},
		},
	})
	require.NoError(t, err)
	a := assets(t, e)
	assertDec(t, "2500", a.CashBalance)
	assertDec(t, "10000", a.BankBalance)

	// an empty mode means DEFAULT
	require.NoError(t, e.VoidBill(ctx, sale.ID, ""))

	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "100", got.GrossWeight)
	assert.Equal(t, 10, got.Quantity)
	assertDec(t, "92", got.PureWeight)
	assert.Equal(t, models.ItemAvailable, got.Status)

	a = assets(t, e)
	assertDec(t, "0", a.CashBalance)
	assertDec(t, "0", a.BankBalance)
}

func TestVoidBill_ExchangeMetalAlreadyAtRefinery(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items: []models.NewBillItem{{InventoryItemId: ptr(item.ID), Total: dec("50000")}},
		ExchangeItems: []models.NewOldMetalItem{
			{MetalType: models.MetalGold, GrossWeight: dec("5"), Purity: dec("90"), Amount: dec("20000")},
		},
		NetPayable: dec("30000"),
	})
	require.NoError(t, err)

	_, err = e.CreateRefineryBatch(ctx, &models.NewRefineryBatch{
		RefineryName:    "City Refinery",
		OldMetalItemIds: []int{sale.ExchangeItems[0].OldMetalItemId},
	})
	require.NoError(t, err)

	assertKind(t, utils.KindConflict, e.VoidBill(ctx, sale.ID, models.RestoreDefault))
	assert.EqualValues(t, 1, countRows(t, e, &models.Sale{}))
}

func TestVoidBill_RemovesExchangeMetal(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	item := addOwnItem(t, e, models.StockSingle, "10", "91.6", 1)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items: []models.NewBillItem{{InventoryItemId: ptr(item.ID), Total: dec("50000")}},
		ExchangeItems: []models.NewOldMetalItem{
			{MetalType: models.MetalGold, GrossWeight: dec("5"), Purity: dec("90"), Amount: dec("20000")},
		},
		NetPayable: dec("30000"),
	})
	require.NoError(t, err)
	require.NoError(t, e.VoidBill(ctx, sale.ID, models.RestoreDefault))

	assert.Zero(t, countRows(t, e, &models.OldMetalItem{}))
	assert.Zero(t, countRows(t, e, &models.OldMetalPurchase{}))
	assert.Zero(t, countRows(t, e, &models.SaleExchangeItem{}))
}

func TestVoidBill_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()

	assertKind(t, utils.KindValidation, e.VoidBill(ctx, 1, "KEEP"))
	assertKind(t, utils.KindNotFound, e.VoidBill(ctx, 404, models.RestoreDefault))
}

func TestVoidBill_DeletedItemMustBeRestoredFirst(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	require.NoError(t, err)
	item, err := e.AddItem(ctx, &models.NewInventoryItem{
		Name:           "Vendor chains",
		MetalType:      models.MetalGold,
		StockType:      models.StockBulk,
		GrossWeight:    dec("100"),
		WastagePercent: dec("92"),
		Quantity:       10,
		Source:         models.SourceVendor,
		VendorId:       ptr(vendor.ID),
	})
	require.NoError(t, err)

	sale, err := e.CreateBill(ctx, &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(item.ID), Weight: dec("10"), Quantity: 1, Total: dec("5000")}},
		NetPayable: dec("5000"),
	})
	require.NoError(t, err)
	require.NoError(t, e.DeleteItem(ctx, item.ID))
	assertDec(t, "9.2", vendorBalance(t, e, vendor.ID).Vendor.BalancePureWeight)

	assertKind(t, utils.KindConflict, e.VoidBill(ctx, sale.ID, models.RestoreDefault))
	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, models.ItemDeleted, got.Status)
	assertDec(t, "90", got.GrossWeight)
	_, err = e.GetBill(ctx, sale.ID)
	require.NoError(t, err)

	_, err = e.RestoreItem(ctx, item.ID)
	require.NoError(t, err)
	require.NoError(t, e.VoidBill(ctx, sale.ID, models.RestoreDefault))

	got, err = e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, models.ItemAvailable, got.Status)
	assertDec(t, "100", got.GrossWeight)
	assert.Equal(t, 10, got.Quantity)
	assertDec(t, "92", got.PureWeight)

	// vendor balance matches the stock the shop holds again
	assertDec(t, "92", vendorBalance(t, e, vendor.ID).Vendor.BalancePureWeight)
	check, err := e.VerifyVendorLedger(ctx, vendor.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestVoidBill_TakeOwnershipMovesDebtOntoItem(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	shop, item := addNeighbourItem(t, e)

	sale, err := e.CreateBill(ctx, singleItemBill(item.ID, "48000"))
	require.NoError(t, err)
	require.NoError(t, e.VoidBill(ctx, sale.ID, models.RestoreTakeOwnership))

	rows, err := e.ListShopTransactions(ctx, shop.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RefItem, rows[0].ReferenceType)
	assert.Equal(t, item.ID, rows[0].ReferenceId)

	// the kept debt can be settled like any manual entry
	require.NoError(t, e.DeleteShopTransaction(ctx, rows[0].ID))
	got, err := e.GetExternalShop(ctx, shop.ID)
	require.NoError(t, err)
	assertDec(t, "0", got.BalanceGold)
}
