package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageStore struct {
	prefixes []string
}

func (f *fakeImageStore) SaveItemImage(_ context.Context, prefix, data string) (string, string, error) {
	if data == "broken" {
		return "", "", errors.New("not an image")
	}
	f.prefixes = append(f.prefixes, prefix)
	return prefix + "/full.jpg", prefix + "/thumb.jpg", nil
}

func addVendorItem(t *testing.T, e *models.Engine, vendorId int, gross, purity string) *models.InventoryItem {
	t.Helper()
	item, err := e.AddItem(testCtx(), &models.NewInventoryItem{
		Name:           "Vendor ring",
		MetalType:      models.MetalGold,
		StockType:      models.StockSingle,
		GrossWeight:    dec(gross),
		WastagePercent: dec(purity),
		Source:         models.SourceVendor,
		VendorId:       ptr(vendorId),
	})
	require.NoError(t, err)
	return item
}

func vendorBalance(t *testing.T, e *models.Engine, vendorId int) *models.VendorLedger {
	t.Helper()
	ledger, err := e.GetVendorLedger(context.Background(), vendorId)
	require.NoError(t, err)
	return ledger
}

func TestAddItem_VendorStockPostsLedger(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	require.NoError(t, err)

	first := addVendorItem(t, e, vendor.ID, "10", "91.6")
	second := addVendorItem(t, e, vendor.ID, "5", "75")
	assert.Equal(t, "G-SLJ-0001", first.Barcode)
	assert.Equal(t, "G-SLJ-0002", second.Barcode)

	ledger := vendorBalance(t, e, vendor.ID)
	assertDec(t, "12.91", ledger.Vendor.BalancePureWeight)
	require.Len(t, ledger.Transactions, 2)
	assert.Equal(t, models.VendorStockAdded, ledger.Transactions[0].Type)
	assertDec(t, "9.16", ledger.Transactions[0].BalanceAfter)
	assertDec(t, "12.91", ledger.Transactions[1].BalanceAfter)

	byBarcode, err := e.GetItemByBarcode(ctx, "G-SLJ-0002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byBarcode.ID)
	_, err = e.GetItemByBarcode(ctx, "G-SLJ-9999")
	assertKind(t, utils.KindNotFound, err)
}

func TestAddItem_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()

	base := func() *models.NewInventoryItem {
		return &models.NewInventoryItem{
			Name: "Chain", MetalType: models.MetalGold, StockType: models.StockBulk,
			GrossWeight: dec("10"), WastagePercent: dec("92"), Quantity: 2, Source: models.SourceOwn,
		}
	}
	cases := map[string]func(*models.NewInventoryItem){
		"no name":             func(in *models.NewInventoryItem) { in.Name = " " },
		"bad metal":           func(in *models.NewInventoryItem) { in.MetalType = "PLATINUM" },
		"zero weight":         func(in *models.NewInventoryItem) { in.GrossWeight = dec("0") },
		"purity above 100":    func(in *models.NewInventoryItem) { in.WastagePercent = dec("100.5") },
		"bulk without qty":    func(in *models.NewInventoryItem) { in.Quantity = 0 },
		"vendor without id":   func(in *models.NewInventoryItem) { in.Source = models.SourceVendor },
		"image without store": func(in *models.NewInventoryItem) { in.Image = "aGVsbG8=" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base()
			mutate(in)
			_, err := e.AddItem(ctx, in)
			assertKind(t, utils.KindValidation, err)
		})
	}
	_, err := e.AddItem(ctx, &models.NewInventoryItem{
		Name: "Ghost", MetalType: models.MetalGold, StockType: models.StockSingle,
		GrossWeight: dec("1"), WastagePercent: dec("90"), Source: models.SourceVendor, VendorId: ptr(42),
	})
	assertKind(t, utils.KindNotFound, err)
	assert.Zero(t, countRows(t, e, &models.InventoryItem{}))
}

func TestAddItem_PureWeightOverrideAndImage(t *testing.T) {
	store := &fakeImageStore{}
	e, _ := newTestEngine(t, models.WithImageStore(store))
	ctx := testCtx()

	item, err := e.AddItem(ctx, &models.NewInventoryItem{
		Name: "Anklet", MetalType: models.MetalSilver, StockType: models.StockSingle,
		GrossWeight: dec("40"), WastagePercent: dec("80"), PureWeightOverride: ptr(dec("30")),
		Source: models.SourceOwn, Image: "aGVsbG8=",
	})
	require.NoError(t, err)
	assert.Equal(t, "S-O-0001", item.Barcode)
	assertDec(t, "30", item.PureWeight)
	assert.True(t, item.PureWeightOverride)
	assert.Equal(t, "silver/full.jpg", item.ImageKey)
	assert.Equal(t, "silver/thumb.jpg", item.ThumbnailKey)
	assert.Equal(t, []string{"silver"}, store.prefixes)

	_, err = e.AddItem(ctx, &models.NewInventoryItem{
		Name: "Anklet", MetalType: models.MetalSilver, StockType: models.StockSingle,
		GrossWeight: dec("40"), WastagePercent: dec("80"), Source: models.SourceOwn, Image: "broken",
	})
	assertKind(t, utils.KindValidation, err)
}

func TestUpdateItem_PostsOnlyTheDifference(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	require.NoError(t, err)
	item := addVendorItem(t, e, vendor.ID, "10", "91.6")

	updated, err := e.UpdateItem(ctx, item.ID, &models.UpdateInventoryItem{GrossWeight: ptr(dec("12"))})
	require.NoError(t, err)
	assertDec(t, "10.992", updated.PureWeight)

	ledger := vendorBalance(t, e, vendor.ID)
	assertDec(t, "10.992", ledger.Vendor.BalancePureWeight)
	require.Len(t, ledger.Transactions, 2)
	assert.Equal(t, models.VendorStockUpdate, ledger.Transactions[1].Type)
	assertDec(t, "1.832", ledger.Transactions[1].PureWeightDelta)

	// an override sticks until cleared
	updated, err = e.UpdateItem(ctx, item.ID, &models.UpdateInventoryItem{PureWeightOverride: ptr(dec("11"))})
	require.NoError(t, err)
	assertDec(t, "11", updated.PureWeight)
	updated, err = e.UpdateItem(ctx, item.ID, &models.UpdateInventoryItem{WastagePercent: ptr(dec("75"))})
	require.NoError(t, err)
	assertDec(t, "11", updated.PureWeight)
	updated, err = e.UpdateItem(ctx, item.ID, &models.UpdateInventoryItem{ClearOverride: true})
	require.NoError(t, err)
	assertDec(t, "9", updated.PureWeight)
	assert.False(t, updated.PureWeightOverride)

	assertDec(t, "9", vendorBalance(t, e, vendor.ID).Vendor.BalancePureWeight)
	check, err := e.VerifyVendorLedger(ctx, vendor.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestDeleteAndRestoreItem(t *testing.T) {
	e, sink := newTestEngine(t)
	ctx := testCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	require.NoError(t, err)
	item := addVendorItem(t, e, vendor.ID, "10", "91.6")

	require.NoError(t, e.DeleteItem(ctx, item.ID))
	got, err := e.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, models.ItemDeleted, got.Status)
	assertDec(t, "0", vendorBalance(t, e, vendor.ID).Vendor.BalancePureWeight)

	assertKind(t, utils.KindConflict, e.DeleteItem(ctx, item.ID))
	_, err = e.CreateBill(ctx, singleItemBill(item.ID, "100"))
	assertKind(t, utils.KindConflict, err)

	restored, err := e.RestoreItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, restored.Status)
	assert.Equal(t, "RESTORE_ITEM", sink.last().Action)

	ledger := vendorBalance(t, e, vendor.ID)
	assertDec(t, "9.16", ledger.Vendor.BalancePureWeight)
	require.Len(t, ledger.Transactions, 3)
	assert.Equal(t, models.VendorRepayment, ledger.Transactions[1].Type)
	assert.Equal(t, models.VendorStockAdded, ledger.Transactions[2].Type)

	_, err = e.RestoreItem(ctx, item.ID)
	assertKind(t, utils.KindConflict, err)

	logs, err := e.GetStockLogs(ctx, item.ID)
	require.NoError(t, err)
	actions := make([]models.StockLogAction, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []models.StockLogAction{models.StockLogAdd, models.StockLogDelete, models.StockLogRestore}, actions)
}

func TestRestock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	bulk := addOwnItem(t, e, models.StockBulk, "20", "92", 2)
	single := addOwnItem(t, e, models.StockSingle, "5", "92", 1)

	_, err := e.CreateBill(ctx, &models.NewBill{
		Items:      []models.NewBillItem{{InventoryItemId: ptr(bulk.ID), Weight: dec("20"), Quantity: 2, Total: dec("100")}},
		NetPayable: dec("100"),
	})
	require.NoError(t, err)

	got, err := e.Restock(ctx, bulk.ID, &models.NewRestock{Weight: dec("30"), Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, got.Status)
	assertDec(t, "30", got.GrossWeight)
	assert.Equal(t, 3, got.Quantity)
	assertDec(t, "27.6", got.PureWeight)

	_, err = e.Restock(ctx, single.ID, &models.NewRestock{Weight: dec("1")})
	assertKind(t, utils.KindValidation, err)
	_, err = e.Restock(ctx, bulk.ID, &models.NewRestock{Weight: dec("0")})
	assertKind(t, utils.KindValidation, err)
}

func TestVendorLedger_AppendOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	require.NoError(t, err)
	addVendorItem(t, e, vendor.ID, "10", "91.6")

	_, err = e.RepayVendor(ctx, vendor.ID, &models.NewVendorRepayment{PureWeight: dec("4")})
	require.NoError(t, err)
	_, err = e.RepayVendor(ctx, vendor.ID, &models.NewVendorRepayment{PureWeight: dec("-1")})
	assertKind(t, utils.KindValidation, err)
	_, err = e.RepayVendor(ctx, 999, &models.NewVendorRepayment{PureWeight: dec("1")})
	assertKind(t, utils.KindNotFound, err)

	err = e.DB().Model(&models.VendorTransaction{}).Where("vendor_id = ?", vendor.ID).Update("note", "edited").Error
	assert.ErrorIs(t, err, config.ErrAppendOnlyLedger)
	err = e.DB().Where("vendor_id = ?", vendor.ID).Delete(&models.VendorTransaction{}).Error
	assert.ErrorIs(t, err, config.ErrAppendOnlyLedger)

	check, err := e.VerifyVendorLedger(ctx, vendor.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
	assertDec(t, "5.16", check.StoredBalance)

	_, err = e.CreateVendor(ctx, &models.NewVendor{Name: "Sri Lakshmi Jewellers"})
	assertKind(t, utils.KindConflict, err)
}
