package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLedgers(t *testing.T, e *models.Engine) (vendorId, shopId int) {
	t.Helper()
	ctx := staffCtx()
	vendor, err := e.CreateVendor(ctx, &models.NewVendor{Name: "Kumar Bullion"})
	require.NoError(t, err)
	_, err = e.AddItem(ctx, &models.NewInventoryItem{
		Name: "Bangle", MetalType: models.MetalGold, StockType: models.StockSingle,
		GrossWeight: decimal.NewFromInt(20), WastagePercent: decimal.NewFromInt(92),
		Source: models.SourceVendor, VendorId: &vendor.ID,
	})
	require.NoError(t, err)
	_, err = e.RepayVendor(ctx, vendor.ID, &models.NewVendorRepayment{PureWeight: decimal.NewFromInt(4)})
	require.NoError(t, err)

	shop, err := e.CreateExternalShop(ctx, &models.NewExternalShop{Name: "Ganesh Jewellers"})
	require.NoError(t, err)
	_, err = e.CreateShopTransaction(ctx, shop.ID, &models.NewShopTransaction{
		Type: models.ShopBorrowAdd, GoldWeight: decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	return vendor.ID, shop.ID
}

func TestLedgerReconciler_Run(t *testing.T) {
	db := newTestDB(t)
	e := models.NewEngine(db, quietLogger(), nil)
	vendorId, shopId := seedLedgers(t, e)

	r, err := NewLedgerReconciler(e, quietLogger(), nil, time.UTC)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 1, report.VendorsChecked)
	assert.Equal(t, 1, report.ShopsChecked)

	// raw SQL skips the ledger bookkeeping
	require.NoError(t, db.Exec("UPDATE vendors SET balance_pure_weight = 99 WHERE id = ?", vendorId).Error)
	require.NoError(t, db.Exec("UPDATE external_shops SET balance_gold = 1 WHERE id = ?", shopId).Error)

	report, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []int{vendorId}, report.BrokenVendors)
	assert.Equal(t, []int{shopId}, report.BrokenShops)
}

func TestLedgerReconciler_StartRejectsBadCron(t *testing.T) {
	e := models.NewEngine(newTestDB(t), quietLogger(), nil)
	r, err := NewLedgerReconciler(e, quietLogger(), nil, nil)
	require.NoError(t, err)
	assert.Error(t, r.Start("not a cron"))
	require.NoError(t, r.Start("0 3 * * *"))
	require.NoError(t, r.Stop())
}
