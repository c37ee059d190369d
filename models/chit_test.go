package models_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache stores JSON like the redis cache does.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	hits  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) GetObject(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetObject(_ context.Context, key string, obj interface{}, _ time.Duration) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Remove(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func newGoldChit(t *testing.T, e *models.Engine) *models.ChitPlan {
	t.Helper()
	plan, err := e.CreateChit(testCtx(), &models.NewChit{
		CustomerName:   "Lakshmi",
		CustomerPhone:  "+91 98765 43210",
		Type:           models.ChitGold,
		MonthlyAmount:  dec("6000"),
		DurationMonths: 11,
	})
	require.NoError(t, err)
	return plan
}

func TestPayChit_GoldPlanUsesTodaysRate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()
	plan := newGoldChit(t, e)
	assert.Equal(t, "+919876543210", plan.CustomerPhone)
	assert.Equal(t, models.ChitActive, plan.Status)

	// yesterday's rate does not count
	_, err := e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateGold999, Rate: dec("5000"), RateDate: "2026-03-09"})
	require.NoError(t, err)
	_, err = e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("6000")})
	assertKind(t, utils.KindValidation, err)
	assert.Zero(t, countRows(t, e, &models.ChitPayment{}))
	assertDec(t, "0", assets(t, e).CashBalance)

	_, err = e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: "gold_999", Rate: dec("6000")})
	require.NoError(t, err)
	payment, err := e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("6000")})
	require.NoError(t, err)
	assertDec(t, "1", payment.GoldWeight)
	assert.Equal(t, "2026-03-10", payment.PaymentDate)

	payment, err = e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("1000")})
	require.NoError(t, err)
	assertDec(t, "0.1667", payment.GoldWeight)

	got, err := e.GetChit(ctx, plan.ID)
	require.NoError(t, err)
	assertDec(t, "7000", got.TotalPaid)
	assertDec(t, "1.1667", got.TotalGoldWeight)
	assert.Len(t, got.Payments, 2)
	assertDec(t, "7000", assets(t, e).CashBalance)

	// a later correction of today's rate leaves earlier payments alone
	_, err = e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateGold999, Rate: dec("6500")})
	require.NoError(t, err)
	payment, err = e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("6500")})
	require.NoError(t, err)
	assertDec(t, "6500", payment.Rate)
	assertDec(t, "1", payment.GoldWeight)

	got, err = e.GetChit(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, got.Payments, 3)
	assertDec(t, "6000", got.Payments[0].Rate)
	assertDec(t, "1", got.Payments[0].GoldWeight)
	assertDec(t, "6000", got.Payments[1].Rate)
	assertDec(t, "0.1667", got.Payments[1].GoldWeight)
	assertDec(t, "2.1667", got.TotalGoldWeight)
}

func TestChit_AmountPlanBonusAndClose(t *testing.T) {
	e, sink := newTestEngine(t)
	ctx := testCtx()
	plan, err := e.CreateChit(ctx, &models.NewChit{
		CustomerName: "Ravi", Type: models.ChitAmount, MonthlyAmount: dec("2000"), DurationMonths: 12,
	})
	require.NoError(t, err)

	payment, err := e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("2000")})
	require.NoError(t, err)
	assertDec(t, "0", payment.GoldWeight)

	bonus, err := e.AddChitBonus(ctx, plan.ID, &models.NewChitAmount{Amount: dec("500")})
	require.NoError(t, err)
	assertDec(t, "500", bonus.BonusAmount)

	closed, err := e.CloseChit(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChitClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "CLOSE_CHIT", sink.last().Action)

	_, err = e.CloseChit(ctx, plan.ID)
	assertKind(t, utils.KindConflict, err)
	_, err = e.AddChitBonus(ctx, plan.ID, &models.NewChitAmount{Amount: dec("1")})
	assertKind(t, utils.KindConflict, err)
	_, err = e.PayChit(ctx, plan.ID, &models.NewChitAmount{Amount: dec("1")})
	assertKind(t, utils.KindConflict, err)

	// closing moves no money
	assertDec(t, "2000", assets(t, e).CashBalance)
}

func TestChit_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := testCtx()

	_, err := e.CreateChit(ctx, &models.NewChit{CustomerName: "Ravi", Type: "SILVER", MonthlyAmount: dec("1"), DurationMonths: 1})
	assertKind(t, utils.KindValidation, err)
	_, err = e.CreateChit(ctx, &models.NewChit{CustomerName: "Ravi", Type: models.ChitAmount, MonthlyAmount: dec("0"), DurationMonths: 1})
	assertKind(t, utils.KindValidation, err)
	_, err = e.CreateChit(ctx, &models.NewChit{CustomerName: "Ravi", CustomerPhone: "99", Type: models.ChitAmount, MonthlyAmount: dec("1"), DurationMonths: 1})
	assertKind(t, utils.KindValidation, err)

	_, err = e.PayChit(ctx, 1, &models.NewChitAmount{Amount: dec("-5")})
	assertKind(t, utils.KindValidation, err)
	_, err = e.PayChit(ctx, 404, &models.NewChitAmount{Amount: dec("5")})
	assertKind(t, utils.KindNotFound, err)
}

func TestDailyRate_UpsertAndCache(t *testing.T) {
	cache := newMemoryCache()
	e, _ := newTestEngine(t, models.WithCache(cache))
	ctx := testCtx()

	_, err := e.GetDailyRate(ctx, models.RateSilver)
	assertKind(t, utils.KindNotFound, err)

	first, err := e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateSilver, Rate: dec("95")})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", first.RateDate)

	got, err := e.GetDailyRate(ctx, models.RateSilver)
	require.NoError(t, err)
	assertDec(t, "95", got.Rate)
	got, err = e.GetDailyRate(ctx, "silver")
	require.NoError(t, err)
	assertDec(t, "95", got.Rate)
	assert.Equal(t, 1, cache.hits)

	// a second publish for the same day replaces the first and drops the cached copy
	second, err := e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateSilver, Rate: dec("97.5")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assertDec(t, "97.5", second.Rate)
	assert.EqualValues(t, 1, countRows(t, e, &models.DailyRate{}))

	got, err = e.GetDailyRate(ctx, models.RateSilver)
	require.NoError(t, err)
	assertDec(t, "97.5", got.Rate)

	_, err = e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: "PLATINUM", Rate: dec("1")})
	assertKind(t, utils.KindValidation, err)
	_, err = e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateSilver, Rate: dec("1"), RateDate: "10/03/2026"})
	assertKind(t, utils.KindValidation, err)
	_, err = e.SetDailyRate(ctx, &models.NewDailyRate{MetalKey: models.RateSilver, Rate: dec("0")})
	assertKind(t, utils.KindValidation, err)
}

func TestDailyRate_DayFollowsShopTimezone(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2026, time.March, 10, 20, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, models.WithLocation(kolkata), models.WithClock(func() time.Time { return late }))

	rate, err := e.SetDailyRate(testCtx(), &models.NewDailyRate{MetalKey: models.RateGold916, Rate: dec("5600")})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", rate.RateDate)
}
