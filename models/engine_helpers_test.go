package models_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 10, 10, 30, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (s *recordingSink) Notify(_ context.Context, event models.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func (s *recordingSink) last() models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

// newTestDB opens a private in-memory SQLite database with the production
// plugins and schema. One connection keeps every statement on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.InstallPlugins(db))
	require.NoError(t, models.MigrateTable(db))
	return db
}

func newTestEngine(t *testing.T, opts ...models.EngineOption) (*models.Engine, *recordingSink) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	sink := &recordingSink{}
	opts = append([]models.EngineOption{
		models.WithClock(func() time.Time { return testNow }),
		models.WithLocation(time.UTC),
	}, opts...)
	return models.NewEngine(newTestDB(t), logger, sink, opts...), sink
}

func testCtx() context.Context {
	return utils.SetActorInContext(context.Background(), utils.Actor{Id: 7, Name: "counter-1", Role: "staff"})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// assertDec compares decimals numerically; SQLite may hand back a different scale.
func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func assertKind(t *testing.T, kind utils.ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, utils.ErrorKindOf(err), err.Error())
}

func addOwnItem(t *testing.T, e *models.Engine, stock models.StockType, gross, purity string, qty int) *models.InventoryItem {
	t.Helper()
	item, err := e.AddItem(testCtx(), &models.NewInventoryItem{
		Name:           "Test " + string(stock),
		MetalType:      models.MetalGold,
		StockType:      stock,
		GrossWeight:    dec(gross),
		WastagePercent: dec(purity),
		Quantity:       qty,
		Source:         models.SourceOwn,
	})
	require.NoError(t, err)
	return item
}

func assets(t *testing.T, e *models.Engine) *models.ShopAssets {
	t.Helper()
	a, err := e.GetShopAssets(context.Background())
	require.NoError(t, err)
	return a
}

func countRows(t *testing.T, e *models.Engine, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB().Model(model).Count(&n).Error)
	return n
}
