package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RateGold999 = "GOLD_999"
	RateGold916 = "GOLD_916"
	RateSilver  = "SILVER"

	rateDayLayout = "2006-01-02"
	rateCacheTTL  = 10 * time.Minute
)

var rateKeys = map[string]bool{
	RateGold999: true,
	RateGold916: true,
	RateSilver:  true,
}

// DailyRate is the published per-gram price of one metal for one shop day.
type DailyRate struct {
	ID        int             `gorm:"primary_key" json:"id"`
	MetalKey  string          `gorm:"size:20;not null;uniqueIndex:idx_rate_day" json:"metal_key"`
	RateDate  string          `gorm:"size:10;not null;uniqueIndex:idx_rate_day" json:"rate_date"`
	Rate      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	ActorName string          `gorm:"size:100" json:"actor_name"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDailyRate struct {
	MetalKey string          `json:"metal_key" binding:"required,oneof=GOLD_999 GOLD_916 SILVER"`
	Rate     decimal.Decimal `json:"rate"`
	// defaults to today in the shop's timezone
	RateDate string `json:"rate_date"`
}

func rateCacheKey(key, day string) string {
	return fmt.Sprintf("DailyRate:%s:%s", key, day)
}

// today is the calendar day in the shop's timezone.
func (e *Engine) today() string {
	return e.now().In(e.location).Format(rateDayLayout)
}

func normalizeRateKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !rateKeys[key] {
		return "", utils.ValidationError("unknown rate key %q", key)
	}
	return key, nil
}

// rateForDay reads a rate inside a transaction, bypassing the cache.
// A missing row returns a zero rate.
func rateForDay(tx *gorm.DB, key, day string) (decimal.Decimal, error) {
	var rows []DailyRate
	if err := tx.Where("metal_key = ? AND rate_date = ?", key, day).Limit(1).Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Rate, nil
}

func (e *Engine) SetDailyRate(ctx context.Context, input *NewDailyRate) (*DailyRate, error) {
	key, err := normalizeRateKey(input.MetalKey)
	if err != nil {
		return nil, err
	}
	if !input.Rate.IsPositive() {
		return nil, utils.ValidationError("rate must be positive")
	}
	day := strings.TrimSpace(input.RateDate)
	if day == "" {
		day = e.today()
	} else if _, err := time.Parse(rateDayLayout, day); err != nil {
		return nil, utils.ValidationError("rate date must look like %s", rateDayLayout)
	}

	rate := DailyRate{MetalKey: key, RateDate: day, Rate: input.Rate, ActorName: actorName(ctx)}
	err = e.withTx(ctx, "SetDailyRate", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "metal_key"}, {Name: "rate_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "actor_name", "updated_at"}),
		}).Create(&rate).Error; err != nil {
			return err
		}
		// the upsert may not report the id of an updated row
		var stored DailyRate
		if err := tx.Where("metal_key = ? AND rate_date = ?", key, day).First(&stored).Error; err != nil {
			return err
		}
		rate = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Remove(ctx, rateCacheKey(key, day)); err != nil {
			e.logger.WithError(err).Warn("failed to drop cached daily rate")
		}
	}
	e.notify(ctx, AuditEvent{
		Action:        "SET_DAILY_RATE",
		Description:   fmt.Sprintf("%s rate for %s set to %s", key, day, rate.Rate.StringFixed(2)),
		ReferenceType: "DAILY_RATE",
		ReferenceId:   rate.ID,
	})
	return &rate, nil
}

// GetDailyRate returns today's rate for key, served from the cache when present.
func (e *Engine) GetDailyRate(ctx context.Context, key string) (*DailyRate, error) {
	key, err := normalizeRateKey(key)
	if err != nil {
		return nil, err
	}
	day := e.today()
	cacheKey := rateCacheKey(key, day)

	var rate DailyRate
	if e.cache != nil {
		if ok, err := e.cache.GetObject(ctx, cacheKey, &rate); err == nil && ok {
			return &rate, nil
		}
	}
	if err := e.db.WithContext(ctx).Where("metal_key = ? AND rate_date = ?", key, day).First(&rate).Error; err != nil {
		return nil, utils.ClassifyDBError(err, "daily rate", key+" "+day)
	}
	if e.cache != nil {
		if err := e.cache.SetObject(ctx, cacheKey, &rate, rateCacheTTL); err != nil {
			e.logger.WithError(err).Warn("failed to cache daily rate")
		}
	}
	return &rate, nil
}
