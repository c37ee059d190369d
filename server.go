package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/middlewares"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/mmdatafocus/jewel_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func corsConfigFor(settings config.Settings) cors.Config {
	corsConfig := cors.DefaultConfig()
	// production requires an explicit allowlist; elsewhere allow all
	if strings.EqualFold(settings.Env, "production") {
		corsConfig.AllowOrigins = settings.CorsAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return corsConfig
}

// newRouter wires every route. ready gates the API until dependencies are up.
func newRouter(h *Handler, settings config.Settings, limiter *middlewares.RateLimiter, ready func() bool) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfigFor(settings)))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(func(c *gin.Context) {
		if ready != nil && !ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody(utils.KindStorage, "service not ready"))
			return
		}
		c.Next()
	})
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(customErrorLogger(h.logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.AuthMiddleware())

	api := r.Group("/api")

	api.POST("/bills", h.createBill)
	api.GET("/bills/:id", h.getBill)
	api.POST("/bills/:id/payments", h.addBillPayment)
	api.POST("/bills/:id/void", h.voidBill)

	api.POST("/items", h.addItem)
	api.GET("/items/:id", h.getItem)
	api.PUT("/items/:id", h.updateItem)
	api.DELETE("/items/:id", h.deleteItem)
	api.POST("/items/:id/restore", h.restoreItem)
	api.POST("/items/:id/restock", h.restockItem)
	api.GET("/items/:id/stock-logs", h.getItemStockLogs)
	api.GET("/barcodes/:barcode", h.getItemByBarcode)

	api.POST("/vendors", h.createVendor)
	api.POST("/vendors/:id/repayments", h.repayVendor)
	api.GET("/vendors/:id/ledger", h.getVendorLedger)

	api.POST("/shops", h.createExternalShop)
	api.GET("/shops/:id", h.getExternalShop)
	api.POST("/shops/:id/transactions", h.createShopTransaction)
	api.DELETE("/shop-transactions/:id", h.deleteShopTransaction)
	api.GET("/assets", h.getShopAssets)

	api.POST("/refinery/batches", h.createRefineryBatch)
	api.GET("/refinery/batches/:id", h.getRefineryBatch)
	api.POST("/refinery/batches/:id/receive", h.receiveRefineryBatch)
	api.POST("/refinery/batches/:id/use", h.useRefineryStock)

	api.POST("/chits", h.createChit)
	api.GET("/chits/:id", h.getChit)
	api.POST("/chits/:id/payments", h.payChit)
	api.POST("/chits/:id/bonus", h.addChitBonus)
	api.POST("/chits/:id/close", h.closeChit)

	api.PUT("/rates", h.setDailyRate)
	api.GET("/rates/:metal", h.getDailyRate)

	api.POST("/old-metal/purchases", h.createScrapPurchase)
	api.GET("/old-metal/in-stock", h.listOldMetalInStock)

	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	settings := config.LoadSettings()
	logger := config.GetLogger()
	if strings.EqualFold(settings.Env, "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		logger.WithField("timezone", settings.Timezone).Warn("unknown timezone; using UTC")
		loc = time.UTC
	}

	var limiter *middlewares.RateLimiter
	if settings.RateLimitMax > 0 {
		client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDRESS"), Password: os.Getenv("REDIS_PASSWORD")})
		limiter = middlewares.NewRateLimiter(client, int64(settings.RateLimitMax), time.Duration(settings.RateLimitWindowSec)*time.Second)
	}

	// Start listening before dependencies are up; the API answers 503 until ready.
	var ready atomic.Bool
	h := NewHandler(nil, logger)
	r := newRouter(h, settings, limiter, ready.Load)
	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	db := config.ConnectDatabaseWithRetry()
	sqlDB, err := db.DB()
	if err != nil {
		config.LogError(logger, "server", "main", "sql handle", nil, err)
	}
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	redisCtx, cancelRedis := context.WithTimeout(sigCtx, 2*time.Minute)
	rdb := config.ConnectRedisWithRetry(redisCtx)
	cancelRedis()

	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	writer, err := workflow.NewAuditWriter(settings.AuditSink, settings.AuditTopic, db, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "audit"}).Fatal(err)
	}
	audit := workflow.NewAuditDispatcher(writer, logger, settings.AuditBufferSize, settings.AuditWorkers)

	opts := []models.EngineOption{
		models.WithLocation(loc),
		models.WithCache(config.NewRedisCache(rdb)),
	}
	if settings.ImageBucket != "" {
		store, err := utils.NewGCSImageStore(sigCtx, settings.ImageBucket)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "images"}).Warn("item images disabled: " + err.Error())
		} else {
			defer store.Close()
			opts = append(opts, models.WithImageStore(store))
		}
	}
	engine := models.NewEngine(db, logger, audit, opts...)
	h.engine = engine
	ready.Store(true)

	var reconciler *workflow.LedgerReconciler
	if config.ReconciliationEnabled() {
		reconciler, err = workflow.NewLedgerReconciler(engine, logger, config.GetRedisLock(), loc)
		if err == nil {
			err = reconciler.Start(settings.ReconcileCron)
		}
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "reconcile"}).Error("ledger reconciliation disabled: " + err.Error())
			reconciler = nil
		}
	}

	logger.WithFields(logrus.Fields{"port": settings.Port}).Info("server ready")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	if reconciler != nil {
		_ = reconciler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	// requests are drained, flush what is left of the audit queue
	if err := audit.Close(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "audit"}).Warn("audit queue not fully drained: " + err.Error())
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
