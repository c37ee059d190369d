package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-co-op/gocron/v2"
	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/sirupsen/logrus"
)

const reconcileLockKey = "lock:ledger-reconcile"

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	VendorsChecked int
	ShopsChecked   int
	BrokenVendors  []int
	BrokenShops    []int
}

func (r ReconcileReport) Consistent() bool {
	return len(r.BrokenVendors) == 0 && len(r.BrokenShops) == 0
}

// LedgerReconciler replays vendor ledgers and shop transactions on a cron
// schedule and logs every account whose stored balance disagrees.
type LedgerReconciler struct {
	Engine  *models.Engine
	Logger  *logrus.Logger
	Locker  *redislock.Client
	LockTTL time.Duration

	scheduler gocron.Scheduler
}

func NewLedgerReconciler(engine *models.Engine, logger *logrus.Logger, locker *redislock.Client, loc *time.Location) (*LedgerReconciler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	return &LedgerReconciler{
		Engine:    engine,
		Logger:    logger,
		Locker:    locker,
		LockTTL:   10 * time.Minute,
		scheduler: s,
	}, nil
}

func (r *LedgerReconciler) Start(crontab string) error {
	_, err := r.scheduler.NewJob(
		gocron.CronJob(crontab, false),
		gocron.NewTask(r.runScheduled),
		gocron.WithName("ledger-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	r.scheduler.Start()
	r.Logger.WithField("cron", crontab).Info("ledger reconciliation scheduled")
	return nil
}

func (r *LedgerReconciler) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *LedgerReconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), r.LockTTL)
	defer cancel()

	// only one replica runs the pass
	if r.Locker != nil {
		release, err := utils.ObtainLock(ctx, r.Locker, reconcileLockKey, r.LockTTL)
		if errors.Is(err, utils.ErrLockNotObtained) {
			r.Logger.Info("ledger reconciliation already running elsewhere")
			return
		}
		if err != nil {
			config.LogError(r.Logger, "workflow", "runScheduled", "obtain reconcile lock", nil, err)
			return
		}
		defer release()
	}
	if _, err := r.Run(ctx); err != nil {
		config.LogError(r.Logger, "workflow", "runScheduled", "reconcile ledgers", nil, err)
	}
}

// Run performs one pass over every vendor and external shop.
func (r *LedgerReconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	vendorIds, err := r.Engine.ListVendorIds(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range vendorIds {
		check, err := r.Engine.VerifyVendorLedger(ctx, id)
		if err != nil {
			return nil, err
		}
		report.VendorsChecked++
		if !check.Consistent() {
			report.BrokenVendors = append(report.BrokenVendors, id)
			r.Logger.WithFields(logrus.Fields{
				"field":          "LedgerReconciler",
				"vendor_id":      id,
				"stored_balance": check.StoredBalance.String(),
				"ledger_sum":     check.LedgerSum.String(),
				"last_snapshot":  check.LastSnapshot.String(),
				"broken_rows":    check.BrokenRowIds,
			}).Error("vendor ledger out of balance")
		}
	}

	shopIds, err := r.Engine.ListExternalShopIds(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range shopIds {
		check, err := r.Engine.VerifyShopBalance(ctx, id)
		if err != nil {
			return nil, err
		}
		report.ShopsChecked++
		if !check.Consistent() {
			report.BrokenShops = append(report.BrokenShops, id)
			r.Logger.WithFields(logrus.Fields{
				"field":            "LedgerReconciler",
				"external_shop_id": id,
				"stored":           check.Stored,
				"replayed":         check.Replayed,
			}).Error("external shop balance out of balance")
		}
	}

	r.Logger.WithFields(logrus.Fields{
		"vendors": report.VendorsChecked,
		"shops":   report.ShopsChecked,
	}).Info("ledger reconciliation finished")
	return report, nil
}
