package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/mmdatafocus/jewel_backend/appctx"
	"gorm.io/gorm"
)

// ErrAppendOnlyLedger is returned when code tries to update or delete a row of
// an append-only ledger table (vendor transactions, stock logs).
var ErrAppendOnlyLedger = errors.New("ledger rows are append-only")

// AppendOnlyLedger is implemented by models whose rows may only be inserted.
type AppendOnlyLedger interface {
	AppendOnlyLedger() bool
}

// LedgerGuardPlugin rejects UPDATE and DELETE statements issued through the ORM
// against append-only ledger models.
//
// NOTE:
//   - Raw SQL via tx.Exec is not inspected.
//   - Maintenance tools may bypass explicitly via appctx.ContextKeySkipLedgerGuard.
type LedgerGuardPlugin struct{}

func NewLedgerGuardPlugin() *LedgerGuardPlugin { return &LedgerGuardPlugin{} }

func (p *LedgerGuardPlugin) Name() string { return "ledger_guard" }

func (p *LedgerGuardPlugin) Initialize(db *gorm.DB) error {
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("ledger_guard:update", ledgerGuardCallback("update")); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_guard:delete", ledgerGuardCallback("delete")); err != nil {
		return err
	}
	return nil
}

func ledgerGuardCallback(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db == nil || db.Statement == nil || db.Statement.Schema == nil {
			return
		}
		if shouldBypassLedgerGuard(db.Statement.Context) {
			return
		}
		if !isAppendOnly(db.Statement.Schema.ModelType) {
			return
		}
		db.AddError(fmt.Errorf("%s %s: %w", op, db.Statement.Schema.Table, ErrAppendOnlyLedger))
	}
}

func isAppendOnly(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	m, ok := reflect.New(t).Interface().(AppendOnlyLedger)
	return ok && m.AppendOnlyLedger()
}

func shouldBypassLedgerGuard(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(appctx.ContextKeySkipLedgerGuard).(bool)
	return ok && v
}
