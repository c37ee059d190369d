package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/mmdatafocus/jewel_backend/models")

// AuditEvent describes one committed business operation.
type AuditEvent struct {
	Action        string         `json:"action"`
	Description   string         `json:"description"`
	ReferenceType string         `json:"reference_type"`
	ReferenceId   int            `json:"reference_id"`
	ActorId       int            `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	IsGuest       bool           `json:"is_guest"`
	CorrelationId string         `json:"correlation_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// AuditSink receives events after commit. Notify must not block the caller
// and has no way to fail the operation that produced the event.
type AuditSink interface {
	Notify(ctx context.Context, event AuditEvent)
}

type nopAuditSink struct{}

func (nopAuditSink) Notify(context.Context, AuditEvent) {}

// ImageStore persists item photos outside the ledger.
type ImageStore interface {
	SaveItemImage(ctx context.Context, prefix string, imageData string) (imageKey string, thumbnailKey string, err error)
}

// Cache is a read-through cache for published values such as daily rates.
type Cache interface {
	GetObject(ctx context.Context, key string, dest interface{}) (bool, error)
	SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error
	Remove(ctx context.Context, keys ...string) error
}

// Engine runs every ledger operation against an explicit store handle.
type Engine struct {
	db       *gorm.DB
	logger   *logrus.Logger
	audit    AuditSink
	images   ImageStore
	cache    Cache
	location *time.Location
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithImageStore(store ImageStore) EngineOption {
	return func(e *Engine) { e.images = store }
}

func WithCache(cache Cache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithLocation sets the shop's timezone, used to pick "today's" rate.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db *gorm.DB, logger *logrus.Logger, audit AuditSink, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = config.GetLogger()
	}
	if audit == nil {
		audit = nopAuditSink{}
	}
	e := &Engine{
		db:       db,
		logger:   logger,
		audit:    audit,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) DB() *gorm.DB {
	return e.db
}

// withTx runs fn in one database transaction. Any error or panic rolls back.
// Errors leaving here always carry a utils.ErrorKind.
func (e *Engine) withTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	err := e.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	err = utils.ClassifyDBError(err, op, "")
	span.RecordError(err)
	span.SetStatus(codes.Error, utils.PublicMessage(err))
	span.SetAttributes(attribute.String("error.kind", string(utils.ErrorKindOf(err))))
	if utils.ErrorKindOf(err) == utils.KindStorage {
		config.LogError(e.logger, "models", op, "transaction failed", nil, err)
	}
	return err
}

// notify hands the event to the audit sink. A panicking sink is logged and ignored.
func (e *Engine) notify(ctx context.Context, event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"module": "models",
				"action": event.Action,
				"panic":  r,
			}).Error("audit sink panicked")
		}
	}()
	actor := utils.ActorFromContext(ctx)
	event.ActorId = actor.Id
	event.ActorName = actor.Name
	event.IsGuest = actor.IsGuest
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		event.CorrelationId = cid
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	e.audit.Notify(ctx, event)
}

func actorName(ctx context.Context) string {
	return utils.ActorFromContext(ctx).Name
}

// lockByID loads one row with SELECT ... FOR UPDATE.
func lockByID[T any](tx *gorm.DB, id int, entity string) (*T, error) {
	var row T
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
		return nil, utils.ClassifyDBError(err, entity, id)
	}
	return &row, nil
}

// findByID is the read-only counterpart of lockByID.
func findByID[T any](ctx context.Context, db *gorm.DB, id int, entity string) (*T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, utils.ClassifyDBError(err, entity, id)
	}
	return &row, nil
}
