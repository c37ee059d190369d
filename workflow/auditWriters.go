package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LogAuditWriter writes events as structured log lines.
type LogAuditWriter struct {
	Logger *logrus.Logger
}

func (w LogAuditWriter) Write(_ context.Context, event models.AuditEvent) error {
	w.Logger.WithFields(logrus.Fields{
		"audit":          true,
		"action":         event.Action,
		"reference_type": event.ReferenceType,
		"reference_id":   event.ReferenceId,
		"actor":          event.ActorName,
		"is_guest":       event.IsGuest,
		"correlation_id": event.CorrelationId,
	}).Info(event.Description)
	return nil
}

// DBAuditWriter stores events as History rows.
type DBAuditWriter struct {
	DB *gorm.DB
}

func (w DBAuditWriter) Write(ctx context.Context, event models.AuditEvent) error {
	return models.SaveHistory(ctx, w.DB, event)
}

// PubSubAuditWriter publishes events as JSON to a Pub/Sub topic.
type PubSubAuditWriter struct {
	Topic   string
	publish func(ctx context.Context, topic string, obj interface{}, attrs map[string]string) (string, error)
}

func NewPubSubAuditWriter(topic string) *PubSubAuditWriter {
	return &PubSubAuditWriter{Topic: topic, publish: config.PublishJSON}
}

func (w *PubSubAuditWriter) Write(ctx context.Context, event models.AuditEvent) error {
	attrs := map[string]string{
		"action":         event.Action,
		"reference_type": event.ReferenceType,
		"reference_id":   strconv.Itoa(event.ReferenceId),
	}
	if event.CorrelationId != "" {
		attrs["correlation_id"] = event.CorrelationId
	}
	_, err := w.publish(ctx, w.Topic, event, attrs)
	return err
}

// NewAuditWriter picks the writer named by kind (log, db or pubsub).
func NewAuditWriter(kind, topic string, db *gorm.DB, logger *logrus.Logger) (AuditWriter, error) {
	switch kind {
	case "", "log":
		return LogAuditWriter{Logger: logger}, nil
	case "db":
		if db == nil {
			return nil, errors.New("db audit writer needs a database")
		}
		return DBAuditWriter{DB: db}, nil
	case "pubsub":
		if topic == "" {
			return nil, errors.New("AUDIT_TOPIC is required for the pubsub audit writer")
		}
		return NewPubSubAuditWriter(topic), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", kind)
	}
}
