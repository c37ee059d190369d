package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/sirupsen/logrus"
)

// AuditWriter delivers one event to its destination.
type AuditWriter interface {
	Write(ctx context.Context, event models.AuditEvent) error
}

// AuditDispatcher is a models.AuditSink that queues events in a bounded buffer
// and writes them from a fixed pool of workers. Notify never blocks: when the
// buffer is full the event is logged and dropped.
type AuditDispatcher struct {
	Writer       AuditWriter
	Logger       *logrus.Logger
	WriteTimeout time.Duration

	queue   chan models.AuditEvent
	wg      sync.WaitGroup
	closed  atomic.Bool
	mu      sync.RWMutex
	dropped atomic.Int64
}

func NewAuditDispatcher(writer AuditWriter, logger *logrus.Logger, bufferSize, workers int) *AuditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	d := &AuditDispatcher{
		Writer:       writer,
		Logger:       logger,
		WriteTimeout: 10 * time.Second,
		queue:        make(chan models.AuditEvent, bufferSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *AuditDispatcher) Notify(_ context.Context, event models.AuditEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		d.drop(event, "dispatcher closed")
		return
	}
	select {
	case d.queue <- event:
	default:
		d.drop(event, "audit buffer full")
	}
}

// Dropped reports how many events were discarded.
func (d *AuditDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *AuditDispatcher) drop(event models.AuditEvent, reason string) {
	d.dropped.Add(1)
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":          "AuditDispatcher",
			"action":         event.Action,
			"reference_type": event.ReferenceType,
			"reference_id":   event.ReferenceId,
		}).Warn(reason)
	}
}

func (d *AuditDispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.write(event)
	}
}

func (d *AuditDispatcher) write(event models.AuditEvent) {
	defer func() {
		if r := recover(); r != nil && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{"field": "AuditDispatcher", "panic": r}).Error("audit writer panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.WriteTimeout)
	defer cancel()
	if err := d.Writer.Write(ctx, event); err != nil && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":          "AuditDispatcher",
			"action":         event.Action,
			"reference_type": event.ReferenceType,
			"reference_id":   event.ReferenceId,
		}).Error("audit write failed: " + err.Error())
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *AuditDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed.Swap(true) {
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
