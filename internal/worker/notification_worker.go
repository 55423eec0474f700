// Package worker turns ledger events into stored user notifications.
package worker

import (
	"context"
	"fmt"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
)

// EventConsumer delivers events to a handler until ctx is done.
type EventConsumer interface {
	ConsumeEvents(ctx context.Context, handler amqp.Handler) error
}

// NotificationWorker persists one notification per distinct event. Events
// already seen within the dedupe window are acknowledged without a write;
// the store's own id check covers redeliveries that outlive the window.
type NotificationWorker struct {
	store  ports.NotificationStore
	seen   cache.Cache[struct{}]
	logger *log.Logger
}

var _ notify.Publisher = (*NotificationWorker)(nil)

func NewNotificationWorker(store ports.NotificationStore, seen cache.Cache[struct{}], logger *log.Logger) *NotificationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &NotificationWorker{
		store:  store,
		seen:   seen,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent stores the notification for e. A malformed event is logged
// and dropped; a storage failure is returned so the broker redelivers.
func (w *NotificationWorker) HandleEvent(ctx context.Context, e notify.Event) error {
	logger := w.logger.With(log.FieldEventID, e.ID, log.FieldEventKind, string(e.Kind))

	if !w.seen.Add(e.ID, struct{}{}) {
		logger.DebugContext(ctx, "Skipping duplicate event")
		return nil
	}

	n, err := e.Notification()
	if err != nil {
		logger.ErrorContext(ctx, "Dropping malformed event", log.FieldError, err)
		return nil
	}

	created, err := w.store.SaveNotification(ctx, n)
	if err != nil {
		// Forget the id so the redelivery is not mistaken for a duplicate.
		w.seen.Delete(e.ID)
		return fmt.Errorf("save notification %s: %w", e.ID, err)
	}

	if created {
		logger.InfoContext(ctx, "Notification stored", log.FieldUserID, e.UserID)
	} else {
		logger.DebugContext(ctx, "Notification already stored")
	}
	return nil
}

// PublishEvent lets the worker stand in for a broker when events are
// handled in-process.
func (w *NotificationWorker) PublishEvent(ctx context.Context, e notify.Event) error {
	return w.HandleEvent(ctx, e)
}

// Run consumes from c until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context, c EventConsumer) error {
	w.logger.InfoContext(ctx, "Notification worker started")
	err := c.ConsumeEvents(ctx, w.HandleEvent)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume events: %w", err)
	}
	w.logger.InfoContext(ctx, "Notification worker stopped")
	return nil
}
