package worker

import (
	"context"
	"fmt"
	"time"

	"exchange-service/internal/broker"
	"exchange-service/internal/models"
	"exchange-service/internal/service"
	"exchange-service/internal/util"

	"go.uber.org/zap"
)

// EventLog records which broker events were already handled
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker fans exchange events out to cached views
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	events       EventLog
	views        *service.ViewInvalidator
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	events EventLog,
	views *service.ViewInvalidator,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		events:       events,
		views:        views,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnNotificationCreated(w.handleNotificationCreated)
	w.eventHandler.OnTransactionTransitioned(w.handleTransactionTransitioned)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleNotificationCreated(ctx context.Context, event *models.NotificationCreatedEvent) error {
	return w.once(ctx, &event.BaseEvent, func() error {
		if event.TenantSlug == "" {
			w.logger.Warn("Notification event without tenant slug", zap.String("notification_id", event.NotificationID))
			return nil
		}
		w.views.Invalidate(ctx, service.NotificationsPath(event.TenantSlug), service.DashboardPath(event.TenantSlug))
		return nil
	})
}

func (w *NotificationWorker) handleTransactionTransitioned(ctx context.Context, event *models.TransactionTransitionedEvent) error {
	return w.once(ctx, &event.BaseEvent, func() error {
		w.logger.Info("Exchange transitioned",
			zap.String("transaction_id", event.TransactionID),
			zap.String("operation", string(event.Operation)),
			zap.String("from", string(event.From)),
			zap.String("to", string(event.To)),
			zap.String("actor_id", event.ActorID))
		return nil
	})
}

// once runs fn unless the event was already handled, then records it.
func (w *NotificationWorker) once(ctx context.Context, event *models.BaseEvent, fn func() error) error {
	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// Sweeper runs one return-date sweep
type Sweeper interface {
	CheckReturnDates(ctx context.Context, now time.Time) (*service.SweepReport, error)
}

// ReturnSweepWorker periodically checks loans against their return dates
type ReturnSweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewReturnSweepWorker creates a new return sweep worker
func NewReturnSweepWorker(sweeper Sweeper, interval time.Duration) *ReturnSweepWorker {
	return &ReturnSweepWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs a sweep immediately and then on every interval until ctx is done.
func (w *ReturnSweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting return sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping return sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReturnSweepWorker) sweep(ctx context.Context) {
	if _, err := w.sweeper.CheckReturnDates(ctx, time.Now().UTC()); err != nil {
		w.logger.Error("Return sweep failed", zap.Error(err))
	}
}
