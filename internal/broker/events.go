package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"exchange-service/internal/models"
	"exchange-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing exchange events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransactionTransitioned publishes EXCHANGE_TRANSITIONED keyed by transaction
func (ep *EventPublisher) PublishTransactionTransitioned(ctx context.Context, event *models.TransactionTransitionedEvent) error {
	key := fmt.Sprintf("exchange-tx-%s", event.TransactionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishNotificationCreated publishes NOTIFICATION_CREATED keyed by recipient
func (ep *EventPublisher) PublishNotificationCreated(ctx context.Context, event *models.NotificationCreatedEvent) error {
	key := fmt.Sprintf("recipient-%s", event.RecipientID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onTransitioned        func(context.Context, *models.TransactionTransitionedEvent) error
	onNotificationCreated func(context.Context, *models.NotificationCreatedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnTransactionTransitioned registers a handler for EXCHANGE_TRANSITIONED events
func (eh *EventHandler) OnTransactionTransitioned(handler func(context.Context, *models.TransactionTransitionedEvent) error) {
	eh.onTransitioned = handler
}

// OnNotificationCreated registers a handler for NOTIFICATION_CREATED events
func (eh *EventHandler) OnNotificationCreated(handler func(context.Context, *models.NotificationCreatedEvent) error) {
	eh.onNotificationCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeTransactionTransitioned:
		if eh.onTransitioned != nil {
			var event models.TransactionTransitionedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onTransitioned(ctx, &event)
		}

	case models.EventTypeNotificationCreated:
		if eh.onNotificationCreated != nil {
			var event models.NotificationCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onNotificationCreated(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
