package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"exchange-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestHandleMessageRoutesByType(t *testing.T) {
	eh := NewEventHandler()

	var transitioned *models.TransactionTransitionedEvent
	var created *models.NotificationCreatedEvent
	eh.OnTransactionTransitioned(func(_ context.Context, e *models.TransactionTransitionedEvent) error {
		transitioned = e
		return nil
	})
	eh.OnNotificationCreated(func(_ context.Context, e *models.NotificationCreatedEvent) error {
		created = e
		return nil
	})

	err := eh.HandleMessage(context.Background(), message(t, &models.TransactionTransitionedEvent{
		BaseEvent:     models.BaseEvent{EventID: "e1", EventType: models.EventTypeTransactionTransitioned, Timestamp: time.Now()},
		TransactionID: "tx1",
		From:          models.StatusConfirmed,
		To:            models.StatusPickedUp,
	}))
	require.NoError(t, err)
	require.NotNil(t, transitioned)
	assert.Equal(t, "tx1", transitioned.TransactionID)
	assert.Equal(t, models.StatusPickedUp, transitioned.To)
	assert.Nil(t, created)

	err = eh.HandleMessage(context.Background(), message(t, &models.NotificationCreatedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e2", EventType: models.EventTypeNotificationCreated},
		RecipientID: "u1",
		TenantSlug:  "maple",
	}))
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "maple", created.TenantSlug)
}

func TestHandleMessageIgnoresUnknownAndUnregistered(t *testing.T) {
	eh := NewEventHandler()

	assert.NoError(t, eh.HandleMessage(context.Background(), message(t, &models.BaseEvent{EventType: "SOMETHING_ELSE"})))
	assert.NoError(t, eh.HandleMessage(context.Background(), message(t, &models.BaseEvent{EventType: models.EventTypeNotificationCreated})))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
