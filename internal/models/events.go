package models

import "time"

// Event types
const (
	EventTypeTransactionTransitioned = "EXCHANGE_TRANSITIONED"
	EventTypeNotificationCreated     = "NOTIFICATION_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionTransitionedEvent published after a status write succeeds
type TransactionTransitionedEvent struct {
	BaseEvent
	TenantID      string    `json:"tenant_id"`
	TransactionID string    `json:"transaction_id"`
	ListingID     string    `json:"listing_id"`
	ActorID       string    `json:"actor_id"`
	Operation     Operation `json:"operation"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	Quantity      int       `json:"quantity"`
}

// NotificationCreatedEvent published after a notification row is written
type NotificationCreatedEvent struct {
	BaseEvent
	NotificationID string `json:"notification_id"`
	TenantID       string `json:"tenant_id"`
	TenantSlug     string `json:"tenant_slug,omitempty"`
	RecipientID    string `json:"recipient_id"`
	Type           string `json:"type"`
	TransactionID  string `json:"transaction_id,omitempty"`
}
