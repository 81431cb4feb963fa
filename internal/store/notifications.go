package store

import (
	"context"
	"time"

	"exchange-service/internal/models"
)

// CreateNotification inserts a notification
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO notifications (
			id, tenant_id, recipient_id, type, title, message, actor_id,
			exchange_transaction_id, exchange_listing_id, action_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.TenantID, n.RecipientID, n.Type, n.Title, n.Message, n.ActorID,
		n.ExchangeTransactionID, n.ExchangeListingID, n.ActionURL, n.CreatedAt)
	return err
}

// NotificationExists checks for a notification of a type about a transaction
// addressed to a recipient
func (s *Store) NotificationExists(ctx context.Context, transactionID, notificationType, recipientID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, s.q(`
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE exchange_transaction_id = ? AND type = ? AND recipient_id = ?)`),
		transactionID, notificationType, recipientID)
	return exists, err
}

// ListNotifications retrieves a recipient's notifications, newest first
func (s *Store) ListNotifications(ctx context.Context, tenantID, recipientID string) ([]models.Notification, error) {
	var items []models.Notification
	err := s.db.SelectContext(ctx, &items, s.q(`
		SELECT * FROM notifications
		WHERE tenant_id = ? AND recipient_id = ?
		ORDER BY created_at DESC`),
		tenantID, recipientID)
	return items, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		s.q("SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)"), eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING"),
		eventID, eventType, time.Now().UTC())
	return err
}
