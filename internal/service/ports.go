package service

import (
	"context"
	"time"

	"exchange-service/internal/models"
)

// TransactionRepository is the transaction side of the relational store
type TransactionRepository interface {
	GetTransactionDetails(ctx context.Context, tenantID, id string) (*models.TransactionDetails, error)
	UpdateTransactionStatus(ctx context.Context, u *models.StatusUpdate) error
	ListTransactionsForUser(ctx context.Context, tenantID, userID string) ([]models.TransactionDetails, error)
	ListCompletedTransactions(ctx context.Context, tenantID, userID string, offset, limit int) ([]models.TransactionDetails, int, error)
	GetPendingRequest(ctx context.Context, tenantID, userID, listingID string) (*models.Transaction, error)
	ListActiveLoans(ctx context.Context) ([]models.TransactionDetails, error)
}

// ListingRepository is the listing side of the relational store
type ListingRepository interface {
	GetListing(ctx context.Context, tenantID, id string) (*models.Listing, error)
	RestoreQuantity(ctx context.Context, listingID string, amount int) (int, error)
}

// NotificationRepository records notifications
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	NotificationExists(ctx context.Context, transactionID, notificationType, recipientID string) (bool, error)
}

// EventPublisher publishes exchange events to the broker
type EventPublisher interface {
	PublishTransactionTransitioned(ctx context.Context, event *models.TransactionTransitionedEvent) error
	PublishNotificationCreated(ctx context.Context, event *models.NotificationCreatedEvent) error
}

// Locker provides short-lived mutual exclusion keyed by name
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// AvailabilityCache mirrors listing availability for fast reads
type AvailabilityCache interface {
	SyncAvailability(ctx context.Context, tenantID, listingID string, available int, isAvailable bool) error
	GetAvailability(ctx context.Context, tenantID, listingID string) (available int, isAvailable, found bool, err error)
}

// ViewCache stores rendered views under versioned keys
type ViewCache interface {
	ViewVersion(ctx context.Context, path string) (int64, error)
	BumpViewVersion(ctx context.Context, path string) error
	GetCachedView(ctx context.Context, key string) ([]byte, bool, error)
	SetCachedView(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
