package service

import (
	"context"
	"fmt"
	"time"

	"exchange-service/internal/models"
	"exchange-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const dueDateLayout = "Jan 2, 2006"

// NotificationDispatcher composes and records exchange notifications
type NotificationDispatcher struct {
	notifications NotificationRepository
	publisher     EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

// NewNotificationDispatcher creates a new dispatcher. publisher may be nil.
func NewNotificationDispatcher(notifications NotificationRepository, publisher EventPublisher) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		publisher:     publisher,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// Emit records n and announces it on the broker. A failed announcement is
// logged; the stored notification is what the recipient sees.
func (d *NotificationDispatcher) Emit(ctx context.Context, n *models.Notification, tenantSlug string) error {
	ctx, span := util.StartSpan(ctx, "NotificationDispatcher.Emit",
		attribute.String("type", n.Type),
		attribute.String("recipient_id", n.RecipientID))
	defer span.End()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}

	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		util.RecordError(span, err)
		util.NotificationsTotal.WithLabelValues(n.Type, "failed").Inc()
		return fmt.Errorf("failed to create %s notification: %w", n.Type, err)
	}
	util.NotificationsTotal.WithLabelValues(n.Type, "success").Inc()

	if d.publisher != nil {
		event := &models.NotificationCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeNotificationCreated,
				Timestamp: d.now().UTC(),
			},
			NotificationID: n.ID,
			TenantID:       n.TenantID,
			TenantSlug:     tenantSlug,
			RecipientID:    n.RecipientID,
			Type:           n.Type,
		}
		if n.ExchangeTransactionID != nil {
			event.TransactionID = *n.ExchangeTransactionID
		}
		if err := d.publisher.PublishNotificationCreated(ctx, event); err != nil {
			d.logger.Warn("Failed to publish notification created event",
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}

	return nil
}

// EmitOnce emits n unless a notification of the same type about the same
// transaction was already sent to the same recipient.
func (d *NotificationDispatcher) EmitOnce(ctx context.Context, n *models.Notification, tenantSlug string) (bool, error) {
	if n.ExchangeTransactionID == nil {
		return false, fmt.Errorf("deduplicated %s notification requires a transaction", n.Type)
	}

	exists, err := d.notifications.NotificationExists(ctx, *n.ExchangeTransactionID, n.Type, n.RecipientID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing %s notification: %w", n.Type, err)
	}
	if exists {
		util.NotificationsDeduplicated.WithLabelValues(n.Type).Inc()
		d.logger.Debug("Notification already sent",
			zap.String("type", n.Type),
			zap.String("transaction_id", *n.ExchangeTransactionID),
			zap.String("recipient_id", n.RecipientID))
		return false, nil
	}

	if err := d.Emit(ctx, n, tenantSlug); err != nil {
		return false, err
	}
	return true, nil
}

func newExchangeNotification(t *models.TransactionDetails, recipientID, kind, title, message string, actorID *string) *models.Notification {
	return &models.Notification{
		TenantID:              t.TenantID,
		RecipientID:           recipientID,
		Type:                  kind,
		Title:                 title,
		Message:               message,
		ActorID:               actorID,
		ExchangeTransactionID: models.Ptr(t.ID),
		ExchangeListingID:     models.Ptr(t.ListingID),
	}
}

func transactionsTabURL(tenantSlug string) *string {
	return models.Ptr(fmt.Sprintf("/t/%s/dashboard?tab=transactions", tenantSlug))
}

// pickupCompletedNotice tells the counterparty that a non-returnable
// exchange was fulfilled at pickup.
func pickupCompletedNotice(t *models.TransactionDetails, actorID string) *models.Notification {
	return newExchangeNotification(t, t.Counterparty(actorID), models.NotificationExchangePickedUp,
		"Service/Appointment completed",
		fmt.Sprintf("%s confirmed completion of %s", t.PartyName(actorID), t.ListingTitle),
		models.Ptr(actorID))
}

func pickedUpNotice(t *models.TransactionDetails, actorID string) *models.Notification {
	return newExchangeNotification(t, t.Counterparty(actorID), models.NotificationExchangePickedUp,
		"Item picked up",
		fmt.Sprintf("%s confirmed pickup of %s", t.PartyName(actorID), t.ListingTitle),
		models.Ptr(actorID))
}

// pickupConfirmedNotice is the lender's own record of a pickup they marked.
func pickupConfirmedNotice(t *models.TransactionDetails) *models.Notification {
	return newExchangeNotification(t, t.LenderID, models.NotificationExchangePickedUp,
		"Pickup confirmed",
		fmt.Sprintf("You marked %s as picked up.", t.ListingTitle),
		models.Ptr(t.LenderID))
}

// returnSoonNotice is sent right after pickup when the due date is close.
func returnSoonNotice(t *models.TransactionDetails, actorID string) *models.Notification {
	n := newExchangeNotification(t, t.BorrowerID, models.NotificationExchangeReminder,
		fmt.Sprintf("Reminder: Return %s soon", t.ListingTitle),
		fmt.Sprintf("Please return %s by %s", t.ListingTitle, t.ExpectedReturnDate.Format(dueDateLayout)),
		models.Ptr(actorID))
	n.ActionURL = transactionsTabURL(t.TenantSlug)
	return n
}

func returnedNotice(t *models.TransactionDetails, condition models.ReturnCondition) *models.Notification {
	return newExchangeNotification(t, t.BorrowerID, models.NotificationExchangeCompleted,
		"Transaction completed",
		fmt.Sprintf("%s has confirmed the return of %s. Condition: %s. Thank you!", t.LenderName, t.ListingTitle, condition),
		models.Ptr(t.LenderID))
}

func completedNotice(t *models.TransactionDetails) *models.Notification {
	return newExchangeNotification(t, t.BorrowerID, models.NotificationExchangeCompleted,
		"Transaction completed",
		fmt.Sprintf("%s has marked your transaction for %s as complete. Thank you!", t.LenderName, t.ListingTitle),
		models.Ptr(t.LenderID))
}

func cancelledNotice(t *models.TransactionDetails, actorID string) *models.Notification {
	return newExchangeNotification(t, t.Counterparty(actorID), models.NotificationExchangeCancelled,
		"Request cancelled",
		fmt.Sprintf("%s has cancelled the request for %s", t.PartyName(actorID), t.ListingTitle),
		models.Ptr(actorID))
}

// sweepReminderNotice is the scheduled reminder for a loan nearing its due date.
func sweepReminderNotice(t *models.TransactionDetails) *models.Notification {
	n := newExchangeNotification(t, t.BorrowerID, models.NotificationExchangeReminder,
		fmt.Sprintf("Return reminder - %s", t.ListingTitle),
		fmt.Sprintf("Please remember to return this item by %s.", t.ExpectedReturnDate.Format(dueDateLayout)),
		nil)
	n.ActionURL = transactionsTabURL(t.TenantSlug)
	return n
}

func overdueBorrowerNotice(t *models.TransactionDetails) *models.Notification {
	n := newExchangeNotification(t, t.BorrowerID, models.NotificationExchangeOverdue,
		fmt.Sprintf("Item overdue - %s", t.ListingTitle),
		fmt.Sprintf("This item was due on %s. Please coordinate with the lender to return it as soon as possible.",
			t.ExpectedReturnDate.Format(dueDateLayout)),
		nil)
	n.ActionURL = transactionsTabURL(t.TenantSlug)
	return n
}

func overdueLenderNotice(t *models.TransactionDetails) *models.Notification {
	n := newExchangeNotification(t, t.LenderID, models.NotificationExchangeOverdue,
		fmt.Sprintf("Item overdue - %s", t.ListingTitle),
		fmt.Sprintf("%s is now overdue. Expected return: %s", t.ListingTitle, t.ExpectedReturnDate.Format(dueDateLayout)),
		nil)
	n.ActionURL = transactionsTabURL(t.TenantSlug)
	return n
}
