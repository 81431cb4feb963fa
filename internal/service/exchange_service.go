package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchange-service/internal/models"
	"exchange-service/internal/store"
	"exchange-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultReminderWindow = 48 * time.Hour
	defaultLockTTL        = 10 * time.Second
	defaultCancelReason   = "Cancelled by user"
)

// Options tunes the exchange service
type Options struct {
	ReminderWindow time.Duration
	LockTTL        time.Duration
}

// ExchangeService advances exchange transactions through their lifecycle
type ExchangeService struct {
	transactions TransactionRepository
	ledger       *InventoryLedger
	dispatcher   *NotificationDispatcher
	publisher    EventPublisher
	locker       Locker
	opts         Options
	logger       *zap.Logger
	now          func() time.Time
}

// NewExchangeService creates a new exchange service. publisher and locker
// may be nil.
func NewExchangeService(
	transactions TransactionRepository,
	ledger *InventoryLedger,
	dispatcher *NotificationDispatcher,
	publisher EventPublisher,
	locker Locker,
	opts Options,
) *ExchangeService {
	if opts.ReminderWindow <= 0 {
		opts.ReminderWindow = defaultReminderWindow
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &ExchangeService{
		transactions: transactions,
		ledger:       ledger,
		dispatcher:   dispatcher,
		publisher:    publisher,
		locker:       locker,
		opts:         opts,
		logger:       util.GetLogger(),
		now:          time.Now,
	}
}

// Actor identifies the caller and the tenant they act in
type Actor struct {
	TenantID   string
	TenantSlug string
	UserID     string
}

// ReturnRequest is the lender's report on a returned item
type ReturnRequest struct {
	Condition      models.ReturnCondition `json:"return_condition"`
	Notes          string                 `json:"return_notes,omitempty"`
	DamagePhotoURL string                 `json:"return_damage_photo_url,omitempty"`
}

// TransitionOutcome is the data of a successful transition
type TransitionOutcome struct {
	TransactionID string        `json:"transaction_id"`
	Status        models.Status `json:"status"`
}

type transition struct {
	op      models.Operation
	actor   Actor
	details *models.TransactionDetails
	role    models.Role
	policy  models.CategoryPolicy
	next    models.Status
	now     time.Time
}

func (tr *transition) update() *models.StatusUpdate {
	return &models.StatusUpdate{
		TransactionID: tr.details.ID,
		TenantID:      tr.details.TenantID,
		Expected:      tr.details.Status,
		Next:          tr.next,
		UpdatedAt:     tr.now,
	}
}

func (tr *transition) tenantSlug() string {
	if tr.details.TenantSlug != "" {
		return tr.details.TenantSlug
	}
	return tr.actor.TenantSlug
}

// MarkItemPickedUp records that the item or service changed hands. Returnable
// categories move to picked_up; the others complete immediately.
func (s *ExchangeService) MarkItemPickedUp(ctx context.Context, actor Actor, transactionID string) *Result {
	return s.run(ctx, models.OpPickUp, actor, transactionID, nil,
		func(tr *transition) *models.StatusUpdate {
			u := tr.update()
			u.ActualPickupDate = models.Ptr(tr.now)
			if tr.next == models.StatusCompleted {
				u.CompletedAt = models.Ptr(tr.now)
			}
			return u
		},
		func(ctx context.Context, tr *transition, res *Result) {
			d := tr.details
			if tr.next == models.StatusCompleted {
				if tr.policy.Reusable {
					s.restore(ctx, tr, res)
				} else {
					util.InventoryRestoresSkipped.Inc()
				}
				s.notify(ctx, tr, res, "notify.completed", pickupCompletedNotice(d, tr.actor.UserID))
				return
			}

			s.notify(ctx, tr, res, "notify.picked_up", pickedUpNotice(d, tr.actor.UserID))
			if tr.role == models.RoleLender {
				s.notify(ctx, tr, res, "notify.pickup_confirmed", pickupConfirmedNotice(d))
			}
			if s.dueWithinWindow(d, tr.now) {
				s.notifyOnce(ctx, tr, res, "notify.reminder", returnSoonNotice(d, tr.actor.UserID))
			}
		})
}

// MarkItemReturned completes a picked-up loan with the lender's condition report.
func (s *ExchangeService) MarkItemReturned(ctx context.Context, actor Actor, transactionID string, req ReturnRequest) *Result {
	validate := func(*models.TransactionDetails) error {
		if req.Condition == "" {
			return &TransitionError{Kind: KindValidation, Message: "Return condition is required"}
		}
		if !req.Condition.Valid() {
			return &TransitionError{Kind: KindValidation, Message: fmt.Sprintf("Unknown return condition %q", req.Condition)}
		}
		return nil
	}

	return s.run(ctx, models.OpReturn, actor, transactionID, validate,
		func(tr *transition) *models.StatusUpdate {
			u := tr.update()
			u.ActualReturnDate = models.Ptr(tr.now)
			u.CompletedAt = models.Ptr(tr.now)
			u.ReturnCondition = models.Ptr(req.Condition)
			u.ReturnNotes = optional(req.Notes)
			u.ReturnDamagePhotoURL = optional(req.DamagePhotoURL)
			return u
		},
		func(ctx context.Context, tr *transition, res *Result) {
			s.restore(ctx, tr, res)
			s.notify(ctx, tr, res, "notify.completed", returnedNotice(tr.details, req.Condition))
		})
}

// MarkTransactionCompleted completes a returned transaction.
func (s *ExchangeService) MarkTransactionCompleted(ctx context.Context, actor Actor, transactionID string) *Result {
	return s.run(ctx, models.OpComplete, actor, transactionID, nil,
		func(tr *transition) *models.StatusUpdate {
			u := tr.update()
			u.CompletedAt = models.Ptr(tr.now)
			return u
		},
		func(ctx context.Context, tr *transition, res *Result) {
			s.restore(ctx, tr, res)
			s.notify(ctx, tr, res, "notify.completed", completedNotice(tr.details))
		})
}

// CancelTransaction rejects a confirmed transaction before pickup and
// returns its reserved quantity to the listing.
func (s *ExchangeService) CancelTransaction(ctx context.Context, actor Actor, transactionID, reason string) *Result {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	return s.run(ctx, models.OpCancel, actor, transactionID, nil,
		func(tr *transition) *models.StatusUpdate {
			u := tr.update()
			u.RejectedAt = models.Ptr(tr.now)
			u.RejectionReason = models.Ptr(reason)
			return u
		},
		func(ctx context.Context, tr *transition, res *Result) {
			s.restore(ctx, tr, res)
			s.notify(ctx, tr, res, "notify.cancelled", cancelledNotice(tr.details, tr.actor.UserID))
		})
}

// run loads, authorizes, writes and then applies side effects for one
// transition. Failures after the status write are recorded on the result
// and never change its outcome.
func (s *ExchangeService) run(
	ctx context.Context,
	op models.Operation,
	actor Actor,
	transactionID string,
	validate func(*models.TransactionDetails) error,
	build func(*transition) *models.StatusUpdate,
	after func(context.Context, *transition, *Result),
) *Result {
	ctx, span := util.StartSpan(ctx, "ExchangeService."+string(op),
		attribute.String("transaction_id", transactionID),
		attribute.String("tenant_id", actor.TenantID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.TransitionLatency.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	}()

	res := s.execute(ctx, op, actor, transactionID, validate, build, after)
	if !res.Success {
		span.SetAttributes(attribute.String("error.kind", string(res.Kind)))
		util.TransitionsTotal.WithLabelValues(string(op), string(res.Kind)).Inc()
		s.logger.Info("Transition rejected",
			zap.String("operation", string(op)),
			zap.String("transaction_id", transactionID),
			zap.String("actor_id", actor.UserID),
			zap.String("kind", string(res.Kind)),
			zap.String("reason", res.Error))
		return res
	}

	util.TransitionsTotal.WithLabelValues(string(op), "success").Inc()
	if failed := res.FailedSideEffects(); len(failed) > 0 {
		s.logger.Warn("Transition succeeded with failed side effects",
			zap.String("operation", string(op)),
			zap.String("transaction_id", transactionID),
			zap.Strings("side_effects", failed))
	}
	return res
}

func (s *ExchangeService) execute(
	ctx context.Context,
	op models.Operation,
	actor Actor,
	transactionID string,
	validate func(*models.TransactionDetails) error,
	build func(*transition) *models.StatusUpdate,
	after func(context.Context, *transition, *Result),
) *Result {
	d, err := s.transactions.GetTransactionDetails(ctx, actor.TenantID, transactionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("Failed to load transaction",
				zap.String("transaction_id", transactionID),
				zap.Error(err))
		}
		return failure(KindNotFound, "Transaction not found")
	}

	tr := &transition{
		op:      op,
		actor:   actor,
		details: d,
		role:    models.RoleOf(&d.Transaction, actor.UserID),
		now:     s.now().UTC(),
	}

	policy, known := d.Policy()
	if !known && op == models.OpPickUp {
		util.UnknownCategoryPolicies.Inc()
		s.logger.Warn("No policy for category, treating as returnable",
			zap.String("category", d.CategoryName),
			zap.String("transaction_id", d.ID))
	}
	tr.policy = policy

	next, err := models.NextStatus(d.Status, op, tr.role, policy)
	if err != nil {
		var te *models.TransitionError
		if errors.As(err, &te) {
			if te.Kind == models.TransitionUnauthorized {
				return failure(KindUnauthorized, te.Message)
			}
			return failure(KindInvalidState, te.Message)
		}
		return failure(KindValidation, err.Error())
	}
	tr.next = next

	if validate != nil {
		if err := validate(d); err != nil {
			return failureFrom(err)
		}
	}

	release, res := s.lock(ctx, d.ID)
	if res != nil {
		return res
	}
	defer release()

	if err := s.transactions.UpdateTransactionStatus(ctx, build(tr)); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return failure(KindInvalidState, "Transaction was modified concurrently, please retry")
		}
		s.logger.Error("Failed to update transaction status",
			zap.String("transaction_id", d.ID),
			zap.String("next", string(next)),
			zap.Error(err))
		return failure(KindPersistence, err.Error())
	}

	s.logger.Info("Transaction transitioned",
		zap.String("transaction_id", d.ID),
		zap.String("from", string(d.Status)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.UserID))

	res = &Result{
		Success: true,
		Data:    &TransitionOutcome{TransactionID: d.ID, Status: next},
	}
	s.publishTransitioned(ctx, tr, res)
	after(ctx, tr, res)
	return res
}

func (s *ExchangeService) lock(ctx context.Context, transactionID string) (func(), *Result) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := "exchange-tx:" + transactionID
	token, ok, err := s.locker.AcquireLock(ctx, key, s.opts.LockTTL)
	if err != nil {
		s.logger.Warn("Transition lock unavailable, relying on guarded update",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return noop, nil
	}
	if !ok {
		return noop, failure(KindInvalidState, "Transaction is already being updated")
	}

	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release transition lock",
				zap.String("transaction_id", transactionID),
				zap.Error(err))
		}
	}, nil
}

func (s *ExchangeService) publishTransitioned(ctx context.Context, tr *transition, res *Result) {
	if s.publisher == nil {
		return
	}
	d := tr.details
	err := s.publisher.PublishTransactionTransitioned(ctx, &models.TransactionTransitionedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTransactionTransitioned,
			Timestamp: tr.now,
		},
		TenantID:      d.TenantID,
		TransactionID: d.ID,
		ListingID:     d.ListingID,
		ActorID:       tr.actor.UserID,
		Operation:     tr.op,
		From:          d.Status,
		To:            tr.next,
		Quantity:      d.Quantity,
	})
	if err != nil {
		s.logger.Warn("Failed to publish transition event",
			zap.String("transaction_id", d.ID),
			zap.Error(err))
	}
	res.record("event.transitioned", err)
}

func (s *ExchangeService) restore(ctx context.Context, tr *transition, res *Result) {
	_, err := s.ledger.RestoreQuantity(ctx, tr.details.TenantID, tr.details.ListingID, tr.details.Quantity)
	if err != nil {
		s.logger.Error("Failed to restore listing quantity",
			zap.String("transaction_id", tr.details.ID),
			zap.String("listing_id", tr.details.ListingID),
			zap.Int("quantity", tr.details.Quantity),
			zap.Error(err))
	}
	res.record("inventory.restore", err)
}

func (s *ExchangeService) notify(ctx context.Context, tr *transition, res *Result, name string, n *models.Notification) {
	err := s.dispatcher.Emit(ctx, n, tr.tenantSlug())
	if err != nil {
		s.logger.Error("Failed to send notification",
			zap.String("type", n.Type),
			zap.String("transaction_id", tr.details.ID),
			zap.Error(err))
	}
	res.record(name, err)
}

func (s *ExchangeService) notifyOnce(ctx context.Context, tr *transition, res *Result, name string, n *models.Notification) {
	_, err := s.dispatcher.EmitOnce(ctx, n, tr.tenantSlug())
	if err != nil {
		s.logger.Error("Failed to send notification",
			zap.String("type", n.Type),
			zap.String("transaction_id", tr.details.ID),
			zap.Error(err))
	}
	res.record(name, err)
}

// dueWithinWindow reports whether the expected return date falls in
// (now, now+window].
func (s *ExchangeService) dueWithinWindow(d *models.TransactionDetails, now time.Time) bool {
	if d.ExpectedReturnDate == nil {
		return false
	}
	due := *d.ExpectedReturnDate
	return due.After(now) && !due.After(now.Add(s.opts.ReminderWindow))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
