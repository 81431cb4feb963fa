package service

import (
	"context"
	"errors"
	"fmt"

	"exchange-service/internal/models"
	"exchange-service/internal/store"
	"exchange-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// CompletedPage is one page of a user's completed exchange history
type CompletedPage struct {
	Transactions []models.TransactionDetails `json:"transactions"`
	Total        int                         `json:"total"`
	Offset       int                         `json:"offset"`
	Limit        int                         `json:"limit"`
	HasMore      bool                        `json:"has_more"`
}

// GetTransaction returns a transaction the actor is a party to.
func (s *ExchangeService) GetTransaction(ctx context.Context, actor Actor, transactionID string) *Result {
	ctx, span := util.StartSpan(ctx, "ExchangeService.GetTransaction", attribute.String("transaction_id", transactionID))
	defer span.End()

	d, err := s.transactions.GetTransactionDetails(ctx, actor.TenantID, transactionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("Failed to load transaction", zap.String("transaction_id", transactionID), zap.Error(err))
		}
		return failure(KindNotFound, "Transaction not found")
	}
	if models.RoleOf(&d.Transaction, actor.UserID) == models.RoleNone {
		return failure(KindUnauthorized, "Unauthorized")
	}

	return &Result{Success: true, Data: d}
}

// ListMyTransactions returns every transaction where the actor is borrower
// or lender, newest first.
func (s *ExchangeService) ListMyTransactions(ctx context.Context, actor Actor) ([]models.TransactionDetails, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeService.ListMyTransactions")
	defer span.End()

	items, err := s.transactions.ListTransactionsForUser(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if items == nil {
		items = []models.TransactionDetails{}
	}
	return items, nil
}

// ListCompletedTransactions returns a page of the actor's completed
// transactions, most recently completed first.
func (s *ExchangeService) ListCompletedTransactions(ctx context.Context, actor Actor, offset, limit int) (*CompletedPage, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeService.ListCompletedTransactions")
	defer span.End()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.transactions.ListCompletedTransactions(ctx, actor.TenantID, actor.UserID, offset, limit)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list completed transactions: %w", err)
	}
	if items == nil {
		items = []models.TransactionDetails{}
	}

	return &CompletedPage{
		Transactions: items,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
		HasMore:      offset+len(items) < total,
	}, nil
}

// GetUserPendingRequest returns the actor's open request on a listing, or
// nil when there is none.
func (s *ExchangeService) GetUserPendingRequest(ctx context.Context, actor Actor, listingID string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeService.GetUserPendingRequest", attribute.String("listing_id", listingID))
	defer span.End()

	tx, err := s.transactions.GetPendingRequest(ctx, actor.TenantID, actor.UserID, listingID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get pending request: %w", err)
	}
	return tx, nil
}

// ListingAvailability returns the current capacity of a listing in the
// actor's tenant.
func (s *ExchangeService) ListingAvailability(ctx context.Context, actor Actor, listingID string) (*Availability, error) {
	return s.ledger.Availability(ctx, actor.TenantID, listingID)
}
