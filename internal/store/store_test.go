package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exchange-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *Store
	listing *models.Listing
}

func seed(t *testing.T, categoryName string, available int) *fixture {
	t.Helper()
	s := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{ID: "t1", Slug: "maple", Name: "Maple Grove"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "borrower", TenantID: "t1", FirstName: "Bea", LastName: "Borrow"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "lender", TenantID: "t1", FirstName: "Lou", LastName: "Lend"}))
	require.NoError(t, s.CreateCategory(ctx, &models.Category{ID: "c1", Name: categoryName}))

	listing := &models.Listing{
		ID: "l1", TenantID: "t1", LenderID: "lender", CategoryID: models.Ptr("c1"),
		Title: "Ladder", AvailableQuantity: available, IsAvailable: available > 0,
	}
	require.NoError(t, s.CreateListing(ctx, listing))

	return &fixture{store: s, listing: listing}
}

func (f *fixture) addTransaction(t *testing.T, id string, status models.Status) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID: id, TenantID: "t1", ListingID: f.listing.ID,
		BorrowerID: "borrower", LenderID: "lender", Quantity: 1, Status: status,
	}
	require.NoError(t, f.store.CreateTransaction(context.Background(), tx))
	return tx
}

func TestMigrateBackfillsKnownCategoryPolicies(t *testing.T) {
	f := seed(t, models.CategoryFoodAndProduce, 5)
	ctx := context.Background()

	require.NoError(t, f.store.Migrate(ctx))

	f.addTransaction(t, "tx1", models.StatusConfirmed)
	d, err := f.store.GetTransactionDetails(ctx, "t1", "tx1")
	require.NoError(t, err)
	assert.Equal(t, models.PolicyConsumable, d.CategoryPolicy)
}

func TestGetTransactionDetails(t *testing.T) {
	f := seed(t, "Tools", 3)
	ctx := context.Background()
	f.addTransaction(t, "tx1", models.StatusConfirmed)

	d, err := f.store.GetTransactionDetails(ctx, "t1", "tx1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, d.Status)
	assert.Equal(t, "Ladder", d.ListingTitle)
	assert.Equal(t, "Tools", d.CategoryName)
	assert.Equal(t, "Bea Borrow", d.BorrowerName)
	assert.Equal(t, "Lou Lend", d.LenderName)
	assert.Equal(t, "maple", d.TenantSlug)
	assert.Nil(t, d.ActualPickupDate)

	_, err = f.store.GetTransactionDetails(ctx, "other-tenant", "tx1")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.store.GetTransactionDetails(ctx, "t1", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateTransactionStatusIsGuarded(t *testing.T) {
	f := seed(t, "Tools", 3)
	ctx := context.Background()
	f.addTransaction(t, "tx1", models.StatusConfirmed)

	now := time.Now().UTC()
	update := &models.StatusUpdate{
		TransactionID:    "tx1",
		TenantID:         "t1",
		Expected:         models.StatusConfirmed,
		Next:             models.StatusPickedUp,
		UpdatedAt:        now,
		ActualPickupDate: &now,
	}
	require.NoError(t, f.store.UpdateTransactionStatus(ctx, update))

	// same precondition again: status has moved on
	err := f.store.UpdateTransactionStatus(ctx, update)
	assert.True(t, errors.Is(err, ErrStaleStatus))

	tx, err := f.store.GetTransaction(ctx, "t1", "tx1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, tx.Status)
	require.NotNil(t, tx.ActualPickupDate)

	cond := models.ReturnConditionMinorWear
	require.NoError(t, f.store.UpdateTransactionStatus(ctx, &models.StatusUpdate{
		TransactionID:    "tx1",
		TenantID:         "t1",
		Expected:         models.StatusPickedUp,
		Next:             models.StatusCompleted,
		UpdatedAt:        now,
		ActualReturnDate: &now,
		CompletedAt:      &now,
		ReturnCondition:  &cond,
		ReturnNotes:      models.Ptr("scuffed rung"),
	}))

	tx, err = f.store.GetTransaction(ctx, "t1", "tx1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	require.NotNil(t, tx.ReturnCondition)
	assert.Equal(t, models.ReturnConditionMinorWear, *tx.ReturnCondition)
	assert.Equal(t, "scuffed rung", *tx.ReturnNotes)
	assert.NotNil(t, tx.ActualPickupDate, "earlier stamps are preserved")
	assert.Nil(t, tx.RejectedAt)
}

func TestRestoreQuantity(t *testing.T) {
	f := seed(t, "Tools", 0)
	ctx := context.Background()

	available, err := f.store.RestoreQuantity(ctx, "l1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, available)

	l, err := f.store.GetListing(ctx, "t1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, l.AvailableQuantity)
	assert.True(t, l.IsAvailable)

	_, err = f.store.RestoreQuantity(ctx, "missing", 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRestoreQuantityConcurrentCallersDoNotLoseUpdates(t *testing.T) {
	f := seed(t, "Tools", 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.RestoreQuantity(ctx, "l1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	l, err := f.store.GetListing(ctx, "t1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 15, l.AvailableQuantity)
}

func TestListCompletedTransactionsPaginates(t *testing.T) {
	f := seed(t, "Tools", 5)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		f.addTransaction(t, id, models.StatusPickedUp)
		done := time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, f.store.UpdateTransactionStatus(ctx, &models.StatusUpdate{
			TransactionID: id, TenantID: "t1",
			Expected: models.StatusPickedUp, Next: models.StatusCompleted,
			UpdatedAt: done, CompletedAt: &done,
		}))
	}
	f.addTransaction(t, "open", models.StatusConfirmed)

	page, total, err := f.store.ListCompletedTransactions(ctx, "t1", "borrower", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	all, err := f.store.ListTransactionsForUser(ctx, "t1", "lender")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := f.store.ListTransactionsForUser(ctx, "t1", "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetPendingRequest(t *testing.T) {
	f := seed(t, "Tools", 5)
	ctx := context.Background()

	tx, err := f.store.GetPendingRequest(ctx, "t1", "borrower", "l1")
	require.NoError(t, err)
	assert.Nil(t, tx)

	f.addTransaction(t, "req", models.StatusRequested)

	tx, err = f.store.GetPendingRequest(ctx, "t1", "borrower", "l1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "req", tx.ID)
}

func TestListActiveLoans(t *testing.T) {
	f := seed(t, "Tools", 5)
	ctx := context.Background()

	due := time.Now().UTC().Add(24 * time.Hour)
	tx := &models.Transaction{
		ID: "loan", TenantID: "t1", ListingID: "l1", BorrowerID: "borrower", LenderID: "lender",
		Quantity: 1, Status: models.StatusPickedUp, ExpectedReturnDate: &due,
	}
	require.NoError(t, f.store.CreateTransaction(ctx, tx))
	f.addTransaction(t, "no-date", models.StatusPickedUp)
	f.addTransaction(t, "confirmed", models.StatusConfirmed)

	loans, err := f.store.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "loan", loans[0].ID)
	assert.Equal(t, "maple", loans[0].TenantSlug)
}

func TestNotificationExists(t *testing.T) {
	f := seed(t, "Tools", 5)
	ctx := context.Background()
	f.addTransaction(t, "tx1", models.StatusPickedUp)

	exists, err := f.store.NotificationExists(ctx, "tx1", models.NotificationExchangeReminder, "borrower")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.store.CreateNotification(ctx, &models.Notification{
		ID: "n1", TenantID: "t1", RecipientID: "borrower",
		Type: models.NotificationExchangeReminder, Title: "Return reminder",
		ExchangeTransactionID: models.Ptr("tx1"), ExchangeListingID: models.Ptr("l1"),
	}))

	exists, err = f.store.NotificationExists(ctx, "tx1", models.NotificationExchangeReminder, "borrower")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.store.NotificationExists(ctx, "tx1", models.NotificationExchangeReminder, "lender")
	require.NoError(t, err)
	assert.False(t, exists)

	list, err := f.store.ListNotifications(ctx, "t1", "borrower")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)
}

func TestProcessedEvents(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	processed, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeNotificationCreated))
	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeNotificationCreated))

	processed, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}
