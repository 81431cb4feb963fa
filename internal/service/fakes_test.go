package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exchange-service/internal/models"
	"exchange-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

var (
	borrower = Actor{TenantID: "t1", TenantSlug: "maple", UserID: "borrower"}
	lender   = Actor{TenantID: "t1", TenantSlug: "maple", UserID: "lender"}
	stranger = Actor{TenantID: "t1", TenantSlug: "maple", UserID: "stranger"}
)

type fakePublisher struct {
	mu            sync.Mutex
	err           error
	transitions   []*models.TransactionTransitionedEvent
	notifications []*models.NotificationCreatedEvent
}

func (p *fakePublisher) PublishTransactionTransitioned(_ context.Context, e *models.TransactionTransitionedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.transitions = append(p.transitions, e)
	return nil
}

func (p *fakePublisher) PublishNotificationCreated(_ context.Context, e *models.NotificationCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.notifications = append(p.notifications, e)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	err  error
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := uuid.New().String()
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type cachedAvailability struct {
	available   int
	isAvailable bool
}

type fakeCache struct {
	mu      sync.Mutex
	err     error
	entries map[string]cachedAvailability
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cachedAvailability)}
}

func cacheKey(tenantID, listingID string) string { return tenantID + "/" + listingID }

func (c *fakeCache) SyncAvailability(_ context.Context, tenantID, listingID string, available int, isAvailable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[cacheKey(tenantID, listingID)] = cachedAvailability{available, isAvailable}
	return nil
}

func (c *fakeCache) GetAvailability(_ context.Context, tenantID, listingID string) (int, bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, false, false, c.err
	}
	e, ok := c.entries[cacheKey(tenantID, listingID)]
	return e.available, e.isAvailable, ok, nil
}

type fakeViewCache struct {
	mu       sync.Mutex
	versions map[string]int64
	views    map[string][]byte
}

func newFakeViewCache() *fakeViewCache {
	return &fakeViewCache{versions: make(map[string]int64), views: make(map[string][]byte)}
}

func (c *fakeViewCache) ViewVersion(_ context.Context, path string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[path], nil
}

func (c *fakeViewCache) BumpViewVersion(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[path]++
	return nil
}

func (c *fakeViewCache) GetCachedView(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[key]
	return v, ok, nil
}

func (c *fakeViewCache) SetCachedView(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[key] = data
	return nil
}

// failingNotifications rejects every insert.
type failingNotifications struct {
	NotificationRepository
}

func (failingNotifications) CreateNotification(context.Context, *models.Notification) error {
	return errBoom
}

// failingListings rejects every restore.
type failingListings struct {
	ListingRepository
}

func (failingListings) RestoreQuantity(context.Context, string, int) (int, error) {
	return 0, errBoom
}

// racingTransactions moves the transaction to another status right after it
// is read, as a concurrent writer would.
type racingTransactions struct {
	TransactionRepository
	store *store.Store
	to    models.Status
}

func (r *racingTransactions) GetTransactionDetails(ctx context.Context, tenantID, id string) (*models.TransactionDetails, error) {
	d, err := r.TransactionRepository.GetTransactionDetails(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	_, err = r.store.GetDB().ExecContext(ctx,
		`UPDATE exchange_transactions SET status = ? WHERE id = ?`, string(r.to), id)
	return d, err
}

// harness wires the service to an in-memory SQLite store and fakes for
// everything outside the database.
type harness struct {
	store     *store.Store
	publisher *fakePublisher
	locker    *fakeLocker
	cache     *fakeCache
	now       time.Time

	transactions  TransactionRepository
	listings      ListingRepository
	notifications NotificationRepository
}

func newHarness(t *testing.T, categoryName string, available int) *harness {
	t.Helper()
	s := store.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{ID: "t1", Slug: "maple", Name: "Maple Grove"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "borrower", TenantID: "t1", FirstName: "Bea", LastName: "Borrow"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "lender", TenantID: "t1", FirstName: "Lou", LastName: "Lend"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "stranger", TenantID: "t1", FirstName: "Sam", LastName: "Else"}))
	require.NoError(t, s.CreateCategory(ctx, &models.Category{ID: "c1", Name: categoryName}))
	require.NoError(t, s.CreateListing(ctx, &models.Listing{
		ID: "l1", TenantID: "t1", LenderID: "lender", CategoryID: models.Ptr("c1"),
		Title: "Ladder", AvailableQuantity: available, IsAvailable: available > 0,
	}))

	return &harness{
		store:         s,
		publisher:     &fakePublisher{},
		locker:        newFakeLocker(),
		cache:         newFakeCache(),
		now:           time.Now().UTC().Truncate(time.Second),
		transactions:  s,
		listings:      s,
		notifications: s,
	}
}

func (h *harness) service() *ExchangeService {
	ledger := NewInventoryLedger(h.listings, h.cache)
	dispatcher := NewNotificationDispatcher(h.notifications, h.publisher)
	svc := NewExchangeService(h.transactions, ledger, dispatcher, h.publisher, h.locker, Options{})
	svc.now = func() time.Time { return h.now }
	return svc
}

func (h *harness) addTransaction(t *testing.T, id string, status models.Status, quantity int, expectedReturn *time.Time) {
	t.Helper()
	require.NoError(t, h.store.CreateTransaction(context.Background(), &models.Transaction{
		ID: id, TenantID: "t1", ListingID: "l1", BorrowerID: "borrower", LenderID: "lender",
		Quantity: quantity, Status: status, ExpectedReturnDate: expectedReturn,
	}))
}

func (h *harness) transaction(t *testing.T, id string) *models.Transaction {
	t.Helper()
	tx, err := h.store.GetTransaction(context.Background(), "t1", id)
	require.NoError(t, err)
	return tx
}

func (h *harness) listing(t *testing.T) *models.Listing {
	t.Helper()
	l, err := h.store.GetListing(context.Background(), "t1", "l1")
	require.NoError(t, err)
	return l
}

func (h *harness) notificationsFor(t *testing.T, recipientID, kind string) []models.Notification {
	t.Helper()
	all, err := h.store.ListNotifications(context.Background(), "t1", recipientID)
	require.NoError(t, err)
	var out []models.Notification
	for _, n := range all {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}
