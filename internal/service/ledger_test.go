package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreQuantityAddsAndSyncsCache(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	ledger := NewInventoryLedger(h.store, h.cache)

	available, err := ledger.RestoreQuantity(context.Background(), "t1", "l1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, available)
	assert.Equal(t, 5, h.listing(t).AvailableQuantity)
	assert.Equal(t, cachedAvailability{5, true}, h.cache.entries[cacheKey("t1", "l1")])
}

func TestRestoreQuantityRejectsNonPositiveAmounts(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	ledger := NewInventoryLedger(h.store, nil)

	for _, amount := range []int{0, -1} {
		_, err := ledger.RestoreQuantity(context.Background(), "t1", "l1", amount)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Equal(t, 2, h.listing(t).AvailableQuantity)
}

func TestRestoreQuantityMissingListing(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	ledger := NewInventoryLedger(h.store, h.cache)

	_, err := ledger.RestoreQuantity(context.Background(), "t1", "nope", 1)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Empty(t, h.cache.entries)
}

func TestRestoreQuantityIgnoresCacheFailure(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	h.cache.err = errBoom
	ledger := NewInventoryLedger(h.store, h.cache)

	available, err := ledger.RestoreQuantity(context.Background(), "t1", "l1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestAvailabilityPrefersCache(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	ledger := NewInventoryLedger(h.store, h.cache)
	ctx := context.Background()

	a, err := ledger.Availability(ctx, "t1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.AvailableQuantity)
	assert.True(t, a.IsAvailable)
	assert.Equal(t, cachedAvailability{2, true}, h.cache.entries[cacheKey("t1", "l1")])

	h.cache.entries[cacheKey("t1", "l1")] = cachedAvailability{9, false}
	a, err = ledger.Availability(ctx, "t1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 9, a.AvailableQuantity)
	assert.False(t, a.IsAvailable)

	_, err = ledger.Availability(ctx, "t1", "nope")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAvailabilityHidesOtherTenantsListings(t *testing.T) {
	h := newHarness(t, "Tools", 2)
	ledger := NewInventoryLedger(h.store, h.cache)
	ctx := context.Background()

	_, err := ledger.Availability(ctx, "t2", "l1")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "Listing not found", err.Error())

	// a warm snapshot for t1 is not visible to t2
	_, err = ledger.Availability(ctx, "t1", "l1")
	require.NoError(t, err)
	_, err = ledger.Availability(ctx, "t2", "l1")
	assert.Equal(t, KindNotFound, KindOf(err))
}
