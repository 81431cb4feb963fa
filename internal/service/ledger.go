package service

import (
	"context"
	"errors"
	"fmt"

	"exchange-service/internal/store"
	"exchange-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryLedger owns listing capacity restores
type InventoryLedger struct {
	listings ListingRepository
	cache    AvailabilityCache
	logger   *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger. cache may be nil.
func NewInventoryLedger(listings ListingRepository, cache AvailabilityCache) *InventoryLedger {
	return &InventoryLedger{
		listings: listings,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// Availability is the current capacity of a listing
type Availability struct {
	ListingID         string `json:"listing_id"`
	AvailableQuantity int    `json:"available_quantity"`
	IsAvailable       bool   `json:"is_available"`
}

// RestoreQuantity adds amount back to the listing and marks it available.
// The increment happens in a single statement so concurrent restores never
// lose an update.
func (l *InventoryLedger) RestoreQuantity(ctx context.Context, tenantID, listingID string, amount int) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.RestoreQuantity",
		attribute.String("listing_id", listingID),
		attribute.Int("amount", amount))
	defer span.End()

	if amount <= 0 {
		err := &TransitionError{Kind: KindValidation, Message: "Quantity to restore must be positive"}
		util.RecordError(span, err)
		util.InventoryRestoresTotal.WithLabelValues("rejected").Inc()
		return 0, err
	}

	available, err := l.listings.RestoreQuantity(ctx, listingID, amount)
	if err != nil {
		util.RecordError(span, err)
		util.InventoryRestoresTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, store.ErrNotFound) {
			return 0, &TransitionError{Kind: KindNotFound, Message: "Listing not found", Err: err}
		}
		return 0, fmt.Errorf("failed to restore listing quantity: %w", err)
	}
	util.InventoryRestoresTotal.WithLabelValues("success").Inc()

	if l.cache != nil {
		if err := l.cache.SyncAvailability(ctx, tenantID, listingID, available, true); err != nil {
			l.logger.Warn("Failed to sync availability cache",
				zap.String("listing_id", listingID),
				zap.Error(err))
		}
	}

	l.logger.Info("Listing quantity restored",
		zap.String("listing_id", listingID),
		zap.Int("amount", amount),
		zap.Int("available", available))
	return available, nil
}

// Availability reads the capacity of a listing in the tenant, preferring the
// cache. Listings of other tenants are reported as not found.
func (l *InventoryLedger) Availability(ctx context.Context, tenantID, listingID string) (*Availability, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Availability", attribute.String("listing_id", listingID))
	defer span.End()

	if l.cache != nil {
		available, isAvailable, found, err := l.cache.GetAvailability(ctx, tenantID, listingID)
		if err != nil {
			l.logger.Warn("Availability cache read failed", zap.String("listing_id", listingID), zap.Error(err))
		} else if found {
			return &Availability{ListingID: listingID, AvailableQuantity: available, IsAvailable: isAvailable}, nil
		}
	}

	listing, err := l.listings.GetListing(ctx, tenantID, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &TransitionError{Kind: KindNotFound, Message: "Listing not found", Err: err}
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if l.cache != nil {
		if err := l.cache.SyncAvailability(ctx, tenantID, listingID, listing.AvailableQuantity, listing.IsAvailable); err != nil {
			l.logger.Warn("Failed to sync availability cache", zap.String("listing_id", listingID), zap.Error(err))
		}
	}

	return &Availability{
		ListingID:         listingID,
		AvailableQuantity: listing.AvailableQuantity,
		IsAvailable:       listing.IsAvailable,
	}, nil
}
