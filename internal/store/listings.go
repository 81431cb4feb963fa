package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exchange-service/internal/models"
)

// CreateTenant inserts a tenant
func (s *Store) CreateTenant(ctx context.Context, t *models.Tenant) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO tenants (id, slug, name) VALUES (?, ?, ?)`),
		t.ID, t.Slug, t.Name)
	return err
}

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, tenant_id, first_name, last_name) VALUES (?, ?, ?, ?)`),
		u.ID, u.TenantID, u.FirstName, u.LastName)
	return err
}

// CreateCategory inserts a category. An empty policy is stored as NULL.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	var policy *string
	if c.Policy != "" {
		policy = &c.Policy
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO exchange_categories (id, name, policy) VALUES (?, ?, ?)`),
		c.ID, c.Name, policy)
	return err
}

// CreateListing inserts a listing
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO exchange_listings (
			id, tenant_id, lender_id, category_id, title,
			available_quantity, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.TenantID, l.LenderID, l.CategoryID, l.Title,
		l.AvailableQuantity, l.IsAvailable, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by ID within a tenant
func (s *Store) GetListing(ctx context.Context, tenantID, id string) (*models.Listing, error) {
	var l models.Listing
	err := s.db.GetContext(ctx, &l,
		s.q(`SELECT * FROM exchange_listings WHERE id = ? AND tenant_id = ?`), id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// RestoreQuantity adds amount back to a listing and marks it available in one
// statement, returning the new available quantity.
func (s *Store) RestoreQuantity(ctx context.Context, listingID string, amount int) (int, error) {
	var available int
	err := s.db.GetContext(ctx, &available, s.q(`
		UPDATE exchange_listings
		SET available_quantity = available_quantity + ?, is_available = TRUE, updated_at = ?
		WHERE id = ?
		RETURNING available_quantity`),
		amount, time.Now().UTC(), listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to restore quantity: %w", err)
	}
	return available, nil
}
