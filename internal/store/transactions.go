package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exchange-service/internal/models"
)

const transactionDetailsSelect = `
	SELECT t.*,
	       l.title AS listing_title,
	       COALESCE(c.name, '') AS category_name,
	       COALESCE(c.policy, '') AS category_policy,
	       COALESCE(b.first_name || ' ' || b.last_name, '') AS borrower_name,
	       COALESCE(le.first_name || ' ' || le.last_name, '') AS lender_name,
	       COALESCE(ten.slug, '') AS tenant_slug
	FROM exchange_transactions t
	JOIN exchange_listings l ON l.id = t.listing_id
	LEFT JOIN exchange_categories c ON c.id = l.category_id
	LEFT JOIN users b ON b.id = t.borrower_id
	LEFT JOIN users le ON le.id = t.lender_id
	LEFT JOIN tenants ten ON ten.id = t.tenant_id`

// CreateTransaction inserts a transaction row as written by the request flow
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if tx.Status == "" {
		tx.Status = models.StatusRequested
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO exchange_transactions (
			id, tenant_id, listing_id, borrower_id, lender_id, quantity, status,
			proposed_pickup_date, proposed_return_date, expected_return_date,
			borrower_message, lender_message, created_at, updated_at, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tx.ID, tx.TenantID, tx.ListingID, tx.BorrowerID, tx.LenderID, tx.Quantity, string(tx.Status),
		tx.ProposedPickupDate, tx.ProposedReturnDate, tx.ExpectedReturnDate,
		tx.BorrowerMessage, tx.LenderMessage, tx.CreatedAt, tx.UpdatedAt, tx.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionDetails retrieves a transaction within a tenant with its joins
func (s *Store) GetTransactionDetails(ctx context.Context, tenantID, id string) (*models.TransactionDetails, error) {
	var d models.TransactionDetails
	err := s.db.GetContext(ctx, &d,
		s.q(transactionDetailsSelect+` WHERE t.id = ? AND t.tenant_id = ?`), id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetTransaction retrieves a bare transaction row
func (s *Store) GetTransaction(ctx context.Context, tenantID, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.GetContext(ctx, &tx,
		s.q(`SELECT * FROM exchange_transactions WHERE id = ? AND tenant_id = ?`), id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransactionStatus writes a status change only while the stored status
// still equals u.Expected. Nil fields in u leave the column untouched.
func (s *Store) UpdateTransactionStatus(ctx context.Context, u *models.StatusUpdate) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE exchange_transactions SET
			status = ?,
			updated_at = ?,
			actual_pickup_date = COALESCE(?, actual_pickup_date),
			actual_return_date = COALESCE(?, actual_return_date),
			completed_at = COALESCE(?, completed_at),
			rejected_at = COALESCE(?, rejected_at),
			rejection_reason = COALESCE(?, rejection_reason),
			return_condition = COALESCE(?, return_condition),
			return_notes = COALESCE(?, return_notes),
			return_damage_photo_url = COALESCE(?, return_damage_photo_url)
		WHERE id = ? AND tenant_id = ? AND status = ?`),
		string(u.Next), u.UpdatedAt,
		u.ActualPickupDate, u.ActualReturnDate, u.CompletedAt, u.RejectedAt,
		u.RejectionReason, conditionArg(u.ReturnCondition), u.ReturnNotes, u.ReturnDamagePhotoURL,
		u.TransactionID, u.TenantID, string(u.Expected))
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ListTransactionsForUser retrieves transactions where the user is either party
func (s *Store) ListTransactionsForUser(ctx context.Context, tenantID, userID string) ([]models.TransactionDetails, error) {
	var items []models.TransactionDetails
	err := s.db.SelectContext(ctx, &items, s.q(transactionDetailsSelect+`
		WHERE t.tenant_id = ? AND (t.borrower_id = ? OR t.lender_id = ?)
		ORDER BY t.created_at DESC`),
		tenantID, userID, userID)
	return items, err
}

// ListCompletedTransactions retrieves a page of completed transactions and the total count
func (s *Store) ListCompletedTransactions(ctx context.Context, tenantID, userID string, offset, limit int) ([]models.TransactionDetails, int, error) {
	var items []models.TransactionDetails
	err := s.db.SelectContext(ctx, &items, s.q(transactionDetailsSelect+`
		WHERE t.tenant_id = ? AND (t.borrower_id = ? OR t.lender_id = ?) AND t.status = ?
		ORDER BY t.completed_at DESC
		LIMIT ? OFFSET ?`),
		tenantID, userID, userID, string(models.StatusCompleted), limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.GetContext(ctx, &total, s.q(`
		SELECT COUNT(*) FROM exchange_transactions
		WHERE tenant_id = ? AND (borrower_id = ? OR lender_id = ?) AND status = ?`),
		tenantID, userID, userID, string(models.StatusCompleted))
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetPendingRequest retrieves the user's open request on a listing, or nil
func (s *Store) GetPendingRequest(ctx context.Context, tenantID, userID, listingID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.GetContext(ctx, &tx, s.q(`
		SELECT * FROM exchange_transactions
		WHERE borrower_id = ? AND listing_id = ? AND tenant_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1`),
		userID, listingID, tenantID, string(models.StatusRequested))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListActiveLoans retrieves picked-up transactions that carry a return date
func (s *Store) ListActiveLoans(ctx context.Context) ([]models.TransactionDetails, error) {
	var items []models.TransactionDetails
	err := s.db.SelectContext(ctx, &items, s.q(transactionDetailsSelect+`
		WHERE t.status = ? AND t.expected_return_date IS NOT NULL
		ORDER BY t.expected_return_date`),
		string(models.StatusPickedUp))
	return items, err
}

func conditionArg(c *models.ReturnCondition) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}
