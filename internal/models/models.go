package models

import "time"

// Tenant is an isolated community scope
type Tenant struct {
	ID   string `db:"id" json:"id"`
	Slug string `db:"slug" json:"slug"`
	Name string `db:"name" json:"name"`
}

// User is a community member; only display names are read by this service
type User struct {
	ID        string `db:"id" json:"id"`
	TenantID  string `db:"tenant_id" json:"tenant_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// Category classifies a listing. Policy may be empty for legacy rows.
type Category struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Policy string `db:"policy" json:"policy,omitempty"`
}

// Listing is an item or service offered by a lender
type Listing struct {
	ID                string    `db:"id" json:"id"`
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	LenderID          string    `db:"lender_id" json:"lender_id"`
	CategoryID        *string   `db:"category_id" json:"category_id,omitempty"`
	Title             string    `db:"title" json:"title"`
	AvailableQuantity int       `db:"available_quantity" json:"available_quantity"`
	IsAvailable       bool      `db:"is_available" json:"is_available"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one borrow/exchange arrangement over a listing
type Transaction struct {
	ID                   string           `db:"id" json:"id"`
	TenantID             string           `db:"tenant_id" json:"tenant_id"`
	ListingID            string           `db:"listing_id" json:"listing_id"`
	BorrowerID           string           `db:"borrower_id" json:"borrower_id"`
	LenderID             string           `db:"lender_id" json:"lender_id"`
	Quantity             int              `db:"quantity" json:"quantity"`
	Status               Status           `db:"status" json:"status"`
	ProposedPickupDate   *time.Time       `db:"proposed_pickup_date" json:"proposed_pickup_date,omitempty"`
	ProposedReturnDate   *time.Time       `db:"proposed_return_date" json:"proposed_return_date,omitempty"`
	ExpectedReturnDate   *time.Time       `db:"expected_return_date" json:"expected_return_date,omitempty"`
	ActualPickupDate     *time.Time       `db:"actual_pickup_date" json:"actual_pickup_date,omitempty"`
	ActualReturnDate     *time.Time       `db:"actual_return_date" json:"actual_return_date,omitempty"`
	BorrowerMessage      *string          `db:"borrower_message" json:"borrower_message,omitempty"`
	LenderMessage        *string          `db:"lender_message" json:"lender_message,omitempty"`
	RejectionReason      *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReturnCondition      *ReturnCondition `db:"return_condition" json:"return_condition,omitempty"`
	ReturnNotes          *string          `db:"return_notes" json:"return_notes,omitempty"`
	ReturnDamagePhotoURL *string          `db:"return_damage_photo_url" json:"return_damage_photo_url,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
	ConfirmedAt          *time.Time       `db:"confirmed_at" json:"confirmed_at,omitempty"`
	RejectedAt           *time.Time       `db:"rejected_at" json:"rejected_at,omitempty"`
	CompletedAt          *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// TransactionDetails is a transaction joined with its listing, category and parties
type TransactionDetails struct {
	Transaction
	ListingTitle   string `db:"listing_title" json:"listing_title"`
	CategoryName   string `db:"category_name" json:"category_name"`
	CategoryPolicy string `db:"category_policy" json:"-"`
	BorrowerName   string `db:"borrower_name" json:"borrower_name"`
	LenderName     string `db:"lender_name" json:"lender_name"`
	TenantSlug     string `db:"tenant_slug" json:"-"`
}

// Policy resolves the category policy of the joined category.
func (d *TransactionDetails) Policy() (CategoryPolicy, bool) {
	return ResolvePolicy(Category{Name: d.CategoryName, Policy: d.CategoryPolicy})
}

// PartyName returns the display name of the borrower or lender.
func (d *TransactionDetails) PartyName(userID string) string {
	if userID == d.BorrowerID {
		return d.BorrowerName
	}
	return d.LenderName
}

// Counterparty returns the other side of the transaction.
func (d *TransactionDetails) Counterparty(userID string) string {
	if userID == d.BorrowerID {
		return d.LenderID
	}
	return d.BorrowerID
}

// StatusUpdate describes a guarded status write. The write only applies while
// the stored status still equals Expected.
type StatusUpdate struct {
	TransactionID        string
	TenantID             string
	Expected             Status
	Next                 Status
	UpdatedAt            time.Time
	ActualPickupDate     *time.Time
	ActualReturnDate     *time.Time
	CompletedAt          *time.Time
	RejectedAt           *time.Time
	RejectionReason      *string
	ReturnCondition      *ReturnCondition
	ReturnNotes          *string
	ReturnDamagePhotoURL *string
}

// Notification is a user-facing message about one exchange event
type Notification struct {
	ID                    string    `db:"id" json:"id"`
	TenantID              string    `db:"tenant_id" json:"tenant_id"`
	RecipientID           string    `db:"recipient_id" json:"recipient_id"`
	Type                  string    `db:"type" json:"type"`
	Title                 string    `db:"title" json:"title"`
	Message               string    `db:"message" json:"message"`
	ActorID               *string   `db:"actor_id" json:"actor_id,omitempty"`
	ExchangeTransactionID *string   `db:"exchange_transaction_id" json:"exchange_transaction_id,omitempty"`
	ExchangeListingID     *string   `db:"exchange_listing_id" json:"exchange_listing_id,omitempty"`
	ActionURL             *string   `db:"action_url" json:"action_url,omitempty"`
	IsRead                bool      `db:"is_read" json:"is_read"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// Notification types
const (
	NotificationExchangePickedUp  = "exchange_picked_up"
	NotificationExchangeCompleted = "exchange_completed"
	NotificationExchangeCancelled = "exchange_cancelled"
	NotificationExchangeReminder  = "exchange_reminder"
	NotificationExchangeOverdue   = "exchange_overdue"
)

// ReturnCondition is the lender's assessment of a returned item
type ReturnCondition string

const (
	ReturnConditionGood      ReturnCondition = "good"
	ReturnConditionMinorWear ReturnCondition = "minor_wear"
	ReturnConditionDamaged   ReturnCondition = "damaged"
	ReturnConditionBroken    ReturnCondition = "broken"
)

// Valid reports whether c is one of the known conditions.
func (c ReturnCondition) Valid() bool {
	switch c {
	case ReturnConditionGood, ReturnConditionMinorWear, ReturnConditionDamaged, ReturnConditionBroken:
		return true
	}
	return false
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
