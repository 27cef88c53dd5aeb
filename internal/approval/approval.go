package approval

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an approval does not exist for the tenant.
	ErrNotFound = errors.New("approval: not found")
	// ErrAlreadyResolved is returned when the approval was decided by a
	// concurrent reviewer.
	ErrAlreadyResolved = errors.New("approval: already resolved")
)

// Status is an approval lifecycle status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Approval is one pending or resolved review request for a quote.
type Approval struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	QuoteID    uuid.UUID
	Status     Status
	Reason     string
	ApprovedBy *uuid.UUID
	ApprovedAt *time.Time
	CreatedAt  time.Time
}

// PendingItem is one row in the review queue, denormalized with the quote
// summary and contact so the admin UI needs a single call.
type PendingItem struct {
	ID             uuid.UUID
	QuoteID        uuid.UUID
	ConversationID uuid.UUID
	ContactName    string
	ContactPhone   string
	Total          decimal.Decimal
	MarginPct      decimal.Decimal
	Reason         string
	CreatedAt      time.Time
}
