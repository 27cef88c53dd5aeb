// Package quotes holds the quote aggregate: the immutable pricing snapshot,
// its persistence, and the PT-BR customer-facing message templates.
package quotes

import (
	"time"

	"orcazap/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is a quote lifecycle status.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusExpired Status = "expired"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Quote is one generated quote. The item and pricing fields are an immutable
// snapshot taken at generation time; only the status changes afterwards.
type Quote struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Status         Status
	Items          []pricing.PricedLine
	Subtotal       decimal.Decimal
	Freight        decimal.Decimal
	DiscountPct    decimal.Decimal
	Total          decimal.Decimal
	MarginPct      decimal.Decimal
	ValidUntil     time.Time
	PaymentMethod  string
	DeliveryDay    string
	Location       string
	CreatedAt      time.Time
}
