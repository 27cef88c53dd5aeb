// Package pricing implements deterministic quote pricing: per-item volume
// discounts, a single PIX discount on the subtotal, and the tenant margin
// placeholder. All monetary values are exact decimals.
package pricing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotPriced indicates the tenant has no active base price for an item.
	ErrItemNotPriced = errors.New("pricing: item not priced for tenant")
	// ErrRuleMissing indicates the tenant has no pricing rule configured.
	ErrRuleMissing = errors.New("pricing: pricing rule missing for tenant")
)

// Rule is a tenant's pricing configuration. At most one exists per tenant.
type Rule struct {
	TenantID                uuid.UUID
	PIXDiscountPct          decimal.Decimal
	MarginMinPct            decimal.Decimal
	ApprovalThresholdTotal  *decimal.Decimal
	ApprovalThresholdMargin *decimal.Decimal
}

// VolumeDiscount is a quantity-tiered discount. A nil ItemID means the
// discount applies tenant-wide.
type VolumeDiscount struct {
	ItemID      *uuid.UUID
	MinQuantity decimal.Decimal
	DiscountPct decimal.Decimal
}

// LineRequest is one item to price.
type LineRequest struct {
	ItemID   uuid.UUID
	Name     string
	Unit     string
	Quantity decimal.Decimal
}

// PricedLine is one priced quote line.
type PricedLine struct {
	ItemID      uuid.UUID  `json:"item_id"`
	Name        string     `json:"name"`
	Unit        string     `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// QuotePricing is the priced result for a whole quote.
type QuotePricing struct {
	Lines          []PricedLine
	Subtotal       decimal.Decimal
	DiscountPct    decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	MarginPct      decimal.Decimal
	RuleMissing    bool
}
