package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository provides tenant pricing configuration reads.
type Repository interface {
	// Rule returns the tenant's pricing rule, or ErrRuleMissing.
	Rule(ctx context.Context, tenantID uuid.UUID) (*Rule, error)
	// VolumeDiscounts returns all volume discounts for the tenant ordered by
	// descending minimum quantity.
	VolumeDiscounts(ctx context.Context, tenantID uuid.UUID) ([]VolumeDiscount, error)
	// BasePrice returns the tenant's active base price for an item, or
	// ErrItemNotPriced.
	BasePrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error)
}

// Service prices items and quotes for a tenant.
type Service struct {
	repo Repository
}

// NewService creates a pricing service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Rule returns the tenant's pricing rule, or ErrRuleMissing.
func (s *Service) Rule(ctx context.Context, tenantID uuid.UUID) (*Rule, error) {
	return s.repo.Rule(ctx, tenantID)
}

// PriceItem prices a single item line. The applicable discount is the first
// item-specific discount whose minimum quantity is met, else the first global
// one; at most one discount applies, never stacked.
func (s *Service) PriceItem(ctx context.Context, tenantID, itemID uuid.UUID, quantity decimal.Decimal) (PricedLine, error) {
	basePrice, err := s.repo.BasePrice(ctx, tenantID, itemID)
	if err != nil {
		return PricedLine{}, err
	}

	discounts, err := s.repo.VolumeDiscounts(ctx, tenantID)
	if err != nil {
		return PricedLine{}, fmt.Errorf("load volume discounts: %w", err)
	}

	discountPct := selectDiscount(discounts, itemID, quantity)
	unitPrice := basePrice.Mul(decimal.NewFromInt(1).Sub(discountPct))

	return PricedLine{
		ItemID:      itemID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		DiscountPct: discountPct,
		LineTotal:   unitPrice.Mul(quantity),
	}, nil
}

// PriceQuote prices all lines and applies the tenant's PIX discount to the
// subtotal when the payment method is PIX. A missing pricing rule degrades to
// zero discount and zero margin with RuleMissing set; the approval policy
// fail-safes on that flag, so pricing never aborts the quote.
func (s *Service) PriceQuote(ctx context.Context, tenantID uuid.UUID, lines []LineRequest, paymentMethod string) (QuotePricing, error) {
	result := QuotePricing{
		Lines:    make([]PricedLine, 0, len(lines)),
		Subtotal: decimal.Zero,
	}

	for _, line := range lines {
		priced, err := s.PriceItem(ctx, tenantID, line.ItemID, line.Quantity)
		if err != nil {
			return QuotePricing{}, err
		}
		priced.Name = line.Name
		priced.Unit = line.Unit
		result.Lines = append(result.Lines, priced)
		result.Subtotal = result.Subtotal.Add(priced.LineTotal)
	}

	rule, err := s.repo.Rule(ctx, tenantID)
	switch {
	case errors.Is(err, ErrRuleMissing):
		result.RuleMissing = true
		rule = nil
	case err != nil:
		return QuotePricing{}, fmt.Errorf("load pricing rule: %w", err)
	}

	result.DiscountPct = decimal.Zero
	result.DiscountAmount = decimal.Zero
	result.MarginPct = decimal.Zero
	if rule != nil {
		if strings.EqualFold(strings.TrimSpace(paymentMethod), "pix") {
			result.DiscountPct = rule.PIXDiscountPct
			result.DiscountAmount = result.Subtotal.Mul(rule.PIXDiscountPct)
		}
		// Margin is reported from the configured minimum. True cost-basis
		// margin is a known simplification of this pricing flow.
		result.MarginPct = rule.MarginMinPct
	}
	result.Total = result.Subtotal.Sub(result.DiscountAmount)

	return result, nil
}

// selectDiscount returns the discount percentage for the item and quantity.
// Item-specific rows are evaluated first; the input is ordered by descending
// minimum quantity, so the first satisfied row is the highest applicable tier.
func selectDiscount(discounts []VolumeDiscount, itemID uuid.UUID, quantity decimal.Decimal) decimal.Decimal {
	for _, d := range discounts {
		if d.ItemID != nil && *d.ItemID == itemID && quantity.GreaterThanOrEqual(d.MinQuantity) {
			return d.DiscountPct
		}
	}
	for _, d := range discounts {
		if d.ItemID == nil && quantity.GreaterThanOrEqual(d.MinQuantity) {
			return d.DiscountPct
		}
	}
	return decimal.Zero
}
