package freight

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository provides tenant freight rule reads.
type Repository interface {
	// Rules returns all freight rules for the tenant.
	Rules(ctx context.Context, tenantID uuid.UUID) ([]Rule, error)
}

// Service resolves freight cost for a delivery location.
type Service struct {
	repo Repository
}

// NewService creates a freight service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Calculate resolves the freight cost for a location, which is either a
// neighborhood name or a CEP. Resolution order: exact neighborhood match
// first; then, if the input contains digits, each CEP-range rule is tested
// against the digits-only form, first match wins. Range comparison is
// lexicographic over digit strings, not numeric. Returns ErrNoRule when
// nothing matches.
//
// When a matching rule carries a per-kg rate and weightKg is non-nil, the
// cost is base + rate * weight; otherwise just the base.
func (s *Service) Calculate(ctx context.Context, tenantID uuid.UUID, location string, weightKg *decimal.Decimal) (decimal.Decimal, error) {
	rules, err := s.repo.Rules(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}

	normalized := strings.ToLower(strings.TrimSpace(location))
	for _, rule := range rules {
		if rule.Neighborhood == nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(*rule.Neighborhood)) == normalized {
			return cost(rule, weightKg), nil
		}
	}

	digits := digitsOnly(location)
	if digits != "" {
		for _, rule := range rules {
			if rule.CEPRangeStart == nil || rule.CEPRangeEnd == nil {
				continue
			}
			start := digitsOnly(*rule.CEPRangeStart)
			end := digitsOnly(*rule.CEPRangeEnd)
			if digits >= start && digits <= end {
				return cost(rule, weightKg), nil
			}
		}
	}

	return decimal.Zero, ErrNoRule
}

func cost(rule Rule, weightKg *decimal.Decimal) decimal.Decimal {
	total := rule.BaseFreight
	if rule.PerKgAdditional != nil && weightKg != nil {
		total = total.Add(rule.PerKgAdditional.Mul(*weightKg))
	}
	return total
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
