package pricing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGRepository reads pricing configuration from Postgres. Rules, discounts
// and base prices are operator-configured and read-only to the core.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a Postgres-backed pricing repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Rule returns the tenant's pricing rule, or ErrRuleMissing.
func (r *PGRepository) Rule(ctx context.Context, tenantID uuid.UUID) (*Rule, error) {
	const query = `
		SELECT tenant_id, pix_discount_pct::text, margin_min_pct::text,
		       approval_threshold_total::text, approval_threshold_margin::text
		FROM pricing_rules
		WHERE tenant_id = $1`

	var (
		rule            Rule
		pixPct          string
		marginPct       string
		thresholdTotal  *string
		thresholdMargin *string
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&rule.TenantID, &pixPct, &marginPct, &thresholdTotal, &thresholdMargin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleMissing
	}
	if err != nil {
		return nil, err
	}

	if rule.PIXDiscountPct, err = decimal.NewFromString(pixPct); err != nil {
		return nil, err
	}
	if rule.MarginMinPct, err = decimal.NewFromString(marginPct); err != nil {
		return nil, err
	}
	if thresholdTotal != nil {
		parsed, err := decimal.NewFromString(*thresholdTotal)
		if err != nil {
			return nil, err
		}
		rule.ApprovalThresholdTotal = &parsed
	}
	if thresholdMargin != nil {
		parsed, err := decimal.NewFromString(*thresholdMargin)
		if err != nil {
			return nil, err
		}
		rule.ApprovalThresholdMargin = &parsed
	}

	return &rule, nil
}

// VolumeDiscounts returns all of the tenant's volume discounts ordered by
// descending minimum quantity, so first-match selection picks the highest
// applicable tier.
func (r *PGRepository) VolumeDiscounts(ctx context.Context, tenantID uuid.UUID) ([]VolumeDiscount, error) {
	const query = `
		SELECT item_id, min_quantity::text, discount_pct::text
		FROM volume_discounts
		WHERE tenant_id = $1
		ORDER BY min_quantity DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []VolumeDiscount
	for rows.Next() {
		var (
			discount VolumeDiscount
			minQty   string
			pct      string
		)
		if err := rows.Scan(&discount.ItemID, &minQty, &pct); err != nil {
			return nil, err
		}
		if discount.MinQuantity, err = decimal.NewFromString(minQty); err != nil {
			return nil, err
		}
		if discount.DiscountPct, err = decimal.NewFromString(pct); err != nil {
			return nil, err
		}
		discounts = append(discounts, discount)
	}
	return discounts, rows.Err()
}

// BasePrice returns the tenant's active base price for an item, or
// ErrItemNotPriced.
func (r *PGRepository) BasePrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT price_base::text
		FROM tenant_items
		WHERE tenant_id = $1 AND item_id = $2 AND is_active`

	var raw string
	err := r.pool.QueryRow(ctx, query, tenantID, itemID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrItemNotPriced
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
