package freight

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGRepository reads freight rules from Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a Postgres-backed freight repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Rules returns all freight rules for the tenant. Neighborhood rules sort
// first so the service's neighborhood-before-CEP preference also holds when
// iterating in row order.
func (r *PGRepository) Rules(ctx context.Context, tenantID uuid.UUID) ([]Rule, error) {
	const query = `
		SELECT id, neighborhood, cep_range_start, cep_range_end,
		       base_freight::text, per_kg_additional::text
		FROM freight_rules
		WHERE tenant_id = $1
		ORDER BY neighborhood NULLS LAST, created_at`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			rule    Rule
			base    string
			perKg   *string
		)
		if err := rows.Scan(&rule.ID, &rule.Neighborhood, &rule.CEPRangeStart, &rule.CEPRangeEnd, &base, &perKg); err != nil {
			return nil, err
		}
		if rule.BaseFreight, err = decimal.NewFromString(base); err != nil {
			return nil, err
		}
		if perKg != nil {
			parsed, err := decimal.NewFromString(*perKg)
			if err != nil {
				return nil, err
			}
			rule.PerKgAdditional = &parsed
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
