// Package catalog resolves free-text item names against the tenant catalog.
package catalog

import (
	"context"
	"errors"
	"strings"

	"orcazap/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrItemNotFound indicates no catalog item matched the requested name.
var ErrItemNotFound = errors.New("catalog: item not found")

// Item is one catalog entry available to a tenant.
type Item struct {
	ID   uuid.UUID
	SKU  string
	Name string
	Unit string
}

// Repository resolves catalog items from Postgres. The catalog is
// operator-configured and read-only to the core.
type Repository struct {
	q db.Querier
}

// NewRepository creates a catalog repository over the given querier.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// ResolveItem matches a requested item name against the tenant's active
// catalog: exact case-insensitive name match first, then partial
// (substring) match. Returns ErrItemNotFound when nothing matches.
func (r *Repository) ResolveItem(ctx context.Context, tenantID uuid.UUID, name string) (*Item, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrItemNotFound
	}

	const exactQuery = `
		SELECT i.id, i.sku, i.name, i.unit
		FROM items i
		JOIN tenant_items ti ON ti.item_id = i.id
		WHERE ti.tenant_id = $1 AND ti.is_active AND lower(i.name) = lower($2)
		LIMIT 1`

	item, err := r.scanItem(ctx, exactQuery, tenantID, trimmed)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, ErrItemNotFound) {
		return nil, err
	}

	const partialQuery = `
		SELECT i.id, i.sku, i.name, i.unit
		FROM items i
		JOIN tenant_items ti ON ti.item_id = i.id
		WHERE ti.tenant_id = $1 AND ti.is_active
		  AND (i.name ILIKE '%' || $2 || '%' OR $2 ILIKE '%' || i.name || '%')
		ORDER BY length(i.name)
		LIMIT 1`

	return r.scanItem(ctx, partialQuery, tenantID, trimmed)
}

func (r *Repository) scanItem(ctx context.Context, query string, tenantID uuid.UUID, name string) (*Item, error) {
	var item Item
	err := r.q.QueryRow(ctx, query, tenantID, name).Scan(&item.ID, &item.SKU, &item.Name, &item.Unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
