package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orcazap/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a quote does not exist for the tenant.
var ErrNotFound = errors.New("quotes: quote not found")

// quotePayload is the JSONB snapshot of request context stored with a quote.
type quotePayload struct {
	PaymentMethod  string `json:"payment_method"`
	DeliveryDay    string `json:"delivery_day"`
	Location       string `json:"location"`
	DiscountAmount string `json:"discount_amount"`
}

// Repository persists quotes. It runs over a pool or a transaction.
type Repository struct {
	q db.Querier
}

// NewRepository creates a quote repository over the given querier.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Create inserts a quote with its immutable pricing snapshot.
func (r *Repository) Create(ctx context.Context, quote *Quote) error {
	itemsJSON, err := json.Marshal(quote.Items)
	if err != nil {
		return fmt.Errorf("marshal quote items: %w", err)
	}
	payloadJSON, err := json.Marshal(quotePayload{
		PaymentMethod:  quote.PaymentMethod,
		DeliveryDay:    quote.DeliveryDay,
		Location:       quote.Location,
		DiscountAmount: quote.Subtotal.Mul(quote.DiscountPct).StringFixed(2),
	})
	if err != nil {
		return fmt.Errorf("marshal quote payload: %w", err)
	}

	const query = `
		INSERT INTO quotes (tenant_id, conversation_id, status, items_json,
		                    subtotal, freight, discount_pct, total, margin_pct,
		                    valid_until, payload_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	return r.q.QueryRow(ctx, query,
		quote.TenantID, quote.ConversationID, quote.Status, itemsJSON,
		quote.Subtotal.StringFixed(2), quote.Freight.StringFixed(2),
		quote.DiscountPct.String(), quote.Total.StringFixed(2),
		quote.MarginPct.String(), quote.ValidUntil, payloadJSON,
	).Scan(&quote.ID, &quote.CreatedAt)
}

// UpdateStatus moves a quote to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, quoteID uuid.UUID, status Status) error {
	const query = `UPDATE quotes SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, quoteID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads a quote scoped to a tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, quoteID uuid.UUID) (*Quote, error) {
	const query = `
		SELECT id, tenant_id, conversation_id, status, items_json,
		       subtotal::text, freight::text, discount_pct::text, total::text,
		       margin_pct::text, valid_until, payload_json, created_at
		FROM quotes
		WHERE tenant_id = $1 AND id = $2`

	return r.scanQuote(r.q.QueryRow(ctx, query, tenantID, quoteID))
}

// GetByConversation loads the most recent quote for a conversation.
func (r *Repository) GetByConversation(ctx context.Context, tenantID, conversationID uuid.UUID) (*Quote, error) {
	const query = `
		SELECT id, tenant_id, conversation_id, status, items_json,
		       subtotal::text, freight::text, discount_pct::text, total::text,
		       margin_pct::text, valid_until, payload_json, created_at
		FROM quotes
		WHERE tenant_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanQuote(r.q.QueryRow(ctx, query, tenantID, conversationID))
}

func (r *Repository) scanQuote(row pgx.Row) (*Quote, error) {
	var (
		quote       Quote
		itemsJSON   []byte
		payloadJSON []byte
		subtotal    string
		freight     string
		discountPct string
		total       string
		marginPct   string
	)
	err := row.Scan(
		&quote.ID, &quote.TenantID, &quote.ConversationID, &quote.Status,
		&itemsJSON, &subtotal, &freight, &discountPct, &total, &marginPct,
		&quote.ValidUntil, &payloadJSON, &quote.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &quote.Items); err != nil {
		return nil, fmt.Errorf("unmarshal quote items: %w", err)
	}
	var payload quotePayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal quote payload: %w", err)
	}
	quote.PaymentMethod = payload.PaymentMethod
	quote.DeliveryDay = payload.DeliveryDay
	quote.Location = payload.Location

	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&quote.Subtotal, subtotal},
		{&quote.Freight, freight},
		{&quote.DiscountPct, discountPct},
		{&quote.Total, total},
		{&quote.MarginPct, marginPct},
	} {
		parsed, err := decimal.NewFromString(pair.src)
		if err != nil {
			return nil, err
		}
		*pair.dst = parsed
	}

	return &quote, nil
}

// ExpireOpenQuotes marks a conversation's sent quotes expired. Used by the
// window-expiry sweeper.
func (r *Repository) ExpireOpenQuotes(ctx context.Context, conversationID uuid.UUID, now time.Time) error {
	const query = `
		UPDATE quotes
		SET status = $2, updated_at = $3
		WHERE conversation_id = $1 AND status = $4`

	_, err := r.q.Exec(ctx, query, conversationID, StatusExpired, now, StatusSent)
	return err
}
