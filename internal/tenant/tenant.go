// Package tenant provides reads over tenant, channel and user configuration.
// These tables are operator-managed and read-only to the core.
package tenant

import (
	"context"
	"errors"

	"orcazap/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrChannelNotFound indicates no active channel matched the lookup.
	ErrChannelNotFound = errors.New("tenant: channel not found")
	// ErrOwnerNotFound indicates the tenant has no owner user.
	ErrOwnerNotFound = errors.New("tenant: owner not found")
)

// Channel is one WhatsApp Business phone number bound to a tenant.
type Channel struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	WABAID             string
	PhoneNumberID      string
	WebhookVerifyToken string
}

// Repository reads tenant configuration from Postgres.
type Repository struct {
	q db.Querier
}

// NewRepository creates a tenant repository over the given querier.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// ChannelByPhoneNumberID resolves the active channel receiving a webhook.
func (r *Repository) ChannelByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Channel, error) {
	const query = `
		SELECT id, tenant_id, waba_id, phone_number_id, webhook_verify_token
		FROM channels
		WHERE phone_number_id = $1 AND is_active`

	return r.scanChannel(r.q.QueryRow(ctx, query, phoneNumberID))
}

// ChannelByID loads one channel.
func (r *Repository) ChannelByID(ctx context.Context, channelID uuid.UUID) (*Channel, error) {
	const query = `
		SELECT id, tenant_id, waba_id, phone_number_id, webhook_verify_token
		FROM channels
		WHERE id = $1`

	return r.scanChannel(r.q.QueryRow(ctx, query, channelID))
}

func (r *Repository) scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	err := row.Scan(&ch.ID, &ch.TenantID, &ch.WABAID, &ch.PhoneNumberID, &ch.WebhookVerifyToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// VerifyTokenExists reports whether any active channel uses the given
// webhook verify token. Used for the GET challenge, which carries no
// channel identification beyond the token itself.
func (r *Repository) VerifyTokenExists(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM channels WHERE webhook_verify_token = $1 AND is_active)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// OwnerEmail returns the tenant owner's email for approval notifications.
func (r *Repository) OwnerEmail(ctx context.Context, tenantID uuid.UUID) (string, error) {
	const query = `
		SELECT email
		FROM users
		WHERE tenant_id = $1 AND role = 'owner'
		ORDER BY created_at
		LIMIT 1`

	var email string
	err := r.q.QueryRow(ctx, query, tenantID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOwnerNotFound
	}
	if err != nil {
		return "", err
	}
	return email, nil
}
