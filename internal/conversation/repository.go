package conversation

import (
	"context"
	"errors"
	"time"

	"orcazap/internal/conversation/state"
	"orcazap/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("conversation: not found")

// Repository persists contacts, conversations and messages. It runs over a
// pool or a transaction.
type Repository struct {
	q db.Querier
}

// NewRepository creates a conversation repository over the given querier.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// UpsertContact creates or refreshes a contact for a tenant+phone pair.
func (r *Repository) UpsertContact(ctx context.Context, tenantID uuid.UUID, phone, name string) (*Contact, error) {
	const query = `
		INSERT INTO contacts (tenant_id, phone, name)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (tenant_id, phone)
		DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
		              updated_at = now()
		RETURNING id, tenant_id, phone, COALESCE(name, '')`

	var contact Contact
	err := r.q.QueryRow(ctx, query, tenantID, phone, name).Scan(
		&contact.ID, &contact.TenantID, &contact.Phone, &contact.Name,
	)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// GetContact loads one contact by ID.
func (r *Repository) GetContact(ctx context.Context, contactID uuid.UUID) (*Contact, error) {
	const query = `
		SELECT id, tenant_id, phone, COALESCE(name, '')
		FROM contacts
		WHERE id = $1`

	var contact Contact
	err := r.q.QueryRow(ctx, query, contactID).Scan(
		&contact.ID, &contact.TenantID, &contact.Phone, &contact.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// GetOrCreateConversation resolves the conversation for a
// tenant+contact+channel tuple, creating it in INBOUND if absent.
func (r *Repository) GetOrCreateConversation(ctx context.Context, tenantID, contactID, channelID uuid.UUID, now time.Time) (*Conversation, error) {
	const query = `
		INSERT INTO conversations (tenant_id, contact_id, channel_id, state, last_message_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, contact_id, channel_id)
		DO UPDATE SET last_message_at = EXCLUDED.last_message_at, updated_at = now()
		RETURNING id, tenant_id, contact_id, channel_id, state, window_expires_at, last_message_at`

	var conv Conversation
	err := r.q.QueryRow(ctx, query, tenantID, contactID, channelID, state.StateInbound, now).Scan(
		&conv.ID, &conv.TenantID, &conv.ContactID, &conv.ChannelID,
		&conv.State, &conv.WindowExpiresAt, &conv.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation loads one conversation by ID.
func (r *Repository) GetConversation(ctx context.Context, conversationID uuid.UUID) (*Conversation, error) {
	const query = `
		SELECT id, tenant_id, contact_id, channel_id, state, window_expires_at, last_message_at
		FROM conversations
		WHERE id = $1`

	var conv Conversation
	err := r.q.QueryRow(ctx, query, conversationID).Scan(
		&conv.ID, &conv.TenantID, &conv.ContactID, &conv.ChannelID,
		&conv.State, &conv.WindowExpiresAt, &conv.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateState persists a state transition, optionally stamping the
// messaging-window expiry.
func (r *Repository) UpdateState(ctx context.Context, conversationID uuid.UUID, next state.State, windowExpiresAt *time.Time) error {
	const query = `
		UPDATE conversations
		SET state = $2,
		    window_expires_at = COALESCE($3, window_expires_at),
		    updated_at = now()
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, conversationID, next, windowExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessageByProviderID loads a message by its idempotency key.
func (r *Repository) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*Message, error) {
	const query = `
		SELECT id, tenant_id, conversation_id, provider_message_id, direction,
		       message_type, raw_payload, COALESCE(text_content, ''), created_at
		FROM messages
		WHERE provider_message_id = $1`

	var msg Message
	err := r.q.QueryRow(ctx, query, providerMessageID).Scan(
		&msg.ID, &msg.TenantID, &msg.ConversationID, &msg.ProviderMessageID,
		&msg.Direction, &msg.MessageType, &msg.RawPayload, &msg.TextContent, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// InsertMessage persists a message row. The unique constraint on
// provider_message_id enforces cross-process idempotency.
func (r *Repository) InsertMessage(ctx context.Context, msg *Message) error {
	const query = `
		INSERT INTO messages (tenant_id, conversation_id, provider_message_id,
		                      direction, message_type, raw_payload, text_content)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at`

	return r.q.QueryRow(ctx, query,
		msg.TenantID, msg.ConversationID, msg.ProviderMessageID,
		msg.Direction, msg.MessageType, msg.RawPayload, msg.TextContent,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// StampConversation sets a message's conversation once resolved. This is the
// processor's commit point for replay detection.
func (r *Repository) StampConversation(ctx context.Context, messageID, conversationID uuid.UUID) error {
	const query = `UPDATE messages SET conversation_id = $2 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, messageID, conversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpiredConversations lists conversations whose messaging window has passed
// while a quote was awaiting a reply.
func (r *Repository) ExpiredConversations(ctx context.Context, now time.Time, limit int) ([]Conversation, error) {
	const query = `
		SELECT id, tenant_id, contact_id, channel_id, state, window_expires_at, last_message_at
		FROM conversations
		WHERE state = ANY($1) AND window_expires_at IS NOT NULL AND window_expires_at < $2
		ORDER BY window_expires_at
		LIMIT $3`

	states := []string{string(state.StateQuoteSent), string(state.StateWaitingReply)}
	rows, err := r.q.Query(ctx, query, states, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.TenantID, &conv.ContactID, &conv.ChannelID,
			&conv.State, &conv.WindowExpiresAt, &conv.LastMessageAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}
