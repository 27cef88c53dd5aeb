package processor

import (
	"context"
	"fmt"
	"time"

	"orcazap/internal/approval"
	"orcazap/internal/catalog"
	"orcazap/internal/conversation"
	"orcazap/internal/conversation/state"
	"orcazap/internal/quotes"
	"orcazap/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationStore is the conversation persistence the processor drives.
type ConversationStore interface {
	UpsertContact(ctx context.Context, tenantID uuid.UUID, phone, name string) (*conversation.Contact, error)
	GetOrCreateConversation(ctx context.Context, tenantID, contactID, channelID uuid.UUID, now time.Time) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*conversation.Conversation, error)
	GetContact(ctx context.Context, contactID uuid.UUID) (*conversation.Contact, error)
	GetMessageByProviderID(ctx context.Context, providerMessageID string) (*conversation.Message, error)
	InsertMessage(ctx context.Context, msg *conversation.Message) error
	StampConversation(ctx context.Context, messageID, conversationID uuid.UUID) error
	UpdateState(ctx context.Context, conversationID uuid.UUID, next state.State, windowExpiresAt *time.Time) error
}

// QuoteStore is the quote persistence the processor drives.
type QuoteStore interface {
	Create(ctx context.Context, quote *quotes.Quote) error
	UpdateStatus(ctx context.Context, quoteID uuid.UUID, status quotes.Status) error
	ExpireOpenQuotes(ctx context.Context, conversationID uuid.UUID, now time.Time) error
}

// ApprovalStore creates review requests for held quotes.
type ApprovalStore interface {
	Create(ctx context.Context, tenantID, quoteID uuid.UUID, reason string) (*approval.Approval, error)
}

// CatalogStore resolves requested item names.
type CatalogStore interface {
	ResolveItem(ctx context.Context, tenantID uuid.UUID, name string) (*catalog.Item, error)
}

// ChannelStore resolves the sending channel.
type ChannelStore interface {
	ChannelByID(ctx context.Context, channelID uuid.UUID) (*tenant.Channel, error)
}

// Tx bundles the stores bound to one conversation transaction.
type Tx struct {
	Conversations ConversationStore
	Quotes        QuoteStore
	Approvals     ApprovalStore
	Catalog       CatalogStore
	Channels      ChannelStore
}

// Store runs a unit of work serialized per conversation.
type Store interface {
	// WithinConversationTx runs fn inside one transaction holding an
	// advisory lock derived from tenant and contact phone. Two workers
	// processing messages for the same contact serialize here; the lock
	// releases with the transaction.
	WithinConversationTx(ctx context.Context, tenantID uuid.UUID, contactPhone string, fn func(ctx context.Context, tx *Tx) error) error
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates the processor store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithinConversationTx implements Store.
func (s *PGStore) WithinConversationTx(ctx context.Context, tenantID uuid.UUID, contactPhone string, fn func(ctx context.Context, tx *Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin conversation tx: %w", err)
	}
	defer pgtx.Rollback(ctx)

	lockKey := tenantID.String() + "/" + contactPhone
	if _, err := pgtx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}

	tx := &Tx{
		Conversations: conversation.NewRepository(pgtx),
		Quotes:        quotes.NewRepository(pgtx),
		Approvals:     approval.NewRepository(pgtx),
		Catalog:       catalog.NewRepository(pgtx),
		Channels:      tenant.NewRepository(pgtx),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}
