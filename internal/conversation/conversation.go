// Package conversation holds the conversation aggregate: contacts,
// conversations and their immutable message log.
package conversation

import (
	"time"

	"orcazap/internal/conversation/state"

	"github.com/google/uuid"
)

// Direction marks a message as inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Contact is a tenant-scoped customer phone number.
type Contact struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Phone    string
	Name     string
}

// Conversation tracks one customer dialogue per tenant+contact+channel.
type Conversation struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ContactID       uuid.UUID
	ChannelID       uuid.UUID
	State           state.State
	WindowExpiresAt *time.Time
	LastMessageAt   time.Time
}

// Message is one immutable WhatsApp message record. ConversationID is nil
// until the processor resolves the conversation; that stamp is the
// idempotency commit point.
type Message struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ConversationID    *uuid.UUID
	ProviderMessageID string
	Direction         Direction
	MessageType       string
	RawPayload        []byte
	TextContent       string
	CreatedAt         time.Time
}
