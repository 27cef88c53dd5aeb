package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orcazap/internal/conversation"
	"orcazap/internal/conversation/state"
	"orcazap/internal/quotes"
	"orcazap/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// View is the data a resolution needs to act on, loaded inside the
// transaction so the send callback sees a consistent snapshot.
type View struct {
	Approval *Approval
	Quote    *quotes.Quote
	Contact  *conversation.Contact
	Channel  *tenant.Channel
}

// Resolution is one approve or reject command.
type Resolution struct {
	TenantID   uuid.UUID
	ApprovalID uuid.UUID
	ActorID    uuid.UUID
	Approve    bool
	Reason     string
	// WindowExpiresAt stamps the messaging window on approve.
	WindowExpiresAt time.Time
	// Send delivers the quote to the customer on approve. It runs after the
	// approval row is claimed and before commit, so a failed delivery rolls
	// everything back and the approval stays pending.
	Send func(ctx context.Context, v *View) (providerMessageID, text string, err error)
}

// Store executes resolutions atomically against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an approval store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListPending returns the tenant's review queue.
func (s *Store) ListPending(ctx context.Context, tenantID uuid.UUID) ([]PendingItem, error) {
	return NewRepository(s.pool).ListPending(ctx, tenantID)
}

// Resolve claims a pending approval and applies the decision: the quote
// status, the conversation transition, the outbound message record and the
// audit entry all commit together or not at all.
func (s *Store) Resolve(ctx context.Context, res Resolution) (*Approval, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	approvals := NewRepository(tx)
	quoteRepo := quotes.NewRepository(tx)
	convRepo := conversation.NewRepository(tx)
	tenantRepo := tenant.NewRepository(tx)

	status := StatusRejected
	event := state.EventAdminRejected
	if res.Approve {
		status = StatusApproved
		event = state.EventAdminApproved
	}

	claimed, err := approvals.Claim(ctx, res.TenantID, res.ApprovalID, res.ActorID, status, res.Reason)
	if err != nil {
		return nil, err
	}

	quote, err := quoteRepo.GetByID(ctx, res.TenantID, claimed.QuoteID)
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", claimed.QuoteID, err)
	}
	conv, err := convRepo.GetConversation(ctx, quote.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", quote.ConversationID, err)
	}

	next, err := state.Next(conv.State, event)
	if err != nil {
		return nil, err
	}

	if res.Approve {
		contact, err := convRepo.GetContact(ctx, conv.ContactID)
		if err != nil {
			return nil, fmt.Errorf("load contact %s: %w", conv.ContactID, err)
		}
		channel, err := tenantRepo.ChannelByID(ctx, conv.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("load channel %s: %w", conv.ChannelID, err)
		}

		providerID, text, err := res.Send(ctx, &View{
			Approval: claimed,
			Quote:    quote,
			Contact:  contact,
			Channel:  channel,
		})
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(map[string]string{"body": text})
		if err != nil {
			return nil, fmt.Errorf("marshal outbound payload: %w", err)
		}
		if err := convRepo.InsertMessage(ctx, &conversation.Message{
			TenantID:          res.TenantID,
			ConversationID:    &conv.ID,
			ProviderMessageID: providerID,
			Direction:         conversation.DirectionOutbound,
			MessageType:       "text",
			RawPayload:        payload,
			TextContent:       text,
		}); err != nil {
			return nil, fmt.Errorf("record outbound message: %w", err)
		}

		if err := quoteRepo.UpdateStatus(ctx, quote.ID, quotes.StatusSent); err != nil {
			return nil, err
		}
		window := res.WindowExpiresAt
		if err := convRepo.UpdateState(ctx, conv.ID, next, &window); err != nil {
			return nil, err
		}
	} else {
		if err := quoteRepo.UpdateStatus(ctx, quote.ID, quotes.StatusLost); err != nil {
			return nil, err
		}
		if err := convRepo.UpdateState(ctx, conv.ID, next, nil); err != nil {
			return nil, err
		}
	}

	if err := approvals.RecordAudit(ctx, res.TenantID, "approval", claimed.ID,
		"approval."+string(status), &res.ActorID,
		map[string]any{"status": StatusPending, "conversation_state": conv.State},
		map[string]any{"status": status, "conversation_state": next, "quote_id": quote.ID},
	); err != nil {
		return nil, fmt.Errorf("record audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit resolve tx: %w", err)
	}
	return claimed, nil
}
