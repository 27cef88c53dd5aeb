package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orcazap/internal/approval"
	"orcazap/internal/catalog"
	"orcazap/internal/conversation"
	"orcazap/internal/conversation/state"
	"orcazap/internal/freight"
	"orcazap/internal/parser"
	"orcazap/internal/pricing"
	"orcazap/internal/quotes"
	"orcazap/internal/tenant"
	"orcazap/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sender delivers WhatsApp text messages.
type Sender interface {
	SendText(ctx context.Context, phoneNumberID, toPhone, text string) (string, error)
}

// Extractor parses a customer message into structured quote fields. The
// second return reports whether an AI provider produced the result.
type Extractor interface {
	Parse(ctx context.Context, text string) (parser.Extraction, bool, error)
}

// Notifier tells the tenant's team about quotes held for review. Delivery is
// best-effort; failures never affect the conversation.
type Notifier interface {
	ApprovalPending(ctx context.Context, tenantID, quoteID uuid.UUID, reason string, total decimal.Decimal) error
}

// Processor drives one conversation forward per inbound message.
type Processor struct {
	store           Store
	sender          Sender
	extractor       Extractor
	pricing         *pricing.Service
	freight         *freight.Service
	notifier        Notifier
	quoteValidity   time.Duration
	messagingWindow time.Duration
	log             *logger.Logger
}

// NewProcessor creates the inbound message processor.
func NewProcessor(store Store, sender Sender, extractor Extractor, pricingSvc *pricing.Service, freightSvc *freight.Service, notifier Notifier, quoteValidity, messagingWindow time.Duration, log *logger.Logger) *Processor {
	return &Processor{
		store:           store,
		sender:          sender,
		extractor:       extractor,
		pricing:         pricingSvc,
		freight:         freightSvc,
		notifier:        notifier,
		quoteValidity:   quoteValidity,
		messagingWindow: messagingWindow,
		log:             log,
	}
}

// pendingNotification is captured inside the transaction and delivered only
// after a successful commit.
type pendingNotification struct {
	tenantID uuid.UUID
	quoteID  uuid.UUID
	reason   string
	total    decimal.Decimal
}

// ProcessInbound handles one accepted message end to end. It is safe to call
// any number of times for the same provider message ID: the conversation
// stamp on the message row makes replays no-ops.
func (p *Processor) ProcessInbound(ctx context.Context, payload InboundMessagePayload) error {
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant ID %q: %w", payload.TenantID, err)
	}
	channelID, err := uuid.Parse(payload.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid channel ID %q: %w", payload.ChannelID, err)
	}

	log := p.log.WithTenantID(payload.TenantID)

	var notify *pendingNotification
	err = p.store.WithinConversationTx(ctx, tenantID, payload.ContactPhone, func(ctx context.Context, tx *Tx) error {
		msg, err := tx.Conversations.GetMessageByProviderID(ctx, payload.ProviderMessageID)
		if errors.Is(err, conversation.ErrNotFound) {
			log.Warn("inbound task for unknown message", "provider_message_id", payload.ProviderMessageID)
			return nil
		}
		if err != nil {
			return err
		}
		if msg.ConversationID != nil {
			log.Info("message already processed", "provider_message_id", payload.ProviderMessageID)
			return nil
		}

		contact, err := tx.Conversations.UpsertContact(ctx, tenantID, payload.ContactPhone, payload.ContactName)
		if err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}
		conv, err := tx.Conversations.GetOrCreateConversation(ctx, tenantID, contact.ID, channelID, time.Now())
		if err != nil {
			return fmt.Errorf("resolve conversation: %w", err)
		}
		if err := tx.Conversations.StampConversation(ctx, msg.ID, conv.ID); err != nil {
			return fmt.Errorf("stamp message: %w", err)
		}

		channel, err := tx.Channels.ChannelByID(ctx, channelID)
		if err != nil {
			return fmt.Errorf("load channel: %w", err)
		}

		clog := log.WithConversationID(conv.ID.String())
		switch conv.State {
		case state.StateInbound:
			return p.handleFirstContact(ctx, tx, conv, contact, channel, clog)
		case state.StateCaptureMin:
			notify, err = p.handleCapture(ctx, tx, conv, contact, channel, payload.Text, clog)
			return err
		default:
			clog.Info("conversation state not handled by processor", "state", conv.State)
			return nil
		}
	})
	if err != nil {
		return err
	}

	if notify != nil && p.notifier != nil {
		if nerr := p.notifier.ApprovalPending(ctx, notify.tenantID, notify.quoteID, notify.reason, notify.total); nerr != nil {
			log.Warn("approval notification failed", "quote_id", notify.quoteID, "error", nerr)
		}
	}
	return nil
}

// handleFirstContact welcomes a new conversation and asks for the quote data.
// The transition commits only if the prompt was delivered.
func (p *Processor) handleFirstContact(ctx context.Context, tx *Tx, conv *conversation.Conversation, contact *conversation.Contact, channel *tenant.Channel, log *logger.Logger) error {
	next, err := state.Next(conv.State, state.EventFirstMessageReceived)
	if err != nil {
		return err
	}

	if err := p.sendAndRecord(ctx, tx, conv, contact, channel, quotes.DataCapturePrompt(contact.Name)); err != nil {
		return err
	}
	// The customer just wrote, so the messaging window opens now.
	window := time.Now().Add(p.messagingWindow)
	if err := tx.Conversations.UpdateState(ctx, conv.ID, next, &window); err != nil {
		return err
	}
	log.Info("conversation opened", "state", next)
	return nil
}

// handleCapture runs the full quote pipeline on a CAPTURE_MIN message.
func (p *Processor) handleCapture(ctx context.Context, tx *Tx, conv *conversation.Conversation, contact *conversation.Contact, channel *tenant.Channel, text string, log *logger.Logger) (*pendingNotification, error) {
	extraction, aiUsed, err := p.extractor.Parse(ctx, text)
	if errors.Is(err, parser.ErrIncomplete) {
		log.Info("message incomplete, asking for clarification")
		return nil, p.sendAndRecord(ctx, tx, conv, contact, channel, quotes.ClarificationMessage())
	}
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	var (
		lines   []pricing.LineRequest
		unknown []string
	)
	for _, item := range extraction.Items {
		resolved, err := tx.Catalog.ResolveItem(ctx, conv.TenantID, item.Name)
		if errors.Is(err, catalog.ErrItemNotFound) {
			unknown = append(unknown, item.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve item %q: %w", item.Name, err)
		}
		unit := item.Unit
		if unit == "" {
			unit = resolved.Unit
		}
		lines = append(lines, pricing.LineRequest{
			ItemID:   resolved.ID,
			Name:     resolved.Name,
			Unit:     unit,
			Quantity: item.Quantity,
		})
	}

	if len(lines) == 0 {
		log.Info("no catalog matches", "requested_items", len(extraction.Items))
		return nil, p.sendAndRecord(ctx, tx, conv, contact, channel, quotes.CatalogMissMessage())
	}

	priced, err := p.pricing.PriceQuote(ctx, conv.TenantID, lines, extraction.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("price quote: %w", err)
	}

	freightCost := decimal.Zero
	freightMissing := false
	freightCost, err = p.freight.Calculate(ctx, conv.TenantID, extraction.Location, nil)
	if errors.Is(err, freight.ErrNoRule) {
		freightCost = decimal.Zero
		freightMissing = true
	} else if err != nil {
		return nil, fmt.Errorf("calculate freight: %w", err)
	}

	rule, err := p.pricing.Rule(ctx, conv.TenantID)
	if errors.Is(err, pricing.ErrRuleMissing) {
		rule = nil
	} else if err != nil {
		return nil, fmt.Errorf("load pricing rule: %w", err)
	}

	total := priced.Total.Add(freightCost)
	decision := approval.Evaluate(rule, total, priced.MarginPct, unknown, aiUsed, freightMissing)

	quote := &quotes.Quote{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Status:         quotes.StatusDraft,
		Items:          priced.Lines,
		Subtotal:       priced.Subtotal,
		Freight:        freightCost,
		DiscountPct:    priced.DiscountPct,
		Total:          total,
		MarginPct:      priced.MarginPct,
		ValidUntil:     time.Now().Add(p.quoteValidity),
		PaymentMethod:  extraction.PaymentMethod,
		DeliveryDay:    extraction.DeliveryDay,
		Location:       extraction.Location,
	}
	if err := tx.Quotes.Create(ctx, quote); err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	ready, err := state.Next(conv.State, state.EventMinimalDataReceived)
	if err != nil {
		return nil, err
	}

	if decision.Required {
		held, err := state.Next(ready, state.EventApprovalRequired)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Approvals.Create(ctx, conv.TenantID, quote.ID, decision.Reason); err != nil {
			return nil, fmt.Errorf("create approval: %w", err)
		}
		if err := p.sendAndRecord(ctx, tx, conv, contact, channel, quotes.PendingReviewMessage()); err != nil {
			return nil, err
		}
		if err := tx.Conversations.UpdateState(ctx, conv.ID, held, nil); err != nil {
			return nil, err
		}
		log.Info("quote held for approval", "quote_id", quote.ID, "reason", decision.Reason)
		return &pendingNotification{
			tenantID: conv.TenantID,
			quoteID:  quote.ID,
			reason:   decision.Reason,
			total:    total,
		}, nil
	}

	sent, err := state.Next(ready, state.EventQuoteAutoOK)
	if err != nil {
		return nil, err
	}
	if err := p.sendAndRecord(ctx, tx, conv, contact, channel, quotes.FormatQuoteMessage(quote)); err != nil {
		return nil, err
	}
	if err := tx.Quotes.UpdateStatus(ctx, quote.ID, quotes.StatusSent); err != nil {
		return nil, err
	}
	window := time.Now().Add(p.messagingWindow)
	if err := tx.Conversations.UpdateState(ctx, conv.ID, sent, &window); err != nil {
		return nil, err
	}
	log.Info("quote sent", "quote_id", quote.ID, "total", total.StringFixed(2))
	return nil, nil
}

// sendAndRecord delivers text to the contact and appends the outbound message
// to the log. It runs inside the conversation transaction: a failed send
// aborts the unit of work, so nothing commits that was not delivered.
func (p *Processor) sendAndRecord(ctx context.Context, tx *Tx, conv *conversation.Conversation, contact *conversation.Contact, channel *tenant.Channel, text string) error {
	providerID, err := p.sender.SendText(ctx, channel.PhoneNumberID, contact.Phone, text)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"body": text})
	if err != nil {
		return fmt.Errorf("marshal outbound payload: %w", err)
	}
	return tx.Conversations.InsertMessage(ctx, &conversation.Message{
		TenantID:          conv.TenantID,
		ConversationID:    &conv.ID,
		ProviderMessageID: providerID,
		Direction:         conversation.DirectionOutbound,
		MessageType:       "text",
		RawPayload:        payload,
		TextContent:       text,
	})
}
