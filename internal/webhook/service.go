// Package webhook ingests WhatsApp Cloud API notifications: signature
// verification, deduplication, durable message capture and task dispatch.
package webhook

import (
	"context"
	"time"

	"orcazap/internal/conversation"
	"orcazap/internal/processor"
	"orcazap/internal/tenant"
	"orcazap/platform/apperr"
	"orcazap/platform/db"
	"orcazap/platform/logger"
	"orcazap/platform/phone"
)

// dedupTTL keeps provider message IDs in Redis long past the provider's
// redelivery horizon. The database unique constraint backstops expiry.
const dedupTTL = 7 * 24 * time.Hour

const dedupKeyPrefix = "webhook:msg:"

// ChannelDirectory resolves inbound phone numbers to tenant channels.
type ChannelDirectory interface {
	ChannelByPhoneNumberID(ctx context.Context, phoneNumberID string) (*tenant.Channel, error)
	VerifyTokenExists(ctx context.Context, token string) (bool, error)
}

// MessageStore appends inbound messages to the durable log.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *conversation.Message) error
}

// Deduper is the fast-path duplicate check. Delete releases a claimed key so
// the provider's redelivery is not rejected after a transient failure.
type Deduper interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Enqueuer hands accepted messages to the background processor.
type Enqueuer interface {
	EnqueueInbound(ctx context.Context, payload processor.InboundMessagePayload) error
}

// Service accepts webhook notifications. Acceptance means the message is
// persisted and queued; all conversational work happens in the processor.
type Service struct {
	channels ChannelDirectory
	messages MessageStore
	deduper  Deduper
	enqueuer Enqueuer
	log      *logger.Logger
}

// NewService creates the webhook ingestion service.
func NewService(channels ChannelDirectory, messages MessageStore, deduper Deduper, enqueuer Enqueuer, log *logger.Logger) *Service {
	return &Service{
		channels: channels,
		messages: messages,
		deduper:  deduper,
		enqueuer: enqueuer,
		log:      log,
	}
}

// VerifyChallenge answers the provider's subscription handshake.
func (s *Service) VerifyChallenge(ctx context.Context, mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token == "" {
		return "", apperr.New(apperr.KindForbidden, "verification refused")
	}
	ok, err := s.channels.VerifyTokenExists(ctx, token)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to check verify token", err)
	}
	if !ok {
		return "", apperr.New(apperr.KindForbidden, "verification refused")
	}
	return challenge, nil
}

// ProcessNotification ingests every message in a notification. Failures on
// one message never block the others; the provider always gets a success so
// it does not redeliver what we already stored.
func (s *Service) ProcessNotification(ctx context.Context, payload []byte) {
	messages, err := ExtractMessages(payload)
	if err != nil {
		s.log.Warn("webhook payload rejected", "error", err)
		return
	}

	for _, msg := range messages {
		s.ingest(ctx, msg)
	}
}

func (s *Service) ingest(ctx context.Context, msg InboundMessage) {
	fresh, err := s.deduper.SetNX(ctx, dedupKeyPrefix+msg.ProviderMessageID, "1", dedupTTL)
	if err != nil {
		// Redis down: fall through to the database constraint.
		s.log.Warn("webhook dedup check failed", "error", err)
	} else if !fresh {
		s.log.WebhookEvent("message.duplicate", msg.ProviderMessageID, false, "already seen")
		return
	}

	channel, err := s.channels.ChannelByPhoneNumberID(ctx, msg.PhoneNumberID)
	if err != nil {
		s.log.WebhookEvent("message.rejected", msg.ProviderMessageID, false, "unknown phone_number_id")
		return
	}

	contactPhone := phone.NormalizeE164(msg.From)

	record := &conversation.Message{
		TenantID:          channel.TenantID,
		ProviderMessageID: msg.ProviderMessageID,
		Direction:         conversation.DirectionInbound,
		MessageType:       msg.Type,
		RawPayload:        msg.Raw,
		TextContent:       msg.Text,
	}
	if err := s.messages.InsertMessage(ctx, record); err != nil {
		if !db.IsUniqueViolation(err) {
			// Nothing durable exists yet; the key must not block redelivery.
			s.releaseDedup(ctx, msg.ProviderMessageID)
			s.log.WithTenantID(channel.TenantID.String()).DatabaseError("insert inbound message", err)
			return
		}
		// Already stored by an earlier delivery whose enqueue may have
		// failed. Enqueue again; the processor no-ops on stamped messages.
		s.log.WebhookEvent("message.duplicate", msg.ProviderMessageID, false, "already stored")
	}

	if err := s.enqueuer.EnqueueInbound(ctx, processor.InboundMessagePayload{
		TenantID:          channel.TenantID.String(),
		ChannelID:         channel.ID.String(),
		ProviderMessageID: msg.ProviderMessageID,
		ContactPhone:      contactPhone,
		ContactName:       msg.ContactName,
		Text:              msg.Text,
	}); err != nil {
		s.releaseDedup(ctx, msg.ProviderMessageID)
		s.log.WithTenantID(channel.TenantID.String()).Error("failed to enqueue inbound message",
			"provider_message_id", msg.ProviderMessageID, "error", err)
		return
	}

	s.log.WithTenantID(channel.TenantID.String()).WebhookEvent("message.accepted", msg.ProviderMessageID, true, "")
}

func (s *Service) releaseDedup(ctx context.Context, providerMessageID string) {
	if err := s.deduper.Delete(ctx, dedupKeyPrefix+providerMessageID); err != nil {
		s.log.Warn("webhook dedup release failed",
			"provider_message_id", providerMessageID, "error", err)
	}
}
