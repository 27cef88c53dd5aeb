package approval

import (
	"context"
	"errors"
	"time"

	"orcazap/internal/conversation/state"
	"orcazap/internal/quotes"
	"orcazap/platform/apperr"
	"orcazap/platform/logger"

	"github.com/google/uuid"
)

// Sender delivers WhatsApp text messages.
type Sender interface {
	SendText(ctx context.Context, phoneNumberID, toPhone, text string) (string, error)
}

// Resolver executes approval decisions atomically.
type Resolver interface {
	ListPending(ctx context.Context, tenantID uuid.UUID) ([]PendingItem, error)
	Resolve(ctx context.Context, res Resolution) (*Approval, error)
}

// Service is the admin-facing approval workflow.
type Service struct {
	store           Resolver
	sender          Sender
	messagingWindow time.Duration
	log             *logger.Logger
}

// NewService creates the approval service.
func NewService(store Resolver, sender Sender, messagingWindow time.Duration, log *logger.Logger) *Service {
	return &Service{
		store:           store,
		sender:          sender,
		messagingWindow: messagingWindow,
		log:             log,
	}
}

// ListPending returns the tenant's review queue.
func (s *Service) ListPending(ctx context.Context, tenantID uuid.UUID) ([]PendingItem, error) {
	items, err := s.store.ListPending(ctx, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list pending approvals", err)
	}
	return items, nil
}

// Approve releases a held quote: the customer message goes out and the
// approval, quote, conversation and audit records commit together. A delivery
// failure rolls everything back so the approval can be retried.
func (s *Service) Approve(ctx context.Context, tenantID, approvalID, actorID uuid.UUID) (*Approval, error) {
	approved, err := s.store.Resolve(ctx, Resolution{
		TenantID:        tenantID,
		ApprovalID:      approvalID,
		ActorID:         actorID,
		Approve:         true,
		WindowExpiresAt: time.Now().Add(s.messagingWindow),
		Send: func(ctx context.Context, v *View) (string, string, error) {
			text := quotes.FormatQuoteMessage(v.Quote)
			providerID, err := s.sender.SendText(ctx, v.Channel.PhoneNumberID, v.Contact.Phone, text)
			if err != nil {
				return "", "", apperr.Wrap(apperr.KindUnavailable, "failed to deliver quote message", err)
			}
			return providerID, text, nil
		},
	})
	if err != nil {
		return nil, s.mapResolveError(err, "approve")
	}

	s.log.WithTenantID(tenantID.String()).Info("approval granted",
		"approval_id", approved.ID, "quote_id", approved.QuoteID, "actor_id", actorID)
	return approved, nil
}

// Reject declines a held quote: the conversation closes as lost and nothing
// is sent to the customer.
func (s *Service) Reject(ctx context.Context, tenantID, approvalID, actorID uuid.UUID, reason string) (*Approval, error) {
	rejected, err := s.store.Resolve(ctx, Resolution{
		TenantID:   tenantID,
		ApprovalID: approvalID,
		ActorID:    actorID,
		Approve:    false,
		Reason:     reason,
	})
	if err != nil {
		return nil, s.mapResolveError(err, "reject")
	}

	s.log.WithTenantID(tenantID.String()).Info("approval rejected",
		"approval_id", rejected.ID, "quote_id", rejected.QuoteID, "actor_id", actorID)
	return rejected, nil
}

func (s *Service) mapResolveError(err error, action string) error {
	var appErr *apperr.Error
	var invalid *state.InvalidTransitionError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "approval not found", err)
	case errors.Is(err, ErrAlreadyResolved):
		return apperr.Wrap(apperr.KindConflict, "approval already resolved", err)
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, "conversation no longer awaiting approval", err)
	default:
		return apperr.Wrap(apperr.KindInternal, "failed to "+action+" quote", err)
	}
}
