package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orcazap/internal/conversation"
	"orcazap/internal/conversation/state"
	"orcazap/platform/logger"

	"github.com/google/uuid"
)

const sweepBatchSize = 100

// ExpiredLister finds conversations whose messaging window lapsed.
type ExpiredLister interface {
	ExpiredConversations(ctx context.Context, now time.Time, limit int) ([]conversation.Conversation, error)
	GetContact(ctx context.Context, contactID uuid.UUID) (*conversation.Contact, error)
}

// Sweeper closes conversations whose 24h messaging window expired without a
// reply: the conversation goes to LOST and any sent quote is marked expired.
type Sweeper struct {
	store    Store
	lister   ExpiredLister
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper creates the window-expiry sweeper.
func NewSweeper(store Store, lister ExpiredLister, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		lister:   lister,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of expired conversations. Each conversation is
// closed in its own transaction so one failure never blocks the rest.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	expired, err := s.lister.ExpiredConversations(ctx, now, sweepBatchSize)
	if err != nil {
		s.log.DatabaseError("list expired conversations", err)
		return
	}

	for _, conv := range expired {
		if err := s.expire(ctx, conv, now); err != nil {
			s.log.WithTenantID(conv.TenantID.String()).Error("failed to expire conversation",
				"conversation_id", conv.ID, "error", err)
		}
	}
}

func (s *Sweeper) expire(ctx context.Context, conv conversation.Conversation, now time.Time) error {
	contact, err := s.lister.GetContact(ctx, conv.ContactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}

	return s.store.WithinConversationTx(ctx, conv.TenantID, contact.Phone, func(ctx context.Context, tx *Tx) error {
		// Re-read under the lock: a reply may have advanced the
		// conversation between listing and locking.
		current, err := tx.Conversations.GetConversation(ctx, conv.ID)
		if err != nil {
			return err
		}
		if current.WindowExpiresAt == nil || current.WindowExpiresAt.After(now) {
			return nil
		}

		next, err := state.Next(current.State, state.EventWindowExpired)
		var invalid *state.InvalidTransitionError
		if errors.As(err, &invalid) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Quotes.ExpireOpenQuotes(ctx, current.ID, now); err != nil {
			return err
		}
		if err := tx.Conversations.UpdateState(ctx, current.ID, next, nil); err != nil {
			return err
		}

		s.log.WithTenantID(current.TenantID.String()).WithConversationID(current.ID.String()).
			Info("conversation window expired", "previous_state", current.State)
		return nil
	})
}
