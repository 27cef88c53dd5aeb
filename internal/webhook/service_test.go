package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orcazap/internal/conversation"
	"orcazap/internal/processor"
	"orcazap/internal/tenant"
	"orcazap/platform/kvstore"
	"orcazap/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const notificationTemplate = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "102290129340398",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "5511400012345", "phone_number_id": "%s"},
				"contacts": [{"wa_id": "5511999887766", "profile": {"name": "João"}}],
				"messages": [{
					"id": "%s",
					"from": "5511999887766",
					"timestamp": "1726000000",
					"type": "text",
					"text": {"body": "Preciso de cimento"}
				}]
			}
		}]
	}]
}`

type fakeChannels struct {
	channel *tenant.Channel
	tokens  map[string]bool
}

func (f *fakeChannels) ChannelByPhoneNumberID(ctx context.Context, phoneNumberID string) (*tenant.Channel, error) {
	if f.channel != nil && f.channel.PhoneNumberID == phoneNumberID {
		return f.channel, nil
	}
	return nil, tenant.ErrChannelNotFound
}

func (f *fakeChannels) VerifyTokenExists(ctx context.Context, token string) (bool, error) {
	return f.tokens[token], nil
}

type fakeMessages struct {
	inserted []*conversation.Message
	err      error
}

func (f *fakeMessages) InsertMessage(ctx context.Context, msg *conversation.Message) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, msg)
	return nil
}

type fakeEnqueuer struct {
	payloads []processor.InboundMessagePayload
	err      error
}

func (f *fakeEnqueuer) EnqueueInbound(ctx context.Context, payload processor.InboundMessagePayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func newTestService(t *testing.T, channels *fakeChannels, messages *fakeMessages, enqueuer *fakeEnqueuer) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(channels, messages, kvstore.New(client), enqueuer, logger.New("development"))
}

func testChannel() *tenant.Channel {
	return &tenant.Channel{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		PhoneNumberID: "1055501234",
	}
}

func TestProcessNotificationAcceptsMessage(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.A1")
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(messages.inserted) != 1 {
		t.Fatalf("inserted %d messages, want 1", len(messages.inserted))
	}
	msg := messages.inserted[0]
	if msg.TenantID != channels.channel.TenantID {
		t.Errorf("message tenant = %s, want channel tenant", msg.TenantID)
	}
	if msg.ConversationID != nil {
		t.Error("conversation must stay unresolved at ingestion")
	}
	if msg.ProviderMessageID != "wamid.A1" {
		t.Errorf("provider message ID = %q", msg.ProviderMessageID)
	}
	if msg.TextContent != "Preciso de cimento" {
		t.Errorf("text = %q", msg.TextContent)
	}

	if len(enqueuer.payloads) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enqueuer.payloads))
	}
	task := enqueuer.payloads[0]
	if task.ContactPhone != "+5511999887766" {
		t.Errorf("contact phone = %q, want normalized E.164", task.ContactPhone)
	}
	if task.ContactName != "João" {
		t.Errorf("contact name = %q", task.ContactName)
	}
	if task.ChannelID != channels.channel.ID.String() {
		t.Errorf("channel ID = %q", task.ChannelID)
	}
}

func TestProcessNotificationDeduplicates(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.DUP")
	svc.ProcessNotification(context.Background(), []byte(payload))
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(messages.inserted) != 1 {
		t.Errorf("inserted %d messages, want 1 after redelivery", len(messages.inserted))
	}
	if len(enqueuer.payloads) != 1 {
		t.Errorf("enqueued %d tasks, want 1 after redelivery", len(enqueuer.payloads))
	}
}

func TestProcessNotificationUnknownChannel(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "9999999999", "wamid.B1")
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(messages.inserted) != 0 {
		t.Errorf("inserted %d messages, want 0 for unknown channel", len(messages.inserted))
	}
	if len(enqueuer.payloads) != 0 {
		t.Errorf("enqueued %d tasks, want 0 for unknown channel", len(enqueuer.payloads))
	}
}

func TestProcessNotificationUniqueViolationStillEnqueues(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{err: &pgconn.PgError{Code: "23505"}}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	// The row exists from an earlier delivery whose enqueue may never have
	// happened; the processor no-ops if the message was already handled.
	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.C1")
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(enqueuer.payloads) != 1 {
		t.Errorf("enqueued %d tasks, want 1 when the row already exists", len(enqueuer.payloads))
	}
}

func TestProcessNotificationInsertFailureAllowsRedelivery(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{err: errInsert}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.E1")
	svc.ProcessNotification(context.Background(), []byte(payload))

	// Storage recovers and the provider redelivers the same notification.
	messages.err = nil
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(messages.inserted) != 1 {
		t.Fatalf("inserted %d messages, want 1 after redelivery", len(messages.inserted))
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatalf("enqueued %d tasks, want 1 after redelivery", len(enqueuer.payloads))
	}
}

func TestProcessNotificationEnqueueFailureAllowsRedelivery(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{}
	enqueuer := &fakeEnqueuer{err: errors.New("broker unavailable")}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.E2")
	svc.ProcessNotification(context.Background(), []byte(payload))

	enqueuer.err = nil
	messages.err = &pgconn.PgError{Code: "23505"}
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(enqueuer.payloads) != 1 {
		t.Fatalf("enqueued %d tasks, want 1 after redelivery", len(enqueuer.payloads))
	}
}

func TestProcessNotificationMalformedPayload(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	svc.ProcessNotification(context.Background(), []byte(`{"object": "page"}`))
	svc.ProcessNotification(context.Background(), []byte(`not json`))

	if len(messages.inserted) != 0 || len(enqueuer.payloads) != 0 {
		t.Error("malformed payloads must be dropped")
	}
}

func TestVerifyChallenge(t *testing.T) {
	channels := &fakeChannels{tokens: map[string]bool{"tok-123": true}}
	svc := newTestService(t, channels, &fakeMessages{}, &fakeEnqueuer{})

	challenge, err := svc.VerifyChallenge(context.Background(), "subscribe", "tok-123", "challenge-value")
	if err != nil {
		t.Fatalf("VerifyChallenge() error = %v", err)
	}
	if challenge != "challenge-value" {
		t.Errorf("challenge = %q", challenge)
	}

	if _, err := svc.VerifyChallenge(context.Background(), "subscribe", "wrong", "x"); err == nil {
		t.Error("unknown token must be refused")
	}
	if _, err := svc.VerifyChallenge(context.Background(), "unsubscribe", "tok-123", "x"); err == nil {
		t.Error("non-subscribe mode must be refused")
	}
}

func TestExtractMessagesIgnoresStatuses(t *testing.T) {
	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "102290129340398",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"phone_number_id": "1055501234"},
					"statuses": [{"id": "wamid.S1", "status": "delivered"}]
				}
			}]
		}]
	}`)

	messages, err := ExtractMessages(payload)
	if err != nil {
		t.Fatalf("ExtractMessages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("extracted %d messages from a status-only notification", len(messages))
	}
}

var errInsert = errors.New("insert failed")

func TestProcessNotificationInsertFailureSkipsEnqueue(t *testing.T) {
	channels := &fakeChannels{channel: testChannel()}
	messages := &fakeMessages{err: errInsert}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, channels, messages, enqueuer)

	payload := fmt.Sprintf(notificationTemplate, "1055501234", "wamid.D1")
	svc.ProcessNotification(context.Background(), []byte(payload))

	if len(enqueuer.payloads) != 0 {
		t.Errorf("enqueued %d tasks, want 0 when persistence fails", len(enqueuer.payloads))
	}
}
