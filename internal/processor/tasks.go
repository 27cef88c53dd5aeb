// Package processor consumes accepted webhook messages and drives the
// conversation state machine: parsing, pricing, approval gating and replies.
package processor

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskInboundMessage processes one accepted WhatsApp message.
const TaskInboundMessage = "whatsapp.message.inbound"

// InboundMessagePayload identifies one stored inbound message. The message
// row already exists when the task is enqueued; the payload carries enough to
// reprocess without refetching from the provider.
type InboundMessagePayload struct {
	TenantID          string `json:"tenantId"`
	ChannelID         string `json:"channelId"`
	ProviderMessageID string `json:"providerMessageId"`
	ContactPhone      string `json:"contactPhone"`
	ContactName       string `json:"contactName"`
	Text              string `json:"text"`
}

// NewInboundMessageTask builds the asynq task for an accepted message.
func NewInboundMessageTask(payload InboundMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInboundMessage, data), nil
}

// ParseInboundMessagePayload decodes an inbound message task.
func ParseInboundMessagePayload(task *asynq.Task) (InboundMessagePayload, error) {
	var payload InboundMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InboundMessagePayload{}, err
	}
	return payload, nil
}
