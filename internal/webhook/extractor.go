package webhook

import (
	"encoding/json"
	"fmt"
)

// InboundMessage is one customer message extracted from a Cloud API
// notification, with the raw provider JSON preserved for the message log.
type InboundMessage struct {
	ProviderMessageID string
	PhoneNumberID     string
	From              string
	ContactName       string
	Type              string
	Text              string
	Raw               json.RawMessage
}

// Cloud API notification envelope. Only the fields the pipeline reads are
// declared; statuses and other change fields are ignored.
type notification struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string      `json:"field"`
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []json.RawMessage `json:"messages"`
}

type rawMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// ExtractMessages pulls customer messages out of a webhook notification.
// Status updates and non-message changes yield no entries. A malformed
// envelope is an error; a malformed individual message is skipped.
func ExtractMessages(payload []byte) ([]InboundMessage, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if n.Object != "whatsapp_business_account" {
		return nil, fmt.Errorf("unexpected webhook object %q", n.Object)
	}

	var messages []InboundMessage
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			contactNames := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				contactNames[c.WaID] = c.Profile.Name
			}

			for _, raw := range change.Value.Messages {
				var msg rawMessage
				if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == "" || msg.From == "" {
					continue
				}
				inbound := InboundMessage{
					ProviderMessageID: msg.ID,
					PhoneNumberID:     change.Value.Metadata.PhoneNumberID,
					From:              msg.From,
					ContactName:       contactNames[msg.From],
					Type:              msg.Type,
					Raw:               raw,
				}
				if msg.Text != nil {
					inbound.Text = msg.Text.Body
				}
				messages = append(messages, inbound)
			}
		}
	}
	return messages, nil
}
