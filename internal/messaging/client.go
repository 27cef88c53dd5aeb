// Package messaging sends outbound WhatsApp messages through the Cloud API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orcazap/platform/config"
	"orcazap/platform/logger"
	"orcazap/platform/phone"
)

// SendError classifies a failed delivery attempt. Permanent errors (4xx)
// must never be retried; transient ones propagate to the job queue's retry.
type SendError struct {
	StatusCode int
	Permanent  bool
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Err != nil {
		return fmt.Sprintf("whatsapp send failed (%s): %v", kind, e.Err)
	}
	return fmt.Sprintf("whatsapp send failed (%s): status %d: %s", kind, e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a non-retryable send failure.
func IsPermanent(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Permanent
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	http        *http.Client
	log         *logger.Logger
}

// NewClient creates a Cloud API client.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	timeout := cfg.GetWhatsAppSendTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.GetWhatsAppSendRetries()
	if retries < 1 {
		retries = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.GetWhatsAppAPIBaseURL(), "/"),
		accessToken: cfg.GetWhatsAppAccessToken(),
		timeout:     timeout,
		maxRetries:  retries,
		baseBackoff: time.Second,
		http:        &http.Client{},
		log:         log,
	}
}

type textPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textContent `json:"text"`
}

type textContent struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message via the channel's phone number ID and
// returns the provider message ID. Network errors and 5xx responses are
// retried with exponential backoff up to the configured attempt count; 4xx
// responses fail immediately as permanent.
func (c *Client) SendText(ctx context.Context, phoneNumberID, toPhone, text string) (string, error) {
	normalized := strings.TrimPrefix(phone.NormalizeE164(toPhone), "+")

	body, err := json.Marshal(textPayload{
		MessagingProduct: "whatsapp",
		To:               normalized,
		Type:             "text",
		Text:             textContent{Body: text},
	})
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		providerID, err := c.attempt(ctx, url, normalized, body)
		if err == nil {
			if c.log != nil {
				c.log.SendEvent(normalized, "text", true, nil)
			}
			return providerID, nil
		}
		if IsPermanent(err) {
			if c.log != nil {
				c.log.SendEvent(normalized, "text", false, err)
			}
			return "", err
		}
		lastErr = err
	}

	if c.log != nil {
		c.log.SendEvent(normalized, "text", false, lastErr)
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, url, to string, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Permanent: true, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SendError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		data, _ := io.ReadAll(resp.Body)
		return "", &SendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", &SendError{StatusCode: resp.StatusCode, Permanent: true, Body: strings.TrimSpace(string(data))}
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &SendError{Err: fmt.Errorf("decode send response: %w", err)}
	}
	if len(parsed.Messages) == 0 {
		return "", &SendError{Err: errors.New("send response missing message id")}
	}
	return parsed.Messages[0].ID, nil
}
