package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orcazap/platform/config"
)

func testClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		WhatsAppAPIBaseURL:  server.URL,
		WhatsAppAccessToken: "token",
		WhatsAppSendTimeout: 2 * time.Second,
		WhatsAppSendRetries: retries,
	}
	client := NewClient(cfg, nil)
	// Collapse backoff waits for tests.
	client.baseBackoff = time.Millisecond
	return client
}

func okResponse(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": []map[string]string{{"id": "wamid.OUT1"}},
	})
}

func TestSendTextSuccess(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]interface{}

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		okResponse(w)
	}, 1)

	id, err := client.SendText(context.Background(), "123456789", "+5511999998888", "Olá")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "wamid.OUT1" {
		t.Fatalf("provider id = %q", id)
	}
	if gotPath != "/123456789/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["to"] != "5511999998888" {
		t.Fatalf("to = %v, want digits-only E.164", gotBody["to"])
	}
	if gotBody["messaging_product"] != "whatsapp" {
		t.Fatalf("messaging_product = %v", gotBody["messaging_product"])
	}
}

func TestSendTextRetriesOn5xx(t *testing.T) {
	attempts := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		okResponse(w)
	}, 3)

	id, err := client.SendText(context.Background(), "123", "+5511999998888", "Olá")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "wamid.OUT1" {
		t.Fatalf("provider id = %q", id)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want retry then success", attempts)
	}
}

func TestSendTextNoRetryOn4xx(t *testing.T) {
	attempts := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}, 3)

	_, err := client.SendText(context.Background(), "123", "+5511999998888", "Olá")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, 4xx must not be retried", attempts)
	}
}

func TestSendTextExhaustsRetries(t *testing.T) {
	attempts := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}, 2)

	_, err := client.SendText(context.Background(), "123", "+5511999998888", "Olá")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if IsPermanent(err) {
		t.Fatalf("5xx failure should stay transient, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}
