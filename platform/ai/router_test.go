package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubProvider struct {
	name   string
	output string
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.output, s.err
}

func TestRouterNoProviders(t *testing.T) {
	router := NewRouter(nil)

	_, err := router.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestRouterFirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", output: "ok"}
	second := &stubProvider{name: "second", output: "unused"}
	router := NewRouter(nil, first, second)

	output, err := router.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if output != "ok" {
		t.Fatalf("expected ok, got %q", output)
	}
	if second.calls != 0 {
		t.Fatal("second provider should not be called when first succeeds")
	}
}

func TestRouterFallsBackInOrder(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("quota exceeded")}
	second := &stubProvider{name: "second", output: "fallback"}
	router := NewRouter(nil, first, second)

	output, err := router.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if output != "fallback" {
		t.Fatalf("expected fallback, got %q", output)
	}
	if first.calls != 1 {
		t.Fatalf("expected first provider tried once, got %d", first.calls)
	}
}

func TestRouterAllFailJoinsErrors(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second", err: errors.New("bang")}
	router := NewRouter(nil, first, second)

	_, err := router.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "bang") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestRouterStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second", output: "late"}
	router := NewRouter(nil, first, second)

	cancel()

	_, err := router.Complete(ctx, "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if second.calls != 0 {
		t.Fatal("should not try further providers after cancellation")
	}
}
