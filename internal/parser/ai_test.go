package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type stubProvider struct {
	output string
	err    error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	return s.output, s.err
}

const validAIOutput = `{
  "cep_or_bairro": "01310-100",
  "payment_method": "PIX",
  "delivery_day": "Amanhã",
  "items": [{"name": "Cimento 50kg", "quantity": 10, "unit": "sacos"}]
}`

func TestAIParserUsesModelOutput(t *testing.T) {
	p := NewAIParser(&stubProvider{output: validAIOutput}, nil)

	result, aiUsed, err := p.Parse(context.Background(), "qualquer texto")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !aiUsed {
		t.Fatal("expected aiUsed flag")
	}
	if result.Location != "01310-100" || result.PaymentMethod != "PIX" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Items) != 1 || !result.Items[0].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("items = %+v", result.Items)
	}
}

func TestAIParserStripsMarkdownFences(t *testing.T) {
	p := NewAIParser(&stubProvider{output: "```json\n" + validAIOutput + "\n```"}, nil)

	result, aiUsed, err := p.Parse(context.Background(), "texto")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !aiUsed || result.Location != "01310-100" {
		t.Fatalf("aiUsed=%v result=%+v", aiUsed, result)
	}
}

func TestAIParserFallsBackOnProviderError(t *testing.T) {
	p := NewAIParser(&stubProvider{err: errors.New("quota exceeded")}, nil)

	result, aiUsed, err := p.Parse(context.Background(), completeMessage)
	if err != nil {
		t.Fatalf("fallback parse: %v", err)
	}
	if aiUsed {
		t.Fatal("fallback result must not be flagged as AI")
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want deterministic extraction", len(result.Items))
	}
}

func TestAIParserFallsBackOnInvalidJSON(t *testing.T) {
	p := NewAIParser(&stubProvider{output: "desculpe, não entendi a mensagem"}, nil)

	result, aiUsed, err := p.Parse(context.Background(), completeMessage)
	if err != nil {
		t.Fatalf("fallback parse: %v", err)
	}
	if aiUsed {
		t.Fatal("fallback result must not be flagged as AI")
	}
	if result.PaymentMethod != "PIX" {
		t.Fatalf("result = %+v", result)
	}
}

func TestAIParserFallsBackOnIncompleteModelOutput(t *testing.T) {
	p := NewAIParser(&stubProvider{output: `{"cep_or_bairro": "Centro", "items": []}`}, nil)

	_, aiUsed, err := p.Parse(context.Background(), "mensagem sem dados")
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete from fallback, got %v", err)
	}
	if aiUsed {
		t.Fatal("incomplete model output must not count as AI extraction")
	}
}

func TestAIParserWithoutProvider(t *testing.T) {
	p := NewAIParser(nil, nil)

	result, aiUsed, err := p.Parse(context.Background(), completeMessage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if aiUsed {
		t.Fatal("no provider, aiUsed must be false")
	}
	if result.DeliveryDay != "Amanhã" {
		t.Fatalf("result = %+v", result)
	}
}
