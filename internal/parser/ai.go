package parser

import (
	"context"
	"encoding/json"
	"strings"

	"orcazap/platform/ai"
	"orcazap/platform/logger"

	"github.com/shopspring/decimal"
)

const extractionPrompt = `Extraia as informações de orçamento da seguinte mensagem do cliente:

%TEXT%

Extraia e retorne APENAS um JSON válido com as seguintes chaves:
- cep_or_bairro: CEP (formato 00000-000) ou nome do bairro
- payment_method: "PIX", "Cartão" ou "Boleto"
- delivery_day: Data de entrega ou "o quanto antes"
- items: Lista de objetos com "name", "quantity" (número) e "unit" (string)

Exemplo de resposta:
{
  "cep_or_bairro": "01310-100",
  "payment_method": "PIX",
  "delivery_day": "Amanhã",
  "items": [
    {"name": "Cimento 50kg", "quantity": 10, "unit": "sacos"},
    {"name": "Areia média", "quantity": 2, "unit": "m³"}
  ]
}

Retorne APENAS o JSON, sem markdown ou explicações.`

// AIParser extracts quote request data with an LLM, falling back to the
// deterministic extractor on any provider or output failure. A successful AI
// extraction is flagged so the approval policy can force review.
type AIParser struct {
	provider ai.Provider
	log      *logger.Logger
}

// NewAIParser creates an AI-assisted parser over a completion provider.
func NewAIParser(provider ai.Provider, log *logger.Logger) *AIParser {
	return &AIParser{provider: provider, log: log}
}

type aiExtraction struct {
	CEPOrBairro   string   `json:"cep_or_bairro"`
	PaymentMethod string   `json:"payment_method"`
	DeliveryDay   string   `json:"delivery_day"`
	Items         []aiItem `json:"items"`
}

type aiItem struct {
	Name     string      `json:"name"`
	Quantity json.Number `json:"quantity"`
	Unit     string      `json:"unit"`
}

// Parse extracts fields from the message. The second return value reports
// whether the AI output was used; false means the deterministic extractor
// produced the result. ErrIncomplete follows the same contract as Parse.
func (p *AIParser) Parse(ctx context.Context, text string) (Extraction, bool, error) {
	if p.provider == nil {
		result, err := Parse(text)
		return result, false, err
	}

	output, err := p.provider.Complete(ctx, strings.Replace(extractionPrompt, "%TEXT%", text, 1))
	if err != nil {
		if p.log != nil {
			p.log.Warn("ai_extraction_failed", "error", err.Error())
		}
		result, err := Parse(text)
		return result, false, err
	}

	extraction, ok := decodeAIOutput(output)
	if !ok {
		if p.log != nil {
			p.log.Warn("ai_extraction_invalid_output")
		}
		result, err := Parse(text)
		return result, false, err
	}

	return extraction, true, nil
}

// decodeAIOutput parses the model's JSON and applies the same completeness
// contract as the deterministic extractor. Any shortfall rejects the output
// so the caller falls back.
func decodeAIOutput(output string) (Extraction, bool) {
	content := stripMarkdownFences(output)

	var wire aiExtraction
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&wire); err != nil {
		return Extraction{}, false
	}

	result := Extraction{
		Location:      strings.TrimSpace(wire.CEPOrBairro),
		PaymentMethod: strings.TrimSpace(wire.PaymentMethod),
		DeliveryDay:   strings.TrimSpace(wire.DeliveryDay),
	}
	for _, item := range wire.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		quantity, err := decimal.NewFromString(item.Quantity.String())
		if err != nil || !quantity.IsPositive() {
			continue
		}
		unit := strings.TrimSpace(item.Unit)
		if unit == "" {
			unit = "un"
		}
		result.Items = append(result.Items, Item{Name: name, Quantity: quantity, Unit: unit})
	}

	if result.Location == "" || result.PaymentMethod == "" || result.DeliveryDay == "" || len(result.Items) == 0 {
		return Extraction{}, false
	}
	return result, true
}

func stripMarkdownFences(output string) string {
	content := strings.TrimSpace(output)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= 2 {
		return content
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}
