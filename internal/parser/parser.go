// Package parser extracts structured quote request data from free-form
// WhatsApp messages: location (CEP or neighborhood), payment method,
// delivery day and item lines.
package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrIncomplete indicates the message does not carry all four required
// fields. Callers must not build a quote from partial extraction.
var ErrIncomplete = errors.New("parser: message incomplete")

// Item is one requested catalog item line.
type Item struct {
	Name     string
	Quantity decimal.Decimal
	Unit     string
}

// Extraction is the structured result of parsing one message.
type Extraction struct {
	Location      string
	PaymentMethod string
	DeliveryDay   string
	Items         []Item
}

var (
	cepPattern  = regexp.MustCompile(`\b(\d{5}[- ]?\d{3})\b`)
	itemPattern = regexp.MustCompile(`(?i)[-•]\s*([^:\n]+):\s*(\d+(?:[.,]\d+)?)[ \t]*(\w+)?`)
)

var paymentKeywords = []struct {
	method   string
	keywords []string
}{
	{"PIX", []string{"PIX"}},
	{"Cartão", []string{"CARTÃO", "CARTAO", "CREDITO", "CRÉDITO", "DEBITO", "DÉBITO"}},
	{"Boleto", []string{"BOLETO"}},
}

var deliveryKeywords = []struct {
	day      string
	keywords []string
}{
	{"o quanto antes", []string{"QUANTO ANTES", "URGENTE", "IMEDIATO"}},
	{"Amanhã", []string{"AMANHÃ", "AMANHA"}},
	{"Hoje", []string{"HOJE"}},
}

// Parse extracts quote request fields from a message. It returns
// ErrIncomplete unless location, payment method, delivery day and at least
// one item are all present.
func Parse(text string) (Extraction, error) {
	upper := strings.ToUpper(strings.TrimSpace(text))

	result := Extraction{
		Location:      extractLocation(text, upper),
		PaymentMethod: extractPayment(upper),
		DeliveryDay:   extractDelivery(upper),
		Items:         extractItems(text),
	}

	if result.Location == "" || result.PaymentMethod == "" || result.DeliveryDay == "" || len(result.Items) == 0 {
		return Extraction{}, ErrIncomplete
	}
	return result, nil
}

// extractLocation prefers a CEP pattern over neighborhood keywords.
func extractLocation(text, upper string) string {
	if match := cepPattern.FindStringSubmatch(text); match != nil {
		cep := strings.ReplaceAll(match[1], " ", "-")
		if len(strings.ReplaceAll(cep, "-", "")) == 8 {
			return cep
		}
	}

	for _, keyword := range []string{"BAIRRO:", "BAIRRO", "LOCALIZAÇÃO:", "LOCALIZAÇÃO"} {
		if _, after, found := strings.Cut(upper, keyword); found {
			line, _, _ := strings.Cut(after, "\n")
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func extractPayment(upper string) string {
	for _, entry := range paymentKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(upper, keyword) {
				return entry.method
			}
		}
	}
	return ""
}

func extractDelivery(upper string) string {
	for _, entry := range deliveryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(upper, keyword) {
				return entry.day
			}
		}
	}

	// Free-text fallback after an explicit delivery keyword.
	if strings.Contains(upper, "ENTREGA") || strings.Contains(upper, "DELIVERY") {
		for _, keyword := range []string{"ENTREGA:", "ENTREGA", "DELIVERY:"} {
			if _, after, found := strings.Cut(upper, keyword); found {
				line, _, _ := strings.Cut(after, "\n")
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}

// extractItems matches bullet lines of the form "- name: quantity unit".
// Empty names and non-positive or non-numeric quantities are skipped.
func extractItems(text string) []Item {
	var items []Item
	for _, match := range itemPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}

		quantity, err := decimal.NewFromString(strings.ReplaceAll(match[2], ",", "."))
		if err != nil || !quantity.IsPositive() {
			continue
		}

		unit := strings.TrimSpace(match[3])
		if unit == "" {
			unit = "un"
		}

		items = append(items, Item{Name: name, Quantity: quantity, Unit: unit})
	}
	return items
}
