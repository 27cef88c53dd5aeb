package quotes

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DataCapturePrompt is the first message sent to a new conversation, asking
// for the four fields the parser needs.
func DataCapturePrompt(contactName string) string {
	greeting := "Olá! 👋"
	if contactName != "" {
		greeting = fmt.Sprintf("Olá, %s! 👋", contactName)
	}

	return greeting + `

Para gerar seu orçamento, preciso das seguintes informações:

📍 *Localização:* [CEP ou bairro]
💳 *Forma de pagamento:* [PIX / Cartão / Boleto]
📅 *Dia de entrega:* [Data ou "o quanto antes"]
📦 *Itens:* [Lista de produtos com quantidades]

Exemplo:
📍 CEP: 01310-100 ou Bairro: Centro
💳 PIX
📅 Amanhã
📦
- Cimento 50kg: 10 sacos
- Areia média: 2m³
- Tijolo comum: 500 unidades`
}

// ClarificationMessage asks the customer to resend in the expected format
// after an incomplete parse.
func ClarificationMessage() string {
	return `Desculpe, não consegui entender algumas informações.

Por favor, envie novamente no formato:
📍 CEP ou bairro
💳 Forma de pagamento
📅 Dia de entrega
📦 Lista de itens

Obrigado! 😊`
}

// CatalogMissMessage is sent when none of the requested items resolve
// against the tenant catalog.
func CatalogMissMessage() string {
	return `Desculpe, não encontrei os produtos mencionados no nosso catálogo.

Pode verificar os nomes e enviar novamente?`
}

// PendingReviewMessage acknowledges a request held for human approval.
func PendingReviewMessage() string {
	return `Olá! 👋

Recebi sua solicitação. Para garantir o melhor atendimento, nossa equipe está analisando seu pedido e entrará em contato em breve.

Você receberá uma resposta em até 2 horas úteis.

Obrigado pela compreensão! 🙏`
}

// FormatQuoteMessage renders the customer-facing quote in PT-BR with
// Brazilian currency formatting.
func FormatQuoteMessage(q *Quote) string {
	var b strings.Builder
	b.WriteString("✅ *Orçamento Gerado*\n\n*Itens:*\n")

	for _, item := range q.Items {
		b.WriteString(fmt.Sprintf("• %s (%s %s): R$ %s\n",
			item.Name, formatQuantity(item.Quantity), item.Unit, formatBRL(item.LineTotal)))
	}

	b.WriteString(fmt.Sprintf("\n*Subtotal:* R$ %s\n", formatBRL(q.Subtotal)))
	b.WriteString(fmt.Sprintf("*Frete:* R$ %s\n", formatBRL(q.Freight)))

	if q.DiscountPct.IsPositive() {
		name := "Desconto"
		if strings.EqualFold(q.PaymentMethod, "pix") {
			name = "Desconto PIX"
		}
		amount := q.Subtotal.Mul(q.DiscountPct)
		b.WriteString(fmt.Sprintf("*%s (%s%%):* -R$ %s\n",
			name, q.DiscountPct.Mul(decimal.NewFromInt(100)).StringFixed(0), formatBRL(amount)))
	}

	b.WriteString("━━━━━━━━━━━━━━━━\n")
	b.WriteString(fmt.Sprintf("*Total:* R$ %s\n\n", formatBRL(q.Total)))
	b.WriteString(fmt.Sprintf("💳 *Forma de pagamento:* %s\n", q.PaymentMethod))
	b.WriteString(fmt.Sprintf("📅 *Entrega:* %s\n\n", q.DeliveryDay))
	b.WriteString(fmt.Sprintf("⏰ *Válido até:* %s\n\n", formatValidUntil(q.ValidUntil)))
	b.WriteString("Para agendar a entrega, responda:\n✅ *Confirmar* ou *Sim*\n\nOu envie sua dúvida que te ajudo! 😊")

	return b.String()
}

// formatBRL renders a decimal as Brazilian currency: thousands separated by
// dots, comma as the decimal separator.
func formatBRL(value decimal.Decimal) string {
	fixed := value.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	result := strings.Join(groups, ".") + "," + fracPart
	if negative {
		result = "-" + result
	}
	return result
}

// formatQuantity drops trailing zeros so "10" prints as 10 and "2.50" as 2,5.
func formatQuantity(value decimal.Decimal) string {
	return strings.ReplaceAll(value.String(), ".", ",")
}

func formatValidUntil(t time.Time) string {
	return t.Format("02/01/2006 às 15:04")
}
