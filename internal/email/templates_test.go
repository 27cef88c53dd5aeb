package email

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRenderApprovalPendingTemplate(t *testing.T) {
	content, err := renderEmailTemplate("approval_pending.html", approvalPendingEmailData{
		baseEmailData: baseEmailData{
			Title:   "Orçamento aguardando aprovação",
			Heading: "Orçamento aguardando aprovação",
		},
		TotalFormatted: "1.234,56",
		Reason:         "margem 15,0% abaixo do mínimo 20,0%",
		QuoteID:        "3d0f8f5e-6f4e-4d7a-9a1c-1b2c3d4e5f60",
	})
	if err != nil {
		t.Fatalf("renderEmailTemplate() error = %v", err)
	}

	for _, want := range []string{"1.234,56", "margem 15,0%", "3d0f8f5e"} {
		if !strings.Contains(content, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestFormatCurrencyBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0,00"},
		{"45.5", "45,50"},
		{"1234.56", "1.234,56"},
		{"1234567.89", "1.234.567,89"},
	}
	for _, tt := range tests {
		if got := formatCurrencyBRL(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("formatCurrencyBRL(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
