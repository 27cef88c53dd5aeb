// Package approval implements the human-in-the-loop gate: the policy that
// decides when a quote needs sign-off, and the admin API to resolve it.
package approval

import (
	"fmt"
	"strings"

	"orcazap/internal/pricing"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of the approval policy.
type Decision struct {
	Required bool
	Reason   string
}

// Evaluate decides whether a quote needs human approval. Reasons accumulate
// independently and are joined into one message. The absence of a pricing
// rule forces approval (fail-safe), as does AI-assisted extraction and an
// unresolved freight rule.
func Evaluate(rule *pricing.Rule, total, marginPct decimal.Decimal, unknownItems []string, aiUsed, freightMissing bool) Decision {
	var reasons []string

	if rule == nil {
		reasons = append(reasons, "regra de preços não configurada")
	}
	if len(unknownItems) > 0 {
		reasons = append(reasons, fmt.Sprintf("itens não reconhecidos: %s", strings.Join(unknownItems, ", ")))
	}
	if rule != nil && rule.ApprovalThresholdTotal != nil && total.GreaterThan(*rule.ApprovalThresholdTotal) {
		reasons = append(reasons, fmt.Sprintf("total R$ %s acima do limite R$ %s",
			total.StringFixed(2), rule.ApprovalThresholdTotal.StringFixed(2)))
	}
	if rule != nil && rule.ApprovalThresholdMargin != nil && marginPct.LessThan(*rule.ApprovalThresholdMargin) {
		reasons = append(reasons, fmt.Sprintf("margem %s%% abaixo do mínimo %s%%",
			marginPct.Mul(decimal.NewFromInt(100)).StringFixed(1),
			rule.ApprovalThresholdMargin.Mul(decimal.NewFromInt(100)).StringFixed(1)))
	}
	if freightMissing {
		reasons = append(reasons, "frete não calculado para o endereço informado")
	}
	if aiUsed {
		reasons = append(reasons, "extração assistida por IA")
	}

	if len(reasons) == 0 {
		return Decision{}
	}
	return Decision{Required: true, Reason: strings.Join(reasons, "; ")}
}
