package approval

import (
	"strings"
	"testing"

	"orcazap/internal/pricing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestEvaluateAutoOK(t *testing.T) {
	rule := &pricing.Rule{
		ApprovalThresholdTotal:  decptr("5000.00"),
		ApprovalThresholdMargin: decptr("0.15"),
	}

	decision := Evaluate(rule, dec("427.50"), dec("0.25"), nil, false, false)
	if decision.Required {
		t.Fatalf("expected auto-ok, got reason %q", decision.Reason)
	}
}

func TestEvaluateNilRuleFailsSafe(t *testing.T) {
	decision := Evaluate(nil, dec("10.00"), dec("0.50"), nil, false, false)
	if !decision.Required {
		t.Fatal("missing pricing rule must force approval")
	}
}

func TestEvaluateUnknownItems(t *testing.T) {
	rule := &pricing.Rule{}

	decision := Evaluate(rule, dec("100.00"), dec("0.25"), []string{"telha esmaltada", "cano 3/4"}, false, false)
	if !decision.Required {
		t.Fatal("unknown items must force approval")
	}
	if !strings.Contains(decision.Reason, "telha esmaltada") {
		t.Fatalf("reason should name unknown items, got %q", decision.Reason)
	}
}

func TestEvaluateTotalThreshold(t *testing.T) {
	rule := &pricing.Rule{ApprovalThresholdTotal: decptr("1000.00")}

	if d := Evaluate(rule, dec("1000.00"), dec("0.25"), nil, false, false); d.Required {
		t.Fatalf("total at threshold should pass, got %q", d.Reason)
	}
	if d := Evaluate(rule, dec("1000.01"), dec("0.25"), nil, false, false); !d.Required {
		t.Fatal("total above threshold must force approval")
	}
}

func TestEvaluateMarginThreshold(t *testing.T) {
	rule := &pricing.Rule{ApprovalThresholdMargin: decptr("0.15")}

	if d := Evaluate(rule, dec("100.00"), dec("0.15"), nil, false, false); d.Required {
		t.Fatalf("margin at threshold should pass, got %q", d.Reason)
	}
	if d := Evaluate(rule, dec("100.00"), dec("0.10"), nil, false, false); !d.Required {
		t.Fatal("margin below threshold must force approval")
	}
}

func TestEvaluateAIUsageAlwaysForces(t *testing.T) {
	rule := &pricing.Rule{
		ApprovalThresholdTotal:  decptr("5000.00"),
		ApprovalThresholdMargin: decptr("0.05"),
	}

	decision := Evaluate(rule, dec("10.00"), dec("0.50"), nil, true, false)
	if !decision.Required {
		t.Fatal("AI-assisted extraction must force approval unconditionally")
	}
}

func TestEvaluateFreightMissingForces(t *testing.T) {
	decision := Evaluate(&pricing.Rule{}, dec("10.00"), dec("0.50"), nil, false, true)
	if !decision.Required {
		t.Fatal("unresolved freight must force approval")
	}
}

func TestEvaluateAccumulatesReasons(t *testing.T) {
	rule := &pricing.Rule{
		ApprovalThresholdTotal:  decptr("100.00"),
		ApprovalThresholdMargin: decptr("0.30"),
	}

	decision := Evaluate(rule, dec("500.00"), dec("0.10"), []string{"areia lavada"}, true, true)
	if !decision.Required {
		t.Fatal("expected approval required")
	}
	parts := strings.Split(decision.Reason, "; ")
	if len(parts) != 5 {
		t.Fatalf("expected 5 independent reasons, got %d: %q", len(parts), decision.Reason)
	}
}
