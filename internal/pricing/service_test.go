package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	rule      *Rule
	ruleErr   error
	discounts []VolumeDiscount
	prices    map[uuid.UUID]decimal.Decimal
}

func (f *fakeRepo) Rule(_ context.Context, _ uuid.UUID) (*Rule, error) {
	if f.ruleErr != nil {
		return nil, f.ruleErr
	}
	if f.rule == nil {
		return nil, ErrRuleMissing
	}
	return f.rule, nil
}

func (f *fakeRepo) VolumeDiscounts(_ context.Context, _ uuid.UUID) ([]VolumeDiscount, error) {
	return f.discounts, nil
}

func (f *fakeRepo) BasePrice(_ context.Context, _, itemID uuid.UUID) (decimal.Decimal, error) {
	price, ok := f.prices[itemID]
	if !ok {
		return decimal.Zero, ErrItemNotPriced
	}
	return price, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPriceItemNoDiscountBelowMinimum(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("45.00")},
		discounts: []VolumeDiscount{
			{ItemID: nil, MinQuantity: dec("20"), DiscountPct: dec("0.10")},
		},
	}
	svc := NewService(repo)

	line, err := svc.PriceItem(context.Background(), uuid.New(), itemID, dec("10"))
	if err != nil {
		t.Fatalf("price item: %v", err)
	}
	if !line.UnitPrice.Equal(dec("45.00")) {
		t.Fatalf("unit price = %s, want 45.00", line.UnitPrice)
	}
	if !line.LineTotal.Equal(dec("450.00")) {
		t.Fatalf("line total = %s, want 450.00", line.LineTotal)
	}
}

func TestPriceItemVolumeDiscountAtThreshold(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("45.00")},
		discounts: []VolumeDiscount{
			{ItemID: nil, MinQuantity: dec("20"), DiscountPct: dec("0.10")},
		},
	}
	svc := NewService(repo)

	line, err := svc.PriceItem(context.Background(), uuid.New(), itemID, dec("20"))
	if err != nil {
		t.Fatalf("price item: %v", err)
	}
	if !line.UnitPrice.Equal(dec("40.50")) {
		t.Fatalf("unit price = %s, want 40.50", line.UnitPrice)
	}
	if !line.LineTotal.Equal(dec("810.00")) {
		t.Fatalf("line total = %s, want 810.00", line.LineTotal)
	}
}

func TestPriceItemItemSpecificBeatsGlobal(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("100.00")},
		discounts: []VolumeDiscount{
			{ItemID: nil, MinQuantity: dec("10"), DiscountPct: dec("0.20")},
			{ItemID: &itemID, MinQuantity: dec("10"), DiscountPct: dec("0.05")},
		},
	}
	svc := NewService(repo)

	line, err := svc.PriceItem(context.Background(), uuid.New(), itemID, dec("15"))
	if err != nil {
		t.Fatalf("price item: %v", err)
	}
	if !line.DiscountPct.Equal(dec("0.05")) {
		t.Fatalf("discount = %s, want item-specific 0.05", line.DiscountPct)
	}
}

func TestPriceItemHighestApplicableTierWins(t *testing.T) {
	itemID := uuid.New()
	// Repository contract: ordered by descending min_quantity.
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("100.00")},
		discounts: []VolumeDiscount{
			{ItemID: nil, MinQuantity: dec("50"), DiscountPct: dec("0.15")},
			{ItemID: nil, MinQuantity: dec("20"), DiscountPct: dec("0.10")},
			{ItemID: nil, MinQuantity: dec("10"), DiscountPct: dec("0.05")},
		},
	}
	svc := NewService(repo)

	tests := []struct {
		quantity string
		wantPct  string
	}{
		{"5", "0"},
		{"10", "0.05"},
		{"25", "0.10"},
		{"50", "0.15"},
		{"500", "0.15"},
	}
	for _, tt := range tests {
		line, err := svc.PriceItem(context.Background(), uuid.New(), itemID, dec(tt.quantity))
		if err != nil {
			t.Fatalf("qty %s: %v", tt.quantity, err)
		}
		if !line.DiscountPct.Equal(dec(tt.wantPct)) {
			t.Fatalf("qty %s: discount = %s, want %s", tt.quantity, line.DiscountPct, tt.wantPct)
		}
	}
}

func TestPriceItemNotPriced(t *testing.T) {
	svc := NewService(&fakeRepo{prices: map[uuid.UUID]decimal.Decimal{}})

	_, err := svc.PriceItem(context.Background(), uuid.New(), uuid.New(), dec("1"))
	if !errors.Is(err, ErrItemNotPriced) {
		t.Fatalf("expected ErrItemNotPriced, got %v", err)
	}
}

func TestPriceQuotePIXDiscount(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("45.00")},
		rule: &Rule{
			PIXDiscountPct: dec("0.05"),
			MarginMinPct:   dec("0.25"),
		},
	}
	svc := NewService(repo)

	lines := []LineRequest{{ItemID: itemID, Name: "Cimento CP-II 50kg", Unit: "saco", Quantity: dec("10")}}
	quote, err := svc.PriceQuote(context.Background(), uuid.New(), lines, "PIX")
	if err != nil {
		t.Fatalf("price quote: %v", err)
	}

	if !quote.Subtotal.Equal(dec("450.00")) {
		t.Fatalf("subtotal = %s, want 450.00", quote.Subtotal)
	}
	if !quote.DiscountAmount.Equal(dec("22.50")) {
		t.Fatalf("discount = %s, want 22.50", quote.DiscountAmount)
	}
	if !quote.Total.Equal(dec("427.50")) {
		t.Fatalf("total = %s, want 427.50", quote.Total)
	}
	if !quote.MarginPct.Equal(dec("0.25")) {
		t.Fatalf("margin = %s, want configured minimum 0.25", quote.MarginPct)
	}
}

func TestPriceQuotePIXCaseInsensitive(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("10.00")},
		rule:   &Rule{PIXDiscountPct: dec("0.05"), MarginMinPct: dec("0.25")},
	}
	svc := NewService(repo)
	lines := []LineRequest{{ItemID: itemID, Quantity: dec("1")}}

	for _, method := range []string{"pix", "Pix", " PIX "} {
		quote, err := svc.PriceQuote(context.Background(), uuid.New(), lines, method)
		if err != nil {
			t.Fatalf("price quote: %v", err)
		}
		if quote.DiscountAmount.IsZero() {
			t.Fatalf("payment %q: expected PIX discount", method)
		}
	}
}

func TestPriceQuoteNonPIXNoDiscount(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("45.00")},
		rule:   &Rule{PIXDiscountPct: dec("0.05"), MarginMinPct: dec("0.25")},
	}
	svc := NewService(repo)

	lines := []LineRequest{{ItemID: itemID, Quantity: dec("10")}}
	quote, err := svc.PriceQuote(context.Background(), uuid.New(), lines, "boleto")
	if err != nil {
		t.Fatalf("price quote: %v", err)
	}
	if !quote.DiscountAmount.IsZero() {
		t.Fatalf("expected no discount for boleto, got %s", quote.DiscountAmount)
	}
	if !quote.Total.Equal(dec("450.00")) {
		t.Fatalf("total = %s, want 450.00", quote.Total)
	}
}

func TestPriceQuoteMissingRuleDegrades(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("45.00")},
	}
	svc := NewService(repo)

	lines := []LineRequest{{ItemID: itemID, Quantity: dec("10")}}
	quote, err := svc.PriceQuote(context.Background(), uuid.New(), lines, "pix")
	if err != nil {
		t.Fatalf("price quote should not fail on missing rule: %v", err)
	}
	if !quote.RuleMissing {
		t.Fatal("expected RuleMissing flag")
	}
	if !quote.DiscountAmount.IsZero() || !quote.MarginPct.IsZero() {
		t.Fatal("missing rule must degrade to zero discount and margin")
	}
	if !quote.Total.Equal(dec("450.00")) {
		t.Fatalf("total = %s, want 450.00", quote.Total)
	}
}

func TestPriceQuoteRepeatedAdditionStaysExact(t *testing.T) {
	itemID := uuid.New()
	repo := &fakeRepo{
		prices: map[uuid.UUID]decimal.Decimal{itemID: dec("0.10")},
		rule:   &Rule{PIXDiscountPct: dec("0.05"), MarginMinPct: dec("0.25")},
	}
	svc := NewService(repo)

	lines := make([]LineRequest, 0, 100)
	for i := 0; i < 100; i++ {
		lines = append(lines, LineRequest{ItemID: itemID, Quantity: dec("1")})
	}

	quote, err := svc.PriceQuote(context.Background(), uuid.New(), lines, "boleto")
	if err != nil {
		t.Fatalf("price quote: %v", err)
	}
	if !quote.Subtotal.Equal(dec("10.00")) {
		t.Fatalf("subtotal = %s, want exactly 10.00", quote.Subtotal)
	}
}
